package restaurants

import (
	"time"

	"github.com/rank0/digimenu-backend/pkg/db/models"
)

const day = 24 * time.Hour

// IsExpired reports whether the restaurant's expiry has passed. A restaurant
// without an expiry date never expires.
func IsExpired(r *models.Restaurant, now time.Time) bool {
	if r == nil || r.ExpireDate == nil {
		return false
	}
	return now.After(*r.ExpireDate)
}

// DaysUntilExpiry returns the whole days left, never negative. Restaurants
// without an expiry report zero.
func DaysUntilExpiry(r *models.Restaurant, now time.Time) int {
	if r == nil || r.ExpireDate == nil {
		return 0
	}
	remaining := r.ExpireDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / day)
}

// ExtendedExpiry computes the expiry after adding days. Lapsed or unset
// expiries restart from now; live ones stack on the existing date.
func ExtendedExpiry(r *models.Restaurant, now time.Time, days int) time.Time {
	span := time.Duration(days) * day
	if r == nil || r.ExpireDate == nil || IsExpired(r, now) {
		return now.Add(span)
	}
	return r.ExpireDate.Add(span)
}
