package plans

import (
	"time"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/pkg/db/models"
)

type PlanDTO struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description *string      `json:"description,omitempty"`
	Price       int64        `json:"price"`
	ExpiryDays  int          `json:"expiry_days"`
	IsFavorite  bool         `json:"is_favorite"`
	Features    []FeatureDTO `json:"features"`
}

type FeatureDTO struct {
	Title       string  `json:"title"`
	Value       *string `json:"value,omitempty"`
	IsAvailable bool    `json:"is_available"`
}

type PlanOrderDTO struct {
	ID            uuid.UUID  `json:"id"`
	PlanID        uuid.UUID  `json:"plan_id"`
	PlanName      string     `json:"plan_name,omitempty"`
	FinalPrice    int64      `json:"final_price"`
	IsPaid        bool       `json:"is_paid"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	ExpiryDate    time.Time  `json:"expiry_date"`
	DaysRemaining int        `json:"days_remaining"`
	IsActive      bool       `json:"is_active"`
	TrackingCode  *string    `json:"tracking_code,omitempty"`
}

func toPlanDTO(p *models.Plan) PlanDTO {
	dto := PlanDTO{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		ExpiryDays:  p.ExpiryDays,
		IsFavorite:  p.IsFavorite,
		Features:    make([]FeatureDTO, 0, len(p.Features)),
	}
	for _, f := range p.Features {
		dto.Features = append(dto.Features, FeatureDTO{Title: f.Title, Value: f.Value, IsAvailable: f.IsAvailable})
	}
	return dto
}

// ToOrderDTO exposes a plan order with its derived expiry state.
func ToOrderDTO(o *models.PlanOrder, now time.Time) PlanOrderDTO {
	return toPlanOrderDTO(o, now)
}

func toPlanOrderDTO(o *models.PlanOrder, now time.Time) PlanOrderDTO {
	dto := PlanOrderDTO{
		ID:            o.ID,
		PlanID:        o.PlanID,
		FinalPrice:    o.FinalPrice,
		IsPaid:        o.IsPaid,
		PaidAt:        o.PaidAt,
		ExpiryDate:    o.ExpiryDate,
		DaysRemaining: DaysRemaining(o, now),
		IsActive:      IsActive(o, now),
		TrackingCode:  o.TrackingCode,
	}
	if o.Plan != nil {
		dto.PlanName = o.Plan.Name
	}
	return dto
}
