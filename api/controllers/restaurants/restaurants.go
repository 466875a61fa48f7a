package restaurants

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rank0/digimenu-backend/api/controllers/actorcontext"
	"github.com/rank0/digimenu-backend/api/responses"
	"github.com/rank0/digimenu-backend/api/validators"
	internalrestaurants "github.com/rank0/digimenu-backend/internal/restaurants"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

type restaurantDTO struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	IsActive      bool       `json:"is_active"`
	IsSeo         bool       `json:"is_seo"`
	ExpireDate    *time.Time `json:"expire_date,omitempty"`
	IsExpired     bool       `json:"is_expired"`
	DaysRemaining int        `json:"days_remaining"`
}

type foodDTO struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	BasePriceLocal    *int64    `json:"base_price_local,omitempty"`
	DerivedPriceMinor *int64    `json:"derived_price_minor,omitempty"`
	IsAvailable       bool      `json:"is_available"`
}

type createRestaurantRequest struct {
	OwnerID string `json:"owner_id" validate:"required,uuid"`
	Name    string `json:"name" validate:"required,max=120"`
	Slug    string `json:"slug" validate:"required,max=64"`
	IsSeo   bool   `json:"is_seo"`
	Days    int    `json:"days" validate:"min=0,max=3650"`
}

type extendRequest struct {
	Days      int  `json:"days" validate:"required,min=1,max=3650"`
	FromToday bool `json:"from_today"`
}

type bulkExtendRequest struct {
	IDs  []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	Days int      `json:"days" validate:"min=0,max=3650"`
}

func toDTO(r *models.Restaurant, now time.Time) restaurantDTO {
	return restaurantDTO{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		Slug:          r.Slug,
		IsActive:      r.IsActive,
		IsSeo:         r.IsSeo,
		ExpireDate:    r.ExpireDate,
		IsExpired:     internalrestaurants.IsExpired(r, now),
		DaysRemaining: internalrestaurants.DaysUntilExpiry(r, now),
	}
}

func toFoodDTO(f *models.Food) foodDTO {
	return foodDTO{
		ID:                f.ID,
		Title:             f.Title,
		BasePriceLocal:    f.BasePriceLocal,
		DerivedPriceMinor: f.DerivedPriceMinor,
		IsAvailable:       f.IsAvailable,
	}
}

// Mine lists the caller's restaurants.
func Mine(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByOwner(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		now := time.Now().UTC()
		out := make([]restaurantDTO, 0, len(rows))
		for i := range rows {
			out = append(out, toDTO(&rows[i], now))
		}
		responses.WriteSuccess(w, out)
	}
}

// Detail returns a restaurant the caller owns.
func Detail(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurant, err := loadOwned(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDTO(restaurant, time.Now().UTC()))
	}
}

// AdminCreate opens a restaurant with an initial expiry.
func AdminCreate(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createRestaurantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := uuid.Parse(body.OwnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner_id"))
			return
		}
		restaurant, err := svc.CreateWithExpiration(r.Context(), internalrestaurants.CreateInput{
			OwnerID: ownerID,
			Name:    body.Name,
			Slug:    body.Slug,
			IsSeo:   body.IsSeo,
			Days:    body.Days,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDTO(restaurant, time.Now().UTC()))
	}
}

// AdminExtend pushes one restaurant's expiry forward. from_today restarts the
// period from now and re-activates the restaurant.
func AdminExtend(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body extendRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var restaurant *models.Restaurant
		if body.FromToday {
			restaurant, err = svc.SetFromToday(r.Context(), id, body.Days)
		} else {
			restaurant, err = svc.Extend(r.Context(), id, body.Days)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDTO(restaurant, time.Now().UTC()))
	}
}

// AdminBulkExtend extends several restaurants, reporting per-restaurant
// failures alongside the ones that went through.
func AdminBulkExtend(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body bulkExtendRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids := make([]uuid.UUID, 0, len(body.IDs))
		for _, raw := range body.IDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id"))
				return
			}
			ids = append(ids, id)
		}
		result, err := svc.BulkExtend(r.Context(), ids, body.Days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		failures := []string{}
		for _, ferr := range multierr.Errors(result.Err) {
			failures = append(failures, ferr.Error())
		}
		if len(failures) > 0 && logg != nil {
			logg.Warn(r.Context(), "bulk extend finished with failures")
		}
		extended := result.Extended
		if extended == nil {
			extended = []uuid.UUID{}
		}
		responses.WriteSuccess(w, map[string]any{
			"extended": extended,
			"failures": failures,
		})
	}
}

// SelectFood adds a catalog food to the restaurant's menu.
func SelectFood(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurant, err := loadOwned(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		foodID, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		added, err := svc.SelectFood(r.Context(), restaurant.ID, foodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, map[string]any{"food_id": foodID, "selected": true})
	}
}

// DeselectFood removes a food from the restaurant's menu. Removing a food
// that was never selected is not an error.
func DeselectFood(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurant, err := loadOwned(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		foodID, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		removed, err := svc.DeselectFood(r.Context(), restaurant.ID, foodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"food_id": foodID, "removed": removed})
	}
}

// SelectedFoods lists the foods on the restaurant's menu.
func SelectedFoods(svc internalrestaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurant, err := loadOwned(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		foods, err := svc.SelectedFoods(r.Context(), restaurant.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]foodDTO, 0, len(foods))
		for i := range foods {
			out = append(out, toFoodDTO(&foods[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// loadOwned resolves {restaurantId} and checks the caller owns it. Admins
// may act on any restaurant.
func loadOwned(r *http.Request, svc internalrestaurants.Service) (*models.Restaurant, error) {
	actor, err := actorcontext.Resolve(r)
	if err != nil {
		return nil, err
	}
	id, err := validators.ParseUUIDParam(r, "restaurantId")
	if err != nil {
		return nil, err
	}
	restaurant, err := svc.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.RoleAdmin && restaurant.OwnerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant belongs to another owner")
	}
	return restaurant, nil
}
