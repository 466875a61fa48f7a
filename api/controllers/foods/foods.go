package foods

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/api/responses"
	"github.com/rank0/digimenu-backend/api/validators"
	internalfoods "github.com/rank0/digimenu-backend/internal/foods"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

type saveFoodRequest struct {
	Title             string `json:"title" validate:"required,max=200"`
	BasePriceLocal    *int64 `json:"base_price_local" validate:"omitempty,min=0"`
	DerivedPriceMinor *int64 `json:"derived_price_minor" validate:"omitempty,min=0"`
	IsAvailable       bool   `json:"is_available"`
}

func (r saveFoodRequest) toInput() internalfoods.SaveInput {
	return internalfoods.SaveInput{
		Title:             r.Title,
		BasePriceLocal:    r.BasePriceLocal,
		DerivedPriceMinor: r.DerivedPriceMinor,
		IsAvailable:       r.IsAvailable,
	}
}

type foodDTO struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	BasePriceLocal    *int64    `json:"base_price_local,omitempty"`
	DerivedPriceMinor *int64    `json:"derived_price_minor,omitempty"`
	IsAvailable       bool      `json:"is_available"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toDTO(f *models.Food) foodDTO {
	return foodDTO{
		ID:                f.ID,
		Title:             f.Title,
		BasePriceLocal:    f.BasePriceLocal,
		DerivedPriceMinor: f.DerivedPriceMinor,
		IsAvailable:       f.IsAvailable,
		UpdatedAt:         f.UpdatedAt,
	}
}

// List returns the shared food catalog. ?available=true hides foods that are
// switched off.
func List(svc internalfoods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		availableOnly, err := validators.QueryBool(r, "available", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), availableOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]foodDTO, 0, len(rows))
		for i := range rows {
			out = append(out, toDTO(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func Detail(svc internalfoods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		food, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDTO(food))
	}
}

// AdminCreate adds a food to the catalog. Omitting derived_price_minor
// derives it from the active exchange rate.
func AdminCreate(svc internalfoods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body saveFoodRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		food, err := svc.Create(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDTO(food))
	}
}

func AdminUpdate(svc internalfoods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body saveFoodRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		food, err := svc.Update(r.Context(), id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDTO(food))
	}
}
