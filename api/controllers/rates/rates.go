package rates

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rank0/digimenu-backend/api/controllers/actorcontext"
	"github.com/rank0/digimenu-backend/api/responses"
	"github.com/rank0/digimenu-backend/api/validators"
	"github.com/rank0/digimenu-backend/internal/pricing"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

type createRateRequest struct {
	Rate     string `json:"rate" validate:"required"`
	Activate bool   `json:"activate"`
}

type recomputeDTO struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type activationDTO struct {
	Rate      pricing.RateDTO `json:"rate"`
	Recompute *recomputeDTO   `json:"recompute,omitempty"`
}

func toActivationDTO(result *pricing.ActivationResult) activationDTO {
	out := activationDTO{Rate: result.Rate}
	if result.Recompute != nil {
		out.Recompute = &recomputeDTO{Updated: result.Recompute.Updated, Failed: result.Recompute.Failed}
	}
	return out
}

// Create stores a new exchange rate and activates it when asked.
func Create(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createRateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rate, err := decimal.NewFromString(body.Rate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "rate must be a decimal number"))
			return
		}
		userID := actor.UserID
		result, err := svc.CreateRate(r.Context(), pricing.CreateRateInput{
			Rate:      rate,
			Activate:  body.Activate,
			CreatedBy: &userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toActivationDTO(result))
	}
}

// Activate switches the active rate and recomputes derived food prices.
func Activate(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rateID, err := validators.ParseUUIDParam(r, "rateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID := actor.UserID
		result, err := svc.Activate(r.Context(), rateID, &userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toActivationDTO(result))
	}
}

func List(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListRates(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
