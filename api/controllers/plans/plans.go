package plans

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rank0/digimenu-backend/api/controllers/actorcontext"
	"github.com/rank0/digimenu-backend/api/responses"
	"github.com/rank0/digimenu-backend/api/validators"
	internalplans "github.com/rank0/digimenu-backend/internal/plans"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

type activateRequest struct {
	TrackingCode string `json:"tracking_code" validate:"omitempty,max=64"`
}

// List returns the plans on sale. It is public.
func List(svc internalplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// Purchase puts the plan named by {planSlug} in the caller's cart. Buying a
// plan that is already waiting for payment returns that order with 200.
func Purchase(svc internalplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Purchase(r.Context(), actor.UserID, chi.URLParam(r, "planSlug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Reused {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, internalplans.ToOrderDTO(result.Order, time.Now().UTC()))
	}
}

func Cart(svc internalplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Cart(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Orders lists the caller's plan purchases with their expiry state.
func Orders(svc internalplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListOrders(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AdminActivate marks a plan order paid.
func AdminActivate(svc internalplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "planOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body activateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Activate(r.Context(), id, body.TrackingCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalplans.ToOrderDTO(order, time.Now().UTC()))
	}
}
