package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/api/controllers/actorcontext"
	"github.com/rank0/digimenu-backend/api/responses"
	"github.com/rank0/digimenu-backend/api/validators"
	internalorders "github.com/rank0/digimenu-backend/internal/orders"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

type createOrderRequest struct {
	RestaurantID  string   `json:"restaurant_id" validate:"required,uuid"`
	BasePrice     *int64   `json:"base_price" validate:"omitempty,min=0"`
	SeoExtraPrice *int64   `json:"seo_extra_price" validate:"omitempty,min=0"`
	SeoEnabled    bool     `json:"seo_enabled"`
	ImageURLs     []string `json:"image_urls" validate:"max=20,dive,url"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create opens an UNPAID menu order for one of the caller's restaurants.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		restaurantID, err := uuid.Parse(body.RestaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant_id"))
			return
		}

		order, err := svc.Create(r.Context(), internalorders.CreateInput{
			RestaurantID:  restaurantID,
			BasePrice:     body.BasePrice,
			SeoExtraPrice: body.SeoExtraPrice,
			SeoEnabled:    body.SeoEnabled,
			ImageURLs:     body.ImageURLs,
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.ToDTO(order))
	}
}

// Detail returns one order visible to the caller.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, err := resolveOrderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToDTO(order))
	}
}

// Status returns only the status projection of an order.
func Status(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, err := resolveOrderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.GetStatusInfo(order.Status))
	}
}

// ListByRestaurant lists a restaurant's orders, newest first.
func ListByRestaurant(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		restaurantID, err := validators.ParseUUIDParam(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByRestaurant(r.Context(), restaurantID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]internalorders.OrderDTO, 0, len(rows))
		for i := range rows {
			out = append(out, internalorders.ToDTO(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// Cancel deletes an order that was never paid.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, err := resolveOrderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), orderID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "cancelled": true})
	}
}

// AdminTransition moves an order to the requested status.
func AdminTransition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, err := resolveOrderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.AdminTransition(r.Context(), orderID, body.Status, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToDTO(order))
	}
}

func resolveOrderRequest(r *http.Request) (internalorders.Actor, uuid.UUID, error) {
	actor, err := actorcontext.Resolve(r)
	if err != nil {
		return internalorders.Actor{}, uuid.Nil, err
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		return internalorders.Actor{}, uuid.Nil, err
	}
	return actor, orderID, nil
}
