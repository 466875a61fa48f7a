package actorcontext

import (
	"net/http"

	"github.com/rank0/digimenu-backend/api/middleware"
	"github.com/rank0/digimenu-backend/internal/orders"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
)

// Resolve returns the authenticated caller as an order actor.
func Resolve(r *http.Request) (orders.Actor, error) {
	userID, role, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return orders.Actor{UserID: userID, Role: role}, nil
}
