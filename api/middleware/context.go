package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the authenticated user and role. ok is false when
// the request was not authenticated.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.Role, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, "", false
	}
	role := enums.Role(RoleFromContext(ctx))
	if !role.IsValid() {
		return uuid.Nil, "", false
	}
	return userID, role, true
}

// WithActor injects the user and role into the context.
func WithActor(ctx context.Context, userID uuid.UUID, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID.String())
	return context.WithValue(ctx, ctxRole, string(role))
}
