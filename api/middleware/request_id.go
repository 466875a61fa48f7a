package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Inbound ids end up in every log line, so anything unusual is replaced.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID reuses a well-formed X-Request-Id from the menu frontend or the
// gateway proxy and mints one otherwise. The id is echoed on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !validRequestID.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
