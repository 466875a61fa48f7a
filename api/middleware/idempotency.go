package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rank0/digimenu-backend/api/responses"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
	pkgredis "github.com/rank0/digimenu-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replay"
	maxIdempotencyKey = 128

	// A reservation only has to outlive one slow handler, e.g. a gateway
	// request that hits its timeout.
	pendingTTL = 2 * time.Minute

	// Most writes replay for a day; money-moving ones (cancel, plan activation)
	// replay for a week.
	DefaultIdempotencyTTL  = 24 * time.Hour
	CriticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotencyRecord is what the key holds: a pending marker while the first
// request runs, then the response to replay.
type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotent requires an Idempotency-Key on the route and replays the first
// response for ttl. The key is reserved before the handler runs, so a
// double-tapped "pay" gets 409 instead of a second gateway session. 5xx
// responses free the key so the client can retry.
func Idempotent(store pkgredis.IdempotencyStore, logg *logger.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKey {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required (1-128 characters)"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(r.Method, body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			pending, _ := json.Marshal(idempotencyRecord{Pending: true, RequestHash: hash})
			reserved, err := store.SetNX(ctx, key, string(pending), pendingTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayStored(ctx, logg, store, w, key, hash)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusOrOK()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			final, err := json.Marshal(idempotencyRecord{
				RequestHash: hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				logError(ctx, logg, "encode idempotency record", err)
				return
			}
			if err := store.Set(ctx, key, string(final), ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func replayStored(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, w http.ResponseWriter, key, hash string) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The first request finished with a 5xx between our SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key failed; retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key reused with a different request body"))
	case record.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this Idempotency-Key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// idempotencyScope ties a key to the caller and the concrete resource, so two
// owners (or one owner paying two orders) never share a key.
func idempotencyScope(r *http.Request) string {
	route := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		route = rc.RoutePattern() + "|" + r.URL.Path
	}
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, route}, "|")
}

func requestHash(method string, body []byte) string {
	sum := sha256.Sum256(append([]byte(method+"\n"), bytes.TrimSpace(body)...))
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
