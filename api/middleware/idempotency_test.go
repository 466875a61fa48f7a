package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/enums"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

// paymentStart mounts handler the way the router mounts POST
// /api/v1/orders/{orderId}/payments.
func paymentStart(store *fakeStore, handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.With(Idempotent(store, nil, DefaultIdempotencyTTL)).Post("/api/v1/orders/{orderId}/payments", handler)
	return r
}

func paymentRequest(orderID uuid.UUID, owner uuid.UUID, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/payments", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req.WithContext(WithActor(req.Context(), owner, enums.RoleOwner))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response %q: %v", rec.Body.String(), err)
	}
	return payload.Error.Code
}

func TestIdempotentRequiresHeader(t *testing.T) {
	called := false
	router := paymentStart(newFakeStore(), func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	})

	for _, key := range []string{"", strings.Repeat("k", maxIdempotencyKey+1)} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, paymentRequest(uuid.New(), uuid.New(), key, `{}`))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("key %q: expected 400 got %d", key, rec.Code)
		}
	}
	if called {
		t.Fatal("handler ran without a usable Idempotency-Key")
	}
}

func TestIdempotentReplaysFirstPaymentSession(t *testing.T) {
	store := newFakeStore()
	calls := 0
	router := paymentStart(store, func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"gateway":"zarinpal"}` {
			t.Errorf("handler saw body %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"authority":"A000000000000000000000000000000001"}}`))
	})
	orderID, owner := uuid.New(), uuid.New()

	first := httptest.NewRecorder()
	router.ServeHTTP(first, paymentRequest(orderID, owner, "pay-1", `{"gateway":"zarinpal"}`))
	replay := httptest.NewRecorder()
	router.ServeHTTP(replay, paymentRequest(orderID, owner, "pay-1", `{"gateway":"zarinpal"}`))

	if first.Code != http.StatusCreated || replay.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, replay.Code)
	}
	if replay.Body.String() != first.Body.String() || replay.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("replay differs: %q", replay.Body.String())
	}
	if replay.Header().Get(replayHeader) != "true" || first.Header().Get(replayHeader) != "" {
		t.Fatal("replay header missing or set on the first response")
	}
	if calls != 1 {
		t.Fatalf("gateway session opened %d times", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != DefaultIdempotencyTTL {
			t.Fatalf("%s stored for %s", key, ttl)
		}
	}
}

func TestIdempotentRejectsDuplicateWhileFirstRuns(t *testing.T) {
	store := newFakeStore()
	orderID, owner := uuid.New(), uuid.New()
	var second *httptest.ResponseRecorder
	var router http.Handler
	router = paymentStart(store, func(w http.ResponseWriter, r *http.Request) {
		if second == nil {
			second = httptest.NewRecorder()
			router.ServeHTTP(second, paymentRequest(orderID, owner, "pay-1", `{}`))
		}
		w.WriteHeader(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, paymentRequest(orderID, owner, "pay-1", `{}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("first request got %d", first.Code)
	}
	if second.Code != http.StatusConflict || errorCode(t, second) != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected in-progress conflict, got %d %s", second.Code, second.Body.String())
	}
}

func TestIdempotentDetectsBodyChange(t *testing.T) {
	router := paymentStart(newFakeStore(), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	orderID, owner := uuid.New(), uuid.New()
	router.ServeHTTP(httptest.NewRecorder(), paymentRequest(orderID, owner, "pay-1", `{"a":1}`))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, paymentRequest(orderID, owner, "pay-1", `{"a":2}`))
	if rec.Code != http.StatusConflict || errorCode(t, rec) != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected 409 idempotency error, got %d", rec.Code)
	}
}

func TestIdempotentScopesKeysPerOwnerAndOrder(t *testing.T) {
	calls := 0
	router := paymentStart(newFakeStore(), func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})
	owner := uuid.New()
	router.ServeHTTP(httptest.NewRecorder(), paymentRequest(uuid.New(), owner, "pay-1", `{}`))
	router.ServeHTTP(httptest.NewRecorder(), paymentRequest(uuid.New(), owner, "pay-1", `{}`))
	router.ServeHTTP(httptest.NewRecorder(), paymentRequest(uuid.New(), uuid.New(), "pay-1", `{}`))
	if calls != 3 {
		t.Fatalf("expected independent keys per order and owner, handler ran %d times", calls)
	}
}

func TestIdempotentFreesKeyAfterServerError(t *testing.T) {
	store := newFakeStore()
	status := http.StatusServiceUnavailable
	calls := 0
	router := paymentStart(store, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(status)
	})
	orderID, owner := uuid.New(), uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, paymentRequest(orderID, owner, "pay-1", `{}`))
	if rec.Code != http.StatusServiceUnavailable || len(store.data) != 0 {
		t.Fatalf("gateway failure should free the key, store has %d entries", len(store.data))
	}

	status = http.StatusCreated
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, paymentRequest(orderID, owner, "pay-1", `{}`))
	if rec.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("retry after 503 got %d with %d calls", rec.Code, calls)
	}
}

func TestIdempotentPassesThroughWithoutStore(t *testing.T) {
	r := chi.NewRouter()
	r.With(Idempotent(nil, nil, DefaultIdempotencyTTL)).Post("/api/v1/orders", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected pass-through without redis, got %d", rec.Code)
	}
}
