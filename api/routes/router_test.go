package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rank0/digimenu-backend/internal/payments"
	"github.com/rank0/digimenu-backend/internal/plans"
	"github.com/rank0/digimenu-backend/internal/pricing"
	pkgauth "github.com/rank0/digimenu-backend/pkg/auth"
	"github.com/rank0/digimenu-backend/pkg/config"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type fakeRedis struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
	incrErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, counters: map[string]int64{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value.(string)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (f *fakeRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeRedis) Ping(context.Context) error {
	return nil
}

type stubPlans struct{}

func (stubPlans) ListActive(context.Context) ([]plans.PlanDTO, error) {
	return []plans.PlanDTO{{ID: uuid.New(), Name: "Gold", Slug: "gold", Features: []plans.FeatureDTO{}}}, nil
}

func (stubPlans) Purchase(context.Context, uuid.UUID, string) (*plans.PurchaseResult, error) {
	return nil, errors.New("not implemented")
}

func (stubPlans) Cart(context.Context, uuid.UUID) (*plans.CartSummary, error) {
	summary := plans.Summarize(0, 0)
	return &summary, nil
}

func (stubPlans) Activate(context.Context, uuid.UUID, string) (*models.PlanOrder, error) {
	return nil, errors.New("not implemented")
}

func (stubPlans) ListOrders(context.Context, uuid.UUID) ([]plans.PlanOrderDTO, error) {
	return []plans.PlanOrderDTO{}, nil
}

type stubPayments struct {
	payments.Service
}

func (stubPayments) HandleCallback(context.Context, payments.CallbackInput) (*payments.CallbackResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "authority required")
}

type stubPricing struct {
	pricing.Service
}

func (stubPricing) ListRates(context.Context) ([]pricing.RateDTO, error) {
	return []pricing.RateDTO{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"https://panel.example"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "digimenu", ExpirationMinutes: 5},
		RateLimit: config.RateLimitConfig{
			CallbackWindow: time.Minute,
			CallbackLimit:  2,
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newTestRouter(t *testing.T, cfg *config.Config, store redisStore, db stubPinger) http.Handler {
	t.Helper()
	return newRouter(cfg, testLogger(), db, store, Services{Plans: stubPlans{}, Pricing: stubPricing{}, Payments: stubPayments{}})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t, testConfig(), nil, stubPinger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Digimenu-Env") != "test" {
		t.Fatalf("missing env header")
	}
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	router := newTestRouter(t, testConfig(), newFakeRedis(), stubPinger{err: errors.New("connection refused")})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"postgres":"down"`) {
		t.Fatalf("expected postgres check in body: %s", resp.Body.String())
	}
}

func TestPublicPlansNeedNoToken(t *testing.T) {
	router := newTestRouter(t, testConfig(), nil, stubPinger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig(), nil, stubPinger{})
	for _, target := range []string{"/api/v1/plans/cart", "/api/v1/orders/" + uuid.NewString(), "/api/v1/restaurants"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", target, resp.Code)
		}
	}
}

func TestPrivateRouteSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil, stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/cart", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleOwner))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil, stubPinger{})

	owner := httptest.NewRequest(http.MethodGet, "/api/v1/admin/rates", nil)
	owner.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleOwner))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, owner)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for owner got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/rates", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestMutatingRoutesRequireIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, newFakeRedis(), stubPinger{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/rates", strings.NewReader(`{"rate":"60000"}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Idempotency-Key") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestPaymentCallbackIsRateLimited(t *testing.T) {
	cfg := testConfig()
	store := newFakeRedis()
	router := newTestRouter(t, cfg, store, stubPinger{})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/payments/callback?Authority=&Status=OK", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusBadRequest || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected the third callback to be limited, got %v", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, testConfig(), nil, stubPinger{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plans", nil)
	req.Header.Set("Origin", "https://panel.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Header().Get("Access-Control-Allow-Origin") != "https://panel.example" {
		t.Fatalf("expected CORS headers, got %v", resp.Header())
	}
}
