package foods

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	internalfoods "github.com/rank0/digimenu-backend/internal/foods"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
)

type stubFoodsService struct {
	create func(ctx context.Context, input internalfoods.SaveInput) (*models.Food, error)
	update func(ctx context.Context, id uuid.UUID, input internalfoods.SaveInput) (*models.Food, error)
	get    func(ctx context.Context, id uuid.UUID) (*models.Food, error)
	list   func(ctx context.Context, availableOnly bool) ([]models.Food, error)
}

func (s *stubFoodsService) Create(ctx context.Context, input internalfoods.SaveInput) (*models.Food, error) {
	return s.create(ctx, input)
}

func (s *stubFoodsService) Update(ctx context.Context, id uuid.UUID, input internalfoods.SaveInput) (*models.Food, error) {
	return s.update(ctx, id, input)
}

func (s *stubFoodsService) Get(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	return s.get(ctx, id)
}

func (s *stubFoodsService) List(ctx context.Context, availableOnly bool) ([]models.Food, error) {
	return s.list(ctx, availableOnly)
}

func withFoodID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("foodId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestListAvailableOnly(t *testing.T) {
	var gotAvailable bool
	svc := &stubFoodsService{list: func(_ context.Context, availableOnly bool) ([]models.Food, error) {
		gotAvailable = availableOnly
		return []models.Food{{ID: uuid.New(), Title: "Tea", IsAvailable: true}}, nil
	}}
	rec := httptest.NewRecorder()
	List(svc, nil)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/foods?available=true", nil))
	if rec.Code != http.StatusOK || !gotAvailable {
		t.Fatalf("expected available-only listing, got %d", rec.Code)
	}
}

func TestListRejectsBadFlag(t *testing.T) {
	rec := httptest.NewRecorder()
	List(&stubFoodsService{}, nil)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/foods?available=maybe", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	svc := &stubFoodsService{get: func(context.Context, uuid.UUID) (*models.Food, error) {
		return nil, pkgerrors.NotFound("food")
	}}
	rec := httptest.NewRecorder()
	Detail(svc, nil)(rec, withFoodID(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestAdminCreateLeavesDerivedPriceToService(t *testing.T) {
	var captured internalfoods.SaveInput
	svc := &stubFoodsService{create: func(_ context.Context, input internalfoods.SaveInput) (*models.Food, error) {
		captured = input
		derived := int64(2000)
		return &models.Food{ID: uuid.New(), Title: input.Title, BasePriceLocal: input.BasePriceLocal, DerivedPriceMinor: &derived, IsAvailable: true}, nil
	}}
	body := `{"title":"Kebab","base_price_local":1200000,"is_available":true}`
	rec := httptest.NewRecorder()
	AdminCreate(svc, nil)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/foods", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.DerivedPriceMinor != nil || captured.BasePriceLocal == nil || *captured.BasePriceLocal != 1200000 {
		t.Fatalf("unexpected input %+v", captured)
	}
	var env struct {
		Data foodDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.DerivedPriceMinor == nil || *env.Data.DerivedPriceMinor != 2000 {
		t.Fatalf("unexpected dto %+v", env.Data)
	}
}

func TestAdminCreateRejectsNegativePrice(t *testing.T) {
	rec := httptest.NewRecorder()
	body := `{"title":"Kebab","base_price_local":-1}`
	AdminCreate(&stubFoodsService{}, nil)(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminUpdate(t *testing.T) {
	id := uuid.New()
	svc := &stubFoodsService{update: func(_ context.Context, got uuid.UUID, input internalfoods.SaveInput) (*models.Food, error) {
		if got != id || input.IsAvailable {
			t.Fatalf("unexpected update %s %+v", got, input)
		}
		return &models.Food{ID: got, Title: input.Title}, nil
	}}
	req := withFoodID(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"title":"Soup","is_available":false}`)), id.String())
	rec := httptest.NewRecorder()
	AdminUpdate(svc, nil)(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
