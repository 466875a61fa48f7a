package foods

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rank0/digimenu-backend/pkg/db/dbtest"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
)

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) ActiveRate(context.Context) (decimal.Decimal, error) {
	return f.rate, f.err
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateDerivesMissingUSDPrice(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Foods)
	svc, err := NewService(NewRepository(conn), fixedRate{rate: decimal.NewFromInt(60000)})
	require.NoError(t, err)
	ctx := context.Background()

	food, err := svc.Create(ctx, SaveInput{Title: " Kabab Koobideh ", BasePriceLocal: int64Ptr(100000), IsAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, "Kabab Koobideh", food.Title)
	require.NotNil(t, food.DerivedPriceMinor)
	assert.Equal(t, int64(166), *food.DerivedPriceMinor)

	manual, err := svc.Create(ctx, SaveInput{Title: "Doogh", BasePriceLocal: int64Ptr(50000), DerivedPriceMinor: int64Ptr(99)})
	require.NoError(t, err)
	assert.Equal(t, int64(99), *manual.DerivedPriceMinor)

	unpriced, err := svc.Create(ctx, SaveInput{Title: "Water"})
	require.NoError(t, err)
	assert.Nil(t, unpriced.DerivedPriceMinor)
}

func TestUpdateRederivesWhenUSDPriceCleared(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Foods)
	svc, err := NewService(NewRepository(conn), fixedRate{rate: decimal.NewFromInt(50000)})
	require.NoError(t, err)
	ctx := context.Background()

	food, err := svc.Create(ctx, SaveInput{Title: "Joojeh", BasePriceLocal: int64Ptr(100000)})
	require.NoError(t, err)
	assert.Equal(t, int64(200), *food.DerivedPriceMinor)

	updated, err := svc.Update(ctx, food.ID, SaveInput{Title: "Joojeh", BasePriceLocal: int64Ptr(150000)})
	require.NoError(t, err)
	assert.Equal(t, int64(300), *updated.DerivedPriceMinor)

	stored, err := svc.Get(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), *stored.DerivedPriceMinor)

	_, err = svc.Update(ctx, uuid.New(), SaveInput{Title: "ghost"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCreateValidatesAndSurfacesRateFailures(t *testing.T) {
	conn := dbtest.Open(t, dbtest.Foods)
	svc, err := NewService(NewRepository(conn), fixedRate{err: errors.New("db down")})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, SaveInput{Title: "  "})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, SaveInput{Title: "Tahdig", BasePriceLocal: int64Ptr(-1)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, SaveInput{Title: "Tahdig", BasePriceLocal: int64Ptr(80000)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))

	foods, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, foods)
}
