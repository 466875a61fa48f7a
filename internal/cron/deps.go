package cron

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dedupingEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type renewalCandidates interface {
	DueForRenewal(ctx context.Context, now time.Time, horizonDays int) ([]models.Restaurant, error)
}

type renewalOrderCreator interface {
	CreateRenewal(ctx context.Context, restaurant *models.Restaurant) (*models.MenuOrder, bool, error)
}

type expiredRestaurants interface {
	ExpiredActive(ctx context.Context, now time.Time) ([]models.Restaurant, error)
	DeactivateIfExpiredAt(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type expiringRestaurants interface {
	ExpiringBetween(ctx context.Context, now time.Time, minDays, maxDays int) ([]models.Restaurant, error)
}
