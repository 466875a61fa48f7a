package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/rank0/digimenu-backend/pkg/config"
	"github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

// MaybeRunDev brings the menu schema up to date on boot in dev when
// DIGIMENU_AUTO_MIGRATE is on. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.Features.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, goose.DialectPostgres, Embedded(), logg)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service": cfg.Service.Kind})
	logg.Info(ctx, "applying embedded migrations (dev auto-run)")
	if err := runner.Run(ctx, "up"); err != nil {
		return err
	}
	version, err := runner.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "menu schema up to date")
	return nil
}
