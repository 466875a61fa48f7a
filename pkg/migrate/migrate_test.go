package migrate_test

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/migrate"
)

var themeMigrations = fstest.MapFS{
	"20250101000000_create_menu_themes.sql": {Data: []byte(`-- +goose Up
CREATE TABLE menu_themes (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
-- +goose Down
DROP TABLE menu_themes;
`)},
	"20250102000000_index_menu_themes.sql": {Data: []byte(`-- +goose Up
CREATE UNIQUE INDEX ux_menu_themes_name ON menu_themes (name);
-- +goose Down
DROP INDEX ux_menu_themes_name;
`)},
}

func newThemeRunner(t *testing.T) *migrate.Runner {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "menu.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	runner, err := migrate.NewRunner(sqlDB, goose.DialectSQLite3, themeMigrations, logger.New(logger.Options{ServiceName: "migrate-test"}))
	require.NoError(t, err)
	return runner
}

func TestRunnerAppliesAndRollsBack(t *testing.T) {
	ctx := context.Background()
	runner := newThemeRunner(t)

	require.NoError(t, runner.Run(ctx, "up"))
	version, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20250102000000), version)

	require.NoError(t, runner.Run(ctx, "status"))
	require.NoError(t, runner.Run(ctx, "redo"))
	version, _ = runner.Version(ctx)
	assert.Equal(t, int64(20250102000000), version)

	require.NoError(t, runner.To(ctx, "20250101000000"))
	version, _ = runner.Version(ctx)
	assert.Equal(t, int64(20250101000000), version)

	require.NoError(t, runner.Run(ctx, "down"))
	require.NoError(t, runner.Run(ctx, "down"), "down on an empty schema is a no-op")
	version, _ = runner.Version(ctx)
	assert.Equal(t, int64(0), version)

	require.NoError(t, runner.To(ctx, "20250102000000"))
	version, _ = runner.Version(ctx)
	assert.Equal(t, int64(20250102000000), version)
}

func TestRunnerRejectsUnknownInput(t *testing.T) {
	runner := newThemeRunner(t)
	assert.Error(t, runner.Run(context.Background(), "drop-everything"))
	assert.Error(t, runner.To(context.Background(), "latest"))
}

func TestSourcePrefersEmbeddedForDefaultDir(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Source(migrate.DefaultDir)))
	require.NoError(t, migrate.Validate(migrate.Source("")))
}
