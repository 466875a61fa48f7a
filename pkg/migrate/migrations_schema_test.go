package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rank0/digimenu-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.Validate(migrate.Embedded()); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestExchangeRateMigrationEnforcesSingleActive(t *testing.T) {
	content := readMigration(t, "create_foods_exchange_rates")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS exchange_rates",
		"CHECK (rate > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_exchange_rates_single_active",
		"WHERE is_active",
		"PRIMARY KEY (restaurant_id, food_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationDeclaresStatusEnum(t *testing.T) {
	content := readMigration(t, "create_menu_orders_payments")
	checks := []string{
		"CREATE TYPE order_status AS ENUM ('UNPAID', 'PAID', 'CONFIRMED', 'DELIVERED', 'NOT_RENEWED', 'RENEWAL')",
		"CREATE TABLE IF NOT EXISTS menu_orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_menu_orders_open_renewal",
		"CREATE TABLE IF NOT EXISTS payments",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_authority",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationHasDedupeIndex(t *testing.T) {
	content := readMigration(t, "create_outbox_events")
	if !strings.Contains(content, "ux_outbox_events_dedupe_key") {
		t.Fatalf("dedupe index missing")
	}
	for _, event := range []string{"'restaurant_renewal_reminder'", "'order_paid'", "'renewal_order_created'"} {
		if !strings.Contains(content, event) {
			t.Errorf("event type %s missing from enum", event)
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	path, err := migrate.CreateSQLMigration(dir, "Add Menu Themes!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260401083000_add_menu_themes.sql" {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationSortsAfterExistingVersions(t *testing.T) {
	dir := t.TempDir()
	existing := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20300101000000_future.sql"), []byte(existing), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	path, err := migrate.CreateSQLMigration(dir, "plan badges", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20300101000001_plan_badges.sql" {
		t.Fatalf("expected version bumped past existing, got %s", path)
	}
}

func TestValidateRejectsMalformedMigrations(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"bad name":   {"001_init.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"no down":    {"20250101000000_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"down first": {"20250101000000_init.sql": {Data: []byte("-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n")}},
		"unbalanced": {"20250101000000_init.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")}},
		"empty":      {},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			if err := migrate.Validate(fsys); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
