// Package dbtest opens isolated sqlite databases that mirror the Postgres
// schema closely enough for repository and service tests.
package dbtest

import (
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const Users = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  email TEXT,
  mobile TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`

const Restaurants = `
CREATE TABLE IF NOT EXISTS restaurants (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_seo INTEGER NOT NULL DEFAULT 0,
  expire_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

const Foods = `
CREATE TABLE IF NOT EXISTS foods (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  base_price_local INTEGER,
  derived_price_minor INTEGER,
  is_available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`

const RestaurantFoods = `
CREATE TABLE IF NOT EXISTS restaurant_foods (
  restaurant_id TEXT NOT NULL,
  food_id TEXT NOT NULL,
  created_at DATETIME,
  PRIMARY KEY (restaurant_id, food_id)
);`

const ExchangeRates = `
CREATE TABLE IF NOT EXISTS exchange_rates (
  id TEXT PRIMARY KEY,
  rate TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 0,
  created_by TEXT,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_exchange_rates_single_active
  ON exchange_rates (is_active) WHERE is_active = 1;`

const MenuOrders = `
CREATE TABLE IF NOT EXISTS menu_orders (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  status TEXT NOT NULL,
  is_final INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 0,
  is_seo INTEGER NOT NULL DEFAULT 0,
  base_price INTEGER NOT NULL,
  seo_extra_price INTEGER NOT NULL DEFAULT 0,
  final_price INTEGER NOT NULL,
  ref_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_menu_orders_open_renewal
  ON menu_orders (restaurant_id) WHERE status = 'NOT_RENEWED';
CREATE TABLE IF NOT EXISTS menu_images (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  url TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`

const Payments = `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  authority TEXT NOT NULL UNIQUE,
  is_final INTEGER NOT NULL DEFAULT 0,
  status_code INTEGER,
  ref_id TEXT,
  message TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const Plans = `
CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  description TEXT,
  price INTEGER NOT NULL,
  expiry_days INTEGER NOT NULL DEFAULT 30,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_favorite INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS plan_features (
  id TEXT PRIMARY KEY,
  plan_id TEXT NOT NULL,
  title TEXT NOT NULL,
  value TEXT,
  position INTEGER NOT NULL DEFAULT 0,
  is_available INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS plan_orders (
  id TEXT PRIMARY KEY,
  plan_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  final_price INTEGER NOT NULL,
  is_paid INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  expiry_date DATETIME NOT NULL,
  tracking_code TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const OutboxEvents = `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  dedupe_key TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_dedupe_key
  ON outbox_events (dedupe_key) WHERE dedupe_key IS NOT NULL;`

// All creates every table.
var All = []string{Users, Restaurants, Foods, RestaurantFoods, ExchangeRates, MenuOrders, Payments, Plans, OutboxEvents}

// Open returns a private in-memory database for the running test with the
// given schema applied. Each call gets its own database named after the test.
func Open(t *testing.T, schema ...string) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(schema) == 0 {
		schema = All
	}
	for _, ddl := range schema {
		for _, stmt := range strings.Split(ddl, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if err := conn.Exec(stmt).Error; err != nil {
				t.Fatalf("apply schema: %v", err)
			}
		}
	}
	return conn
}
