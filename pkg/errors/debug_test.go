package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_restaurants_slug", TableName: "restaurants", Message: "duplicate key value"}
	err := Wrap(CodeDependency, fmt.Errorf("insert restaurant: %w", pgErr), "create restaurant")

	d := Dump(err)
	if d.Code != CodeDependency || d.PGCode != "23505" || d.PGConstraint != "ux_restaurants_slug" || d.PGTable != "restaurants" {
		t.Fatalf("unexpected dump %+v", d)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", d.Chain)
	}

	pqDump := Dump(&pq.Error{Code: "23505", Constraint: "ux_users_mobile"})
	if pqDump.PGCode != "23505" || pqDump.PGConstraint != "ux_users_mobile" {
		t.Fatalf("unexpected pq dump %+v", pqDump)
	}
}

func TestUniqueConflictMapsKnownIndexes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{name: "postgres slug", err: &pgconn.PgError{Code: "23505", ConstraintName: "ux_restaurants_slug"}, msg: "restaurant slug already taken"},
		{name: "sqlite mobile", err: fmt.Errorf("create user: %w", fmt.Errorf("UNIQUE constraint failed: users.mobile")), msg: "mobile number already registered"},
		{name: "active rate", err: &pgconn.PgError{Code: "23505", ConstraintName: "ux_exchange_rates_single_active"}, msg: "another exchange rate is already active"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conflict := UniqueConflict(tc.err)
			if conflict == nil {
				t.Fatal("expected conflict")
			}
			if conflict.Code() != CodeConflict || conflict.Message() != tc.msg {
				t.Fatalf("got %s %q", conflict.Code(), conflict.Message())
			}
		})
	}
}

func TestUniqueConflictIgnoresOtherErrors(t *testing.T) {
	for _, err := range []error{
		nil,
		fmt.Errorf("connection refused"),
		&pgconn.PgError{Code: "23503", ConstraintName: "ux_restaurants_slug"},
		&pgconn.PgError{Code: "23505", ConstraintName: "ux_some_other_index"},
	} {
		if conflict := UniqueConflict(err); conflict != nil {
			t.Fatalf("unexpected conflict for %v", err)
		}
	}
}
