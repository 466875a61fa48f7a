package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	sqliteUniquePrefix    = "UNIQUE constraint failed: "
	sqliteUniqueErrorCode = "sqlite_unique"
)

// uniqueConflicts maps the unique indexes of the menu schema to the message a
// client sees when it collides with one. Keys cover both the Postgres index
// name and the sqlite "table.column" form.
var uniqueConflicts = map[string]string{
	"ux_restaurants_slug":             "restaurant slug already taken",
	"restaurants.slug":                "restaurant slug already taken",
	"ux_users_mobile":                 "mobile number already registered",
	"users.mobile":                    "mobile number already registered",
	"ux_plans_slug":                   "plan slug already taken",
	"plans.slug":                      "plan slug already taken",
	"ux_payments_authority":           "payment authority already recorded",
	"payments.authority":              "payment authority already recorded",
	"ux_exchange_rates_single_active": "another exchange rate is already active",
	"ux_menu_orders_open_renewal":     "restaurant already has an open renewal order",
	"menu_orders.restaurant_id":       "restaurant already has an open renewal order",
}

// ErrorDump flattens an error chain and any database error inside it for the
// request.error log line.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	default:
		// sqlite reports unique failures only in the message text.
		if idx := strings.Index(d.TopMessage, sqliteUniquePrefix); idx >= 0 {
			d.PGCode = sqliteUniqueErrorCode
			d.PGConstraint = strings.TrimSpace(d.TopMessage[idx+len(sqliteUniquePrefix):])
		}
	}
	return d
}

// UniqueConflict turns a unique-index collision on a known menu table into a
// CONFLICT error. It returns nil for anything else.
func UniqueConflict(err error) *Error {
	d := Dump(err)
	if d.PGCode != pgUniqueViolation && d.PGCode != sqliteUniqueErrorCode {
		return nil
	}
	msg, ok := uniqueConflicts[d.PGConstraint]
	if !ok {
		return nil
	}
	return Wrap(CodeConflict, err, msg).WithDetails(map[string]any{"constraint": d.PGConstraint})
}
