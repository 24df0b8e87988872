package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpCapturesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "sales_orders_quote_id_key",
		TableName:      "sales_orders",
		Message:        "duplicate key value",
	}
	err := Wrap(CodeConflict, fmt.Errorf("insert sales order: %w", pgErr), "convert quote")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code got %s", dump.Code)
	}
	if dump.Postgres.Code != "23505" || dump.Postgres.Constraint != "sales_orders_quote_id_key" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}

	fields := dump.Fields()
	if fields["pg_table"] != "sales_orders" {
		t.Fatalf("expected pg_table field got %v", fields["pg_table"])
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty fields should be omitted")
	}
}

func TestDumpNil(t *testing.T) {
	if got := Dump(nil); got.TopMessage != "" || len(got.Chain) != 0 {
		t.Fatalf("expected empty dump got %+v", got)
	}
}
