package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "uq_product_variants_tenant_sku",
		TableName:      "product_variants",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("insert variant: %w", pgErr), "sku already exists")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "uq_product_variants_tenant_sku" {
		t.Fatalf("unexpected pg details %+v", d.PG)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}

	fields := d.Fields()
	if fields["pg_table"] != "product_variants" || fields["error_code"] != CodeConflict {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg fields should be omitted")
	}
}

func TestPostgresDetailReadsLibPQ(t *testing.T) {
	err := fmt.Errorf("insert movement: %w", &pq.Error{Code: "23514", Constraint: "ck_unit_definitions_factor"})
	pg := PostgresDetail(err)
	if pg == nil || pg.Code != "23514" || pg.Constraint != "ck_unit_definitions_factor" {
		t.Fatalf("unexpected pg detail %+v", pg)
	}
	if PostgresDetail(fmt.Errorf("plain")) != nil {
		t.Fatalf("non-postgres errors carry no detail")
	}
}

func TestDumpMarksRetryableCodes(t *testing.T) {
	d := Dump(New(CodeBusy, "cell locked"))
	if !d.Retryable {
		t.Fatalf("busy errors should be retryable")
	}
	if d.Fields()["retryable"] != true {
		t.Fatalf("retryable flag missing from fields")
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil dump should be empty")
	}
}
