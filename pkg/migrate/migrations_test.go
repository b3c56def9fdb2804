package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/erpcore/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if err := migrate.ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestStockMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_stock.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_levels",
		"CONSTRAINT uq_stock_levels_cell UNIQUE (tenant_id, variant_id, location_id, unit_id)",
		"CREATE TABLE IF NOT EXISTS stock_movements",
		"balance_after numeric(20,4) NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_stock_reservations_expires_at",
		"DROP TABLE IF EXISTS stock_levels",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCatalogMigrationEnforcesUnitFactor(t *testing.T) {
	content := readMigration(t, "*_create_catalog.sql")

	checks := []string{
		"CHECK (factor > 0)",
		"CHECK (NOT is_base OR factor = 1)",
		"CONSTRAINT uq_product_bundles_parent_child UNIQUE (parent_variant_id, child_variant_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAppendOnlyTablesHaveTriggers(t *testing.T) {
	content := readMigration(t, "*_append_only_guards.sql")

	for _, table := range []string{"stock_movements", "order_lines", "financial_transactions", "events"} {
		if !strings.Contains(content, "BEFORE UPDATE OR DELETE ON "+table) {
			t.Errorf("missing append-only trigger for %s", table)
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Price Lists!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_price_lists.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "add_price_lists"); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
}

func TestValidateDirRejectsUnbalancedBlocks(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected unbalanced statement block error")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
