package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error is not a violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: locations.tenant_id, locations.code"), "") {
		t.Fatal("expected sqlite violation to match")
	}
	if !IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "uq_locations_tenant_code"`), "uq_locations_tenant_code") {
		t.Fatal("expected postgres constraint to match")
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatal("unexpected match")
	}
	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_product_variants_tenant_sku"})
	if !IsUniqueViolation(pgErr, "uq_product_variants_tenant_sku") {
		t.Fatal("expected pgx violation to match on constraint")
	}
	if IsUniqueViolation(pgErr, "uq_locations_tenant_code") {
		t.Fatal("different constraint must not match")
	}
}

func TestIsCheckViolation(t *testing.T) {
	if !IsCheckViolation(errors.New("CHECK constraint failed: factor > 0"), "") {
		t.Fatal("expected sqlite check violation to match")
	}
	if !IsCheckViolation(&pgconn.PgError{Code: "23514"}, "") {
		t.Fatal("expected postgres check violation to match")
	}
	if IsCheckViolation(&pgconn.PgError{Code: "23505"}, "") {
		t.Fatal("unique violation is not a check violation")
	}
}

func TestNewFromConnWrapsConnection(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn)
	if client.DB() != conn {
		t.Fatal("expected wrapped connection to be returned")
	}
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	var runs int
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		runs++
		if runs < 3 {
			return fmt.Errorf("commit movement: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	if err != nil || runs != 3 {
		t.Fatalf("expected success on third attempt, runs=%d err=%v", runs, err)
	}

	runs = 0
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		runs++
		return &pgconn.PgError{Code: "40P01"}
	})
	if !IsTxConflict(err) || runs != defaultTxAttempts {
		t.Fatalf("expected conflict after %d attempts, runs=%d err=%v", defaultTxAttempts, runs, err)
	}
}

func TestWithTxDoesNotRetryDomainErrors(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	var runs int
	_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		runs++
		return errors.New("insufficient stock")
	})
	if runs != 1 {
		t.Fatalf("expected a single run, got %d", runs)
	}
}
