package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
)

type stockRow struct {
	ID     int
	SKU    string `gorm:"uniqueIndex"`
	OnHand int
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&stockRow{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&stockRow{SKU: "SCREW", OnHand: 100}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := conn.Model(&stockRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&stockRow{SKU: "BOLT"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := conn.Model(&stockRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&stockRow{SKU: "NUT"}).Error; err != nil {
				return err
			}
			panic("mid-transition")
		})
	}()

	var count int64
	if err := conn.Model(&stockRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic rollback, got %d rows", count)
	}
}

func TestLockForUpdateIgnoredBySQLite(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Create(&stockRow{SKU: "WASHER", OnHand: 5}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	var row stockRow
	if err := LockForUpdate(conn).Where("sku = ?", "WASHER").First(&row).Error; err != nil {
		t.Fatalf("locked read failed: %v", err)
	}
	if row.OnHand != 5 {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestNewOpensConfiguredDriver(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, config.DBConfig{
		Driver:       "SQLite",
		DSN:          fmt.Sprintf("file:dbnew_%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 2,
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()
	if name := client.DB().Dialector.Name(); name != DriverSQLite {
		t.Fatalf("expected sqlite dialector, got %s", name)
	}
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	sqlDB, _ := client.DB().DB()
	if got := sqlDB.Stats().MaxOpenConnections; got != 2 {
		t.Fatalf("expected pool limit 2, got %d", got)
	}

	if _, err := New(ctx, config.DBConfig{Driver: "mysql", DSN: "x"}, nil); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := New(ctx, config.DBConfig{Driver: DriverPostgres}, nil); err == nil {
		t.Fatal("expected missing DSN error")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Create(&stockRow{SKU: "PIN"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	err := conn.Create(&stockRow{SKU: "PIN"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite unique violation, got %v", err)
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "sales_orders_quote_id_key"})
	if !IsUniqueViolation(pgErr, "sales_orders_quote_id_key") {
		t.Fatal("expected postgres unique violation on constraint")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatal("constraint name should be matched")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
