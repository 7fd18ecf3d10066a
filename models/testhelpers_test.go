package models_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testBusinessId = "biz-test"

// setupTestDB opens a private in-memory database, migrates it and installs
// it as the global handle for the duration of the test.
func setupTestDB(t *testing.T) context.Context {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	conn, err := gorm.Open(sqlite.Open(dsn), config.NewGormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	config.InstallPlugins(conn)
	if err := conn.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	prev := config.GetDB()
	config.SetDB(conn)
	config.SetRedisClient(nil)
	t.Cleanup(func() {
		config.SetDB(prev)
		_ = sqlDB.Close()
	})

	return utils.SessionContext(context.Background(), testBusinessId, 1, "Tester")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int {
	return &i
}

func mustCreateCustomer(t *testing.T, ctx context.Context, name string, n int) *models.Customer {
	t.Helper()
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  name,
		Phone: fmt.Sprintf("+1650253%04d", n),
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	return customer
}

func mustCreateChit(t *testing.T, ctx context.Context, customerId int, amount string, installments int) *models.Chit {
	t.Helper()
	chit, err := models.CreateChit(ctx, &models.NewChit{
		CustomerId:        customerId,
		StartDate:         time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		ChitAmount:        dec(amount),
		TotalInstallments: installments,
	})
	if err != nil {
		t.Fatalf("CreateChit: %v", err)
	}
	return chit
}

func mustPay(t *testing.T, ctx context.Context, chitId int, amount string, rate string) *models.ChitPaymentResult {
	t.Helper()
	result, err := models.RecordChitPayment(ctx, chitId, &models.NewChitPayment{
		Amount:          dec(amount),
		PaymentMethod:   models.ChitPaymentMethodCash,
		CurrentGoldRate: dec(rate),
	})
	if err != nil {
		t.Fatalf("RecordChitPayment: %v", err)
	}
	return result
}

func requireValidationError(t *testing.T, err error, contains string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error containing %q, got nil", contains)
	}
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Fatalf("expected error containing %q, got %q", contains, err.Error())
	}
}
