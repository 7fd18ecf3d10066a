package models_test

import (
	"testing"

	"github.com/mmdatafocus/jewelry_pos/models"
)

func TestCreateCustomerNormalizesPhone(t *testing.T) {
	ctx := setupTestDB(t)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "  Anita ", Phone: "+1 (650) 253-0030"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if customer.Name != "Anita" || customer.Phone != "+16502530030" {
		t.Fatalf("unexpected customer %q %q", customer.Name, customer.Phone)
	}

	_, err = models.CreateCustomer(ctx, &models.NewCustomer{Name: "Anita Again", Phone: "+16502530030"})
	requireValidationError(t, err, "duplicate")

	_, err = models.CreateCustomer(ctx, &models.NewCustomer{Name: "Bad", Phone: "123"})
	requireValidationError(t, err, "phone")

	_, err = models.CreateCustomer(ctx, &models.NewCustomer{Name: "Mail", Phone: "+16502530031", Email: "not-an-email"})
	requireValidationError(t, err, "email")
}

func TestUpdateCustomerResyncsChitSnapshots(t *testing.T) {
	ctx := setupTestDB(t)
	customer := mustCreateCustomer(t, ctx, "Old Name", 32)
	chit := mustCreateChit(t, ctx, customer.ID, "11000", 11)
	payment := mustPay(t, ctx, chit.ID, "1000", "6000")

	updated, err := models.UpdateCustomer(ctx, customer.ID, &models.NewCustomer{
		Name:  "New Name",
		Phone: "+16502530033",
	})
	if err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}
	if updated.Name != "New Name" {
		t.Fatalf("expected updated name, got %s", updated.Name)
	}

	stored, err := models.GetChit(ctx, chit.ID)
	if err != nil {
		t.Fatalf("GetChit: %v", err)
	}
	if stored.CustomerName != "New Name" || stored.CustomerPhone != "+16502530033" {
		t.Fatalf("chit snapshot not resynced: %q %q", stored.CustomerName, stored.CustomerPhone)
	}
	if stored.Version != payment.Chit.Version+1 {
		t.Fatalf("expected resync to bump version to %d, got %d", payment.Chit.Version+1, stored.Version)
	}
	p, err := models.GetChitPayment(ctx, payment.Payment.ID)
	if err != nil {
		t.Fatalf("GetChitPayment: %v", err)
	}
	if p.CustomerName != "New Name" {
		t.Fatalf("payment snapshot not resynced: %q", p.CustomerName)
	}

	// a payment read before the resync must not overwrite it
	mustPay(t, ctx, chit.ID, "1000", "6000")
	stored, _ = models.GetChit(ctx, chit.ID)
	if stored.CustomerName != "New Name" {
		t.Fatalf("payment overwrote the resynced name: %q", stored.CustomerName)
	}

	histories, err := models.GetHistories(ctx, "customers", customer.ID)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("expected create and update history, got %d", len(histories))
	}
}

func TestDeleteCustomerWithChitsIsRejected(t *testing.T) {
	ctx := setupTestDB(t)
	customer := mustCreateCustomer(t, ctx, "Holder", 34)
	mustCreateChit(t, ctx, customer.ID, "11000", 11)

	_, err := models.DeleteCustomer(ctx, customer.ID)
	requireValidationError(t, err, "cannot be deleted")

	lone := mustCreateCustomer(t, ctx, "Lone", 35)
	if _, err := models.DeleteCustomer(ctx, lone.ID); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}
	customers, page, err := models.GetCustomers(ctx, models.CustomerFilter{})
	if err != nil {
		t.Fatalf("GetCustomers: %v", err)
	}
	if len(customers) != 1 || page.Total != 1 {
		t.Fatalf("expected one customer left, got %d", len(customers))
	}
}

func TestGetCustomersByIdsSkipsMissing(t *testing.T) {
	ctx := setupTestDB(t)
	a := mustCreateCustomer(t, ctx, "A", 36)
	b := mustCreateCustomer(t, ctx, "B", 37)

	found, err := models.GetCustomersByIds(ctx, []int{a.ID, b.ID, b.ID + 50})
	if err != nil {
		t.Fatalf("GetCustomersByIds: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(found))
	}
}
