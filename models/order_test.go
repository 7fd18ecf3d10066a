package models_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/jewelry_pos/models"
)

func TestGoldExchangeValue(t *testing.T) {
	// 10g x 6000 less 5%
	got := models.GoldExchangeValue(dec("10"), dec("6000"), dec("5"))
	if !got.Equal(dec("57000")) {
		t.Fatalf("expected 57000, got %s", got)
	}
	got = models.GoldExchangeValue(dec("2.345"), dec("6123.5"), dec("0"))
	if !got.Equal(dec("14359.61")) {
		t.Fatalf("expected 14359.61, got %s", got)
	}
}

func TestChitSettlementValue(t *testing.T) {
	value, extra := models.ChitSettlementValue(dec("5"), dec("6000"), dec("35000"))
	if !value.Equal(dec("30000")) || !extra.Equal(dec("5000")) {
		t.Fatalf("unexpected value %s extra %s", value, extra)
	}
	value, extra = models.ChitSettlementValue(dec("5"), dec("6000"), dec("20000"))
	if !value.Equal(dec("30000")) || !extra.IsZero() {
		t.Fatalf("extra must not go negative: value %s extra %s", value, extra)
	}
}

func TestOrderStatusFor(t *testing.T) {
	cases := []struct {
		total, paid string
		want        models.OrderStatus
	}{
		{"1000", "0", models.OrderStatusPending},
		{"1000", "400", models.OrderStatusPartial},
		{"1000", "1000", models.OrderStatusPaid},
		{"1000", "1200", models.OrderStatusPaid},
	}
	for _, c := range cases {
		if got := models.OrderStatusFor(dec(c.total), dec(c.paid)); got != c.want {
			t.Fatalf("OrderStatusFor(%s, %s) = %s, want %s", c.total, c.paid, got, c.want)
		}
	}
}

func TestCreateOrderWithExchangeAndChit(t *testing.T) {
	ctx := setupTestDB(t)
	customer := mustCreateCustomer(t, ctx, "Buyer", 40)

	fixed := dec("50000")
	necklace, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:          "Necklace",
		Sku:           "NK-1",
		Metal:         models.MetalGold,
		Weight:        dec("8"),
		SalePrice:     &fixed,
		StockQuantity: 2,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	chit := mustCreateChit(t, ctx, customer.ID, "30000", 1)
	mustPay(t, ctx, chit.ID, "30000", "6000")

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		CustomerId: customer.ID,
		Items:      []models.NewOrderItem{{ProductId: necklace.ID, Quantity: 1}},
		Discount:   dec("1000"),
		Payments: []models.NewOrderPayment{
			{Method: models.OrderPaymentMethodChitSettlement, ChitId: chit.ID, GoldRate: decPtr("6200")},
			{Method: models.OrderPaymentMethodGoldExchange, GoldExchange: &models.NewGoldExchange{Weight: dec("2"), Rate: decPtr("6000"), DeductionPercent: dec("10")}},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !order.Total.Equal(dec("49000")) {
		t.Fatalf("expected total 49000, got %s", order.Total)
	}
	// chit: 5g x 6200 = 31000, exchange: 2g x 6000 x 0.9 = 10800
	if !order.PaidAmount.Equal(dec("41800")) || !order.Balance.Equal(dec("7200")) {
		t.Fatalf("unexpected paid %s balance %s", order.PaidAmount, order.Balance)
	}
	if order.Status != models.OrderStatusPartial {
		t.Fatalf("expected partial, got %s", order.Status)
	}
	year := time.Now().Year()
	if !strings.HasPrefix(order.OrderNumber, fmt.Sprintf("ORD-%d-", year)) || !strings.HasPrefix(order.InvoiceNumber, fmt.Sprintf("INV-%d-", year)) {
		t.Fatalf("unexpected numbers %s %s", order.OrderNumber, order.InvoiceNumber)
	}
	chitPayment := order.Payments[0]
	if !chitPayment.ChitGoldWeight.Equal(dec("5")) || !chitPayment.ChitGoldValue.Equal(dec("31000")) {
		t.Fatalf("unexpected chit payment %+v", chitPayment)
	}

	// the chit is only read by the order
	stored, err := models.GetChit(ctx, chit.ID)
	if err != nil {
		t.Fatalf("GetChit: %v", err)
	}
	if stored.Status != models.ChitStatusCompleted || stored.Version != 2 {
		t.Fatalf("order must not mutate the chit: %s v%d", stored.Status, stored.Version)
	}

	product, _ := models.GetProduct(ctx, necklace.ID)
	if product.StockQuantity != 1 {
		t.Fatalf("expected stock 1 after sale, got %d", product.StockQuantity)
	}

	cancelled, err := models.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	product, _ = models.GetProduct(ctx, necklace.ID)
	if product.StockQuantity != 2 {
		t.Fatalf("expected stock restored to 2, got %d", product.StockQuantity)
	}
	_, err = models.CancelOrder(ctx, order.ID)
	requireValidationError(t, err, "already cancelled")

	reloaded, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(reloaded.Items) != 1 || len(reloaded.Payments) != 2 {
		t.Fatalf("expected associations loaded, got %d items %d payments", len(reloaded.Items), len(reloaded.Payments))
	}
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	ctx := setupTestDB(t)
	fixed := dec("1000")
	stud, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:          "Stud",
		Sku:           "ST-1",
		Metal:         models.MetalGold,
		Weight:        dec("1"),
		SalePrice:     &fixed,
		StockQuantity: 1,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	_, err = models.CreateOrder(ctx, &models.NewOrder{
		Items: []models.NewOrderItem{{ProductId: stud.ID, Quantity: 1}, {ProductId: stud.ID, Quantity: 1}},
	})
	requireValidationError(t, err, "insufficient stock")

	_, err = models.CreateOrder(ctx, &models.NewOrder{})
	requireValidationError(t, err, "at least one item")

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		Items:    []models.NewOrderItem{{ProductId: stud.ID, Quantity: 1}},
		Payments: []models.NewOrderPayment{{Method: models.OrderPaymentMethodCash, Amount: decPtr("1000")}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != models.OrderStatusPaid || !order.Balance.IsZero() {
		t.Fatalf("expected paid order, got %s balance %s", order.Status, order.Balance)
	}

	orders, page, err := models.GetOrders(ctx, models.OrderFilter{Status: string(models.OrderStatusPaid)})
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if len(orders) != 1 || page.Total != 1 {
		t.Fatalf("expected one paid order, got %d", len(orders))
	}
}

func TestChitSettlementPaymentNeedsCompletedUnusedChit(t *testing.T) {
	ctx := setupTestDB(t)
	customer := mustCreateCustomer(t, ctx, "Repeat Buyer", 41)
	fixed := dec("10000")
	ring, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:          "Ring",
		Sku:           "RG-1",
		Metal:         models.MetalGold,
		Weight:        dec("2"),
		SalePrice:     &fixed,
		StockQuantity: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	orderWith := func(payments ...models.NewOrderPayment) (*models.Order, error) {
		return models.CreateOrder(ctx, &models.NewOrder{
			CustomerId: customer.ID,
			Items:      []models.NewOrderItem{{ProductId: ring.ID, Quantity: 1}},
			Payments:   payments,
		})
	}
	chitPayment := func(chitId int) models.NewOrderPayment {
		return models.NewOrderPayment{Method: models.OrderPaymentMethodChitSettlement, ChitId: chitId, GoldRate: decPtr("6000")}
	}

	running := mustCreateChit(t, ctx, customer.ID, "2000", 2)
	mustPay(t, ctx, running.ID, "1000", "6000")
	_, err = orderWith(chitPayment(running.ID))
	requireValidationError(t, err, "not completed (status: active)")

	settled := mustCreateChit(t, ctx, customer.ID, "1200", 1)
	mustPay(t, ctx, settled.ID, "1200", "6000")
	if _, err := models.SettleChit(ctx, settled.ID, &models.NewChitSettlement{
		SettlementType:     models.SettlementTypeGold,
		SettlementGoldRate: decPtr("6000"),
	}); err != nil {
		t.Fatalf("SettleChit: %v", err)
	}
	_, err = orderWith(chitPayment(settled.ID))
	requireValidationError(t, err, "not completed (status: settled)")

	done := mustCreateChit(t, ctx, customer.ID, "1200", 1)
	mustPay(t, ctx, done.ID, "1200", "6000")

	_, err = orderWith(chitPayment(done.ID), chitPayment(done.ID))
	requireValidationError(t, err, "used more than once")

	first, err := orderWith(chitPayment(done.ID))
	if err != nil {
		t.Fatalf("CreateOrder with completed chit: %v", err)
	}
	_, err = orderWith(chitPayment(done.ID))
	requireValidationError(t, err, "already used by order "+first.OrderNumber)

	if _, err := models.CancelOrder(ctx, first.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if _, err := orderWith(chitPayment(done.ID)); err != nil {
		t.Fatalf("chit should be free after its order was cancelled: %v", err)
	}
}
