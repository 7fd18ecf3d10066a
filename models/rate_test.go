package models_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string {
	return &s
}

func TestComputeSalePrice(t *testing.T) {
	// 10g at 6000 = 60000, 8% wastage = 4800, making 1500, stone 250.4
	got := models.ComputeSalePrice(dec("10"), dec("6000"), dec("8"), dec("1500"), dec("250.4"))
	if !got.Equal(dec("66550")) {
		t.Fatalf("expected 66550, got %s", got)
	}
}

func TestNormalizePurity(t *testing.T) {
	cases := []struct {
		metal  models.Metal
		purity *string
		want   string
	}{
		{models.MetalGold, nil, models.Purity22K},
		{models.MetalGold, strPtr("18k"), models.Purity18K},
		{models.MetalGold, strPtr("9K"), models.Purity22K},
		{models.MetalSilver, strPtr("22K"), ""},
	}
	for _, c := range cases {
		if got := models.NormalizePurity(c.metal, c.purity); got != c.want {
			t.Fatalf("NormalizePurity(%s, %v) = %q, want %q", c.metal, c.purity, got, c.want)
		}
	}
}

func TestMetalUnmarshalIsCaseInsensitive(t *testing.T) {
	var input models.NewRate
	if err := json.Unmarshal([]byte(`{"metal":"GOLD","purity":"24K","price":"7200"}`), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if input.Metal != models.MetalGold {
		t.Fatalf("expected gold, got %s", input.Metal)
	}
}

func TestSetRateRepricesMatchingProducts(t *testing.T) {
	ctx := setupTestDB(t)

	ring, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           "Ring",
		Sku:            "RING-22",
		Metal:          models.MetalGold,
		Purity:         strPtr("22K"),
		Weight:         dec("10"),
		WastagePercent: dec("8"),
		MakingCharges:  dec("1500"),
		StockQuantity:  2,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	// no rate on the board yet: DEFAULT_GOLD_RATE (6000) prices it
	if !ring.SalePrice.Equal(dec("66300")) {
		t.Fatalf("expected 66300 from the default rate, got %s", ring.SalePrice)
	}
	coin, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:   "Coin",
		Sku:    "COIN-24",
		Metal:  models.MetalGold,
		Purity: strPtr("24K"),
		Weight: dec("1"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	fixed := dec("999")
	anklet, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Anklet",
		Sku:       "ANK-1",
		Metal:     models.MetalSilver,
		Weight:    dec("20"),
		SalePrice: &fixed,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if anklet.Purity != "" || !anklet.SalePrice.Equal(fixed) {
		t.Fatalf("unexpected silver product %q %s", anklet.Purity, anklet.SalePrice)
	}

	result, err := models.SetRate(ctx, &models.NewRate{Metal: models.MetalGold, Purity: strPtr("22k"), Price: dec("6500")})
	if err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if result.UpdatedProducts != 1 {
		t.Fatalf("expected 1 repriced product, got %d", result.UpdatedProducts)
	}
	if result.Rate.Purity != models.Purity22K || !result.Rate.Price.Equal(dec("6500")) {
		t.Fatalf("unexpected rate %+v", result.Rate)
	}

	reloaded, err := models.GetProduct(ctx, ring.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	// 65000 + 5200 + 1500
	if !reloaded.SalePrice.Equal(dec("71700")) {
		t.Fatalf("expected 71700 after repricing, got %s", reloaded.SalePrice)
	}
	untouched, _ := models.GetProduct(ctx, coin.ID)
	if !untouched.SalePrice.Equal(coin.SalePrice) {
		t.Fatalf("24K product must not be repriced by a 22K rate")
	}

	// same price again: upsert, nothing to reprice
	again, err := models.SetRate(ctx, &models.NewRate{Metal: models.MetalGold, Purity: strPtr("22K"), Price: dec("6500")})
	if err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if again.UpdatedProducts != 0 || again.Rate.ID != result.Rate.ID {
		t.Fatalf("expected upsert of rate %d without repricing, got %+v", result.Rate.ID, again)
	}

	rates, err := models.GetRates(ctx)
	if err != nil {
		t.Fatalf("GetRates: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("expected one rate, got %d", len(rates))
	}

	current, err := models.CurrentGoldRate(ctx, "22K")
	if err != nil {
		t.Fatalf("CurrentGoldRate: %v", err)
	}
	if !current.Equal(dec("6500")) {
		t.Fatalf("expected board rate 6500, got %s", current)
	}
	fallback, _ := models.CurrentGoldRate(ctx, "18K")
	if !fallback.Equal(dec("6000")) {
		t.Fatalf("expected fallback 6000, got %s", fallback)
	}
}

func TestSilverRateHasNullPurity(t *testing.T) {
	ctx := setupTestDB(t)
	result, err := models.SetRate(ctx, &models.NewRate{Metal: models.MetalSilver, Purity: strPtr("22K"), Price: dec("85")})
	if err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	b, err := json.Marshal(result.Rate)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"purity":null`) {
		t.Fatalf("expected null purity, got %s", b)
	}

	rate, err := models.GetRate(ctx, models.MetalSilver, nil)
	if err != nil {
		t.Fatalf("GetRate: %v", err)
	}
	if !rate.Price.Equal(dec("85")) {
		t.Fatalf("expected 85, got %s", rate.Price)
	}
	if _, err := models.GetRate(ctx, models.MetalGold, strPtr("24K")); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected missing gold rate, got %v", err)
	}
}

func TestSetRateValidation(t *testing.T) {
	ctx := setupTestDB(t)
	_, err := models.SetRate(ctx, &models.NewRate{Metal: "platinum", Price: dec("100")})
	requireValidationError(t, err, "metal")
	_, err = models.SetRate(ctx, &models.NewRate{Metal: models.MetalGold, Price: decimal.Zero})
	requireValidationError(t, err, "price")
}

func TestProductSkuIsUniquePerBusiness(t *testing.T) {
	ctx := setupTestDB(t)
	input := models.NewProduct{Name: "Bangle", Sku: "BG-1", Metal: models.MetalGold, Weight: dec("12")}
	if _, err := models.CreateProduct(ctx, &input); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	dup := input
	_, err := models.CreateProduct(ctx, &dup)
	requireValidationError(t, err, "duplicate")

	products, page, err := models.GetProducts(ctx, models.ProductFilter{Search: "bang", InStock: false})
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if len(products) != 1 || page.Total != 1 {
		t.Fatalf("expected one product, got %d", len(products))
	}
}
