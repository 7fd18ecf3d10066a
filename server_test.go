package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Data       json.RawMessage  `json:"data"`
	Pagination *models.PageInfo `json:"pagination"`
}

func setupServerDB(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared&_busy_timeout=5000"), config.NewGormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := conn.DB()
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
}

// sessionRouter serves every request as a cashier of businessId.
func sessionRouter(t *testing.T, businessId string) *gin.Engine {
	t.Helper()
	setupServerDB(t)
	return newRouter(config.GetLogger(), func(c *gin.Context) {
		ctx := utils.SessionContext(c.Request.Context(), businessId, 1, "Cashier")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
}

func call(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func createChitOverHTTP(t *testing.T, r http.Handler, phone string, amount string, installments int) models.Chit {
	t.Helper()
	w, env := call(t, r, http.MethodPost, "/api/customers", gin.H{"name": "Priya", "phone": phone})
	expectStatus(t, w, http.StatusCreated)
	customer := decode[models.Customer](t, env)

	w, env = call(t, r, http.MethodPost, "/api/chits", gin.H{
		"customer_id":        customer.ID,
		"start_date":         "2025-01-15T00:00:00Z",
		"chit_amount":        amount,
		"total_installments": installments,
	})
	expectStatus(t, w, http.StatusCreated)
	return decode[models.Chit](t, env)
}

func TestHealthzAndNotFound(t *testing.T) {
	r := sessionRouter(t, "biz-http")

	w, _ := call(t, r, http.MethodGet, "/healthz", nil)
	expectStatus(t, w, http.StatusNoContent)

	w, env := call(t, r, http.MethodGet, "/nowhere", nil)
	expectStatus(t, w, http.StatusNotFound)
	if env.Success || env.Message != "route not found" {
		t.Fatalf("unexpected body %+v", env)
	}
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("expected a correlation id header")
	}
}

func TestApiRequiresSession(t *testing.T) {
	setupServerDB(t)
	r := newRouter(config.GetLogger(), nil)

	w, env := call(t, r, http.MethodGet, "/api/chits", nil)
	expectStatus(t, w, http.StatusUnauthorized)
	if env.Success {
		t.Fatalf("expected failure envelope")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chits", nil)
	req.Header.Set("token", "not-a-session")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestChitPaymentFlowOverHTTP(t *testing.T) {
	r := sessionRouter(t, "biz-http")
	chit := createChitOverHTTP(t, r, "+16502530401", "11000", 11)
	if !chit.InstallmentAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected installment 1000, got %s", chit.InstallmentAmount)
	}

	w, env := call(t, r, http.MethodPost, fmt.Sprintf("/api/chits/%d/payment", chit.ID), gin.H{
		"amount":            "1000",
		"payment_method":    "cash",
		"current_gold_rate": "5000",
	})
	expectStatus(t, w, http.StatusCreated)
	result := decode[models.ChitPaymentResult](t, env)
	if result.Payment.InstallmentNumber != 1 || !result.Payment.GoldWeight.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("unexpected payment %+v", result.Payment)
	}
	if result.Chit.PaidInstallments+result.Chit.RemainingInstallments != 11 {
		t.Fatalf("paid and remaining must add up to total: %+v", result.Chit)
	}

	// body-addressed variant
	w, _ = call(t, r, http.MethodPost, "/api/chit-payments", gin.H{
		"chit_id":           chit.ID,
		"amount":            "1000",
		"payment_method":    "upi",
		"current_gold_rate": "5000",
	})
	expectStatus(t, w, http.StatusCreated)

	// a mismatched installment number changes nothing
	w, env = call(t, r, http.MethodPost, fmt.Sprintf("/api/chits/%d/payment", chit.ID), gin.H{
		"amount":             "1000",
		"payment_method":     "cash",
		"current_gold_rate":  "5000",
		"installment_number": 7,
	})
	expectStatus(t, w, http.StatusBadRequest)
	if env.Message == "" {
		t.Fatalf("expected a message for the rejected payment")
	}

	w, env = call(t, r, http.MethodGet, fmt.Sprintf("/api/chits/%d", chit.ID), nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[struct {
		PaidInstallments int                `json:"paid_installments"`
		Summary          models.ChitSummary `json:"summary"`
		Customer         *models.Customer   `json:"customer"`
	}](t, env)
	if got.PaidInstallments != 2 || !got.Summary.TotalPaidAmount.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("unexpected chit %+v", got)
	}
	if got.Customer == nil || got.Customer.Name != "Priya" {
		t.Fatalf("expected the customer to be attached, got %+v", got.Customer)
	}

	w, env = call(t, r, http.MethodGet, fmt.Sprintf("/api/chit-payments/chit/%d?limit=1", chit.ID), nil)
	expectStatus(t, w, http.StatusOK)
	payments := decode[[]models.ChitPayment](t, env)
	if len(payments) != 1 || env.Pagination == nil || env.Pagination.Total != 2 {
		t.Fatalf("expected 1 of 2 payments, got %d %+v", len(payments), env.Pagination)
	}

	w, env = call(t, r, http.MethodGet, "/api/chit-payments/receipt/"+payments[0].ReceiptNumber, nil)
	expectStatus(t, w, http.StatusOK)
	if decode[models.ChitPayment](t, env).ID != payments[0].ID {
		t.Fatalf("receipt lookup returned another payment")
	}

	w, env = call(t, r, http.MethodGet, fmt.Sprintf("/api/chits/%d/schedule", chit.ID), nil)
	expectStatus(t, w, http.StatusOK)
	schedule := decode[[]models.ScheduleEntry](t, env)
	if len(schedule) != 11 || !schedule[1].IsPaid || schedule[2].IsPaid {
		t.Fatalf("unexpected schedule %+v", schedule)
	}

	w, env = call(t, r, http.MethodGet, "/api/chits?status=active", nil)
	expectStatus(t, w, http.StatusOK)
	if env.Pagination == nil || env.Pagination.Total != 1 {
		t.Fatalf("expected one active chit, got %+v", env.Pagination)
	}
}

func TestSettlementOverHTTP(t *testing.T) {
	r := sessionRouter(t, "biz-http")
	chit := createChitOverHTTP(t, r, "+16502530402", "6000", 1)
	settlePath := fmt.Sprintf("/api/chits/%d/settle", chit.ID)

	w, _ := call(t, r, http.MethodPost, settlePath, gin.H{"settlement_type": "cash"})
	expectStatus(t, w, http.StatusBadRequest)
	w, _ = call(t, r, http.MethodPost, fmt.Sprintf("/api/chits/%d/settle-purchase", chit.ID), gin.H{
		"purchase_amount": "10000",
		"invoice_number":  "INV-1",
	})
	expectStatus(t, w, http.StatusBadRequest)

	w, _ = call(t, r, http.MethodPost, fmt.Sprintf("/api/chits/%d/payment", chit.ID), gin.H{
		"amount":            "6000",
		"payment_method":    "bank",
		"current_gold_rate": "6000",
	})
	expectStatus(t, w, http.StatusCreated)

	// completed chits take no further payments
	w, _ = call(t, r, http.MethodPost, fmt.Sprintf("/api/chits/%d/payment", chit.ID), gin.H{
		"amount":            "6000",
		"payment_method":    "bank",
		"current_gold_rate": "6000",
	})
	expectStatus(t, w, http.StatusBadRequest)

	w, env := call(t, r, http.MethodPost, settlePath, gin.H{
		"settlement_type":      "gold",
		"settlement_gold_rate": "6500",
	})
	expectStatus(t, w, http.StatusOK)
	settled := decode[models.Chit](t, env)
	if settled.Status != models.ChitStatusSettled || !settled.SettlementAmount.Equal(decimal.NewFromInt(6500)) {
		t.Fatalf("unexpected settlement %s %s", settled.Status, settled.SettlementAmount)
	}

	w, env = call(t, r, http.MethodPatch, fmt.Sprintf("/api/chits/%d/settlement-status", chit.ID), gin.H{"status": "completed"})
	expectStatus(t, w, http.StatusOK)
	if s := decode[models.Chit](t, env).SettlementStatus; s == nil || *s != models.SettlementStatusCompleted {
		t.Fatalf("expected completed settlement status, got %v", s)
	}
}

func TestErrorMapping(t *testing.T) {
	r := sessionRouter(t, "biz-http")

	w, env := call(t, r, http.MethodGet, "/api/chits/abc", nil)
	expectStatus(t, w, http.StatusBadRequest)
	if env.Message != "invalid id" {
		t.Fatalf("unexpected message %q", env.Message)
	}

	w, _ = call(t, r, http.MethodGet, "/api/chits/999", nil)
	expectStatus(t, w, http.StatusNotFound)

	w, env = call(t, r, http.MethodPost, "/api/chits", gin.H{"chit_amount": "1000"})
	expectStatus(t, w, http.StatusBadRequest)
	if env.Message != "invalid request" {
		t.Fatalf("expected a binding failure, got %q", env.Message)
	}

	w, _ = call(t, r, http.MethodPatch, "/api/chits/999/status", gin.H{"status": "cancelled"})
	expectStatus(t, w, http.StatusNotFound)

	// admin routes need a resolved admin user
	w, _ = call(t, r, http.MethodPost, "/api/admin/users", gin.H{"username": "x", "name": "x", "password": "password1"})
	expectStatus(t, w, http.StatusForbidden)
}

func TestChitsAreTenantScopedOverHTTP(t *testing.T) {
	r := sessionRouter(t, "biz-a")
	chit := createChitOverHTTP(t, r, "+16502530403", "11000", 11)

	other := newRouter(config.GetLogger(), func(c *gin.Context) {
		c.Request = c.Request.WithContext(utils.SessionContext(c.Request.Context(), "biz-b", 2, "Other"))
		c.Next()
	})
	w, _ := call(t, other, http.MethodGet, fmt.Sprintf("/api/chits/%d", chit.ID), nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestChitExportsOverHTTP(t *testing.T) {
	r := sessionRouter(t, "biz-http")
	chit := createChitOverHTTP(t, r, "+16502530404", "11000", 11)

	for _, path := range []string{"/api/chits/export", fmt.Sprintf("/api/chit-payments/chit/%d/export", chit.ID)} {
		w, _ := call(t, r, http.MethodGet, path, nil)
		expectStatus(t, w, http.StatusOK)
		if !strings.Contains(w.Header().Get("Content-Type"), "spreadsheetml") {
			t.Fatalf("%s: unexpected content type %q", path, w.Header().Get("Content-Type"))
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") || w.Body.Len() == 0 {
			t.Fatalf("%s: expected an xlsx attachment", path)
		}
	}

	w, _ := call(t, r, http.MethodGet, "/api/chit-payments/chit/999/export", nil)
	expectStatus(t, w, http.StatusNotFound)
}

// fakeCounter answers INCR, EXPIRE and TTL in memory so the limiter runs
// without a Redis server.
type fakeCounter struct {
	counts  map[string]int64
	ttls    map[string]bool
	expires int
}

func (f *fakeCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if len(args) < 2 {
			return next(ctx, cmd)
		}
		key := fmt.Sprint(args[1])
		switch cmd.Name() {
		case "incr":
			f.counts[key]++
			cmd.(*redis.IntCmd).SetVal(f.counts[key])
		case "expire":
			f.expires++
			f.ttls[key] = true
			cmd.(*redis.BoolCmd).SetVal(true)
		case "ttl":
			ttl := time.Duration(-1)
			if f.ttls[key] {
				ttl = time.Minute
			}
			cmd.(*redis.DurationCmd).SetVal(ttl)
		default:
			return next(ctx, cmd)
		}
		return nil
	}
}

func limitedRouter(client *redis.Client, limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(func() *redis.Client { return client }, limit, time.Minute).RateLimitMiddleware)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func ping(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	return w
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	r := limitedRouter(nil, 1)
	for i := 0; i < 3; i++ {
		if w := ping(r); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimiterCounterAlwaysExpires(t *testing.T) {
	fake := &fakeCounter{counts: map[string]int64{}, ttls: map[string]bool{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(fake)
	t.Cleanup(func() { _ = client.Close() })
	r := limitedRouter(client, 2)

	for i := 0; i < 2; i++ {
		if w := ping(r); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, w.Code)
		}
	}
	if fake.expires != 1 {
		t.Fatalf("expected the window set once on the first hit, got %d", fake.expires)
	}

	w := ping(r)
	if w.Code != http.StatusTooManyRequests || !strings.Contains(w.Body.String(), "Rate limit exceeded") {
		t.Fatalf("expected 429, got %d %s", w.Code, w.Body.String())
	}
	if fake.expires != 1 {
		t.Fatalf("a counter with a TTL must not be re-armed, got %d expires", fake.expires)
	}

	// counter lost its TTL
	fake.ttls = map[string]bool{}
	if w := ping(r); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if fake.expires != 2 || len(fake.ttls) != 1 {
		t.Fatalf("expected the stuck counter to get a TTL, got %d expires", fake.expires)
	}

	// window elapsed
	fake.counts = map[string]int64{}
	fake.ttls = map[string]bool{}
	if w := ping(r); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 in a fresh window, got %d", w.Code)
	}
	if fake.expires != 3 {
		t.Fatalf("expected the fresh window to be armed, got %d expires", fake.expires)
	}
}
