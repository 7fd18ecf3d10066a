package middlewares_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/middlewares"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLoaderDB(t *testing.T) context.Context {
	t.Helper()
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
	return utils.SessionContext(context.Background(), "biz-loader", 1, "Tester")
}

func TestCustomerLoaderFillsMissingWithDefault(t *testing.T) {
	ctx := middlewares.WithLoaders(setupLoaderDB(t))
	a, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Lakshmi", Phone: "+16502530201"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	b, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Ravi", Phone: "+16502530202"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	customers, errs := middlewares.GetCustomers(ctx, []int{b.ID, a.ID, b.ID + 100})
	for _, err := range errs {
		if err != nil {
			t.Fatalf("LoadMany: %v", err)
		}
	}
	if len(customers) != 3 {
		t.Fatalf("expected 3 results, got %d", len(customers))
	}
	if customers[0].Name != "Ravi" || customers[1].Name != "Lakshmi" {
		t.Fatalf("results out of order: %s, %s", customers[0].Name, customers[1].Name)
	}
	if customers[2].ID != b.ID+100 || customers[2].Name != "Walk-in customer" {
		t.Fatalf("expected default for missing id, got %+v", customers[2])
	}

	one, err := middlewares.GetCustomer(ctx, a.ID)
	if err != nil || one.Phone != "+16502530201" {
		t.Fatalf("GetCustomer: %+v %v", one, err)
	}
}

func TestCustomerLoaderIsTenantScoped(t *testing.T) {
	ctx := setupLoaderDB(t)
	mine, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Mine", Phone: "+16502530203"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	other := middlewares.WithLoaders(utils.SessionContext(context.Background(), "biz-other", 2, "Other"))
	got, err := middlewares.GetCustomer(other, mine.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.Name == "Mine" {
		t.Fatalf("loader leaked a customer across businesses")
	}
}

func TestProductLoader(t *testing.T) {
	ctx := middlewares.WithLoaders(setupLoaderDB(t))
	p, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Chain", Sku: "CH-1", Metal: models.MetalGold, Weight: decimal.RequireFromString("4")})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	products, errs := middlewares.GetProducts(ctx, []int{p.ID, p.ID + 1})
	if errs != nil && (errs[0] != nil || errs[1] != nil) {
		t.Fatalf("LoadMany: %v", errs)
	}
	if products[0].Sku != "CH-1" || products[1].Name != "Deleted product" {
		t.Fatalf("unexpected products %+v %+v", products[0], products[1])
	}
}

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middlewares.SessionMiddleware())
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api := r.Group("/api", middlewares.RequireSession())
	api.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.GET("/admin", middlewares.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestSessionMiddleware(t *testing.T) {
	config.SetRedisClient(nil)
	r := newSessionRouter()

	cases := []struct {
		path  string
		token string
		want  int
	}{
		{"/open", "", http.StatusNoContent},
		{"/api/ping", "", http.StatusUnauthorized},
		{"/api/ping", "unknown-token", http.StatusUnauthorized},
		{"/open", "unknown-token", http.StatusUnauthorized},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, c.path, nil)
		if c.token != "" {
			req.Header.Set("token", c.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != c.want {
			t.Fatalf("%s token=%q: expected %d, got %d", c.path, c.token, c.want, w.Code)
		}
	}
}
