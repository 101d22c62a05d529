package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-commerce/apps/catalog/checkout"
	"go-commerce/apps/catalog/indexer"
	"go-commerce/apps/catalog/listener"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"
	"go-commerce/pkg/config"

	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := sentinel.InitDefault(); err != nil {
		panic("failed to init sentinel: " + err.Error())
	}
	m.Run()
}

type fixture struct {
	db       *gorm.DB
	products *repository.ProductRepository
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.Attribute{}, &model.AttributeOption{},
		&model.Channel{}, &model.Locale{},
		&model.Product{}, &model.ProductAttributeValue{}, &model.ProductSuperAttribute{},
		&model.ProductBundleOption{}, &model.ProductBundleOptionProduct{}, &model.ProductGroupedProduct{},
		&model.ProductInventory{}, &model.ProductPriceIndex{}, &model.ProductInventoryIndex{}, &model.ProductFlat{},
		&model.CustomerGroup{}, &model.Customer{}, &model.Cart{}, &model.CartItem{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	for _, a := range []model.Attribute{
		{Code: "sku", Type: "text"},
		{Code: "name", Type: "text", ValuePerLocale: true},
		{Code: "price", Type: "decimal"},
		{Code: "special_price", Type: "decimal"},
		{Code: "weight", Type: "decimal"},
		{Code: "status", Type: "boolean", ValuePerChannel: true},
	} {
		if err := db.Create(&a).Error; err != nil {
			t.Fatalf("failed to seed attribute: %v", err)
		}
	}
	if err := db.Create(&model.Channel{Code: "default", Name: "Default"}).Error; err != nil {
		t.Fatalf("failed to seed channel: %v", err)
	}
	if err := db.Create(&model.Locale{Code: "en", Name: "English"}).Error; err != nil {
		t.Fatalf("failed to seed locale: %v", err)
	}
	for _, g := range []model.CustomerGroup{
		{ID: 1, Code: "guest", Name: "Guest"},
		{ID: 2, Code: "general", Name: "General"},
	} {
		if err := db.Create(&g).Error; err != nil {
			t.Fatalf("failed to seed customer group: %v", err)
		}
	}

	catalogCfg := config.CatalogConfig{SearchMode: "database", CurrencyRate: 1, GuestGroupId: 1}

	products := repository.NewProductRepository(db)
	attributes := repository.NewAttributeRepository(db)
	values := repository.NewAttributeValueRepository(db)
	priceRows := repository.NewPriceIndexRepository(db)
	invRows := repository.NewInventoryIndexRepository(db)
	groups := repository.NewCustomerGroupRepository(db)
	carts := repository.NewCartRepository(db)
	items := repository.NewCartItemRepository(db)
	customers := repository.NewCustomerRepository(db)

	registry := types.NewRegistry(products, attributes, values)
	flat := indexer.NewFlatIndexer(db, registry, attributes, values, nil)
	inventory := indexer.NewInventoryIndexer(registry, invRows)
	price := indexer.NewPriceIndexer(registry, priceRows, groups)
	cartSync := checkout.NewSynchronizer(carts, items, customers, priceRows)
	dispatcher := listener.NewDispatcher(listener.NewProduct(products, flat, inventory, price, nil, cartSync))

	productHandler := NewProductHandler(db, catalogCfg, products, attributes, values, registry, dispatcher)
	cartHandler := NewCartHandler(db, catalogCfg, products, registry, carts, items, cartSync)
	customerHandler := NewCustomerHandler(customers)

	r := gin.New()
	r.POST("/admin/products", productHandler.Create)
	r.PUT("/admin/products/:id", productHandler.Update)
	r.DELETE("/admin/products/:id", productHandler.Delete)
	r.POST("/admin/products/mass-destroy", productHandler.MassDestroy)
	r.GET("/products/:id", productHandler.Get)
	r.POST("/cart/items", OptionalAuthMiddleware(), cartHandler.AddItem)
	r.GET("/cart", OptionalAuthMiddleware(), cartHandler.Get)
	r.POST("/customer/register", customerHandler.Register)
	r.POST("/customer/login", customerHandler.Login)

	return &fixture{db: db, products: products, router: r}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v (%s)", err, w.Body.String())
		}
	}
	return w, resp
}

func TestCreateSimpleProduct(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, "POST", "/admin/products", map[string]interface{}{
		"sku":    "chair",
		"type":   "simple",
		"name":   "Chair",
		"price":  100,
		"status": 1,
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(200), resp["code"])

	product, err := f.products.FindBySKU(context.Background(), "chair")
	assert.NoError(t, err)

	// 创建后展示平表立即可见
	var flatCount int64
	assert.NoError(t, f.db.Model(&model.ProductFlat{}).Where("product_id = ?", product.ID).Count(&flatCount).Error)
	assert.Equal(t, int64(1), flatCount)
}

func TestCreateConfigurableGeneratesVariants(t *testing.T) {
	f := newFixture(t)

	color := model.Attribute{Code: "color", Type: "select"}
	assert.NoError(t, f.db.Create(&color).Error)
	red := model.AttributeOption{AttributeID: color.ID, AdminName: "Red"}
	blue := model.AttributeOption{AttributeID: color.ID, AdminName: "Blue"}
	assert.NoError(t, f.db.Create(&red).Error)
	assert.NoError(t, f.db.Create(&blue).Error)

	w, _ := f.do(t, "POST", "/admin/products", map[string]interface{}{
		"sku":  "tshirt",
		"type": "configurable",
		"name": "T-Shirt",
		"super_attributes": []map[string]interface{}{
			{"code": "color", "option_ids": []int64{red.ID, blue.ID}},
		},
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	parent, err := f.products.FindBySKU(context.Background(), "tshirt")
	assert.NoError(t, err)
	variants, err := f.products.Variants(context.Background(), parent.ID)
	assert.NoError(t, err)
	assert.Len(t, variants, 2)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, "POST", "/admin/products", map[string]interface{}{"sku": "chair", "type": "simple"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, "POST", "/admin/products", map[string]interface{}{"sku": "chair", "type": "simple"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMassDestroyReportsPartialSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := &model.Product{SKU: "a", Type: model.TypeSimple}
	second := &model.Product{SKU: "b", Type: model.TypeSimple}
	assert.NoError(t, f.products.Create(ctx, first))
	assert.NoError(t, f.products.Create(ctx, second))

	w, resp := f.do(t, "POST", "/admin/products/mass-destroy", map[string]interface{}{
		"indexes": fmt.Sprintf("%d,99999,%d", first.ID, second.ID),
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(207), resp["code"])

	data := resp["data"].(map[string]interface{})
	assert.Len(t, data["deleted"], 2)
	assert.Len(t, data["failed"], 1)

	_, err := f.products.Find(ctx, first.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.products.Find(ctx, second.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAddItemCreatesGuestCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, _ := f.do(t, "POST", "/admin/products", map[string]interface{}{
		"sku":    "lamp",
		"type":   "simple",
		"name":   "Lamp",
		"price":  40,
		"status": 1,
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	product, err := f.products.FindBySKU(ctx, "lamp")
	assert.NoError(t, err)
	assert.NoError(t, f.products.SaveInventories(ctx, product.ID, map[int64]int{1: 5}))

	w, resp := f.do(t, "POST", "/cart/items", map[string]interface{}{
		"product_id": product.ID,
		"quantity":   2,
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp["data"].(map[string]interface{})
	token := data["token"].(string)
	assert.NotEmpty(t, token)

	cart := data["cart"].(map[string]interface{})
	assert.Equal(t, 80.0, cart["GrandTotal"])

	// 同一个 token 再读回同一个购物车
	w, resp = f.do(t, "GET", "/cart", nil, map[string]string{"X-Cart-Token": token})
	assert.Equal(t, http.StatusOK, w.Code)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	assert.Len(t, items, 1)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, "POST", "/customer/register", map[string]interface{}{
		"email":    "jane@example.com",
		"password": "secret12",
		"name":     "Jane",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, "POST", "/customer/login", map[string]interface{}{
		"email":    "jane@example.com",
		"password": "secret12",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])

	w, _ = f.do(t, "POST", "/customer/login", map[string]interface{}{
		"email":    "jane@example.com",
		"password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
