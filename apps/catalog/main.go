package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go-commerce/apps/catalog/checkout"
	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/handler"
	"go-commerce/apps/catalog/indexer"
	"go-commerce/apps/catalog/listener"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"
	"go-commerce/pkg/config"
	"go-commerce/pkg/database"
	"go-commerce/pkg/discovery"
	"go-commerce/pkg/eventbus"
	"go-commerce/pkg/search"
	"go-commerce/pkg/tracer"

	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// initSentinel 初始化限流规则
func initSentinel() {
	if err := sentinel.InitDefault(); err != nil {
		log.Fatalf("Failed to init sentinel: %v", err)
	}

	// 批量删除会触发成片的索引重建，限制 QPS 防止误操作打垮索引器
	_, err := flow.LoadRules([]*flow.Rule{
		{
			Resource:               handler.ResMassDestroy,
			TokenCalculateStrategy: flow.Direct,
			ControlBehavior:        flow.Reject,
			Threshold:              5,
			StatIntervalInMs:       1000,
		},
	})
	if err != nil {
		log.Fatalf("Failed to load sentinel rules: %v", err)
	}
	log.Println("Sentinel rules loaded: mass destroy QPS limit = 5")
}

// seed 初始化基础数据：默认渠道/语言/顾客分组和系统属性
func seed(db *gorm.DB) error {
	channel := model.Channel{Code: "default", Name: "Default"}
	if err := db.Where(model.Channel{Code: channel.Code}).FirstOrCreate(&channel).Error; err != nil {
		return err
	}

	locale := model.Locale{Code: "en", Name: "English"}
	if err := db.Where(model.Locale{Code: locale.Code}).FirstOrCreate(&locale).Error; err != nil {
		return err
	}

	groups := []model.CustomerGroup{
		{ID: 1, Code: "guest", Name: "Guest"},
		{ID: 2, Code: "general", Name: "General"},
	}
	for i := range groups {
		if err := db.Where(model.CustomerGroup{Code: groups[i].Code}).FirstOrCreate(&groups[i]).Error; err != nil {
			return err
		}
	}

	attributes := []model.Attribute{
		{Code: "sku", Type: "text"},
		{Code: "name", Type: "text", ValuePerLocale: true},
		{Code: "price", Type: "decimal"},
		{Code: "special_price", Type: "decimal"},
		{Code: "weight", Type: "decimal"},
		{Code: "status", Type: "boolean", ValuePerChannel: true},
		{Code: "tax_category_id", Type: "integer"},
		{Code: "color", Type: "select"},
		{Code: "size", Type: "select"},
	}
	for i := range attributes {
		if err := db.Where(model.Attribute{Code: attributes[i].Code}).FirstOrCreate(&attributes[i]).Error; err != nil {
			return err
		}
	}

	return nil
}

func main() {
	c, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 环境变量适配
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		c.Mysql.Host = v
		log.Printf("Config Override: MYSQL_HOST used (%s)", v)
	}
	if v := os.Getenv("MYSQL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Mysql.Port = p
		}
	}
	if v := os.Getenv("MYSQL_USER"); v != "" {
		c.Mysql.User = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.Mysql.Password = v
	}
	if v := os.Getenv("MYSQL_DBNAME"); v != "" {
		c.Mysql.DbName = v
	}
	if v := os.Getenv("CONSUL_ADDRESS"); v != "" {
		c.Consul.Address = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("ELASTIC_ADDRESS"); v != "" {
		c.Elastic.Address = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.Rabbitmq.Url = v
	}
	if v := os.Getenv("SEARCH_MODE"); v != "" {
		c.Catalog.SearchMode = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Service.Port = p
		}
	}

	initSentinel()

	db, err := database.InitMySQL(c.Mysql)
	if err != nil {
		log.Fatalf("Failed to init mysql: %v", err)
	}
	err = db.AutoMigrate(
		&model.Attribute{}, &model.AttributeOption{},
		&model.Channel{}, &model.Locale{},
		&model.Product{}, &model.ProductAttributeValue{}, &model.ProductSuperAttribute{},
		&model.ProductBundleOption{}, &model.ProductBundleOptionProduct{}, &model.ProductGroupedProduct{},
		&model.ProductInventory{}, &model.ProductPriceIndex{}, &model.ProductInventoryIndex{}, &model.ProductFlat{},
		&model.CustomerGroup{}, &model.Customer{},
		&model.Cart{}, &model.CartItem{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}
	if err := seed(db); err != nil {
		log.Fatalf("Failed to seed base data: %v", err)
	}

	// Redis 只做平表快照缓存，连不上降级为直查数据库
	rdb, err := database.InitRedis(c.Redis)
	if err != nil {
		log.Printf("Redis unavailable, flat snapshot cache disabled: %v", err)
		rdb = nil
	}

	tp, err := tracer.InitTracer(c.Service.Name, c.Jaeger.Endpoint)
	if err != nil {
		log.Fatalf("Failed to init tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Tracer shutdown failed: %v", err)
		}
	}()

	// 仓储
	products := repository.NewProductRepository(db)
	attributes := repository.NewAttributeRepository(db)
	values := repository.NewAttributeValueRepository(db)
	priceRows := repository.NewPriceIndexRepository(db)
	inventoryRows := repository.NewInventoryIndexRepository(db)
	groups := repository.NewCustomerGroupRepository(db)
	carts := repository.NewCartRepository(db)
	items := repository.NewCartItemRepository(db)
	customers := repository.NewCustomerRepository(db)

	registry := types.NewRegistry(products, attributes, values)

	// 索引器
	flat := indexer.NewFlatIndexer(db, registry, attributes, values, rdb)
	inventoryIdx := indexer.NewInventoryIndexer(registry, inventoryRows)
	priceIdx := indexer.NewPriceIndexer(registry, priceRows, groups)

	var searchIdx *indexer.ElasticIndexer
	if c.Catalog.SearchMode == "elastic" {
		es, err := search.InitElastic(c.Elastic)
		if err != nil {
			log.Fatalf("Failed to init elasticsearch: %v", err)
		}
		searchIdx = indexer.NewElasticIndexer(es, c.Elastic.Index, registry, attributes, values)
	}

	cartSync := checkout.NewSynchronizer(carts, items, customers, priceRows)
	productObserver := listener.NewProduct(products, flat, inventoryIdx, priceIdx, searchIdx, cartSync)

	// 同步 / 异步两种索引模式
	dispatcher := listener.NewDispatcher()
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	if c.Catalog.AsyncIndexing {
		bus, err := eventbus.Connect(c.Rabbitmq)
		if err != nil {
			log.Fatalf("Failed to connect rabbitmq: %v", err)
		}
		defer bus.Close()

		dispatcher.Register(listener.NewQueue(bus, productObserver))

		go func() {
			err := bus.Consume(workerCtx, func(ctx context.Context, m eventbus.ProductMutation) error {
				settings, err := core.Load(db, c.Catalog)
				if err != nil {
					return err
				}

				product, err := products.Find(ctx, m.ProductId)
				if errors.Is(err, repository.ErrNotFound) {
					// 消息还在队列里商品已被删掉，直接丢弃
					return nil
				}
				if err != nil {
					return err
				}

				if m.Kind == "created" {
					return productObserver.AfterCreate(ctx, settings, product)
				}
				return productObserver.AfterUpdate(ctx, settings, product)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Reindex worker stopped: %v", err)
			}
		}()
	} else {
		dispatcher.Register(productObserver)
	}

	// Handler
	productHandler := handler.NewProductHandler(db, c.Catalog, products, attributes, values, registry, dispatcher)
	cartHandler := handler.NewCartHandler(db, c.Catalog, products, registry, carts, items, cartSync)
	customerHandler := handler.NewCustomerHandler(customers)

	// 启动 Gin
	r := gin.Default()
	r.Use(otelgin.Middleware(c.Service.Name))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// 公开接口
	{
		v1.POST("/customer/register", customerHandler.Register)
		v1.POST("/customer/login", customerHandler.Login)
		v1.GET("/products/:id", productHandler.Get)
	}

	// 购物车：游客凭 X-Cart-Token，登录顾客凭 JWT
	cart := v1.Group("/cart")
	cart.Use(handler.OptionalAuthMiddleware())
	{
		cart.POST("/items", cartHandler.AddItem)
		cart.GET("", cartHandler.Get)
	}

	// 管理接口
	admin := v1.Group("/admin")
	admin.Use(handler.AuthMiddleware())
	{
		admin.POST("/products", productHandler.Create)
		admin.PUT("/products/:id", productHandler.Update)
		admin.DELETE("/products/:id", productHandler.Delete)
		admin.POST("/products/mass-destroy", productHandler.MassDestroy)
	}

	if err := discovery.RegisterService(c.Service.Name, c.Service.Port, c.Consul.Address); err != nil {
		log.Fatalf("Failed to register service: %v", err)
	}

	addr := fmt.Sprintf(":%d", c.Service.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Printf("Catalog Service listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}
