package listener

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go-commerce/apps/catalog/checkout"
	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/indexer"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	products  *repository.ProductRepository
	values    *repository.AttributeValueRepository
	priceRows *repository.PriceIndexRepository
	invRows   *repository.InventoryIndexRepository
	registry  *types.Registry
	observer  *Product
	settings  *core.Settings
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
			t.Fatalf("failed to seed attribute %s: %v", a.Code, err)
		}
	}
	for _, g := range []model.CustomerGroup{
		{ID: 1, Code: "guest", Name: "Guest"},
		{ID: 2, Code: "general", Name: "General"},
	} {
		if err := db.Create(&g).Error; err != nil {
			t.Fatalf("failed to seed customer group: %v", err)
		}
	}

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
	sync := checkout.NewSynchronizer(carts, items, customers, priceRows)

	return &fixture{
		db:        db,
		products:  products,
		values:    values,
		priceRows: priceRows,
		invRows:   invRows,
		registry:  registry,
		observer:  NewProduct(products, flat, inventory, price, nil, sync),
		settings: &core.Settings{
			Channels:     []model.Channel{{Code: "default"}},
			Locales:      []model.Locale{{Code: "en"}},
			CurrencyRate: 1,
			SearchMode:   "database",
			GuestGroupId: 1,
		},
	}
}

func (f *fixture) createSimple(t *testing.T, sku string, price float64, qty int) *model.Product {
	t.Helper()
	ctx := context.Background()

	product := &model.Product{SKU: sku, Type: model.TypeSimple, AttributeFamilyID: 1}
	if err := f.products.Create(ctx, product); err != nil {
		t.Fatalf("failed to create product %s: %v", sku, err)
	}

	set := func(code string, mutate func(*model.ProductAttributeValue)) {
		var attribute model.Attribute
		if err := f.db.Where("code = ?", code).First(&attribute).Error; err != nil {
			t.Fatalf("attribute %s not seeded: %v", code, err)
		}
		value := model.ProductAttributeValue{ProductID: product.ID, AttributeID: attribute.ID}
		mutate(&value)
		if err := f.db.Create(&value).Error; err != nil {
			t.Fatalf("failed to set %s: %v", code, err)
		}
	}
	set("name", func(v *model.ProductAttributeValue) { v.TextValue = sku })
	set("price", func(v *model.ProductAttributeValue) { v.DecimalValue = price })

	if err := f.products.SaveInventories(ctx, product.ID, map[int64]int{1: qty}); err != nil {
		t.Fatalf("failed to set inventory: %v", err)
	}
	return product
}

func (f *fixture) priceRowCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	assert.NoError(t, f.db.Model(&model.ProductPriceIndex{}).Count(&count).Error)
	return count
}

func TestAfterCreateRefreshesFlatOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.createSimple(t, "chair", 100, 5)
	assert.NoError(t, f.observer.AfterCreate(ctx, f.settings, product))

	var flatCount int64
	assert.NoError(t, f.db.Model(&model.ProductFlat{}).Where("product_id = ?", product.ID).Count(&flatCount).Error)
	assert.Equal(t, int64(1), flatCount)

	// 创建不触发价格/库存索引重建
	assert.Equal(t, int64(0), f.priceRowCount(t))
}

func TestAfterUpdateReindexesBundleAndGroupedParents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.createSimple(t, "mouse", 30, 10)

	bundle := &model.Product{SKU: "desk-set", Type: model.TypeBundle, AttributeFamilyID: 1}
	assert.NoError(t, f.products.Create(ctx, bundle))
	option := model.ProductBundleOption{ProductID: bundle.ID, Label: "Pointing device"}
	assert.NoError(t, f.db.Create(&option).Error)
	assert.NoError(t, f.db.Create(&model.ProductBundleOptionProduct{
		BundleOptionID: option.ID,
		ProductID:      member.ID,
		Qty:            1,
	}).Error)

	grouped := &model.Product{SKU: "starter-kit", Type: model.TypeGrouped, AttributeFamilyID: 1}
	assert.NoError(t, f.products.Create(ctx, grouped))
	assert.NoError(t, f.db.Create(&model.ProductGroupedProduct{
		ProductID:           grouped.ID,
		AssociatedProductID: member.ID,
		Qty:                 1,
	}).Error)

	// 旁观者：独立单品，以及挂在别的捆绑商品下的成员
	bystander := f.createSimple(t, "keyboard", 20, 8)
	otherBundle := &model.Product{SKU: "travel-set", Type: model.TypeBundle, AttributeFamilyID: 1}
	assert.NoError(t, f.products.Create(ctx, otherBundle))
	otherOption := model.ProductBundleOption{ProductID: otherBundle.ID, Label: "Keyboard"}
	assert.NoError(t, f.db.Create(&otherOption).Error)
	assert.NoError(t, f.db.Create(&model.ProductBundleOptionProduct{
		BundleOptionID: otherOption.ID,
		ProductID:      bystander.ID,
		Qty:            1,
	}).Error)

	assert.NoError(t, f.observer.AfterUpdate(ctx, f.settings, member))

	// 成员自己 + 捆绑父 + 组合父，各 × 2 个顾客分组
	assert.Equal(t, int64(6), f.priceRowCount(t))

	for _, id := range []int64{member.ID, bundle.ID, grouped.ID} {
		row, err := f.priceRows.Row(ctx, id, 1)
		assert.NoError(t, err)
		assert.Equal(t, 30.0, row.MinPrice)

		inv, err := f.invRows.Row(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, 10, inv.Qty)
	}

	// 与变更商品无关的商品不参与重建
	for _, id := range []int64{bystander.ID, otherBundle.ID} {
		_, err := f.priceRows.Row(ctx, id, 1)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = f.invRows.Row(ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
}

func TestAfterUpdateReindexesVariantsWithParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	colorAttr := model.Attribute{Code: "color", Type: "select"}
	assert.NoError(t, f.db.Create(&colorAttr).Error)
	red := model.AttributeOption{AttributeID: colorAttr.ID, AdminName: "Red"}
	blue := model.AttributeOption{AttributeID: colorAttr.ID, AdminName: "Blue"}
	assert.NoError(t, f.db.Create(&red).Error)
	assert.NoError(t, f.db.Create(&blue).Error)

	parent := &model.Product{SKU: "tshirt", Type: model.TypeConfigurable, AttributeFamilyID: 1}
	assert.NoError(t, f.products.Create(ctx, parent))

	instance, err := f.registry.For(parent)
	assert.NoError(t, err)
	err = instance.(*types.Configurable).GenerateVariants(ctx, f.settings, []types.SuperAttributeSelection{
		{Code: "color", OptionIds: []int64{red.ID, blue.ID}},
	})
	assert.NoError(t, err)

	assert.NoError(t, f.observer.AfterUpdate(ctx, f.settings, parent))

	// 2 个变体 + 父商品，各 × 2 个顾客分组
	assert.Equal(t, int64(6), f.priceRowCount(t))
}

func TestReindexIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.createSimple(t, "lamp", 42, 3)

	assert.NoError(t, f.observer.AfterUpdate(ctx, f.settings, product))
	first := f.priceRowCount(t)
	row1, err := f.priceRows.Row(ctx, product.ID, 1)
	assert.NoError(t, err)

	assert.NoError(t, f.observer.AfterUpdate(ctx, f.settings, product))
	assert.Equal(t, first, f.priceRowCount(t))
	row2, err := f.priceRows.Row(ctx, product.ID, 1)
	assert.NoError(t, err)

	assert.Equal(t, row1.MinPrice, row2.MinPrice)
	assert.Equal(t, row1.MaxPrice, row2.MaxPrice)
	assert.Equal(t, row1.FinalPrice, row2.FinalPrice)
	assert.Equal(t, 42.0, row2.MinPrice)
}

func TestSpecialPriceDrivesFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.createSimple(t, "boots", 100, 4)

	var special model.Attribute
	assert.NoError(t, f.db.Where("code = ?", "special_price").First(&special).Error)
	assert.NoError(t, f.db.Create(&model.ProductAttributeValue{
		ProductID:    product.ID,
		AttributeID:  special.ID,
		DecimalValue: 80,
	}).Error)

	assert.NoError(t, f.observer.AfterUpdate(ctx, f.settings, product))

	row, err := f.priceRows.Row(ctx, product.ID, 1)
	assert.NoError(t, err)
	assert.Equal(t, 100.0, row.RegularPrice)
	assert.Equal(t, 80.0, row.FinalPrice)
	assert.Equal(t, 80.0, row.MinPrice)
}

func TestBeforeDeleteMissingProductIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.observer.BeforeDelete(context.Background(), f.settings, 99999))
}

func TestDispatcherFansOutInOrder(t *testing.T) {
	calls := make([]string, 0)

	first := &recordingObserver{name: "first", calls: &calls}
	second := &recordingObserver{name: "second", calls: &calls}

	d := NewDispatcher(first)
	d.Register(second)

	settings := &core.Settings{}
	assert.NoError(t, d.AfterUpdate(context.Background(), settings, &model.Product{ID: 1}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

type recordingObserver struct {
	NopObserver
	name  string
	calls *[]string
}

func (r *recordingObserver) AfterUpdate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	*r.calls = append(*r.calls, r.name)
	return nil
}
