package checkout

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	carts     *repository.CartRepository
	items     *repository.CartItemRepository
	customers *repository.CustomerRepository
	prices    *repository.PriceIndexRepository
	sync      *Synchronizer
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
		&model.Product{}, &model.ProductPriceIndex{},
		&model.CustomerGroup{}, &model.Customer{},
		&model.Cart{}, &model.CartItem{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	carts := repository.NewCartRepository(db)
	items := repository.NewCartItemRepository(db)
	customers := repository.NewCustomerRepository(db)
	prices := repository.NewPriceIndexRepository(db)

	return &fixture{
		db:        db,
		carts:     carts,
		items:     items,
		customers: customers,
		prices:    prices,
		sync:      NewSynchronizer(carts, items, customers, prices),
		settings:  &core.Settings{CurrencyRate: 1, GuestGroupId: 1},
	}
}

func (f *fixture) product(t *testing.T, sku string) *model.Product {
	t.Helper()
	product := &model.Product{SKU: sku, Type: model.TypeSimple}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return product
}

func (f *fixture) priceRow(t *testing.T, productId, groupId int64, price float64) {
	t.Helper()
	err := f.prices.Upsert(context.Background(), &model.ProductPriceIndex{
		ProductID:       productId,
		CustomerGroupID: groupId,
		MinPrice:        price,
		MaxPrice:        price,
		RegularPrice:    price,
		FinalPrice:      price,
	})
	if err != nil {
		t.Fatalf("failed to upsert price row: %v", err)
	}
}

func (f *fixture) guestCart(t *testing.T) *model.Cart {
	t.Helper()
	cart := &model.Cart{Token: "cart-" + strings.ReplaceAll(t.Name(), "/", "_"), IsActive: true}
	if err := f.db.Create(cart).Error; err != nil {
		t.Fatalf("failed to create cart: %v", err)
	}
	return cart
}

func (f *fixture) item(t *testing.T, cartId int64, productId int64, qty int, price float64) *model.CartItem {
	t.Helper()
	item := &model.CartItem{
		CartID:    cartId,
		ProductID: productId,
		Quantity:  qty,
		Price:     price,
		BasePrice: price,
		Total:     price * float64(qty),
		BaseTotal: price * float64(qty),
	}
	if err := f.db.Create(item).Error; err != nil {
		t.Fatalf("failed to create cart item: %v", err)
	}
	return item
}

func TestSyncProductUpdatesItemsAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.product(t, "lamp")
	cart := f.guestCart(t)
	item := f.item(t, cart.ID, product.ID, 2, 100)

	// 价格索引重算后从 100 降到 90
	f.priceRow(t, product.ID, 1, 90)

	assert.NoError(t, f.sync.SyncProduct(ctx, f.settings, product))

	updated, err := f.items.Find(ctx, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, 90.0, updated.Price)
	assert.Equal(t, 180.0, updated.Total)

	refreshed, err := f.carts.Find(ctx, cart.ID)
	assert.NoError(t, err)
	assert.Equal(t, 180.0, refreshed.SubTotal)
	assert.Equal(t, 180.0, refreshed.GrandTotal)
	assert.Equal(t, 180.0, refreshed.BaseGrandTotal)
}

func TestSyncSkipsUnchangedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.product(t, "lamp")
	cart := f.guestCart(t)
	item := f.item(t, cart.ID, product.ID, 1, 100)

	f.priceRow(t, product.ID, 1, 100)

	assert.NoError(t, f.sync.SyncProduct(ctx, f.settings, product))

	updated, err := f.items.Find(ctx, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, 100.0, updated.Price)

	// 没有改动的购物车不触发总额重算
	refreshed, err := f.carts.Find(ctx, cart.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, refreshed.SubTotal)
}

func TestSyncUsesCustomerGroupPricing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.product(t, "lamp")

	customer := &model.Customer{Email: "a@b.c", Name: "A", CustomerGroupID: 2}
	assert.NoError(t, f.db.Create(customer).Error)

	cart := &model.Cart{Token: "customer-cart", CustomerID: &customer.ID, IsActive: true}
	assert.NoError(t, f.db.Create(cart).Error)
	item := f.item(t, cart.ID, product.ID, 1, 100)

	f.priceRow(t, product.ID, 1, 90)
	f.priceRow(t, product.ID, 2, 85)

	assert.NoError(t, f.sync.SyncProduct(ctx, f.settings, product))

	updated, err := f.items.Find(ctx, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, 85.0, updated.Price)
}

func TestSyncParentLineFollowsChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parentProduct := f.product(t, "tshirt")
	childProduct := f.product(t, "tshirt-variant-1")

	cart := f.guestCart(t)
	parentItem := f.item(t, cart.ID, parentProduct.ID, 2, 50)
	childItem := &model.CartItem{
		CartID:    cart.ID,
		ParentID:  &parentItem.ID,
		ProductID: childProduct.ID,
		Quantity:  2,
		Price:     50,
		BasePrice: 50,
	}
	assert.NoError(t, f.db.Create(childItem).Error)

	// 变体降价：父行金额必须跟着子行走，而不是查父商品自己的索引
	f.priceRow(t, childProduct.ID, 1, 45)

	assert.NoError(t, f.sync.SyncProduct(ctx, f.settings, childProduct))

	updatedChild, err := f.items.Find(ctx, childItem.ID)
	assert.NoError(t, err)
	assert.Equal(t, 45.0, updatedChild.Price)

	updatedParent, err := f.items.Find(ctx, parentItem.ID)
	assert.NoError(t, err)
	assert.Equal(t, 45.0, updatedParent.Price)
	assert.Equal(t, 90.0, updatedParent.Total)

	// 总额只计父行，子行金额已折入
	refreshed, err := f.carts.Find(ctx, cart.ID)
	assert.NoError(t, err)
	assert.Equal(t, 90.0, refreshed.GrandTotal)
}

func TestSyncContinuesAfterItemFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.product(t, "lamp")

	// 第一条行项目的购物车指向不存在的顾客，取分组价格时会失败
	missingCustomer := int64(99999)
	brokenCart := &model.Cart{Token: "broken-cart", CustomerID: &missingCustomer, IsActive: true}
	assert.NoError(t, f.db.Create(brokenCart).Error)
	broken := &model.CartItem{CartID: brokenCart.ID, ProductID: product.ID, Quantity: 1, Price: 100}
	assert.NoError(t, f.db.Create(broken).Error)

	cart := &model.Cart{Token: "ok-cart", IsActive: true}
	assert.NoError(t, f.db.Create(cart).Error)
	healthy := f.item(t, cart.ID, product.ID, 1, 100)

	f.priceRow(t, product.ID, 1, 90)

	err := f.sync.SyncProduct(ctx, f.settings, product)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "1 item failures")
	assert.Contains(t, err.Error(), "0 total recompute failures")

	// 失败不拖累其余行项目
	updated, findErr := f.items.Find(ctx, healthy.ID)
	assert.NoError(t, findErr)
	assert.Equal(t, 90.0, updated.Price)
}

func TestRecomputeTotalsIgnoresChildRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart := f.guestCart(t)
	parent := f.item(t, cart.ID, 1, 1, 60)
	child := &model.CartItem{CartID: cart.ID, ParentID: &parent.ID, ProductID: 2, Quantity: 1, Total: 60}
	assert.NoError(t, f.db.Create(child).Error)

	assert.NoError(t, f.sync.RecomputeTotals(ctx, cart.ID))

	refreshed, err := f.carts.Find(ctx, cart.ID)
	assert.NoError(t, err)
	assert.Equal(t, 60.0, refreshed.SubTotal)
	assert.Equal(t, 60.0, refreshed.GrandTotal)
}
