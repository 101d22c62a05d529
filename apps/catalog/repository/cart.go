package repository

import (
	"context"
	"errors"

	"go-commerce/apps/catalog/model"

	"gorm.io/gorm"
)

// CartRepository 购物车仓储
type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Find(ctx context.Context, id int64) (*model.Cart, error) {
	var cart model.Cart
	if err := r.db.WithContext(ctx).First(&cart, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cart, nil
}

func (r *CartRepository) FindByToken(ctx context.Context, token string) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).Where("token = ? AND is_active = ?", token, true).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cart, nil
}

// FindActiveByCustomer 顾客当前的活动购物车
func (r *CartRepository) FindActiveByCustomer(ctx context.Context, customerId int64) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND is_active = ?", customerId, true).
		Order("id DESC").
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cart, nil
}

func (r *CartRepository) Create(ctx context.Context, cart *model.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *CartRepository) Save(ctx context.Context, cart *model.Cart) error {
	return r.db.WithContext(ctx).Save(cart).Error
}

// CartItemRepository 购物车行项目仓储
type CartItemRepository struct {
	db *gorm.DB
}

func NewCartItemRepository(db *gorm.DB) *CartItemRepository {
	return &CartItemRepository{db: db}
}

func (r *CartItemRepository) Find(ctx context.Context, id int64) (*model.CartItem, error) {
	var item model.CartItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *CartItemRepository) Create(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByProduct 所有仍在活动购物车里的该商品行项目
func (r *CartItemRepository) FindByProduct(ctx context.Context, productId int64) ([]model.CartItem, error) {
	var items []model.CartItem
	err := r.db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.product_id = ? AND carts.is_active = ?", productId, true).
		Order("cart_items.id").
		Find(&items).Error
	return items, err
}

func (r *CartItemRepository) ForCart(ctx context.Context, cartId int64) ([]model.CartItem, error) {
	var items []model.CartItem
	err := r.db.WithContext(ctx).Where("cart_id = ?", cartId).Order("id").Find(&items).Error
	return items, err
}

// UpdatePrices 覆盖行项目的缓存价格字段
func (r *CartItemRepository) UpdatePrices(ctx context.Context, itemId int64, price, basePrice, total, baseTotal float64) error {
	result := r.db.WithContext(ctx).Model(&model.CartItem{}).Where("id = ?", itemId).Updates(map[string]interface{}{
		"price":      price,
		"base_price": basePrice,
		"total":      total,
		"base_total": baseTotal,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SumTotals 汇总购物车金额
// 子行的价格已折入父行，求和只看无父行的项目，避免重复计入
func (r *CartItemRepository) SumTotals(ctx context.Context, cartId int64) (total float64, baseTotal float64, err error) {
	row := r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("cart_id = ? AND parent_id IS NULL", cartId).
		Select("COALESCE(SUM(total), 0), COALESCE(SUM(base_total), 0)").
		Row()
	err = row.Scan(&total, &baseTotal)
	return total, baseTotal, err
}

// CustomerRepository 顾客仓储
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Find(ctx context.Context, id int64) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}
