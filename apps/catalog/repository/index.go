package repository

import (
	"context"
	"errors"

	"go-commerce/apps/catalog/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceIndexRepository 价格索引仓储，行只能整体覆盖
type PriceIndexRepository struct {
	db *gorm.DB
}

func NewPriceIndexRepository(db *gorm.DB) *PriceIndexRepository {
	return &PriceIndexRepository{db: db}
}

// Upsert 按 (product_id, customer_group_id) 覆盖写
func (r *PriceIndexRepository) Upsert(ctx context.Context, row *model.ProductPriceIndex) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "customer_group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_price", "max_price", "regular_price", "final_price", "updated_at",
		}),
	}).Create(row).Error
}

func (r *PriceIndexRepository) Row(ctx context.Context, productId, customerGroupId int64) (*model.ProductPriceIndex, error) {
	var row model.ProductPriceIndex
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND customer_group_id = ?", productId, customerGroupId).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *PriceIndexRepository) RowsForProduct(ctx context.Context, productId int64) ([]model.ProductPriceIndex, error) {
	var rows []model.ProductPriceIndex
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("customer_group_id").
		Find(&rows).Error
	return rows, err
}

// InventoryIndexRepository 库存索引仓储
type InventoryIndexRepository struct {
	db *gorm.DB
}

func NewInventoryIndexRepository(db *gorm.DB) *InventoryIndexRepository {
	return &InventoryIndexRepository{db: db}
}

func (r *InventoryIndexRepository) Upsert(ctx context.Context, row *model.ProductInventoryIndex) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"qty", "updated_at"}),
	}).Create(row).Error
}

func (r *InventoryIndexRepository) Row(ctx context.Context, productId int64) (*model.ProductInventoryIndex, error) {
	var row model.ProductInventoryIndex
	err := r.db.WithContext(ctx).Where("product_id = ?", productId).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// CustomerGroupRepository 顾客分组仓储
type CustomerGroupRepository struct {
	db *gorm.DB
}

func NewCustomerGroupRepository(db *gorm.DB) *CustomerGroupRepository {
	return &CustomerGroupRepository{db: db}
}

func (r *CustomerGroupRepository) All(ctx context.Context) ([]model.CustomerGroup, error) {
	var groups []model.CustomerGroup
	err := r.db.WithContext(ctx).Order("id").Find(&groups).Error
	return groups, err
}
