package repository

import (
	"context"
	"errors"

	"go-commerce/apps/catalog/model"

	"gorm.io/gorm"
)

// ProductRepository 商品仓储
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) DB() *gorm.DB {
	return r.db
}

func (r *ProductRepository) Find(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// TakenSKUs 返回给定 SKU 中已被其他商品占用的部分
// 变体生成前的唯一性预检查依赖它，excludeIds 用来排除正在更新的变体自身
func (r *ProductRepository) TakenSKUs(ctx context.Context, skus []string, excludeIds []int64) ([]string, error) {
	if len(skus) == 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).Model(&model.Product{}).Where("sku IN ?", skus)
	if len(excludeIds) > 0 {
		query = query.Where("id NOT IN ?", excludeIds)
	}

	var taken []string
	if err := query.Pluck("sku", &taken).Error; err != nil {
		return nil, err
	}
	return taken, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProductRepository) Save(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// Delete 删除商品及其从属记录
// 变体级联删除；价格/库存索引行随商品一起清掉；购物车行同步移除
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	variants, err := r.Variants(ctx, id)
	if err != nil {
		return err
	}
	for _, variant := range variants {
		if err := r.Delete(ctx, variant.ID); err != nil {
			return err
		}
	}

	db := r.db.WithContext(ctx)
	cleanups := []interface{}{
		&model.ProductAttributeValue{},
		&model.ProductSuperAttribute{},
		&model.ProductInventory{},
		&model.ProductPriceIndex{},
		&model.ProductInventoryIndex{},
		&model.ProductFlat{},
		&model.CartItem{},
	}
	for _, m := range cleanups {
		if err := db.Where("product_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}

	// 作为捆绑/组合成员的关联也一并解除
	if err := db.Where("product_id = ?", id).Delete(&model.ProductBundleOptionProduct{}).Error; err != nil {
		return err
	}
	if err := db.Where("associated_product_id = ?", id).Delete(&model.ProductGroupedProduct{}).Error; err != nil {
		return err
	}
	if err := db.Where("product_id = ?", id).Delete(&model.ProductGroupedProduct{}).Error; err != nil {
		return err
	}
	if err := db.Where("product_id = ?", id).Delete(&model.ProductBundleOption{}).Error; err != nil {
		return err
	}

	result := db.Delete(&model.Product{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Variants 可配置商品的全部变体
func (r *ProductRepository) Variants(ctx context.Context, productId int64) ([]model.Product, error) {
	var variants []model.Product
	err := r.db.WithContext(ctx).Where("parent_id = ?", productId).Order("id").Find(&variants).Error
	return variants, err
}

// SuperAttributes 按挂载顺序返回超属性 (带选项)
func (r *ProductRepository) SuperAttributes(ctx context.Context, productId int64) ([]model.Attribute, error) {
	var links []model.ProductSuperAttribute
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("position, id").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	attributes := make([]model.Attribute, 0, len(links))
	for _, link := range links {
		var attribute model.Attribute
		err := r.db.WithContext(ctx).Preload("Options").First(&attribute, link.AttributeID).Error
		if err != nil {
			return nil, err
		}
		attributes = append(attributes, attribute)
	}
	return attributes, nil
}

// AttachSuperAttribute 挂载超属性，position 按调用顺序递增
func (r *ProductRepository) AttachSuperAttribute(ctx context.Context, productId, attributeId int64, position int) error {
	return r.db.WithContext(ctx).Create(&model.ProductSuperAttribute{
		ProductID:   productId,
		AttributeID: attributeId,
		Position:    position,
	}).Error
}

// BundleParents 把该商品作为捆绑候选的所有父捆绑商品
func (r *ProductRepository) BundleParents(ctx context.Context, productId int64) ([]model.Product, error) {
	var parents []model.Product
	err := r.db.WithContext(ctx).
		Joins("JOIN product_bundle_options ON product_bundle_options.product_id = products.id").
		Joins("JOIN product_bundle_option_products ON product_bundle_option_products.bundle_option_id = product_bundle_options.id").
		Where("product_bundle_option_products.product_id = ?", productId).
		Distinct("products.*").
		Find(&parents).Error
	return parents, err
}

// GroupedParents 把该商品作为成员的所有组合商品
func (r *ProductRepository) GroupedParents(ctx context.Context, productId int64) ([]model.Product, error) {
	var parents []model.Product
	err := r.db.WithContext(ctx).
		Joins("JOIN product_grouped_products ON product_grouped_products.product_id = products.id").
		Where("product_grouped_products.associated_product_id = ?", productId).
		Distinct("products.*").
		Find(&parents).Error
	return parents, err
}

// GroupedChildren 组合商品的成员
func (r *ProductRepository) GroupedChildren(ctx context.Context, productId int64) ([]model.Product, error) {
	var children []model.Product
	err := r.db.WithContext(ctx).
		Joins("JOIN product_grouped_products ON product_grouped_products.associated_product_id = products.id").
		Where("product_grouped_products.product_id = ?", productId).
		Order("products.id").
		Find(&children).Error
	return children, err
}

// BundleChildren 捆绑商品全部选项下的候选商品
func (r *ProductRepository) BundleChildren(ctx context.Context, productId int64) ([]model.Product, error) {
	var children []model.Product
	err := r.db.WithContext(ctx).
		Joins("JOIN product_bundle_option_products ON product_bundle_option_products.product_id = products.id").
		Joins("JOIN product_bundle_options ON product_bundle_options.id = product_bundle_option_products.bundle_option_id").
		Where("product_bundle_options.product_id = ?", productId).
		Distinct("products.*").
		Find(&children).Error
	return children, err
}

// InventoryQty 各库存源数量求和
func (r *ProductRepository) InventoryQty(ctx context.Context, productId int64) (int, error) {
	var qty int
	row := r.db.WithContext(ctx).Model(&model.ProductInventory{}).
		Where("product_id = ?", productId).
		Select("COALESCE(SUM(qty), 0)").
		Row()
	if err := row.Scan(&qty); err != nil {
		return 0, err
	}
	return qty, nil
}

// SaveInventories 覆盖写各库存源的数量
func (r *ProductRepository) SaveInventories(ctx context.Context, productId int64, inventories map[int64]int) error {
	db := r.db.WithContext(ctx)
	for sourceId, qty := range inventories {
		var inventory model.ProductInventory
		err := db.Where("product_id = ? AND inventory_source_id = ?", productId, sourceId).
			First(&inventory).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = db.Create(&model.ProductInventory{
				ProductID:         productId,
				InventorySourceID: sourceId,
				Qty:               qty,
			}).Error
		case err == nil:
			err = db.Model(&inventory).Update("qty", qty).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}
