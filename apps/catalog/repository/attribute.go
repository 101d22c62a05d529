package repository

import (
	"context"
	"errors"

	"go-commerce/apps/catalog/model"

	"gorm.io/gorm"
)

// AttributeRepository 属性定义仓储
type AttributeRepository struct {
	db *gorm.DB
}

func NewAttributeRepository(db *gorm.DB) *AttributeRepository {
	return &AttributeRepository{db: db}
}

func (r *AttributeRepository) Find(ctx context.Context, id int64) (*model.Attribute, error) {
	var attribute model.Attribute
	err := r.db.WithContext(ctx).Preload("Options").First(&attribute, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &attribute, nil
}

func (r *AttributeRepository) FindByCode(ctx context.Context, code string) (*model.Attribute, error) {
	var attribute model.Attribute
	err := r.db.WithContext(ctx).Preload("Options").Where("code = ?", code).First(&attribute).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &attribute, nil
}

// AttributeValueRepository 商品属性值仓储
type AttributeValueRepository struct {
	db *gorm.DB
}

func NewAttributeValueRepository(db *gorm.DB) *AttributeValueRepository {
	return &AttributeValueRepository{db: db}
}

// Insert 批量写入属性值 (变体生成一次写一批)
func (r *AttributeValueRepository) Insert(ctx context.Context, values []model.ProductAttributeValue) error {
	if len(values) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&values).Error
}

// FindScoped 按作用域定位唯一的属性值行，找不到返回 nil
func (r *AttributeValueRepository) FindScoped(ctx context.Context, productId, attributeId int64, channel, locale string) (*model.ProductAttributeValue, error) {
	var value model.ProductAttributeValue
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND attribute_id = ? AND channel = ? AND locale = ?",
			productId, attributeId, channel, locale).
		First(&value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (r *AttributeValueRepository) Save(ctx context.Context, value *model.ProductAttributeValue) error {
	return r.db.WithContext(ctx).Save(value).Error
}

// DecimalValue 读取商品某个全局数值属性 (如 price)，没有值时返回 ok=false
func (r *AttributeValueRepository) DecimalValue(ctx context.Context, productId, attributeId int64) (float64, bool, error) {
	value, err := r.FindScoped(ctx, productId, attributeId, "", "")
	if err != nil {
		return 0, false, err
	}
	if value == nil {
		return 0, false, nil
	}
	return value.DecimalValue, true, nil
}

// ScopedText 按渠道/语言读取文本属性，带全局回退
func (r *AttributeValueRepository) ScopedText(ctx context.Context, productId, attributeId int64, channel, locale string) (string, error) {
	for _, scope := range [][2]string{{channel, locale}, {channel, ""}, {"", locale}, {"", ""}} {
		value, err := r.FindScoped(ctx, productId, attributeId, scope[0], scope[1])
		if err != nil {
			return "", err
		}
		if value != nil {
			return value.TextValue, nil
		}
	}
	return "", nil
}
