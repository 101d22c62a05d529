package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const flatCacheTTL = 24 * time.Hour

// FlatIndexer 展示平表索引器
// 每 (商品, 渠道, 语言) 落一行平表，并把整组快照写进 Redis 供店面读取
type FlatIndexer struct {
	db         *gorm.DB
	registry   *types.Registry
	attributes *repository.AttributeRepository
	values     *repository.AttributeValueRepository
	cache      *redis.Client // 可为 nil (如测试环境)
}

func NewFlatIndexer(
	db *gorm.DB,
	registry *types.Registry,
	attributes *repository.AttributeRepository,
	values *repository.AttributeValueRepository,
	cache *redis.Client,
) *FlatIndexer {
	return &FlatIndexer{db: db, registry: registry, attributes: attributes, values: values, cache: cache}
}

// Refresh 重建单个商品的平表行
func (i *FlatIndexer) Refresh(ctx context.Context, settings *core.Settings, product *model.Product) error {
	instance, err := i.registry.For(product)
	if err != nil {
		return err
	}

	priceRange, err := instance.PriceRange(ctx)
	if err != nil {
		return err
	}

	nameAttribute, err := i.attributes.FindByCode(ctx, "name")
	if err != nil {
		return err
	}

	status, err := i.status(ctx, product.ID)
	if err != nil {
		return err
	}

	rows := make([]model.ProductFlat, 0, len(settings.Channels)*len(settings.Locales))
	for _, channel := range settings.Channels {
		for _, locale := range settings.Locales {
			name, err := i.values.ScopedText(ctx, product.ID, nameAttribute.ID, channel.Code, locale.Code)
			if err != nil {
				return err
			}

			row := model.ProductFlat{
				ProductID: product.ID,
				Channel:   channel.Code,
				Locale:    locale.Code,
				SKU:       product.SKU,
				Type:      product.Type,
				Name:      name,
				Price:     priceRange.Final,
				Status:    status,
			}
			rows = append(rows, row)

			err = i.db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "product_id"}, {Name: "channel"}, {Name: "locale"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"sku", "type", "name", "price", "status", "updated_at",
				}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
	}

	return i.cacheSnapshot(ctx, product.ID, rows)
}

// Forget 商品删除后清掉平表快照缓存
func (i *FlatIndexer) Forget(ctx context.Context, productId int64) error {
	if i.cache == nil {
		return nil
	}
	return i.cache.Del(ctx, flatCacheKey(productId)).Err()
}

func (i *FlatIndexer) status(ctx context.Context, productId int64) (int, error) {
	attribute, err := i.attributes.FindByCode(ctx, "status")
	if err != nil {
		if err == repository.ErrNotFound {
			return 1, nil
		}
		return 0, err
	}

	value, err := i.values.FindScoped(ctx, productId, attribute.ID, "", "")
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 1, nil
	}
	if value.BooleanValue {
		return 1, nil
	}
	return int(value.IntegerValue), nil
}

func (i *FlatIndexer) cacheSnapshot(ctx context.Context, productId int64, rows []model.ProductFlat) error {
	if i.cache == nil {
		return nil
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return i.cache.Set(ctx, flatCacheKey(productId), body, flatCacheTTL).Err()
}

func flatCacheKey(productId int64) string {
	return fmt.Sprintf("catalog:flat:%d", productId)
}
