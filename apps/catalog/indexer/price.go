package indexer

import (
	"context"

	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"
)

// PriceIndexer 价格索引器
// 索引行是当前属性状态的纯函数：同样的输入重算两次，行内容完全一致
type PriceIndexer struct {
	registry *types.Registry
	rows     *repository.PriceIndexRepository
	groups   *repository.CustomerGroupRepository
}

func NewPriceIndexer(
	registry *types.Registry,
	rows *repository.PriceIndexRepository,
	groups *repository.CustomerGroupRepository,
) *PriceIndexer {
	return &PriceIndexer{registry: registry, rows: rows, groups: groups}
}

// ReindexRows 重算一批商品的价格索引，每 (商品, 顾客分组) 覆盖一行
func (i *PriceIndexer) ReindexRows(ctx context.Context, products []model.Product) error {
	groups, err := i.groups.All(ctx)
	if err != nil {
		return err
	}

	for idx := range products {
		instance, err := i.registry.For(&products[idx])
		if err != nil {
			return err
		}

		priceRange, err := instance.PriceRange(ctx)
		if err != nil {
			return err
		}

		for _, group := range groups {
			err := i.rows.Upsert(ctx, &model.ProductPriceIndex{
				ProductID:       products[idx].ID,
				CustomerGroupID: group.ID,
				MinPrice:        priceRange.Min,
				MaxPrice:        priceRange.Max,
				RegularPrice:    priceRange.Regular,
				FinalPrice:      priceRange.Final,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
