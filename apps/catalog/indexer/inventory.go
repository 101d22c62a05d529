package indexer

import (
	"context"

	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"
)

// InventoryIndexer 库存索引器，把各库存源/子商品的数量汇总成一行缓存
type InventoryIndexer struct {
	registry *types.Registry
	rows     *repository.InventoryIndexRepository
}

func NewInventoryIndexer(registry *types.Registry, rows *repository.InventoryIndexRepository) *InventoryIndexer {
	return &InventoryIndexer{registry: registry, rows: rows}
}

func (i *InventoryIndexer) ReindexRows(ctx context.Context, products []model.Product) error {
	for idx := range products {
		instance, err := i.registry.For(&products[idx])
		if err != nil {
			return err
		}

		qty, err := instance.TotalQuantity(ctx)
		if err != nil {
			return err
		}

		err = i.rows.Upsert(ctx, &model.ProductInventoryIndex{
			ProductID: products[idx].ID,
			Qty:       qty,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
