package listener

import (
	"context"
	"errors"
	"log"

	"go-commerce/apps/catalog/checkout"
	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/indexer"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
)

// ProductObserver 商品变更观察者
// 调用方保证顺序：before → 落库 → after，每次变更各触发一次
type ProductObserver interface {
	BeforeCreate(ctx context.Context, settings *core.Settings, product *model.Product) error
	AfterCreate(ctx context.Context, settings *core.Settings, product *model.Product) error
	BeforeUpdate(ctx context.Context, settings *core.Settings, product *model.Product) error
	AfterUpdate(ctx context.Context, settings *core.Settings, product *model.Product) error
	BeforeDelete(ctx context.Context, settings *core.Settings, productId int64) error
	AfterDelete(ctx context.Context, settings *core.Settings, productId int64) error
}

// NopObserver 全空实现，观察者嵌入后按需覆写
type NopObserver struct{}

func (NopObserver) BeforeCreate(context.Context, *core.Settings, *model.Product) error { return nil }
func (NopObserver) AfterCreate(context.Context, *core.Settings, *model.Product) error  { return nil }
func (NopObserver) BeforeUpdate(context.Context, *core.Settings, *model.Product) error { return nil }
func (NopObserver) AfterUpdate(context.Context, *core.Settings, *model.Product) error  { return nil }
func (NopObserver) BeforeDelete(context.Context, *core.Settings, int64) error          { return nil }
func (NopObserver) AfterDelete(context.Context, *core.Settings, int64) error           { return nil }

// Dispatcher 有类型的观察者列表，替代字符串键的全局事件表
type Dispatcher struct {
	observers []ProductObserver
}

func NewDispatcher(observers ...ProductObserver) *Dispatcher {
	return &Dispatcher{observers: observers}
}

func (d *Dispatcher) Register(observer ProductObserver) {
	d.observers = append(d.observers, observer)
}

func (d *Dispatcher) BeforeCreate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	for _, o := range d.observers {
		if err := o.BeforeCreate(ctx, settings, product); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) AfterCreate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	for _, o := range d.observers {
		if err := o.AfterCreate(ctx, settings, product); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) BeforeUpdate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	for _, o := range d.observers {
		if err := o.BeforeUpdate(ctx, settings, product); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) AfterUpdate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	for _, o := range d.observers {
		if err := o.AfterUpdate(ctx, settings, product); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) BeforeDelete(ctx context.Context, settings *core.Settings, productId int64) error {
	for _, o := range d.observers {
		if err := o.BeforeDelete(ctx, settings, productId); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) AfterDelete(ctx context.Context, settings *core.Settings, productId int64) error {
	for _, o := range d.observers {
		if err := o.AfterDelete(ctx, settings, productId); err != nil {
			return err
		}
	}
	return nil
}

// Product 索引观察者：商品变更后刷新各索引并同步购物车
type Product struct {
	NopObserver

	products  *repository.ProductRepository
	flat      *indexer.FlatIndexer
	inventory *indexer.InventoryIndexer
	price     *indexer.PriceIndexer
	search    *indexer.ElasticIndexer // 搜索模式非 elastic 时为 nil
	carts     *checkout.Synchronizer
}

func NewProduct(
	products *repository.ProductRepository,
	flat *indexer.FlatIndexer,
	inventory *indexer.InventoryIndexer,
	price *indexer.PriceIndexer,
	search *indexer.ElasticIndexer,
	carts *checkout.Synchronizer,
) *Product {
	return &Product{
		products:  products,
		flat:      flat,
		inventory: inventory,
		price:     price,
		search:    search,
		carts:     carts,
	}
}

// AfterCreate 新建商品只刷新展示平表
func (l *Product) AfterCreate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	return l.flat.Refresh(ctx, settings, product)
}

// AfterUpdate 更新商品：求关联闭包 → 重算库存/价格索引 → 推搜索 → 同步购物车
func (l *Product) AfterUpdate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	related, err := l.relatedProducts(ctx, product)
	if err != nil {
		return err
	}

	if err := l.flat.Refresh(ctx, settings, product); err != nil {
		return err
	}

	if err := l.inventory.ReindexRows(ctx, related); err != nil {
		return err
	}

	if err := l.price.ReindexRows(ctx, related); err != nil {
		return err
	}

	if settings.ElasticEnabled() && l.search != nil {
		if err := l.search.ReindexRows(ctx, related); err != nil {
			return err
		}
	}

	return l.carts.SyncProduct(ctx, settings, product)
}

// BeforeDelete 只摘除搜索文档，索引行随商品级联删除
func (l *Product) BeforeDelete(ctx context.Context, settings *core.Settings, productId int64) error {
	if err := l.flat.Forget(ctx, productId); err != nil {
		log.Printf("Flat cache cleanup failed for product %d: %v", productId, err)
	}

	if !settings.ElasticEnabled() || l.search == nil {
		return nil
	}

	if _, err := l.products.Find(ctx, productId); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	return l.search.DeleteRow(ctx, productId)
}

// relatedProducts 计算变更的关联闭包
// 单品：自己 + 变体父商品 + 引用它的捆绑/组合父商品
// 可配置商品：全部变体先各自重算，再算父商品的展示区间
func (l *Product) relatedProducts(ctx context.Context, product *model.Product) ([]model.Product, error) {
	switch product.Type {
	case model.TypeConfigurable:
		variants, err := l.products.Variants(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		return append(variants, *product), nil

	case model.TypeSimple:
		related := []model.Product{*product}

		if product.ParentID != nil {
			parent, err := l.products.Find(ctx, *product.ParentID)
			if err != nil {
				return nil, err
			}
			related = append(related, *parent)
		}

		bundleParents, err := l.products.BundleParents(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		related = append(related, bundleParents...)

		groupedParents, err := l.products.GroupedParents(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		related = append(related, groupedParents...)

		return related, nil

	default:
		return []model.Product{*product}, nil
	}
}
