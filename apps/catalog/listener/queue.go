package listener

import (
	"context"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
	"go-commerce/pkg/eventbus"
)

// Queue 延迟索引观察者：变更投递到消息队列，由后台 worker 执行真正的重建
// 删除例外：商品行马上就没了，搜索文档的摘除必须同步做
type Queue struct {
	NopObserver

	bus   *eventbus.Bus
	inner *Product
}

func NewQueue(bus *eventbus.Bus, inner *Product) *Queue {
	return &Queue{bus: bus, inner: inner}
}

func (q *Queue) AfterCreate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	return q.bus.Publish(ctx, eventbus.ProductMutation{ProductId: product.ID, Kind: "created"})
}

func (q *Queue) AfterUpdate(ctx context.Context, settings *core.Settings, product *model.Product) error {
	return q.bus.Publish(ctx, eventbus.ProductMutation{ProductId: product.ID, Kind: "updated"})
}

func (q *Queue) BeforeDelete(ctx context.Context, settings *core.Settings, productId int64) error {
	return q.inner.BeforeDelete(ctx, settings, productId)
}
