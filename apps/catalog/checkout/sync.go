package checkout

import (
	"context"
	"fmt"
	"log"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
)

// Synchronizer 购物车价格同步器
// 重建价格索引后，把新价格写回仍在活动购物车里的行项目，并重算购物车总额
type Synchronizer struct {
	carts     *repository.CartRepository
	items     *repository.CartItemRepository
	customers *repository.CustomerRepository
	prices    *repository.PriceIndexRepository
}

func NewSynchronizer(
	carts *repository.CartRepository,
	items *repository.CartItemRepository,
	customers *repository.CustomerRepository,
	prices *repository.PriceIndexRepository,
) *Synchronizer {
	return &Synchronizer{carts: carts, items: items, customers: customers, prices: prices}
}

// SyncProduct 修正引用该商品的所有行项目
// 单条失败不中断其余条目，最后汇总报告；总额重算每个受影响的购物车只做一次
func (s *Synchronizer) SyncProduct(ctx context.Context, settings *core.Settings, product *model.Product) error {
	items, err := s.items.FindByProduct(ctx, product.ID)
	if err != nil {
		return err
	}

	affected := make(map[int64]bool)
	itemFailures := 0
	totalFailures := 0

	for idx := range items {
		changed, err := s.syncItem(ctx, settings, product, &items[idx])
		if err != nil {
			log.Printf("Cart item %d price sync failed: %v", items[idx].ID, err)
			itemFailures++
			continue
		}
		if changed {
			affected[items[idx].CartID] = true
		}
	}

	for cartId := range affected {
		if err := s.RecomputeTotals(ctx, cartId); err != nil {
			log.Printf("Cart %d total recompute failed: %v", cartId, err)
			totalFailures++
		}
	}

	if itemFailures > 0 || totalFailures > 0 {
		return fmt.Errorf("cart price sync finished with %d item failures and %d total recompute failures (%d items)",
			itemFailures, totalFailures, len(items))
	}
	return nil
}

// syncItem 对照价格索引修正一条行项目，返回是否有改动
func (s *Synchronizer) syncItem(ctx context.Context, settings *core.Settings, product *model.Product, item *model.CartItem) (bool, error) {
	cart, err := s.carts.Find(ctx, item.CartID)
	if err != nil {
		return false, err
	}

	// 已登录顾客按其分组取价，游客走默认分组
	groupId := settings.GuestGroupId
	if cart.CustomerID != nil {
		customer, err := s.customers.Find(ctx, *cart.CustomerID)
		if err != nil {
			return false, err
		}
		groupId = customer.CustomerGroupID
	}

	row, err := s.prices.Row(ctx, product.ID, groupId)
	if err != nil {
		return false, err
	}

	if row.MinPrice == item.Price {
		return false, nil
	}

	price := row.MinPrice
	qty := float64(item.Quantity)
	err = s.items.UpdatePrices(ctx, item.ID,
		price, price,
		core.Round(price*qty), core.Round(price*qty))
	if err != nil {
		return false, err
	}

	// 组合行的定价由选中的子商品驱动：父行价格跟着子行改，而不是查父商品自己的索引
	if item.ParentID != nil {
		parent, err := s.items.Find(ctx, *item.ParentID)
		if err != nil {
			return false, err
		}

		parentQty := float64(parent.Quantity)
		err = s.items.UpdatePrices(ctx, parent.ID,
			price, price,
			core.Round(price*parentQty), core.Round(price*parentQty))
		if err != nil {
			return false, err
		}
	}

	return true, nil
}

// RecomputeTotals 按行项目汇总覆盖购物车总额 (子行金额已折入父行，不重复计)
func (s *Synchronizer) RecomputeTotals(ctx context.Context, cartId int64) error {
	total, baseTotal, err := s.items.SumTotals(ctx, cartId)
	if err != nil {
		return err
	}

	cart, err := s.carts.Find(ctx, cartId)
	if err != nil {
		return err
	}

	cart.SubTotal = total
	cart.BaseSubTotal = baseTotal
	cart.GrandTotal = total
	cart.BaseGrandTotal = baseTotal
	return s.carts.Save(ctx, cart)
}
