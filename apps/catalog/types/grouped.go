package types

import (
	"context"
	"fmt"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
)

// Grouped 组合商品：成员各自独立加购，不生成父子行
type Grouped struct {
	base
}

func (g *Grouped) Kind() string      { return model.TypeGrouped }
func (g *Grouped) IsComposite() bool { return true }
func (g *Grouped) HasVariants() bool { return false }

func (g *Grouped) ChildrenIds(ctx context.Context) ([]int64, error) {
	children, err := g.registry.products.GroupedChildren(ctx, g.product.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(children))
	for i, child := range children {
		ids[i] = child.ID
	}
	return ids, nil
}

func (g *Grouped) PriceRange(ctx context.Context) (PriceRange, error) {
	children, err := g.registry.products.GroupedChildren(ctx, g.product.ID)
	if err != nil {
		return PriceRange{}, err
	}
	return g.childrenPriceRange(ctx, children)
}

func (g *Grouped) TotalQuantity(ctx context.Context) (int, error) {
	children, err := g.registry.products.GroupedChildren(ctx, g.product.ID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, child := range children {
		qty, err := g.registry.products.InventoryQty(ctx, child.ID)
		if err != nil {
			return 0, err
		}
		total += qty
	}
	return total, nil
}

// PrepareForCart 每个成员展开为一条独立的单品行
func (g *Grouped) PrepareForCart(ctx context.Context, settings *core.Settings, req CartRequest) ([]model.CartItem, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	children, err := g.registry.products.GroupedChildren(ctx, g.product.ID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("grouped product %s has no members", g.product.SKU)
	}

	items := make([]model.CartItem, 0, len(children))
	for i := range children {
		childType, err := g.registry.For(&children[i])
		if err != nil {
			return nil, err
		}

		childItems, err := childType.PrepareForCart(ctx, settings, CartRequest{
			ProductId: children[i].ID,
			Quantity:  req.Quantity,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, childItems...)
	}
	return items, nil
}
