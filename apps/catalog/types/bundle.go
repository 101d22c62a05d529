package types

import (
	"context"
	"fmt"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
)

// Bundle 捆绑商品：每个选项分组下有若干候选单品
type Bundle struct {
	base
}

func (b *Bundle) Kind() string      { return model.TypeBundle }
func (b *Bundle) IsComposite() bool { return true }
func (b *Bundle) HasVariants() bool { return false }

func (b *Bundle) ChildrenIds(ctx context.Context) ([]int64, error) {
	children, err := b.registry.products.BundleChildren(ctx, b.product.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(children))
	for i, child := range children {
		ids[i] = child.ID
	}
	return ids, nil
}

func (b *Bundle) PriceRange(ctx context.Context) (PriceRange, error) {
	children, err := b.registry.products.BundleChildren(ctx, b.product.ID)
	if err != nil {
		return PriceRange{}, err
	}
	return b.childrenPriceRange(ctx, children)
}

func (b *Bundle) TotalQuantity(ctx context.Context) (int, error) {
	children, err := b.registry.products.BundleChildren(ctx, b.product.ID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, child := range children {
		qty, err := b.registry.products.InventoryQty(ctx, child.ID)
		if err != nil {
			return 0, err
		}
		total += qty
	}
	return total, nil
}

// PrepareForCart 父行金额 = 选中候选商品的最终价之和，每个选中项生成一条子行
func (b *Bundle) PrepareForCart(ctx context.Context, settings *core.Settings, req CartRequest) ([]model.CartItem, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	if len(req.BundleSelections) == 0 {
		return nil, ErrMissingOptions
	}

	name, err := b.name(ctx, "", "")
	if err != nil {
		return nil, err
	}

	var basePrice float64
	children := make([]model.CartItem, 0, len(req.BundleSelections))

	for _, childId := range req.BundleSelections {
		child, err := b.registry.products.Find(ctx, childId)
		if err != nil {
			return nil, err
		}

		childType, err := b.registry.For(child)
		if err != nil {
			return nil, err
		}

		qty, err := childType.TotalQuantity(ctx)
		if err != nil {
			return nil, err
		}
		if qty < req.Quantity {
			return nil, fmt.Errorf("insufficient quantity for sku %s", child.SKU)
		}

		childRange, err := childType.PriceRange(ctx)
		if err != nil {
			return nil, err
		}
		basePrice += childRange.Final

		childName, err := (&base{product: child, registry: b.registry}).name(ctx, "", "")
		if err != nil {
			return nil, err
		}

		children = append(children, model.CartItem{
			ProductID: child.ID,
			SKU:       child.SKU,
			Name:      childName,
			Type:      child.Type,
			Quantity:  req.Quantity,
		})
	}

	converted := settings.ConvertPrice(basePrice)
	parent := model.CartItem{
		ProductID: b.product.ID,
		SKU:       b.product.SKU,
		Name:      name,
		Type:      b.product.Type,
		Quantity:  req.Quantity,
		Price:     converted,
		BasePrice: basePrice,
		Total:     core.Round(converted * float64(req.Quantity)),
		BaseTotal: core.Round(basePrice * float64(req.Quantity)),
	}

	return append([]model.CartItem{parent}, children...), nil
}
