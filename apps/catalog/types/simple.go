package types

import (
	"context"
	"fmt"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
)

// Simple 单品
type Simple struct {
	base
}

func (s *Simple) Kind() string      { return model.TypeSimple }
func (s *Simple) IsComposite() bool { return false }
func (s *Simple) HasVariants() bool { return false }

func (s *Simple) ChildrenIds(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func (s *Simple) PriceRange(ctx context.Context) (PriceRange, error) {
	regular, final, err := s.finalPrice(ctx)
	if err != nil {
		return PriceRange{}, err
	}
	return PriceRange{Min: final, Max: final, Regular: regular, Final: final}, nil
}

func (s *Simple) TotalQuantity(ctx context.Context) (int, error) {
	return s.registry.products.InventoryQty(ctx, s.product.ID)
}

func (s *Simple) PrepareForCart(ctx context.Context, settings *core.Settings, req CartRequest) ([]model.CartItem, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	qty, err := s.TotalQuantity(ctx)
	if err != nil {
		return nil, err
	}
	if qty < req.Quantity {
		return nil, fmt.Errorf("insufficient quantity for sku %s", s.product.SKU)
	}

	_, final, err := s.finalPrice(ctx)
	if err != nil {
		return nil, err
	}

	name, err := s.name(ctx, "", "")
	if err != nil {
		return nil, err
	}

	price := settings.ConvertPrice(final)
	return []model.CartItem{{
		ProductID: s.product.ID,
		SKU:       s.product.SKU,
		Name:      name,
		Type:      s.product.Type,
		Quantity:  req.Quantity,
		Price:     price,
		BasePrice: final,
		Total:     core.Round(price * float64(req.Quantity)),
		BaseTotal: core.Round(final * float64(req.Quantity)),
	}}, nil
}
