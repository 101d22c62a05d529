package types

import (
	"context"
	"fmt"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
)

// PriceRange 一个商品的价格汇总，价格索引行由它落库
type PriceRange struct {
	Min     float64
	Max     float64
	Regular float64
	Final   float64
}

// CartRequest 加购请求
type CartRequest struct {
	ProductId         int64
	Quantity          int
	SelectedVariantId int64   // 可配置商品必填
	BundleSelections  []int64 // 捆绑商品选中的候选商品
}

// ProductType 商品类型行为，闭集：simple / configurable / bundle / grouped
// 每次加载商品时解析一次，之后所有类型相关逻辑都走这个实例
type ProductType interface {
	Kind() string
	IsComposite() bool
	HasVariants() bool
	Product() *model.Product

	// ChildrenIds 子商品集合 (变体 / 捆绑候选 / 组合成员)
	ChildrenIds(ctx context.Context) ([]int64, error)

	// PriceRange 计算价格汇总，只依赖当前属性/子商品状态，可重入
	PriceRange(ctx context.Context) (PriceRange, error)

	// PrepareForCart 把加购请求展开成行项目 (可配置商品返回父子两行)
	PrepareForCart(ctx context.Context, settings *core.Settings, req CartRequest) ([]model.CartItem, error)

	// TotalQuantity 可售库存汇总
	TotalQuantity(ctx context.Context) (int, error)
}

// Registry 类型注册表，持有各类型共用的仓储
type Registry struct {
	products   *repository.ProductRepository
	attributes *repository.AttributeRepository
	values     *repository.AttributeValueRepository
}

func NewRegistry(
	products *repository.ProductRepository,
	attributes *repository.AttributeRepository,
	values *repository.AttributeValueRepository,
) *Registry {
	return &Registry{
		products:   products,
		attributes: attributes,
		values:     values,
	}
}

// For 解析商品对应的类型实例
func (r *Registry) For(p *model.Product) (ProductType, error) {
	base := base{product: p, registry: r}

	switch p.Type {
	case model.TypeSimple:
		return &Simple{base}, nil
	case model.TypeConfigurable:
		return &Configurable{base}, nil
	case model.TypeBundle:
		return &Bundle{base}, nil
	case model.TypeGrouped:
		return &Grouped{base}, nil
	default:
		return nil, fmt.Errorf("unknown product type %q", p.Type)
	}
}

// base 各类型共享的字段与工具方法
type base struct {
	product  *model.Product
	registry *Registry
}

func (b *base) Product() *model.Product {
	return b.product
}

// price 读取商品的全局 price 属性
func (b *base) price(ctx context.Context) (float64, error) {
	attribute, err := b.registry.attributes.FindByCode(ctx, "price")
	if err != nil {
		return 0, err
	}
	value, _, err := b.registry.values.DecimalValue(ctx, b.product.ID, attribute.ID)
	return value, err
}

// specialPrice 读取促销价，没有配置时 ok=false
func (b *base) specialPrice(ctx context.Context) (float64, bool, error) {
	attribute, err := b.registry.attributes.FindByCode(ctx, "special_price")
	if err != nil {
		if err == repository.ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	value, ok, err := b.registry.values.DecimalValue(ctx, b.product.ID, attribute.ID)
	if err != nil || !ok || value <= 0 {
		return 0, false, err
	}
	return value, true, nil
}

// finalPrice 原价与促销价取低
func (b *base) finalPrice(ctx context.Context) (regular, final float64, err error) {
	regular, err = b.price(ctx)
	if err != nil {
		return 0, 0, err
	}

	final = regular
	if special, ok, err := b.specialPrice(ctx); err != nil {
		return 0, 0, err
	} else if ok && special < regular {
		final = special
	}
	return regular, final, nil
}

// childrenPriceRange 按子商品的最终价聚合出父商品的展示区间
func (b *base) childrenPriceRange(ctx context.Context, children []model.Product) (PriceRange, error) {
	var result PriceRange
	first := true

	for i := range children {
		instance, err := b.registry.For(&children[i])
		if err != nil {
			return PriceRange{}, err
		}

		childRange, err := instance.PriceRange(ctx)
		if err != nil {
			return PriceRange{}, err
		}

		if first {
			result = PriceRange{
				Min:     childRange.Final,
				Max:     childRange.Final,
				Regular: childRange.Regular,
				Final:   childRange.Final,
			}
			first = false
			continue
		}

		if childRange.Final < result.Min {
			result.Min = childRange.Final
			result.Regular = childRange.Regular
			result.Final = childRange.Final
		}
		if childRange.Final > result.Max {
			result.Max = childRange.Final
		}
	}

	return result, nil
}

// name 按当前渠道/语言读取商品名，回退到全局值
func (b *base) name(ctx context.Context, channel, locale string) (string, error) {
	attribute, err := b.registry.attributes.FindByCode(ctx, "name")
	if err != nil {
		return "", err
	}
	return b.registry.values.ScopedText(ctx, b.product.ID, attribute.ID, channel, locale)
}
