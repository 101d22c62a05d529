package types

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
)

// 生成/更新变体时允许落属性值的字段
var fillableCodes = []string{"sku", "name", "price", "weight", "status", "tax_category_id"}

var (
	ErrVariantName    = errors.New("variant name is required")
	ErrMissingOptions = errors.New("please select product options")
)

// SuperAttributeSelection 创建可配置商品时选择的超属性及其选项
type SuperAttributeSelection struct {
	Code      string
	OptionIds []int64
}

// VariantData 单个变体的请求数据
// Id == 0 表示新变体 (按 Options 的组合生成)，否则为对已有变体的修改
type VariantData struct {
	Id            int64
	SKU           string
	Name          string
	Price         float64
	Weight        float64
	Status        int
	TaxCategoryId *int64
	Options       map[int64]int64 // 超属性 id → 选项 id
	Inventories   map[int64]int   // 库存源 id → 数量
}

// VariantsUpdate 可配置商品更新请求中的变体部分
// Channel/Locale 是本次编辑的作用域，决定作用域属性改哪一行
type VariantsUpdate struct {
	Channel  string
	Locale   string
	Variants []VariantData
}

// Configurable 可配置商品：拥有超属性和一组变体
type Configurable struct {
	base
}

func (c *Configurable) Kind() string      { return model.TypeConfigurable }
func (c *Configurable) IsComposite() bool { return true }
func (c *Configurable) HasVariants() bool { return true }

func (c *Configurable) ChildrenIds(ctx context.Context) ([]int64, error) {
	variants, err := c.registry.products.Variants(ctx, c.product.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(variants))
	for i, variant := range variants {
		ids[i] = variant.ID
	}
	return ids, nil
}

// PriceRange 父商品展示区间由变体价格推导
func (c *Configurable) PriceRange(ctx context.Context) (PriceRange, error) {
	variants, err := c.registry.products.Variants(ctx, c.product.ID)
	if err != nil {
		return PriceRange{}, err
	}
	return c.childrenPriceRange(ctx, variants)
}

func (c *Configurable) TotalQuantity(ctx context.Context) (int, error) {
	variants, err := c.registry.products.Variants(ctx, c.product.ID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, variant := range variants {
		qty, err := c.registry.products.InventoryQty(ctx, variant.ID)
		if err != nil {
			return 0, err
		}
		total += qty
	}
	return total, nil
}

// GenerateVariants 创建路径：挂载超属性并按选项组合的笛卡尔积物化变体
// SKU 冲突在任何变体落库之前整批检查
func (c *Configurable) GenerateVariants(ctx context.Context, settings *core.Settings, selections []SuperAttributeSelection) error {
	attributes := make([]model.Attribute, 0, len(selections))
	optionSets := make([][]int64, 0, len(selections))

	for position, selection := range selections {
		attribute, err := c.registry.attributes.FindByCode(ctx, selection.Code)
		if err != nil {
			return fmt.Errorf("super attribute %q: %w", selection.Code, err)
		}

		err = c.registry.products.AttachSuperAttribute(ctx, c.product.ID, attribute.ID, position)
		if err != nil {
			return err
		}

		attributes = append(attributes, *attribute)
		optionSets = append(optionSets, selection.OptionIds)
	}

	variants := make([]VariantData, 0)
	skus := make([]string, 0)
	for _, combo := range permute(optionSets) {
		data := defaultVariantData(c.product.SKU, attributes, combo)
		variants = append(variants, data)
		skus = append(skus, data.SKU)
	}

	if err := c.precheckSKUs(ctx, skus, nil); err != nil {
		return err
	}

	for _, data := range variants {
		if _, err := c.createVariant(ctx, settings, attributes, data); err != nil {
			return err
		}
	}
	return nil
}

// UpdateVariants 更新路径：请求里的变体与现存变体做三路差集
// 已有 id → 原地修改；新组合 → 生成；请求缺席的 → 删除
func (c *Configurable) UpdateVariants(ctx context.Context, settings *core.Settings, req VariantsUpdate) error {
	superAttributes, err := c.registry.products.SuperAttributes(ctx, c.product.ID)
	if err != nil {
		return err
	}

	existing, err := c.registry.products.Variants(ctx, c.product.ID)
	if err != nil {
		return err
	}
	remaining := make(map[int64]bool, len(existing))
	for _, variant := range existing {
		remaining[variant.ID] = true
	}

	// 校验与 SKU 预检查都发生在第一笔写入之前
	skus := make([]string, 0, len(req.Variants))
	keep := make([]int64, 0, len(req.Variants))
	for i := range req.Variants {
		v := &req.Variants[i]

		// 新组合必须带齐全部超属性的选项，否则一行都不落库
		if v.Id == 0 || !remaining[v.Id] {
			for _, attribute := range superAttributes {
				if _, ok := v.Options[attribute.ID]; !ok {
					return fmt.Errorf("variant missing option for %q: %w", attribute.Code, ErrMissingOptions)
				}
			}
		}

		if v.SKU == "" {
			v.SKU = variantSKU(c.product.SKU, orderedOptions(superAttributes, v.Options))
		}
		if v.Name == "" {
			return fmt.Errorf("variant %s: %w", v.SKU, ErrVariantName)
		}
		skus = append(skus, v.SKU)
		if v.Id != 0 && remaining[v.Id] {
			keep = append(keep, v.Id)
		}
	}
	if err := c.precheckSKUs(ctx, skus, keep); err != nil {
		return err
	}

	for _, v := range req.Variants {
		if v.Id != 0 && remaining[v.Id] {
			delete(remaining, v.Id)
			if err := c.updateVariant(ctx, v.Id, req.Channel, req.Locale, v); err != nil {
				return err
			}
			continue
		}

		if _, err := c.createVariant(ctx, settings, superAttributes, v); err != nil {
			return err
		}
	}

	for id := range remaining {
		if err := c.registry.products.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// createVariant 物化一个变体：商品行 + 可填字段的作用域扇出 + 固定组合位置的属性值
func (c *Configurable) createVariant(ctx context.Context, settings *core.Settings, superAttributes []model.Attribute, data VariantData) (*model.Product, error) {
	variant := &model.Product{
		SKU:               data.SKU,
		Type:              model.TypeSimple,
		ParentID:          &c.product.ID,
		AttributeFamilyID: c.product.AttributeFamilyID,
	}
	if err := c.registry.products.Create(ctx, variant); err != nil {
		return nil, err
	}

	values, err := c.fillableValues(ctx, settings, variant.ID, data)
	if err != nil {
		return nil, err
	}

	// 组合位置属性值：每个超属性一条，不带作用域
	for _, attribute := range superAttributes {
		optionId, ok := data.Options[attribute.ID]
		if !ok {
			return nil, fmt.Errorf("variant %s: %w", data.SKU, ErrMissingOptions)
		}
		values = append(values, model.ProductAttributeValue{
			ProductID:    variant.ID,
			AttributeID:  attribute.ID,
			IntegerValue: optionId,
		})
	}

	if err := c.registry.values.Insert(ctx, values); err != nil {
		return nil, err
	}

	if err := c.registry.products.SaveInventories(ctx, variant.ID, data.Inventories); err != nil {
		return nil, err
	}
	return variant, nil
}

// updateVariant 只改可填字段的属性值，按属性作用域定位到本次编辑的那一行
func (c *Configurable) updateVariant(ctx context.Context, variantId int64, channel, locale string, data VariantData) error {
	variant, err := c.registry.products.Find(ctx, variantId)
	if err != nil {
		return err
	}

	variant.SKU = data.SKU
	if err := c.registry.products.Save(ctx, variant); err != nil {
		return err
	}

	for _, code := range fillableCodes {
		attribute, err := c.registry.attributes.FindByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		fresh := model.ProductAttributeValue{ProductID: variantId, AttributeID: attribute.ID}
		if !applyValue(&fresh, code, data) {
			continue
		}

		if attribute.ValuePerChannel {
			fresh.Channel = channel
		}
		if attribute.ValuePerLocale {
			fresh.Locale = locale
		}

		found, err := c.registry.values.FindScoped(ctx, variantId, attribute.ID, fresh.Channel, fresh.Locale)
		if err != nil {
			return err
		}
		if found == nil {
			if err := c.registry.values.Insert(ctx, []model.ProductAttributeValue{fresh}); err != nil {
				return err
			}
			continue
		}

		found.TextValue = fresh.TextValue
		found.DecimalValue = fresh.DecimalValue
		found.IntegerValue = fresh.IntegerValue
		found.BooleanValue = fresh.BooleanValue
		if err := c.registry.values.Save(ctx, found); err != nil {
			return err
		}
	}

	return c.registry.products.SaveInventories(ctx, variantId, data.Inventories)
}

// fillableValues 可填字段按属性作用域扇出成属性值行
func (c *Configurable) fillableValues(ctx context.Context, settings *core.Settings, productId int64, data VariantData) ([]model.ProductAttributeValue, error) {
	var values []model.ProductAttributeValue

	for _, code := range fillableCodes {
		attribute, err := c.registry.attributes.FindByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		value := model.ProductAttributeValue{ProductID: productId, AttributeID: attribute.ID}
		if !applyValue(&value, code, data) {
			continue
		}

		switch attribute.Scope() {
		case model.ScopeChannelLocale:
			for _, channel := range settings.Channels {
				for _, locale := range settings.Locales {
					row := value
					row.Channel = channel.Code
					row.Locale = locale.Code
					values = append(values, row)
				}
			}
		case model.ScopeChannel:
			for _, channel := range settings.Channels {
				row := value
				row.Channel = channel.Code
				values = append(values, row)
			}
		case model.ScopeLocale:
			for _, locale := range settings.Locales {
				row := value
				row.Locale = locale.Code
				values = append(values, row)
			}
		default:
			values = append(values, value)
		}
	}

	return values, nil
}

// precheckSKUs 整批校验 SKU：批内不重复，也不与现存商品冲突
func (c *Configurable) precheckSKUs(ctx context.Context, skus []string, excludeIds []int64) error {
	seen := make(map[string]bool, len(skus))
	for _, sku := range skus {
		if seen[sku] {
			return fmt.Errorf("variant sku %q: %w", sku, repository.ErrDuplicateSKU)
		}
		seen[sku] = true
	}

	taken, err := c.registry.products.TakenSKUs(ctx, skus, excludeIds)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("variant sku %q: %w", taken[0], repository.ErrDuplicateSKU)
	}
	return nil
}

func (c *Configurable) PrepareForCart(ctx context.Context, settings *core.Settings, req CartRequest) ([]model.CartItem, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	if req.SelectedVariantId == 0 {
		return nil, ErrMissingOptions
	}

	child, err := c.registry.products.Find(ctx, req.SelectedVariantId)
	if err != nil {
		return nil, err
	}

	childType, err := c.registry.For(child)
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

	name, err := c.name(ctx, "", "")
	if err != nil {
		return nil, err
	}
	childName, err := (&base{product: child, registry: c.registry}).name(ctx, "", "")
	if err != nil {
		return nil, err
	}

	// 父行承载价格，价格来自选中的子商品
	price := childRange.Final
	converted := settings.ConvertPrice(price)

	parent := model.CartItem{
		ProductID: c.product.ID,
		SKU:       c.product.SKU,
		Name:      name,
		Type:      c.product.Type,
		Quantity:  req.Quantity,
		Price:     converted,
		BasePrice: price,
		Total:     core.Round(converted * float64(req.Quantity)),
		BaseTotal: core.Round(price * float64(req.Quantity)),
	}

	// 子行只记录选中的变体，金额折入父行
	childItem := model.CartItem{
		ProductID: child.ID,
		SKU:       child.SKU,
		Name:      childName,
		Type:      child.Type,
		Quantity:  req.Quantity,
	}

	return []model.CartItem{parent, childItem}, nil
}

// defaultVariantData 创建路径上没有显式变体数据时的默认值
func defaultVariantData(parentSKU string, attributes []model.Attribute, combo []int64) VariantData {
	options := make(map[int64]int64, len(attributes))
	for i, attribute := range attributes {
		options[attribute.ID] = combo[i]
	}
	return VariantData{
		SKU:     variantSKU(parentSKU, combo),
		Name:    "",
		Price:   0,
		Weight:  0,
		Status:  1,
		Options: options,
	}
}

// variantSKU 变体 SKU 由父 SKU 和选项 id 按超属性挂载顺序拼接，完全确定
func variantSKU(parentSKU string, options []int64) string {
	parts := make([]string, len(options))
	for i, option := range options {
		parts[i] = strconv.FormatInt(option, 10)
	}
	return parentSKU + "-variant-" + strings.Join(parts, "-")
}

// orderedOptions 把选项映射按超属性挂载顺序排成切片
func orderedOptions(attributes []model.Attribute, options map[int64]int64) []int64 {
	ordered := make([]int64, 0, len(attributes))
	for _, attribute := range attributes {
		if option, ok := options[attribute.ID]; ok {
			ordered = append(ordered, option)
		}
	}
	return ordered
}

// permute 按超属性顺序生成选项组合的笛卡尔积
func permute(optionSets [][]int64) [][]int64 {
	if len(optionSets) == 0 {
		return nil
	}

	combos := [][]int64{{}}
	for _, options := range optionSets {
		next := make([][]int64, 0, len(combos)*len(options))
		for _, combo := range combos {
			for _, option := range options {
				extended := make([]int64, len(combo), len(combo)+1)
				copy(extended, combo)
				next = append(next, append(extended, option))
			}
		}
		combos = next
	}
	return combos
}

// applyValue 把变体数据写进属性值的对应类型列，没有可写的值返回 false
func applyValue(value *model.ProductAttributeValue, code string, data VariantData) bool {
	switch code {
	case "sku":
		value.TextValue = data.SKU
	case "name":
		value.TextValue = data.Name
	case "price":
		value.DecimalValue = data.Price
	case "weight":
		value.DecimalValue = data.Weight
	case "status":
		value.BooleanValue = data.Status != 0
		value.IntegerValue = int64(data.Status)
	case "tax_category_id":
		if data.TaxCategoryId == nil {
			return false
		}
		value.IntegerValue = *data.TaxCategoryId
	default:
		return false
	}
	return true
}
