package model

import "time"

// 商品类型，闭集：每种类型有独立的定价/购物车/索引行为
const (
	TypeSimple       = "simple"
	TypeConfigurable = "configurable"
	TypeBundle       = "bundle"
	TypeGrouped      = "grouped"
)

// AttributeScope 属性值的作用域
// 在属性加载时解析一次，决定生成多少条属性值记录
type AttributeScope int

const (
	ScopeGlobal        AttributeScope = iota // 全局唯一一条
	ScopeChannel                             // 每渠道一条
	ScopeLocale                              // 每语言一条
	ScopeChannelLocale                       // 渠道 × 语言
)

// Attribute 属性定义 (如 name / price / color / size)
type Attribute struct {
	ID              int64  `gorm:"primaryKey"`
	Code            string `gorm:"type:varchar(50);uniqueIndex"`
	Type            string `gorm:"type:varchar(20)"` // text / decimal / integer / boolean / select
	ValuePerChannel bool   `gorm:"default:false"`
	ValuePerLocale  bool   `gorm:"default:false"`

	Options []AttributeOption `gorm:"foreignKey:AttributeID"`
}

// Scope 解析属性的作用域枚举
func (a *Attribute) Scope() AttributeScope {
	switch {
	case a.ValuePerChannel && a.ValuePerLocale:
		return ScopeChannelLocale
	case a.ValuePerChannel:
		return ScopeChannel
	case a.ValuePerLocale:
		return ScopeLocale
	default:
		return ScopeGlobal
	}
}

// AttributeOption 选择型属性的选项 (如 color 的 red/blue)
type AttributeOption struct {
	ID          int64  `gorm:"primaryKey"`
	AttributeID int64  `gorm:"index"`
	AdminName   string `gorm:"type:varchar(100)"`
	SortOrder   int    `gorm:"default:0"`
}

// Channel 销售渠道
type Channel struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"type:varchar(50);uniqueIndex"`
	Name string `gorm:"type:varchar(100)"`
}

// Locale 语言
type Locale struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"type:varchar(20);uniqueIndex"`
	Name string `gorm:"type:varchar(100)"`
}

// Product 商品主表
// 业务字段 (名称/价格等) 不落在这里，统一放 product_attribute_values
type Product struct {
	ID                int64  `gorm:"primaryKey"`
	SKU               string `gorm:"column:sku;type:varchar(100);uniqueIndex"`
	Type              string `gorm:"type:varchar(20);index"`
	ParentID          *int64 `gorm:"index"` // 可配置商品的变体指向父商品
	AttributeFamilyID int64  `gorm:"default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProductAttributeValue 商品属性值
// (product_id, attribute_id, channel, locale) 唯一，channel/locale 为空表示全局
type ProductAttributeValue struct {
	ID          int64  `gorm:"primaryKey"`
	ProductID   int64  `gorm:"uniqueIndex:uni_value_scope;index"`
	AttributeID int64  `gorm:"uniqueIndex:uni_value_scope"`
	Channel     string `gorm:"type:varchar(50);uniqueIndex:uni_value_scope"`
	Locale      string `gorm:"type:varchar(20);uniqueIndex:uni_value_scope"`

	// 按属性类型取其中一列
	TextValue    string  `gorm:"type:text"`
	DecimalValue float64 `gorm:"type:decimal(12,4)"`
	IntegerValue int64
	BooleanValue bool
}

// ProductSuperAttribute 可配置商品与其超属性的关联
// Position 记录挂载顺序，变体 SKU 的选项拼接顺序依赖它
type ProductSuperAttribute struct {
	ID          int64 `gorm:"primaryKey"`
	ProductID   int64 `gorm:"index"`
	AttributeID int64
	Position    int `gorm:"default:0"`
}

// ProductBundleOption 捆绑商品的选项分组 (如 "选一个鼠标")
type ProductBundleOption struct {
	ID        int64  `gorm:"primaryKey"`
	ProductID int64  `gorm:"index"`
	Label     string `gorm:"type:varchar(100)"`
	SortOrder int    `gorm:"default:0"`
}

// ProductBundleOptionProduct 捆绑选项下的候选商品
type ProductBundleOptionProduct struct {
	ID             int64 `gorm:"primaryKey"`
	BundleOptionID int64 `gorm:"index"`
	ProductID      int64 `gorm:"index"`
	Qty            int   `gorm:"default:1"`
}

// ProductGroupedProduct 组合商品与其成员的关联
type ProductGroupedProduct struct {
	ID                  int64 `gorm:"primaryKey"`
	ProductID           int64 `gorm:"index"`
	AssociatedProductID int64 `gorm:"index"`
	Qty                 int   `gorm:"default:1"`
	SortOrder           int   `gorm:"default:0"`
}

// ProductInventory 各库存源的原始库存
type ProductInventory struct {
	ID                int64 `gorm:"primaryKey"`
	ProductID         int64 `gorm:"uniqueIndex:uni_inventory_source;index"`
	InventorySourceID int64 `gorm:"uniqueIndex:uni_inventory_source;default:1"`
	Qty               int   `gorm:"default:0"`
}

// ProductPriceIndex 价格索引行，只由索引器重算，不允许手改
type ProductPriceIndex struct {
	ID              int64   `gorm:"primaryKey"`
	ProductID       int64   `gorm:"uniqueIndex:uni_price_index;index"`
	CustomerGroupID int64   `gorm:"uniqueIndex:uni_price_index"`
	MinPrice        float64 `gorm:"type:decimal(12,4)"`
	MaxPrice        float64 `gorm:"type:decimal(12,4)"`
	RegularPrice    float64 `gorm:"type:decimal(12,4)"`
	FinalPrice      float64 `gorm:"type:decimal(12,4)"`
	UpdatedAt       time.Time
}

// ProductInventoryIndex 库存索引行 (各库存源求和后的缓存)
type ProductInventoryIndex struct {
	ID        int64 `gorm:"primaryKey"`
	ProductID int64 `gorm:"uniqueIndex"`
	Qty       int   `gorm:"default:0"`
	UpdatedAt time.Time
}

// ProductFlat 展示用平表，每 (商品, 渠道, 语言) 一行
type ProductFlat struct {
	ID        int64   `gorm:"primaryKey"`
	ProductID int64   `gorm:"uniqueIndex:uni_flat_scope;index"`
	Channel   string  `gorm:"type:varchar(50);uniqueIndex:uni_flat_scope"`
	Locale    string  `gorm:"type:varchar(20);uniqueIndex:uni_flat_scope"`
	SKU       string  `gorm:"column:sku;type:varchar(100)"`
	Type      string  `gorm:"type:varchar(20)"`
	Name      string  `gorm:"type:varchar(255)"`
	Price     float64 `gorm:"type:decimal(12,4)"`
	Status    int     `gorm:"default:1"`
	UpdatedAt time.Time
}

func (Attribute) TableName() string                  { return "attributes" }
func (AttributeOption) TableName() string            { return "attribute_options" }
func (Channel) TableName() string                    { return "channels" }
func (Locale) TableName() string                     { return "locales" }
func (Product) TableName() string                    { return "products" }
func (ProductAttributeValue) TableName() string      { return "product_attribute_values" }
func (ProductSuperAttribute) TableName() string      { return "product_super_attributes" }
func (ProductBundleOption) TableName() string        { return "product_bundle_options" }
func (ProductBundleOptionProduct) TableName() string { return "product_bundle_option_products" }
func (ProductGroupedProduct) TableName() string      { return "product_grouped_products" }
func (ProductInventory) TableName() string           { return "product_inventories" }
func (ProductPriceIndex) TableName() string          { return "product_price_indices" }
func (ProductInventoryIndex) TableName() string      { return "product_inventory_indices" }
func (ProductFlat) TableName() string                { return "product_flat" }
