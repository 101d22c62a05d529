package model

import (
	"time"

	"gorm.io/gorm"
)

// CustomerGroup 顾客分组，价格索引按分组建行
type CustomerGroup struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"type:varchar(50);uniqueIndex"`
	Name string `gorm:"type:varchar(100)"`
}

// Customer 顾客
type Customer struct {
	ID              int64  `gorm:"primaryKey"`
	Email           string `gorm:"type:varchar(191);uniqueIndex"`
	Password        string `gorm:"type:varchar(255)"` // bcrypt 哈希
	Name            string `gorm:"type:varchar(100)"`
	CustomerGroupID int64  `gorm:"default:2"` // 1 = 游客组，注册顾客默认 2
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// Cart 购物车主表
type Cart struct {
	ID             int64  `gorm:"primaryKey"`
	Token          string `gorm:"type:varchar(64);uniqueIndex"` // 游客购物车凭据 (uuid)
	CustomerID     *int64 `gorm:"index"`                        // 未登录为 NULL
	IsActive       bool   `gorm:"default:true;index"`
	ItemsCount     int    `gorm:"default:0"`
	SubTotal       float64 `gorm:"type:decimal(12,4)"`
	BaseSubTotal   float64 `gorm:"type:decimal(12,4)"`
	GrandTotal     float64 `gorm:"type:decimal(12,4)"`
	BaseGrandTotal float64 `gorm:"type:decimal(12,4)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CartItem 购物车行项目
// 可配置商品会生成父子两行：父行承载数量与价格，子行指向选中的变体
type CartItem struct {
	ID        int64   `gorm:"primaryKey"`
	CartID    int64   `gorm:"index"`
	ParentID  *int64  `gorm:"index"` // 子行指向父行
	ProductID int64   `gorm:"index"`
	SKU       string  `gorm:"column:sku;type:varchar(100)"`
	Name      string  `gorm:"type:varchar(255)"`
	Type      string  `gorm:"type:varchar(20)"`
	Quantity  int     `gorm:"default:1"`
	Price     float64 `gorm:"type:decimal(12,4)"`
	BasePrice float64 `gorm:"type:decimal(12,4)"`
	Total     float64 `gorm:"type:decimal(12,4)"`
	BaseTotal float64 `gorm:"type:decimal(12,4)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CustomerGroup) TableName() string { return "customer_groups" }
func (Customer) TableName() string      { return "customers" }
func (Cart) TableName() string          { return "carts" }
func (CartItem) TableName() string      { return "cart_items" }
