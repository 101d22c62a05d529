package core

import (
	"math"

	"go-commerce/apps/catalog/model"
	"go-commerce/pkg/config"

	"gorm.io/gorm"
)

// Settings 请求级核心上下文
// 渠道/语言/汇率等原本是全局单例，这里改为显式传入每个需要的组件
type Settings struct {
	Channels     []model.Channel
	Locales      []model.Locale
	CurrencyRate float64
	SearchMode   string
	GuestGroupId int64
}

// Load 从数据库和配置装配 Settings，每个请求 (或后台任务) 装配一次
func Load(db *gorm.DB, cfg config.CatalogConfig) (*Settings, error) {
	s := &Settings{
		CurrencyRate: cfg.CurrencyRate,
		SearchMode:   cfg.SearchMode,
		GuestGroupId: cfg.GuestGroupId,
	}

	if s.CurrencyRate == 0 {
		s.CurrencyRate = 1
	}
	if s.GuestGroupId == 0 {
		s.GuestGroupId = 1
	}

	if err := db.Order("id").Find(&s.Channels).Error; err != nil {
		return nil, err
	}
	if err := db.Order("id").Find(&s.Locales).Error; err != nil {
		return nil, err
	}

	return s, nil
}

// ElasticEnabled 店面搜索是否走搜索引擎
func (s *Settings) ElasticEnabled() bool {
	return s.SearchMode == "elastic"
}

// ConvertPrice 基准币种 → 展示币种
func (s *Settings) ConvertPrice(price float64) float64 {
	return Round(price * s.CurrencyRate)
}

// Round 金额统一保留两位小数
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
