package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	Mysql    MysqlConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Elastic  ElasticConfig  `mapstructure:"elastic"`
	Rabbitmq RabbitmqConfig `mapstructure:"rabbitmq"`
	Jaeger   JaegerConfig   `mapstructure:"jaeger"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

type ServiceConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
}

type ConsulConfig struct {
	Address string `mapstructure:"address"`
}

type MysqlConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DbName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type ElasticConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
}

type RabbitmqConfig struct {
	Url   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type JaegerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// CatalogConfig 商品目录相关的业务开关
type CatalogConfig struct {
	SearchMode    string  `mapstructure:"search_mode"`    // database 或 elastic
	AsyncIndexing bool    `mapstructure:"async_indexing"` // true 时重建索引走消息队列
	CurrencyRate  float64 `mapstructure:"currency_rate"`  // 展示币种对基准币种的汇率
	GuestGroupId  int64   `mapstructure:"guest_group_id"` // 未登录顾客的默认分组
}

// LoadConfig 读取配置文件
func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("catalog.search_mode", "database")
	viper.SetDefault("catalog.currency_rate", 1.0)
	viper.SetDefault("catalog.guest_group_id", 1)
	viper.SetDefault("elastic.index", "products")
	viper.SetDefault("rabbitmq.queue", "catalog.reindex")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	log.Printf("Config loaded successfully from %s", path)
	return &config, nil
}
