package search

import (
	"log"

	"go-commerce/pkg/config"

	"github.com/olivere/elastic/v7"
)

// InitElastic 初始化 Elasticsearch 客户端
// 单机部署关闭 sniff，否则客户端会去探测集群内网地址导致连不上
func InitElastic(cfg config.ElasticConfig) (*elastic.Client, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(cfg.Address),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Elasticsearch connected successfully (%s)", cfg.Address)
	return client, nil
}
