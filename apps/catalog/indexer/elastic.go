package indexer

import (
	"context"
	"strconv"

	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"

	"github.com/olivere/elastic/v7"
)

// searchDocument 写进搜索引擎的商品文档
type searchDocument struct {
	Id       int64   `json:"id"`
	SKU      string  `json:"sku"`
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

// ElasticIndexer 搜索索引器，店面搜索配置为 elastic 时启用
type ElasticIndexer struct {
	client     *elastic.Client
	index      string
	registry   *types.Registry
	attributes *repository.AttributeRepository
	values     *repository.AttributeValueRepository
}

func NewElasticIndexer(
	client *elastic.Client,
	index string,
	registry *types.Registry,
	attributes *repository.AttributeRepository,
	values *repository.AttributeValueRepository,
) *ElasticIndexer {
	return &ElasticIndexer{client: client, index: index, registry: registry, attributes: attributes, values: values}
}

// ReindexRows 推送一批商品文档
func (i *ElasticIndexer) ReindexRows(ctx context.Context, products []model.Product) error {
	for idx := range products {
		if err := i.ReindexRow(ctx, &products[idx]); err != nil {
			return err
		}
	}
	return nil
}

func (i *ElasticIndexer) ReindexRow(ctx context.Context, product *model.Product) error {
	instance, err := i.registry.For(product)
	if err != nil {
		return err
	}

	priceRange, err := instance.PriceRange(ctx)
	if err != nil {
		return err
	}

	name := ""
	if nameAttribute, err := i.attributes.FindByCode(ctx, "name"); err == nil {
		name, err = i.values.ScopedText(ctx, product.ID, nameAttribute.ID, "", "")
		if err != nil {
			return err
		}
	}

	doc := searchDocument{
		Id:       product.ID,
		SKU:      product.SKU,
		Type:     product.Type,
		Name:     name,
		Price:    priceRange.Final,
		MinPrice: priceRange.Min,
		MaxPrice: priceRange.Max,
	}

	_, err = i.client.Index().
		Index(i.index).
		Id(strconv.FormatInt(product.ID, 10)).
		BodyJson(doc).
		Do(ctx)
	return err
}

// DeleteRow 商品删除时移除搜索文档，文档不存在视为成功
func (i *ElasticIndexer) DeleteRow(ctx context.Context, productId int64) error {
	_, err := i.client.Delete().
		Index(i.index).
		Id(strconv.FormatInt(productId, 10)).
		Do(ctx)
	if elastic.IsNotFound(err) {
		return nil
	}
	return err
}
