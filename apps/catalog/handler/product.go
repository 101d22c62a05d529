package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/listener"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"
	"go-commerce/pkg/config"
	"go-commerce/pkg/response"

	sentinel "github.com/alibaba/sentinel-golang/api"
	sentinelbase "github.com/alibaba/sentinel-golang/core/base"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 批量删除接口的限流资源名
const ResMassDestroy = "catalog:mass-destroy"

// ProductHandler 商品管理接口
type ProductHandler struct {
	db         *gorm.DB
	catalogCfg config.CatalogConfig
	products   *repository.ProductRepository
	attributes *repository.AttributeRepository
	values     *repository.AttributeValueRepository
	registry   *types.Registry
	dispatcher *listener.Dispatcher
}

func NewProductHandler(
	db *gorm.DB,
	catalogCfg config.CatalogConfig,
	products *repository.ProductRepository,
	attributes *repository.AttributeRepository,
	values *repository.AttributeValueRepository,
	registry *types.Registry,
	dispatcher *listener.Dispatcher,
) *ProductHandler {
	return &ProductHandler{
		db:         db,
		catalogCfg: catalogCfg,
		products:   products,
		attributes: attributes,
		values:     values,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

type superAttributeRequest struct {
	Code      string  `json:"code" binding:"required"`
	OptionIds []int64 `json:"option_ids" binding:"required"`
}

type createProductRequest struct {
	SKU               string                  `json:"sku" binding:"required"`
	Type              string                  `json:"type" binding:"required"`
	AttributeFamilyID int64                   `json:"attribute_family_id"`
	Name              string                  `json:"name"`
	Price             float64                 `json:"price"`
	Weight            float64                 `json:"weight"`
	Status            int                     `json:"status"`
	SuperAttributes   []superAttributeRequest `json:"super_attributes"`
}

// variantRequest 更新请求里的单个变体，选项按属性 code 提交
type variantRequest struct {
	Id            int64            `json:"id"`
	SKU           string           `json:"sku"`
	Name          string           `json:"name"`
	Price         float64          `json:"price"`
	Weight        float64          `json:"weight"`
	Status        int              `json:"status"`
	TaxCategoryId *int64           `json:"tax_category_id"`
	Options       map[string]int64 `json:"options"`
	Inventories   map[int64]int    `json:"inventories"`
}

type updateProductRequest struct {
	Channel string `json:"channel"`
	Locale  string `json:"locale"`

	Name     *string          `json:"name"`
	Price    *float64         `json:"price"`
	Weight   *float64         `json:"weight"`
	Status   *int             `json:"status"`
	Special  *float64         `json:"special_price"`
	Variants []variantRequest `json:"variants"`
}

type massDestroyRequest struct {
	Indexes string `json:"indexes" binding:"required"` // 逗号分隔的商品 id
}

// Create 创建商品
// 可配置商品带 super_attributes 时，按选项组合一并生成全部变体
func (h *ProductHandler) Create(ctx *gin.Context) {
	var req createProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	settings, err := core.Load(h.db, h.catalogCfg)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	if _, err := h.products.FindBySKU(ctx, req.SKU); err == nil {
		response.Error(ctx, http.StatusBadRequest, fmt.Sprintf("SKU %q already exists", req.SKU))
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		response.Error(ctx, http.StatusInternalServerError, "Failed to check SKU")
		return
	}

	familyId := req.AttributeFamilyID
	if familyId == 0 {
		familyId = 1
	}
	product := &model.Product{
		SKU:               req.SKU,
		Type:              req.Type,
		AttributeFamilyID: familyId,
	}

	// 提前解析类型，未知类型直接拒绝
	if _, err := h.registry.For(product); err != nil {
		response.Error(ctx, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.dispatcher.BeforeCreate(ctx, settings, product); err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to create product: "+err.Error())
		return
	}

	if err := h.products.Create(ctx, product); err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to create product")
		return
	}

	for code, apply := range map[string]func(*model.ProductAttributeValue){
		"sku":    func(v *model.ProductAttributeValue) { v.TextValue = req.SKU },
		"name":   func(v *model.ProductAttributeValue) { v.TextValue = req.Name },
		"price":  func(v *model.ProductAttributeValue) { v.DecimalValue = req.Price },
		"weight": func(v *model.ProductAttributeValue) { v.DecimalValue = req.Weight },
		"status": func(v *model.ProductAttributeValue) {
			v.BooleanValue = req.Status != 0
			v.IntegerValue = int64(req.Status)
		},
	} {
		if err := h.upsertValue(ctx, product.ID, code, "", "", apply); err != nil {
			response.Error(ctx, http.StatusInternalServerError, "Failed to save product values")
			return
		}
	}

	if product.Type == model.TypeConfigurable && len(req.SuperAttributes) > 0 {
		instance, err := h.registry.For(product)
		if err != nil {
			response.Error(ctx, http.StatusBadRequest, err.Error())
			return
		}

		selections := make([]types.SuperAttributeSelection, 0, len(req.SuperAttributes))
		for _, sa := range req.SuperAttributes {
			selections = append(selections, types.SuperAttributeSelection{
				Code:      sa.Code,
				OptionIds: sa.OptionIds,
			})
		}

		err = instance.(*types.Configurable).GenerateVariants(ctx, settings, selections)
		if err != nil {
			h.mutationError(ctx, err)
			return
		}
	}

	if err := h.dispatcher.AfterCreate(ctx, settings, product); err != nil {
		log.Printf("Post-create hooks failed for product %d: %v", product.ID, err)
	}

	response.Success(ctx, product)
}

// Update 更新商品
// 作用域属性按请求里的 channel/locale 落值；variants 字段存在时执行变体三路差集
func (h *ProductHandler) Update(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid product id")
		return
	}

	var req updateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	product, err := h.products.Find(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Error(ctx, http.StatusNotFound, "Product not found")
			return
		}
		response.Error(ctx, http.StatusInternalServerError, "Failed to load product")
		return
	}

	settings, err := core.Load(h.db, h.catalogCfg)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	if err := h.dispatcher.BeforeUpdate(ctx, settings, product); err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to update product: "+err.Error())
		return
	}

	updates := map[string]func(*model.ProductAttributeValue){}
	if req.Name != nil {
		updates["name"] = func(v *model.ProductAttributeValue) { v.TextValue = *req.Name }
	}
	if req.Price != nil {
		updates["price"] = func(v *model.ProductAttributeValue) { v.DecimalValue = *req.Price }
	}
	if req.Weight != nil {
		updates["weight"] = func(v *model.ProductAttributeValue) { v.DecimalValue = *req.Weight }
	}
	if req.Status != nil {
		updates["status"] = func(v *model.ProductAttributeValue) {
			v.BooleanValue = *req.Status != 0
			v.IntegerValue = int64(*req.Status)
		}
	}
	if req.Special != nil {
		updates["special_price"] = func(v *model.ProductAttributeValue) { v.DecimalValue = *req.Special }
	}
	for code, apply := range updates {
		if err := h.upsertValue(ctx, product.ID, code, req.Channel, req.Locale, apply); err != nil {
			response.Error(ctx, http.StatusInternalServerError, "Failed to save product values")
			return
		}
	}

	if product.Type == model.TypeConfigurable && req.Variants != nil {
		variants, err := h.mapVariants(ctx, product.ID, req.Variants)
		if err != nil {
			h.mutationError(ctx, err)
			return
		}

		instance, err := h.registry.For(product)
		if err != nil {
			response.Error(ctx, http.StatusBadRequest, err.Error())
			return
		}

		err = instance.(*types.Configurable).UpdateVariants(ctx, settings, types.VariantsUpdate{
			Channel:  req.Channel,
			Locale:   req.Locale,
			Variants: variants,
		})
		if err != nil {
			h.mutationError(ctx, err)
			return
		}
	}

	if err := h.products.Save(ctx, product); err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to save product")
		return
	}

	if err := h.dispatcher.AfterUpdate(ctx, settings, product); err != nil {
		log.Printf("Post-update hooks failed for product %d: %v", product.ID, err)
	}

	response.Success(ctx, product)
}

// Get 商品详情：价格区间、可售库存、变体列表
func (h *ProductHandler) Get(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid product id")
		return
	}

	product, err := h.products.Find(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Error(ctx, http.StatusNotFound, "Product not found")
			return
		}
		response.Error(ctx, http.StatusInternalServerError, "Failed to load product")
		return
	}

	instance, err := h.registry.For(product)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, err.Error())
		return
	}

	priceRange, err := instance.PriceRange(ctx)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to compute price range")
		return
	}

	qty, err := instance.TotalQuantity(ctx)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to compute quantity")
		return
	}

	detail := gin.H{
		"product":     product,
		"price_range": priceRange,
		"quantity":    qty,
	}

	if instance.HasVariants() {
		variants, err := h.products.Variants(ctx, product.ID)
		if err != nil {
			response.Error(ctx, http.StatusInternalServerError, "Failed to load variants")
			return
		}
		detail["variants"] = variants
	}

	response.Success(ctx, detail)
}

// Delete 删除商品 (变体级联)
func (h *ProductHandler) Delete(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid product id")
		return
	}

	settings, err := core.Load(h.db, h.catalogCfg)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	if err := h.deleteOne(ctx, settings, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Error(ctx, http.StatusNotFound, "Product not found")
			return
		}
		response.Error(ctx, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	response.Success(ctx, gin.H{"id": id})
}

// MassDestroy 批量删除
// 单条失败不中断，结束后报告成功/失败清单；整体限流防止误触发海量索引重建
func (h *ProductHandler) MassDestroy(ctx *gin.Context) {
	entry, blocked := sentinel.Entry(ResMassDestroy, sentinel.WithTrafficType(sentinelbase.Inbound))
	if blocked != nil {
		response.Error(ctx, http.StatusTooManyRequests, "Too many requests, please try again later")
		return
	}
	defer entry.Exit()

	var req massDestroyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	settings, err := core.Load(h.db, h.catalogCfg)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	deleted := make([]int64, 0)
	failed := make([]gin.H, 0)

	for _, raw := range strings.Split(req.Indexes, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			failed = append(failed, gin.H{"index": raw, "reason": "invalid id"})
			continue
		}

		if err := h.deleteOne(ctx, settings, id); err != nil {
			log.Printf("Mass destroy: product %d failed: %v", id, err)
			failed = append(failed, gin.H{"index": id, "reason": err.Error()})
			continue
		}
		deleted = append(deleted, id)
	}

	result := gin.H{"deleted": deleted, "failed": failed}
	if len(failed) > 0 {
		response.Partial(ctx, fmt.Sprintf("%d of %d products deleted", len(deleted), len(deleted)+len(failed)), result)
		return
	}
	response.Success(ctx, result)
}

// deleteOne 单个商品的完整删除序列：before → 落库 → after
func (h *ProductHandler) deleteOne(ctx context.Context, settings *core.Settings, id int64) error {
	if _, err := h.products.Find(ctx, id); err != nil {
		return err
	}

	if err := h.dispatcher.BeforeDelete(ctx, settings, id); err != nil {
		return err
	}

	if err := h.products.Delete(ctx, id); err != nil {
		return err
	}

	if err := h.dispatcher.AfterDelete(ctx, settings, id); err != nil {
		log.Printf("Post-delete hooks failed for product %d: %v", id, err)
	}
	return nil
}

// mapVariants 请求里按属性 code 提交的选项映射成属性 id
func (h *ProductHandler) mapVariants(ctx context.Context, productId int64, requests []variantRequest) ([]types.VariantData, error) {
	superAttributes, err := h.products.SuperAttributes(ctx, productId)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]int64, len(superAttributes))
	for _, attribute := range superAttributes {
		byCode[attribute.Code] = attribute.ID
	}

	variants := make([]types.VariantData, 0, len(requests))
	for _, r := range requests {
		options := make(map[int64]int64, len(r.Options))
		for code, optionId := range r.Options {
			attributeId, ok := byCode[code]
			if !ok {
				return nil, fmt.Errorf("unknown super attribute %q: %w", code, types.ErrMissingOptions)
			}
			options[attributeId] = optionId
		}

		variants = append(variants, types.VariantData{
			Id:            r.Id,
			SKU:           r.SKU,
			Name:          r.Name,
			Price:         r.Price,
			Weight:        r.Weight,
			Status:        r.Status,
			TaxCategoryId: r.TaxCategoryId,
			Options:       options,
			Inventories:   r.Inventories,
		})
	}
	return variants, nil
}

// upsertValue 按属性作用域定位并覆盖一条属性值
func (h *ProductHandler) upsertValue(ctx context.Context, productId int64, code, channel, locale string, apply func(*model.ProductAttributeValue)) error {
	attribute, err := h.attributes.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	fresh := model.ProductAttributeValue{ProductID: productId, AttributeID: attribute.ID}
	apply(&fresh)
	if attribute.ValuePerChannel {
		fresh.Channel = channel
	}
	if attribute.ValuePerLocale {
		fresh.Locale = locale
	}

	found, err := h.values.FindScoped(ctx, productId, attribute.ID, fresh.Channel, fresh.Locale)
	if err != nil {
		return err
	}
	if found == nil {
		return h.values.Insert(ctx, []model.ProductAttributeValue{fresh})
	}

	found.TextValue = fresh.TextValue
	found.DecimalValue = fresh.DecimalValue
	found.IntegerValue = fresh.IntegerValue
	found.BooleanValue = fresh.BooleanValue
	return h.values.Save(ctx, found)
}

// mutationError 把领域错误翻译成 HTTP 状态
func (h *ProductHandler) mutationError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrDuplicateSKU),
		errors.Is(err, types.ErrVariantName),
		errors.Is(err, types.ErrMissingOptions):
		response.Error(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		response.Error(ctx, http.StatusNotFound, err.Error())
	default:
		response.Error(ctx, http.StatusInternalServerError, err.Error())
	}
}
