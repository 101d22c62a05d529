package handler

import (
	"errors"
	"net/http"

	"go-commerce/apps/catalog/checkout"
	"go-commerce/apps/catalog/core"
	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/apps/catalog/types"
	"go-commerce/pkg/config"
	"go-commerce/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartHandler 购物车接口
// 游客购物车用 X-Cart-Token 头里的 uuid 识别，登录顾客直接取其活动购物车
type CartHandler struct {
	db         *gorm.DB
	catalogCfg config.CatalogConfig
	products   *repository.ProductRepository
	registry   *types.Registry
	carts      *repository.CartRepository
	items      *repository.CartItemRepository
	sync       *checkout.Synchronizer
}

func NewCartHandler(
	db *gorm.DB,
	catalogCfg config.CatalogConfig,
	products *repository.ProductRepository,
	registry *types.Registry,
	carts *repository.CartRepository,
	items *repository.CartItemRepository,
	sync *checkout.Synchronizer,
) *CartHandler {
	return &CartHandler{
		db:         db,
		catalogCfg: catalogCfg,
		products:   products,
		registry:   registry,
		carts:      carts,
		items:      items,
		sync:       sync,
	}
}

type addItemRequest struct {
	ProductId         int64   `json:"product_id" binding:"required"`
	Quantity          int     `json:"quantity"`
	SelectedVariantId int64   `json:"selected_variant_id"`
	BundleSelections  []int64 `json:"bundle_selections"`
}

// AddItem 加购
// 行项目由商品类型展开：可配置/捆绑商品产生父子行，父行承载价格
func (h *CartHandler) AddItem(ctx *gin.Context) {
	var req addItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	settings, err := core.Load(h.db, h.catalogCfg)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	product, err := h.products.Find(ctx, req.ProductId)
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

	lines, err := instance.PrepareForCart(ctx, settings, types.CartRequest{
		ProductId:         req.ProductId,
		Quantity:          req.Quantity,
		SelectedVariantId: req.SelectedVariantId,
		BundleSelections:  req.BundleSelections,
	})
	if err != nil {
		if errors.Is(err, types.ErrMissingOptions) {
			response.Error(ctx, http.StatusBadRequest, err.Error())
			return
		}
		response.Error(ctx, http.StatusBadRequest, err.Error())
		return
	}

	cart, err := h.resolveCart(ctx, true)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to resolve cart")
		return
	}

	// 可配置/捆绑商品首行为父行，其余行挂在它下面；组合商品的成员是彼此独立的行
	nested := instance.Kind() == model.TypeConfigurable || instance.Kind() == model.TypeBundle

	var parentId *int64
	added := 0
	for i := range lines {
		lines[i].CartID = cart.ID
		if nested && i > 0 {
			lines[i].ParentID = parentId
		}
		if err := h.items.Create(ctx, &lines[i]); err != nil {
			response.Error(ctx, http.StatusInternalServerError, "Failed to add cart item")
			return
		}
		if i == 0 {
			parentId = &lines[i].ID
		}
		if lines[i].ParentID == nil {
			added++
		}
	}

	cart.ItemsCount += added
	if err := h.carts.Save(ctx, cart); err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to save cart")
		return
	}

	if err := h.sync.RecomputeTotals(ctx, cart.ID); err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to recompute cart totals")
		return
	}

	h.renderCart(ctx, cart.ID)
}

// Get 购物车详情
func (h *CartHandler) Get(ctx *gin.Context) {
	cart, err := h.resolveCart(ctx, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Error(ctx, http.StatusNotFound, "Cart not found")
			return
		}
		response.Error(ctx, http.StatusInternalServerError, "Failed to resolve cart")
		return
	}
	h.renderCart(ctx, cart.ID)
}

// resolveCart 定位当前请求的购物车
// 登录顾客 → 其活动购物车；游客 → X-Cart-Token；create 为真时找不到就新建
func (h *CartHandler) resolveCart(ctx *gin.Context, create bool) (*model.Cart, error) {
	customerId := currentCustomerId(ctx)

	if customerId != 0 {
		cart, err := h.carts.FindActiveByCustomer(ctx, customerId)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrNotFound) || !create {
			return nil, err
		}

		cart = &model.Cart{
			Token:      uuid.NewString(),
			CustomerID: &customerId,
			IsActive:   true,
		}
		return cart, h.carts.Create(ctx, cart)
	}

	if token := ctx.GetHeader("X-Cart-Token"); token != "" {
		cart, err := h.carts.FindByToken(ctx, token)
		if err == nil || !errors.Is(err, repository.ErrNotFound) || !create {
			return cart, err
		}
	} else if !create {
		return nil, repository.ErrNotFound
	}

	cart := &model.Cart{
		Token:    uuid.NewString(),
		IsActive: true,
	}
	return cart, h.carts.Create(ctx, cart)
}

func (h *CartHandler) renderCart(ctx *gin.Context, cartId int64) {
	cart, err := h.carts.Find(ctx, cartId)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	items, err := h.items.ForCart(ctx, cartId)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to load cart items")
		return
	}

	response.Success(ctx, gin.H{
		"cart":  cart,
		"items": items,
		"token": cart.Token,
	})
}
