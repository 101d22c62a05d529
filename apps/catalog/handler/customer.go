package handler

import (
	"errors"
	"net/http"

	"go-commerce/apps/catalog/model"
	"go-commerce/apps/catalog/repository"
	"go-commerce/pkg/jwt"
	"go-commerce/pkg/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// CustomerHandler 顾客注册/登录
type CustomerHandler struct {
	customers *repository.CustomerRepository
}

func NewCustomerHandler(customers *repository.CustomerRepository) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register 注册顾客，落库的是 bcrypt 哈希
func (h *CustomerHandler) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if _, err := h.customers.FindByEmail(ctx, req.Email); err == nil {
		response.Error(ctx, http.StatusBadRequest, "Email already registered")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		response.Error(ctx, http.StatusInternalServerError, "Failed to check email")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	customer := &model.Customer{
		Email:    req.Email,
		Password: string(hashed),
		Name:     req.Name,
	}
	if err := h.customers.Create(ctx, customer); err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to create customer")
		return
	}

	response.Success(ctx, gin.H{"id": customer.ID, "email": customer.Email})
}

// Login 登录，发放 JWT
func (h *CustomerHandler) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	customer, err := h.customers.FindByEmail(ctx, req.Email)
	if err != nil {
		response.Error(ctx, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte(req.Password)) != nil {
		response.Error(ctx, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := jwt.GenerateToken(customer.ID, customer.Email)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	response.Success(ctx, gin.H{"token": token, "customer_id": customer.ID})
}
