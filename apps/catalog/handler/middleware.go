package handler

import (
	"net/http"
	"strings"

	"go-commerce/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 顾客登录态校验
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 获取 Header 里的 Authorization
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// 2. 格式通常是 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			c.Abort()
			return
		}

		// 3. 解析 Token
		claims, err := jwt.ParseToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		// 4. 将解析出来的 customer_id 存入 Context，供后续 Handler 使用
		c.Set("customerId", claims.CustomerId)
		c.Set("email", claims.Email)

		c.Next()
	}
}

// OptionalAuthMiddleware 购物车接口：游客放行，带合法 Token 则识别顾客
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}

		if claims, err := jwt.ParseToken(parts[1]); err == nil {
			c.Set("customerId", claims.CustomerId)
			c.Set("email", claims.Email)
		}

		c.Next()
	}
}

// currentCustomerId 从 Context 取当前顾客，游客返回 0
func currentCustomerId(c *gin.Context) int64 {
	if v, ok := c.Get("customerId"); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
