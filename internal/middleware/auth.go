package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/convlog/internal/service/auth"
)

// ContextKeyClaims 上下文中的令牌信息键
const ContextKeyClaims = "claims"

// errorBody 与 handler 的响应格式一致
func errorBody(msg string) gin.H {
	return gin.H{"success": false, "message": msg}
}

// RequireAdmin 要求管理员令牌
// 缺少或无效的令牌返回 401，非管理员返回 403
func RequireAdmin(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Missing Authorization header"))
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Invalid Authorization header format"))
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := svc.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Invalid or expired token"))
			return
		}

		if !svc.IsAdmin(claims) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody("Administrator privileges required"))
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims 从上下文获取令牌信息
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
