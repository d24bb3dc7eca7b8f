package middleware

import (
	"strings"

	"leasehub/pkg/jwt"
	"leasehub/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证中间件；令牌由平台认证服务签发，这里只校验
type AuthMiddleware struct {
	jwtManager *jwt.JWTManager
}

func NewAuthMiddleware(jwtManager *jwt.JWTManager) *AuthMiddleware {
	if jwtManager == nil {
		jwtManager = jwt.GetJWTManager()
	}
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireLogin 校验 Bearer 令牌并把声明写入上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("org_id", claims.OrgID)
		c.Set("username", claims.Username)
		c.Set("is_admin", claims.IsAdmin)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequireAdmin 要求组织管理员
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if claims, ok := value.(*jwt.JWTClaims); !ok || !claims.IsAdmin {
			response.Forbidden(c, "权限不足：需要组织管理员")
			c.Abort()
			return
		}

		c.Next()
	}
}
