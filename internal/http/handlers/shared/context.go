package shared

import (
	"github.com/orchard-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// CurrentUserID 从上下文读取当前登录用户 ID。
func CurrentUserID(c *gin.Context) (uint, bool) {
	return contextUint(c, "user_id")
}

// CurrentAdminID 从上下文读取当前登录管理员 ID。
func CurrentAdminID(c *gin.Context) (uint, bool) {
	return contextUint(c, "admin_id")
}

func contextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, "invalid identity", nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, "invalid identity", nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, "invalid identity type", nil)
		return 0, false
	}
}
