package handler

import (
	"net/http"

	"petro_trade/errs"

	"github.com/gin-gonic/gin"
)

// 身份上下文Key（身份方通过网关注入请求头，本服务只消费不存凭证）
const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"

	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"

	RoleArbitrator = "arbitrator"
	RoleAdmin      = "admin"
)

// AuthRequired 要求已认证用户
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  "authentication required",
			})
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, c.GetHeader(headerUserRole))
		c.Next()
	}
}

// RoleRequired 要求指定角色声明
func RoleRequired(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": http.StatusForbidden,
				"msg":  "role " + role + " required",
			})
			return
		}
		c.Next()
	}
}

// currentUser 取当前用户ID
func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// isArbitrator 当前用户是否仲裁方
func isArbitrator(c *gin.Context) bool {
	return c.GetString(ctxUserRole) == RoleArbitrator
}

// respondOK 成功响应
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"msg":  "success",
		"data": data,
	})
}

// respondError 业务错误响应：错误码稳定，预期竞争结果不是故障
func respondError(c *gin.Context, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	c.JSON(status, gin.H{
		"code":       status,
		"error_code": string(code),
		"msg":        err.Error(),
	})
}

// respondBadRequest 参数绑定失败响应
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code": http.StatusBadRequest,
		"msg":  err.Error(),
	})
}
