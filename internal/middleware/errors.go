package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"capmail/backend/internal/domain"
)

// StatusOf 按业务错误分类选择状态码，非业务错误为 500
func StatusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindDirectory:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError 以纯文本中止请求。业务错误返回其消息，其余错误返回 fallback，
// 原始错误挂在 gin 上下文上由请求日志记录，不写入响应。
func AbortWithError(c *gin.Context, err error, fallback string) {
	status := StatusOf(err)
	msg := fallback
	if status != http.StatusInternalServerError {
		msg = err.Error()
	} else {
		_ = c.Error(err)
	}
	c.Abort()
	c.String(status, msg)
}
