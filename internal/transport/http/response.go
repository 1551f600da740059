package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"capmail/backend/internal/middleware"
)

// JSON 成功响应，直接返回数据本身
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Success 成功响应 {"success": true}
func Success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Fail 错误响应，正文为纯文本。业务错误返回其消息，其余错误返回 fallback。
func Fail(c *gin.Context, err error, fallback string) {
	middleware.AbortWithError(c, err, fallback)
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	c.String(http.StatusBadRequest, msg)
}

// Blob 返回附件内容，内容是合法 JSON 时按 JSON 返回
func Blob(c *gin.Context, data string) {
	if json.Valid([]byte(data)) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(data))
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", []byte(data))
}
