package httptransport

import (
	"github.com/gin-gonic/gin"

	"capmail/backend/internal/auth"
	"capmail/backend/internal/middleware"
	"capmail/backend/internal/service"
)

// PublicHandler 公开接口处理器（无需令牌）
type PublicHandler struct {
	directory *service.Directory
	access    *auth.CredentialSet
}

// NewPublicHandler 创建公开接口处理器
func NewPublicHandler(directory *service.Directory, access *auth.CredentialSet) *PublicHandler {
	return &PublicHandler{
		directory: directory,
		access:    access,
	}
}

// OpenSettings 返回前端需要的公开配置，请求已携带正确站点口令时 needAuth 为 false
//
// GET /open/settings
func (h *PublicHandler) OpenSettings(c *gin.Context) {
	JSON(c, gin.H{
		"prefix":   h.directory.Policy().Prefix(),
		"domains":  h.directory.Domains(),
		"needAuth": !h.access.Empty() && !h.access.Match(c.GetHeader(middleware.AccessHeader)),
	})
}

// NewAddress 创建地址并返回能力令牌
//
// GET /new_address?name=&domain=
func (h *PublicHandler) NewAddress(c *gin.Context) {
	provisioned, err := h.directory.Provision(c.Request.Context(), c.Query("name"), c.Query("domain"))
	if err != nil {
		Fail(c, err, MsgCreateAddressFailed)
		return
	}

	JSON(c, gin.H{"jwt": provisioned.Token})
}
