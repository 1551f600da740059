package httptransport

import (
	"github.com/gin-gonic/gin"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/middleware"
	"capmail/backend/internal/service"
)

// MailboxHandler 令牌持有者的邮箱接口
type MailboxHandler struct {
	mailbox   *service.MailboxService
	directory *service.Directory
	replies   *service.AutoReplyService
}

// NewMailboxHandler 创建邮箱接口处理器
func NewMailboxHandler(mailbox *service.MailboxService, directory *service.Directory, replies *service.AutoReplyService) *MailboxHandler {
	return &MailboxHandler{
		mailbox:   mailbox,
		directory: directory,
		replies:   replies,
	}
}

// ListMails GET /mails?limit=&offset=
func (h *MailboxHandler) ListMails(c *gin.Context) {
	addr, _ := middleware.GetAddress(c)

	page, err := domain.ParsePage(c.Query("limit"), c.Query("offset"))
	if err != nil {
		Fail(c, err, MsgInvalidRequest)
		return
	}

	result, err := h.mailbox.ListMail(c.Request.Context(), addr.Address, page)
	if err != nil {
		Fail(c, err, MsgListMailsFailed)
		return
	}

	JSON(c, result)
}

// GetAttachment GET /attachment/:id
func (h *MailboxHandler) GetAttachment(c *gin.Context) {
	addr, _ := middleware.GetAddress(c)

	data, err := h.mailbox.GetAttachment(c.Request.Context(), addr.Address, c.Param("id"))
	if err != nil {
		Fail(c, err, MsgAttachmentFailed)
		return
	}

	Blob(c, data)
}

// DeleteAddress DELETE /delete_address
func (h *MailboxHandler) DeleteAddress(c *gin.Context) {
	addr, _ := middleware.GetAddress(c)

	if _, err := h.directory.Release(c.Request.Context(), addr); err != nil {
		Fail(c, err, MsgDeleteAddressFailed)
		return
	}

	Success(c)
}

// GetSettings GET /settings
func (h *MailboxHandler) GetSettings(c *gin.Context) {
	claim, _ := middleware.GetClaim(c)

	settings, err := h.replies.Get(c.Request.Context(), claim)
	if err != nil {
		Fail(c, err, MsgLoadSettingsFailed)
		return
	}

	var reply interface{} = gin.H{}
	if settings.Reply != nil {
		reply = settings.Reply
	}

	JSON(c, gin.H{
		"auto_reply": reply,
		"address":    settings.Address,
	})
}

type saveSettingsRequest struct {
	AutoReply *domain.AutoReply `json:"auto_reply"`
}

// SaveSettings POST /settings
func (h *MailboxHandler) SaveSettings(c *gin.Context) {
	claim, _ := middleware.GetClaim(c)

	var req saveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.AutoReply == nil {
		BadRequest(c, MsgInvalidAutoReply)
		return
	}

	if err := h.replies.Set(c.Request.Context(), claim, *req.AutoReply); err != nil {
		Fail(c, err, MsgSaveSettingsFailed)
		return
	}

	Success(c)
}
