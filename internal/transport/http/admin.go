package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/service"
)

// AdminHandler 管理接口处理器
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler 创建管理接口处理器
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// ListAddresses GET /admin/address?limit=&offset=&query=
func (h *AdminHandler) ListAddresses(c *gin.Context) {
	page, err := domain.ParsePage(c.Query("limit"), c.Query("offset"))
	if err != nil {
		Fail(c, err, MsgInvalidRequest)
		return
	}

	result, err := h.admin.SearchAddresses(c.Request.Context(), c.Query("query"), page)
	if err != nil {
		Fail(c, err, MsgListAddressFailed)
		return
	}

	JSON(c, result)
}

// DeleteAddress DELETE /admin/delete_address/:id
func (h *AdminHandler) DeleteAddress(c *gin.Context) {
	id, ok := addressID(c)
	if !ok {
		return
	}

	if err := h.admin.DeleteAddress(c.Request.Context(), id); err != nil {
		Fail(c, err, MsgDeleteAddressFailed)
		return
	}

	Success(c)
}

// ShowPassword GET /admin/show_password/:id，为地址重新签发令牌
func (h *AdminHandler) ShowPassword(c *gin.Context) {
	id, ok := addressID(c)
	if !ok {
		return
	}

	token, err := h.admin.ReissueToken(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, MsgIssueTokenFailed)
		return
	}

	JSON(c, gin.H{"password": token})
}

// ListMails GET /admin/mails?address=&limit=&offset=
func (h *AdminHandler) ListMails(c *gin.Context) {
	page, err := domain.ParsePage(c.Query("limit"), c.Query("offset"))
	if err != nil {
		Fail(c, err, MsgInvalidRequest)
		return
	}

	result, err := h.admin.ListMailFor(c.Request.Context(), c.Query("address"), page)
	if err != nil {
		Fail(c, err, MsgListMailsFailed)
		return
	}

	JSON(c, result)
}

// ListOrphanedMails GET /admin/mails_unknown?limit=&offset=
func (h *AdminHandler) ListOrphanedMails(c *gin.Context) {
	page, err := domain.ParsePage(c.Query("limit"), c.Query("offset"))
	if err != nil {
		Fail(c, err, MsgInvalidRequest)
		return
	}

	result, err := h.admin.ListOrphanedMail(c.Request.Context(), page)
	if err != nil {
		Fail(c, err, MsgListMailsFailed)
		return
	}

	JSON(c, result)
}

// Statistics GET /admin/statistics
func (h *AdminHandler) Statistics(c *gin.Context) {
	stats, err := h.admin.Statistics(c.Request.Context())
	if err != nil {
		Fail(c, err, MsgStatisticsFailed)
		return
	}

	JSON(c, stats)
}

func addressID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, MsgInvalidAddressID)
		return 0, false
	}
	return id, true
}
