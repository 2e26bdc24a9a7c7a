package handler

import (
	"strconv"

	"petro_trade/service"

	"github.com/gin-gonic/gin"
)

// InvestHandler 投资与用户资料接口
type InvestHandler struct {
	svc       service.InvestService
	notifySvc service.NotifyService
}

// NewInvestHandler 创建投资Handler
func NewInvestHandler(svc service.InvestService, notifySvc service.NotifyService) *InvestHandler {
	return &InvestHandler{svc: svc, notifySvc: notifySvc}
}

// CreateInvestment 创建投资标的（仅admin角色）
// POST /api/v1/investments
func (h *InvestHandler) CreateInvestment(c *gin.Context) {
	var req service.CreateInvestmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	id, err := h.svc.CreateInvestment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"investment_id": id})
}

// ListInvestments 开放申购的标的列表
// GET /api/v1/investments
func (h *InvestHandler) ListInvestments(c *gin.Context) {
	investments, err := h.svc.ListOpenInvestments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, investments)
}

// Apply 提交投资申请
// POST /api/v1/investments/apply
func (h *InvestHandler) Apply(c *gin.Context) {
	var req service.ApplyInvestmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.UserID = currentUser(c)

	id, err := h.svc.Apply(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"application_id": id})
}

// MyApplications 我的投资申请
// GET /api/v1/investments/applications
func (h *InvestHandler) MyApplications(c *gin.Context) {
	apps, err := h.svc.ListUserApplications(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, apps)
}

// GetProfile 我的资料
// GET /api/v1/profile
func (h *InvestHandler) GetProfile(c *gin.Context) {
	profile, err := h.svc.GetProfile(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, profile)
}

// SaveProfile 保存我的资料
// PUT /api/v1/profile
func (h *InvestHandler) SaveProfile(c *gin.Context) {
	var req service.SaveProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.UserID = currentUser(c)

	if err := h.svc.SaveProfile(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// MyNotifications 我的通知历史
// GET /api/v1/notifications?limit=20
func (h *InvestHandler) MyNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	notifications, err := h.notifySvc.ListUserNotifications(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, notifications)
}
