package handler

import (
	"strconv"

	"petro_trade/service"

	"github.com/gin-gonic/gin"
)

// TradeHandler 交易生命周期接口
type TradeHandler struct {
	svc service.TradeService
}

// NewTradeHandler 创建交易Handler
func NewTradeHandler(svc service.TradeService) *TradeHandler {
	return &TradeHandler{svc: svc}
}

// CreateListing 创建挂单
// POST /api/v1/listings
func (h *TradeHandler) CreateListing(c *gin.Context) {
	var req service.CreateListingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.SellerID = currentUser(c)

	id, err := h.svc.CreateListing(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"listing_id": id})
}

// WithdrawListing 撤下挂单
// DELETE /api/v1/listings/:id
func (h *TradeHandler) WithdrawListing(c *gin.Context) {
	if err := h.svc.WithdrawListing(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// ListListings 公开报盘（分页）
// GET /api/v1/listings?page=1&page_size=10
func (h *TradeHandler) ListListings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	listings, total, err := h.svc.ListOpenListings(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"listings": listings, "total": total})
}

// GetListing 挂单详情
// GET /api/v1/listings/:id
func (h *TradeHandler) GetListing(c *gin.Context) {
	listing, err := h.svc.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, listing)
}

// MyListings 我的挂单
// GET /api/v1/listings/mine
func (h *TradeHandler) MyListings(c *gin.Context) {
	listings, err := h.svc.ListSellerListings(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, listings)
}

// AcceptTrade 买家接受挂单
// POST /api/v1/trades/accept
func (h *TradeHandler) AcceptTrade(c *gin.Context) {
	var req service.AcceptTradeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.BuyerID = currentUser(c)

	tradeID, err := h.svc.AcceptTrade(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"trade_id": tradeID})
}

// ToggleChecklist 勾选清单项
// POST /api/v1/trades/:id/checklist
func (h *TradeHandler) ToggleChecklist(c *gin.Context) {
	var req service.ToggleChecklistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.TradeID = c.Param("id")
	req.ActorID = currentUser(c)

	progress, err := h.svc.CompleteChecklistItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, progress)
}

// RaiseDispute 发起争议
// POST /api/v1/trades/:id/dispute
func (h *TradeHandler) RaiseDispute(c *gin.Context) {
	var req service.RaiseDisputeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.TradeID = c.Param("id")
	req.ActorID = currentUser(c)

	trade, err := h.svc.RaiseDispute(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, trade)
}

// ResolveDispute 仲裁裁决（仅arbitrator角色）
// POST /api/v1/trades/:id/resolve
func (h *TradeHandler) ResolveDispute(c *gin.Context) {
	var req service.ResolveDisputeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.TradeID = c.Param("id")
	req.ArbitratorID = currentUser(c)

	trade, err := h.svc.ResolveDispute(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, trade)
}

// GetTrade 交易详情
// GET /api/v1/trades/:id
func (h *TradeHandler) GetTrade(c *gin.Context) {
	detail, err := h.svc.GetTradeDetail(c.Request.Context(), c.Param("id"), currentUser(c), isArbitrator(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, detail)
}

// MyTrades 我的交易
// GET /api/v1/trades
func (h *TradeHandler) MyTrades(c *gin.Context) {
	trades, err := h.svc.ListUserTrades(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, trades)
}

// EscrowLedger 托管流水回放（审计视图，交易双方与仲裁方可见）
// GET /api/v1/trades/:id/escrow
func (h *TradeHandler) EscrowLedger(c *gin.Context) {
	tradeID := c.Param("id")

	// 权限复用详情查询的可见性规则
	if _, err := h.svc.GetTradeDetail(c.Request.Context(), tradeID, currentUser(c), isArbitrator(c)); err != nil {
		respondError(c, err)
		return
	}

	state, events, err := h.svc.ReplayEscrow(c.Request.Context(), tradeID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"state": state, "events": events})
}
