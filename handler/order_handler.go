package handler

import (
	"petro_trade/service"

	"github.com/gin-gonic/gin"
)

// OrderHandler 商城商品与订单接口
type OrderHandler struct {
	svc service.OrderService
}

// NewOrderHandler 创建订单Handler
func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// CreateProduct 创建商品（仅admin角色）
// POST /api/v1/products
func (h *OrderHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	id, err := h.svc.CreateProduct(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"product_id": id})
}

// ListProducts 上架商品列表（可按品类过滤）
// GET /api/v1/products?category=crude_oil
func (h *OrderHandler) ListProducts(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, products)
}

// GetProduct 商品详情
// GET /api/v1/products/:id
func (h *OrderHandler) GetProduct(c *gin.Context) {
	product, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, product)
}

// PlaceOrder 下单
// POST /api/v1/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req service.PlaceOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.UserID = currentUser(c)

	order, err := h.svc.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, order)
}

// CancelOrder 取消订单
// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	if err := h.svc.CancelOrder(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// GetOrder 订单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, order)
}

// MyOrders 我的订单
// GET /api/v1/orders
func (h *OrderHandler) MyOrders(c *gin.Context) {
	orders, err := h.svc.ListUserOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, orders)
}
