package service

import (
	"context"
	"fmt"

	"petro_trade/dao"
	"petro_trade/errs"
	"petro_trade/model"
	"petro_trade/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderService 商城订单服务接口
type OrderService interface {
	CreateProduct(ctx context.Context, req CreateProductReq) (string, error)
	ListProducts(ctx context.Context, category string) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	PlaceOrder(ctx context.Context, req PlaceOrderReq) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID, userID string) error
	GetOrder(ctx context.Context, orderID, userID string) (*model.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]model.Order, error)
}

// orderService 订单服务实现
type orderService struct {
	store dao.ShopStore
}

// NewOrderService 创建订单服务
func NewOrderService(store dao.ShopStore) OrderService {
	return &orderService{store: store}
}

// CreateProductReq 创建商品请求（管理端）
type CreateProductReq struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Price         string `json:"price"`
	Unit          string `json:"unit"`
	StockQuantity int64  `json:"stock_quantity"`
}

// PlaceOrderReq 下单请求
type PlaceOrderReq struct {
	UserID          string                `json:"-"`
	ProductID       string                `json:"product_id"`
	Quantity        int64                 `json:"quantity"`
	PaymentMethod   string                `json:"payment_method"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
}

// CreateProduct 创建商品
func (s *orderService) CreateProduct(ctx context.Context, req CreateProductReq) (string, error) {
	if req.Name == "" || req.Unit == "" {
		return "", errs.New(errs.CodeValidation, "name and unit required")
	}
	category := model.ProductCategory(req.Category)
	if !model.ValidCategory(category) {
		return "", errs.Newf(errs.CodeValidation, "unknown category %q", req.Category)
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		return "", errs.New(errs.CodeValidation, "price must be positive")
	}
	if req.StockQuantity < 0 {
		return "", errs.New(errs.CodeValidation, "stock must not be negative")
	}

	product := &model.Product{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		Category:      category,
		Price:         price,
		Unit:          req.Unit,
		StockQuantity: req.StockQuantity,
		IsActive:      true,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return "", err
	}
	return product.ID, nil
}

// ListProducts 查询上架商品
func (s *orderService) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	c := model.ProductCategory(category)
	if category != "" && !model.ValidCategory(c) {
		return nil, errs.Newf(errs.CodeValidation, "unknown category %q", category)
	}
	return s.store.ListProducts(ctx, c, true)
}

// GetProduct 查询商品
func (s *orderService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// PlaceOrder 下单。总额为下单时快照，库存扣减与订单插入同事务
func (s *orderService) PlaceOrder(ctx context.Context, req PlaceOrderReq) (*model.Order, error) {
	if req.Quantity <= 0 {
		return nil, errs.New(errs.CodeValidation, "quantity must be positive")
	}

	paymentMethod := model.PaymentMethod(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = model.PaymentMethodUSDT
	}
	if !paymentMethod.Enabled() {
		return nil, errs.Newf(errs.CodeValidation, "payment method %s not yet available", paymentMethod)
	}

	addr := req.ShippingAddress
	if addr.Address == "" || addr.City == "" || addr.Country == "" || addr.Phone == "" {
		return nil, errs.New(errs.CodeValidation, "address, city, country and phone required")
	}

	product, err := s.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, errs.New(errs.CodeNotFound, "product not available")
	}

	order := &model.Order{
		ID:              uuid.NewString(),
		OrderNo:         utils.GenerateOrderNo(),
		UserID:          req.UserID,
		ProductID:       product.ID,
		Quantity:        req.Quantity,
		TotalAmount:     product.Price.Mul(decimal.NewFromInt(req.Quantity)),
		PaymentMethod:   paymentMethod,
		PaymentStatus:   model.PaymentStatusPending,
		OrderStatus:     model.OrderStatusPending,
		ShippingAddress: addr,
	}

	if err := s.store.CreateOrderReservingStock(ctx, order); err != nil {
		return nil, err
	}

	utils.PublishLifecycleMsg(ctx, &utils.LifecycleMsg{
		Event:   "order.created",
		RefID:   order.ID,
		UserIDs: []string{req.UserID},
		Actor:   req.UserID,
		Detail:  fmt.Sprintf("%s x%d = %s", product.Name, req.Quantity, order.TotalAmount),
	})

	return order, nil
}

// CancelOrder 取消订单（仅pending，其余状态归履约方管理）
func (s *orderService) CancelOrder(ctx context.Context, orderID, userID string) error {
	if err := s.store.CancelOrderRestock(ctx, orderID, userID); err != nil {
		return err
	}

	utils.PublishLifecycleMsg(ctx, &utils.LifecycleMsg{
		Event:   "order.cancelled",
		RefID:   orderID,
		UserIDs: []string{userID},
		Actor:   userID,
	})
	return nil
}

// GetOrder 查询订单详情（仅订单归属人可见，他人视同不存在）
func (s *orderService) GetOrder(ctx context.Context, orderID, userID string) (*model.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, errs.New(errs.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListUserOrders 查询用户订单
func (s *orderService) ListUserOrders(ctx context.Context, userID string) ([]model.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}
