package dao

import (
	"context"
	"time"

	"petro_trade/errs"
	"petro_trade/model"

	"gorm.io/gorm"
)

// gormShopStore ShopStore的MySQL实现
type gormShopStore struct {
	db *gorm.DB
}

// NewGormShopStore 创建商城存储
func NewGormShopStore(db *gorm.DB) ShopStore {
	return &gormShopStore{db: db}
}

// CreateProduct 创建商品
func (s *gormShopStore) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "create product failed", err)
	}
	return nil
}

// GetProduct 查询商品
func (s *gormShopStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, wrapNotFound(err, "product not found")
	}
	return &p, nil
}

// ListProducts 查询商品列表，可按类目过滤
func (s *gormShopStore) ListProducts(ctx context.Context, category model.ProductCategory, activeOnly bool) ([]model.Product, error) {
	var products []model.Product
	query := s.db.WithContext(ctx).Model(&model.Product{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list products failed", err)
	}
	return products, nil
}

// CreateOrderReservingStock 下单并预留库存。
// 扣减必须是单条条件更新（stock_quantity >= qty），
// 与订单插入同事务，并发下不会超卖、库存不会为负
func (s *gormShopStore) CreateOrderReservingStock(ctx context.Context, order *model.Order) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&model.Product{}).
		Where("id = ? AND is_active = ? AND stock_quantity >= ?", order.ProductID, true, order.Quantity).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity - ?", order.Quantity),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "reserve stock failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		var p model.Product
		if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", order.ProductID, true).First(&p).Error; err != nil {
			return errs.New(errs.CodeNotFound, "product not found")
		}
		return errs.New(errs.CodeOutOfStock, "insufficient stock")
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "create order failed", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "commit order failed", err)
	}
	return nil
}

// CancelOrderRestock 取消订单并回补库存（仅pending可取消）
func (s *gormShopStore) CancelOrderRestock(ctx context.Context, orderID, userID string) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var order model.Order
	if err := tx.Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
		tx.Rollback()
		return wrapNotFound(err, "order not found")
	}

	res := tx.Model(&model.Order{}).
		Where("id = ? AND order_status = ?", orderID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"order_status": model.OrderStatusCancelled,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "cancel order failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return errs.New(errs.CodeInvalidState, "order not cancellable")
	}

	if err := tx.Model(&model.Product{}).
		Where("id = ?", order.ProductID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", order.Quantity)).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "restock failed", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "commit cancel failed", err)
	}
	return nil
}

// GetOrder 查询订单
func (s *gormShopStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, wrapNotFound(err, "order not found")
	}
	return &order, nil
}

// ListOrdersByUser 查询用户订单
func (s *gormShopStore) ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	var orders []model.Order
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list orders failed", err)
	}
	return orders, nil
}
