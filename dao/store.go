package dao

import (
	"context"

	"petro_trade/model"
)

// MatchBundle 撮合原子单元：挂单置为matched的同时写入的全部记录
type MatchBundle struct {
	Trade      *model.Trade
	Checklists []*model.Checklist
	Escrow     *model.EscrowEntry
	Event      *model.EscrowEvent
}

// TradeStore 交易/挂单/托管/清单存储。
// 多行原子操作收敛在单个方法内（一个数据库事务+条件更新），
// 禁止跨两次往返的读改写。
type TradeStore interface {
	CreateListing(ctx context.Context, listing *model.TradeListing) error
	GetListing(ctx context.Context, id string) (*model.TradeListing, error)
	GetListings(ctx context.Context, ids []string) ([]model.TradeListing, error)
	ListOpenListings(ctx context.Context, page, pageSize int) ([]model.TradeListing, int64, error)
	ListListingsBySeller(ctx context.Context, sellerID string) ([]model.TradeListing, error)
	// WithdrawListing 条件更新open→withdrawn；已撮合返回already_matched
	WithdrawListing(ctx context.Context, id string) error
	// MatchListing 原子撮合：挂单open→matched + 创建交易/双方清单/托管账目/首条流水，
	// 全有或全无；并发撮合同一挂单恰有一个赢家，其余already_matched
	MatchListing(ctx context.Context, listingID string, bundle *MatchBundle) error

	GetTrade(ctx context.Context, id string) (*model.Trade, error)
	ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error)
	GetChecklist(ctx context.Context, tradeID string, role model.ChecklistRole) (*model.Checklist, error)
	GetChecklists(ctx context.Context, tradeID string) ([]model.Checklist, error)
	// SaveChecklistProgress 保存清单，advance时交易迁移到in_progress。
	// 状态守卫是IN(accepted,in_progress)的条件更新：并发勾选互不误伤，
	// 交易已离开活跃态才返回invalid_state
	SaveChecklistProgress(ctx context.Context, cl *model.Checklist, advance bool) error
	// CompleteTradeIfReady 保存清单后在同一事务内检查对方清单：双方均100%则
	// 交易→completed、托管held→released并追加流水（联动原子迁移，外部不可观察到中间态）；
	// 对方未完成则仅保存清单。返回是否完成
	CompleteTradeIfReady(ctx context.Context, cl *model.Checklist, event *model.EscrowEvent) (bool, error)
	// FreezeEscrow 原子：交易→disputed + 托管held→frozen + 追加流水
	FreezeEscrow(ctx context.Context, tradeID, actor, reason string, event *model.EscrowEvent) error
	// ResolveDispute 原子：disputed→(completed|cancelled) + frozen→(released|refunded) + 追加流水
	ResolveDispute(ctx context.Context, tradeID string, tradeStatus model.TradeStatus, escrowState model.EscrowStatus, event *model.EscrowEvent) error

	GetEscrow(ctx context.Context, tradeID string) (*model.EscrowEntry, error)
	ListEscrowEvents(ctx context.Context, tradeID string) ([]model.EscrowEvent, error)
}

// ShopStore 商城商品/订单存储
type ShopStore interface {
	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, category model.ProductCategory, activeOnly bool) ([]model.Product, error)
	// CreateOrderReservingStock 原子：条件扣减库存(stock>=qty)+插入订单；库存不足返回out_of_stock
	CreateOrderReservingStock(ctx context.Context, order *model.Order) error
	// CancelOrderRestock 条件更新pending→cancelled并回补库存
	CancelOrderRestock(ctx context.Context, orderID, userID string) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
}

// InvestStore 投资标的/申请/用户资料存储
type InvestStore interface {
	CreateInvestment(ctx context.Context, inv *model.Investment) error
	ListOpenInvestments(ctx context.Context) ([]model.Investment, error)
	GetInvestment(ctx context.Context, id string) (*model.Investment, error)
	CreateApplication(ctx context.Context, app *model.InvestmentApplication) error
	ListApplicationsByUser(ctx context.Context, userID string) ([]model.InvestmentApplication, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	SaveProfile(ctx context.Context, p *model.Profile) error
}

// NotificationStore 通知记录存储
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}
