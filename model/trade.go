package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeStatus 交易状态
type TradeStatus string

const (
	TradeStatusPending    TradeStatus = "pending"     // 待撮合（挂单未匹配）
	TradeStatusAccepted   TradeStatus = "accepted"    // 已撮合
	TradeStatusInProgress TradeStatus = "in_progress" // 履约中
	TradeStatusCompleted  TradeStatus = "completed"   // 已完成（终态）
	TradeStatusCancelled  TradeStatus = "cancelled"   // 已取消（终态）
	TradeStatusDisputed   TradeStatus = "disputed"    // 争议中（等待仲裁，非终态）
)

// tradeTransitions 交易状态机：仅允许表内迁移
var tradeTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusPending:    {TradeStatusAccepted, TradeStatusCancelled},
	TradeStatusAccepted:   {TradeStatusInProgress, TradeStatusCompleted, TradeStatusDisputed},
	TradeStatusInProgress: {TradeStatusCompleted, TradeStatusDisputed},
	TradeStatusDisputed:   {TradeStatusCompleted, TradeStatusCancelled},
}

// CanTransition 判断状态迁移是否合法
func (s TradeStatus) CanTransition(to TradeStatus) bool {
	for _, next := range tradeTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal 判断是否终态
func (s TradeStatus) Terminal() bool {
	return s == TradeStatusCompleted || s == TradeStatusCancelled
}

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodUSDT PaymentMethod = "usdt"          // 已开放
	PaymentMethodWire PaymentMethod = "wire_transfer" // 预留未开放
	PaymentMethodBank PaymentMethod = "bank_transfer" // 预留未开放
)

// Enabled 支付方式是否已开放（目前仅USDT）
func (p PaymentMethod) Enabled() bool {
	return p == PaymentMethodUSDT
}

// ListingStatus 挂单状态
type ListingStatus string

const (
	ListingStatusOpen      ListingStatus = "open"      // 挂单中，可被撮合
	ListingStatusMatched   ListingStatus = "matched"   // 已撮合，进入交易生命周期
	ListingStatusWithdrawn ListingStatus = "withdrawn" // 卖家已撤下（仅限未撮合）
)

// TradeListing 交易挂单（卖家报盘）
type TradeListing struct {
	ID                   string          `gorm:"primary_key;type:varchar(36)" json:"id"`
	SellerID             string          `gorm:"column:seller_id;type:varchar(36);index" json:"seller_id"`
	ProductType          string          `gorm:"column:product_type" json:"product_type"`
	Quantity             decimal.Decimal `gorm:"column:quantity;type:decimal(20,2)" json:"quantity"`
	Unit                 string          `gorm:"column:unit" json:"unit"`
	PricePerUnit         decimal.Decimal `gorm:"column:price_per_unit;type:decimal(20,2)" json:"price_per_unit"`
	TotalAmount          decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2)" json:"total_amount"` // 服务端重算，不信任入参
	PaymentMethod        PaymentMethod   `gorm:"column:payment_method;type:varchar(20)" json:"payment_method"`
	DeliveryLocation     string          `gorm:"column:delivery_location" json:"delivery_location"`
	ExpectedDeliveryDate *time.Time      `gorm:"column:expected_delivery_date" json:"expected_delivery_date"`
	Status               ListingStatus   `gorm:"column:status;type:varchar(20);index" json:"status"`
	CreatedAt            time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (l *TradeListing) TableName() string {
	return "trade_listings"
}

// BeforeCreate 创建前钩子
func (l *TradeListing) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = ListingStatusOpen
	}
	return nil
}

// Trade 交易（挂单撮合后生成，只进终态不删除）
type Trade struct {
	ID               string        `gorm:"primary_key;type:varchar(36)" json:"id"`
	ListingID        string        `gorm:"column:listing_id;type:varchar(36);uniqueIndex" json:"listing_id"`
	SellerID         string        `gorm:"column:seller_id;type:varchar(36);index" json:"seller_id"`
	BuyerID          string        `gorm:"column:buyer_id;type:varchar(36);index" json:"buyer_id"`
	Status           TradeStatus   `gorm:"column:status;type:varchar(20)" json:"status"`
	EscrowStatus     EscrowStatus  `gorm:"column:escrow_status;type:varchar(20)" json:"escrow_status"`
	PaymentMethod    PaymentMethod `gorm:"column:payment_method;type:varchar(20)" json:"payment_method"`
	DeliveryLocation string        `gorm:"column:delivery_location" json:"delivery_location"`
	DisputeReason    string        `gorm:"column:dispute_reason" json:"dispute_reason,omitempty"`
	DisputedBy       string        `gorm:"column:disputed_by;type:varchar(36)" json:"disputed_by,omitempty"`
	CreatedAt        time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (t *Trade) TableName() string {
	return "trades"
}

// BeforeCreate 创建前钩子
func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// Active 交易是否处于可履约状态（清单可变更）
func (t *Trade) Active() bool {
	return t.Status == TradeStatusAccepted || t.Status == TradeStatusInProgress
}

// PartyRole 返回操作者在交易中的角色，非交易双方返回空
func (t *Trade) PartyRole(userID string) ChecklistRole {
	switch userID {
	case t.SellerID:
		return ChecklistRoleSeller
	case t.BuyerID:
		return ChecklistRoleBuyer
	}
	return ""
}
