package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductCategory 商品类目
type ProductCategory string

const (
	CategoryCrudeOil   ProductCategory = "crude_oil"
	CategoryDiesel     ProductCategory = "diesel"
	CategoryJetFuel    ProductCategory = "jet_fuel"
	CategoryLPG        ProductCategory = "lpg"
	CategoryLubricants ProductCategory = "lubricants"
	CategoryEquipment  ProductCategory = "equipment"
	CategoryReports    ProductCategory = "reports"
)

// ValidCategory 类目是否合法
func ValidCategory(c ProductCategory) bool {
	switch c {
	case CategoryCrudeOil, CategoryDiesel, CategoryJetFuel, CategoryLPG,
		CategoryLubricants, CategoryEquipment, CategoryReports:
		return true
	}
	return false
}

// Product 商品（商城目录，读多写少）
type Product struct {
	ID            string          `gorm:"primary_key;type:varchar(36)" json:"id"`
	Name          string          `gorm:"column:name" json:"name"`
	Description   string          `gorm:"column:description" json:"description"`
	Category      ProductCategory `gorm:"column:category;type:varchar(20);index" json:"category"`
	Price         decimal.Decimal `gorm:"column:price;type:decimal(20,2)" json:"price"`
	Unit          string          `gorm:"column:unit" json:"unit"`
	StockQuantity int64           `gorm:"column:stock_quantity" json:"stock_quantity"` // 恒≥0，扣减必须条件更新
	IsActive      bool            `gorm:"column:is_active" json:"is_active"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (p *Product) TableName() string {
	return "products"
}

// BeforeCreate 创建前钩子
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// OrderStatus 订单履约状态（pending之后由履约方推进，不在本服务范围内）
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// ShippingAddress 收货信息（JSON列）
type ShippingAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes"`
}

// Value 实现driver.Valuer
func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan 实现sql.Scanner
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("shipping address: unsupported column type")
	}
	return json.Unmarshal(data, a)
}

// Order 商城订单
type Order struct {
	ID              string          `gorm:"primary_key;type:varchar(36)" json:"id"`
	OrderNo         string          `gorm:"column:order_no;uniqueIndex" json:"order_no"` // 人读编号：{毫秒时间戳}-{uuid后8位}
	UserID          string          `gorm:"column:user_id;type:varchar(36);index" json:"user_id"`
	ProductID       string          `gorm:"column:product_id;type:varchar(36);index" json:"product_id"`
	Quantity        int64           `gorm:"column:quantity" json:"quantity"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2)" json:"total_amount"` // 下单时快照，后续不重算
	PaymentMethod   PaymentMethod   `gorm:"column:payment_method;type:varchar(20)" json:"payment_method"`
	PaymentStatus   PaymentStatus   `gorm:"column:payment_status;type:varchar(20)" json:"payment_status"`
	OrderStatus     OrderStatus     `gorm:"column:order_status;type:varchar(20)" json:"order_status"`
	ShippingAddress ShippingAddress `gorm:"column:shipping_address;type:json" json:"shipping_address"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (o *Order) TableName() string {
	return "orders"
}

// BeforeCreate 创建前钩子
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}
