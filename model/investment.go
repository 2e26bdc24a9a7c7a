package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investment 投资标的
type Investment struct {
	ID                string          `gorm:"primary_key;type:varchar(36)" json:"id"`
	Title             string          `gorm:"column:title" json:"title"`
	Description       string          `gorm:"column:description" json:"description"`
	InvestmentType    string          `gorm:"column:investment_type" json:"investment_type"`
	MinimumInvestment decimal.Decimal `gorm:"column:minimum_investment;type:decimal(20,2)" json:"minimum_investment"`
	ExpectedReturn    string          `gorm:"column:expected_return" json:"expected_return"`
	Duration          string          `gorm:"column:duration" json:"duration"`
	Status            string          `gorm:"column:status;type:varchar(20);index" json:"status"` // open/closed
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (i *Investment) TableName() string {
	return "investments"
}

// BeforeCreate 创建前钩子
func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	i.CreatedAt = now
	i.UpdatedAt = now
	return nil
}

// InvestmentStatusOpen 开放申购
const InvestmentStatusOpen = "open"

// InvestmentApplication 投资申请
type InvestmentApplication struct {
	ID           string          `gorm:"primary_key;type:varchar(36)" json:"id"`
	InvestmentID string          `gorm:"column:investment_id;type:varchar(36);index" json:"investment_id"`
	UserID       string          `gorm:"column:user_id;type:varchar(36);index" json:"user_id"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(20,2)" json:"amount"`
	Notes        string          `gorm:"column:notes" json:"notes"`
	Status       string          `gorm:"column:status;type:varchar(20)" json:"status"` // pending/approved/rejected
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (a *InvestmentApplication) TableName() string {
	return "investment_applications"
}

// BeforeCreate 创建前钩子
func (a *InvestmentApplication) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = "pending"
	}
	return nil
}

// Profile 用户资料（身份方维护KYC标记，本服务只读）
type Profile struct {
	ID          string    `gorm:"primary_key;type:varchar(36)" json:"id"`
	FullName    string    `gorm:"column:full_name" json:"full_name"`
	CompanyName string    `gorm:"column:company_name" json:"company_name"`
	Country     string    `gorm:"column:country" json:"country"`
	Phone       string    `gorm:"column:phone" json:"phone"`
	KYCVerified bool      `gorm:"column:kyc_verified" json:"kyc_verified"`
	KYCStatus   string    `gorm:"column:kyc_status;type:varchar(20)" json:"kyc_status"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (p *Profile) TableName() string {
	return "profiles"
}

// BeforeCreate 创建前钩子
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Notification 生命周期通知记录（消费RabbitMQ消息落库，用户历史查询用）
type Notification struct {
	ID        uint64    `gorm:"primary_key;auto_increment" json:"id"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);index" json:"user_id"`
	Event     string    `gorm:"column:event;type:varchar(50)" json:"event"`
	RefID     string    `gorm:"column:ref_id;type:varchar(36);index" json:"ref_id"` // 关联交易/订单ID
	Detail    string    `gorm:"column:detail" json:"detail"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName 表名
func (n *Notification) TableName() string {
	return "notifications"
}
