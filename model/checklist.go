package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ChecklistRole 清单归属角色
type ChecklistRole string

const (
	ChecklistRoleSeller ChecklistRole = "seller"
	ChecklistRoleBuyer  ChecklistRole = "buyer"
)

// ChecklistItem 清单项
type ChecklistItem struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

// ChecklistItems 清单项集合（JSON列）
type ChecklistItems []ChecklistItem

// Value 实现driver.Valuer，序列化为JSON存储
func (items ChecklistItems) Value() (driver.Value, error) {
	return json.Marshal(items)
}

// Scan 实现sql.Scanner
func (items *ChecklistItems) Scan(value interface{}) error {
	if value == nil {
		*items = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("checklist items: unsupported column type")
	}
	return json.Unmarshal(data, items)
}

// Checklist 交易履约清单（每笔交易买卖双方各一份）
type Checklist struct {
	ID         string         `gorm:"primary_key;type:varchar(36)" json:"id"`
	TradeID    string         `gorm:"column:trade_id;type:varchar(36);index" json:"trade_id"`
	Role       ChecklistRole  `gorm:"column:checklist_type;type:varchar(10)" json:"checklist_type"`
	Items      ChecklistItems `gorm:"column:items;type:json" json:"items"`
	IsComplete bool           `gorm:"column:is_complete" json:"is_complete"` // 派生值，随items重算
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (c *Checklist) TableName() string {
	return "transaction_checklists"
}

// BeforeCreate 创建前钩子
func (c *Checklist) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// sellerTemplate 卖方履约清单模板（出口物流，撮合时原样实例化）
var sellerTemplate = ChecklistItems{
	{ID: "1", Label: "Product quality certification uploaded"},
	{ID: "2", Label: "Export documentation prepared"},
	{ID: "3", Label: "Shipping arrangements confirmed"},
	{ID: "4", Label: "Insurance documents submitted"},
	{ID: "5", Label: "Loading port confirmed"},
}

// buyerTemplate 买方履约清单模板
var buyerTemplate = ChecklistItems{
	{ID: "1", Label: "Payment transferred to escrow"},
	{ID: "2", Label: "Import permits obtained"},
	{ID: "3", Label: "Destination port confirmed"},
	{ID: "4", Label: "Receiving facilities ready"},
	{ID: "5", Label: "Quality inspection arranged"},
}

// NewChecklist 按角色模板实例化清单
func NewChecklist(id, tradeID string, role ChecklistRole) *Checklist {
	var tpl ChecklistItems
	if role == ChecklistRoleSeller {
		tpl = sellerTemplate
	} else {
		tpl = buyerTemplate
	}
	items := make(ChecklistItems, len(tpl))
	copy(items, tpl)
	return &Checklist{
		ID:      id,
		TradeID: tradeID,
		Role:    role,
		Items:   items,
	}
}

// Toggle 勾选/取消勾选清单项（唯一的变更入口），项不存在返回错误
func (c *Checklist) Toggle(itemID string, completed bool) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Completed = completed
			c.Recompute()
			return nil
		}
	}
	return fmt.Errorf("checklist item %s not found", itemID)
}

// Recompute 根据items重算IsComplete
func (c *Checklist) Recompute() {
	c.IsComplete = len(c.Items) > 0 && c.completedCount() == len(c.Items)
}

// CompletionPercentage 完成百分比（派生值，不单独存储）
func (c *Checklist) CompletionPercentage() float64 {
	if len(c.Items) == 0 {
		return 0
	}
	return float64(c.completedCount()) / float64(len(c.Items)) * 100
}

func (c *Checklist) completedCount() int {
	n := 0
	for _, item := range c.Items {
		if item.Completed {
			n++
		}
	}
	return n
}
