package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EscrowStatus 托管资金状态
type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none"     // 未建立托管（仅挂单阶段）
	EscrowStatusHeld     EscrowStatus = "held"     // 资金锁定
	EscrowStatusReleased EscrowStatus = "released" // 已放款给卖家
	EscrowStatusFrozen   EscrowStatus = "frozen"   // 争议冻结
	EscrowStatusRefunded EscrowStatus = "refunded" // 已退款给买家
)

// escrowTransitions 托管状态机：held→released/frozen，frozen→released/refunded，无其他迁移
var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusHeld:   {EscrowStatusReleased, EscrowStatusFrozen},
	EscrowStatusFrozen: {EscrowStatusReleased, EscrowStatusRefunded},
}

// CanTransition 判断托管状态迁移是否合法
func (s EscrowStatus) CanTransition(to EscrowStatus) bool {
	for _, next := range escrowTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// EscrowEntry 托管账目（与交易1:1，AmountHeld建立后不再重算）
type EscrowEntry struct {
	ID         string          `gorm:"primary_key;type:varchar(36)" json:"id"`
	TradeID    string          `gorm:"column:trade_id;type:varchar(36);uniqueIndex" json:"trade_id"`
	AmountHeld decimal.Decimal `gorm:"column:amount_held;type:decimal(20,2)" json:"amount_held"` // 交易总额×(1+托管费率)
	FeeRate    decimal.Decimal `gorm:"column:fee_rate;type:decimal(6,4)" json:"fee_rate"`
	State      EscrowStatus    `gorm:"column:state;type:varchar(20)" json:"state"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`
	ResolvedAt *time.Time      `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

// TableName 表名
func (e *EscrowEntry) TableName() string {
	return "escrow_entries"
}

// BeforeCreate 创建前钩子
func (e *EscrowEntry) BeforeCreate(tx *gorm.DB) error {
	e.CreatedAt = time.Now()
	return nil
}

// EscrowEvent 托管状态流水（追加写，seq单调递增，可回放重建当前状态）
type EscrowEvent struct {
	ID        uint64       `gorm:"primary_key;auto_increment" json:"id"`
	TradeID   string       `gorm:"column:trade_id;type:varchar(36);index" json:"trade_id"`
	Seq       int64        `gorm:"column:seq" json:"seq"`
	FromState EscrowStatus `gorm:"column:from_state;type:varchar(20)" json:"from_state"`
	ToState   EscrowStatus `gorm:"column:to_state;type:varchar(20)" json:"to_state"`
	Note      string       `gorm:"column:note" json:"note"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
}

// TableName 表名
func (e *EscrowEvent) TableName() string {
	return "escrow_events"
}

// BeforeCreate 创建前钩子
func (e *EscrowEvent) BeforeCreate(tx *gorm.DB) error {
	e.CreatedAt = time.Now()
	return nil
}

// ReplayEscrowState 按seq回放流水重建托管状态（审计/故障恢复用）
func ReplayEscrowState(events []EscrowEvent) (EscrowStatus, error) {
	state := EscrowStatusNone
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			return state, fmt.Errorf("escrow event seq gap: want %d got %d", i+1, ev.Seq)
		}
		if i == 0 {
			if ev.FromState != EscrowStatusNone || ev.ToState != EscrowStatusHeld {
				return state, fmt.Errorf("escrow event 1 must be none->held, got %s->%s", ev.FromState, ev.ToState)
			}
		} else {
			if ev.FromState != state {
				return state, fmt.Errorf("escrow event %d from %s, replayed state %s", ev.Seq, ev.FromState, state)
			}
			if !state.CanTransition(ev.ToState) {
				return state, fmt.Errorf("illegal escrow transition %s->%s at seq %d", ev.FromState, ev.ToState, ev.Seq)
			}
		}
		state = ev.ToState
	}
	return state, nil
}
