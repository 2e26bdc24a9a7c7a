package dao

import (
	"context"
	"time"

	"petro_trade/errs"
	"petro_trade/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormTradeStore TradeStore的MySQL实现
type gormTradeStore struct {
	db *gorm.DB
}

// NewGormTradeStore 创建交易存储
func NewGormTradeStore(db *gorm.DB) TradeStore {
	return &gormTradeStore{db: db}
}

// CreateListing 创建挂单
func (s *gormTradeStore) CreateListing(ctx context.Context, listing *model.TradeListing) error {
	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "create listing failed", err)
	}
	return nil
}

// GetListing 查询挂单
func (s *gormTradeStore) GetListing(ctx context.Context, id string) (*model.TradeListing, error) {
	var listing model.TradeListing
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, wrapNotFound(err, "listing not found")
	}
	return &listing, nil
}

// GetListings 批量查询挂单
func (s *gormTradeStore) GetListings(ctx context.Context, ids []string) ([]model.TradeListing, error) {
	var listings []model.TradeListing
	if len(ids) == 0 {
		return listings, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&listings).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "get listings failed", err)
	}
	return listings, nil
}

// ListOpenListings 分页查询挂单中的报盘
func (s *gormTradeStore) ListOpenListings(ctx context.Context, page, pageSize int) ([]model.TradeListing, int64, error) {
	var listings []model.TradeListing
	var total int64

	query := s.db.WithContext(ctx).Model(&model.TradeListing{}).Where("status = ?", model.ListingStatusOpen)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(errs.CodeInternal, "count listings failed", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&listings).Error; err != nil {
		return nil, 0, errs.Wrap(errs.CodeInternal, "list listings failed", err)
	}
	return listings, total, nil
}

// ListListingsBySeller 查询卖家全部挂单
func (s *gormTradeStore) ListListingsBySeller(ctx context.Context, sellerID string) ([]model.TradeListing, error) {
	var listings []model.TradeListing
	if err := s.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at DESC").Find(&listings).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list seller listings failed", err)
	}
	return listings, nil
}

// WithdrawListing 撤下挂单：条件更新open→withdrawn
func (s *gormTradeStore) WithdrawListing(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.TradeListing{}).
		Where("id = ? AND status = ?", id, model.ListingStatusOpen).
		Updates(map[string]interface{}{
			"status":     model.ListingStatusWithdrawn,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return errs.Wrap(errs.CodeInternal, "withdraw listing failed", res.Error)
	}
	if res.RowsAffected == 0 {
		var listing model.TradeListing
		if err := s.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
			return errs.New(errs.CodeNotFound, "listing not found")
		}
		// 已撮合的挂单走争议通道，不允许直接撤下
		return errs.New(errs.CodeInvalidState, "listing already matched")
	}
	return nil
}

// MatchListing 原子撮合（全有或全无）
func (s *gormTradeStore) MatchListing(ctx context.Context, listingID string, bundle *MatchBundle) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// 条件更新是撮合的唯一裁决：并发下恰有一个事务能把open改成matched
	res := tx.Model(&model.TradeListing{}).
		Where("id = ? AND status = ?", listingID, model.ListingStatusOpen).
		Updates(map[string]interface{}{
			"status":     model.ListingStatusMatched,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "match listing failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		var listing model.TradeListing
		if err := s.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
			return errs.New(errs.CodeNotFound, "listing not found or withdrawn")
		}
		if listing.Status == model.ListingStatusWithdrawn {
			return errs.New(errs.CodeNotFound, "listing withdrawn")
		}
		return errs.New(errs.CodeAlreadyMatched, "listing already matched")
	}

	if err := tx.Create(bundle.Trade).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "create trade failed", err)
	}
	for _, cl := range bundle.Checklists {
		if err := tx.Create(cl).Error; err != nil {
			tx.Rollback()
			return errs.Wrap(errs.CodeInternal, "create checklist failed", err)
		}
	}
	if err := tx.Create(bundle.Escrow).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "create escrow entry failed", err)
	}
	bundle.Event.Seq = 1
	if err := tx.Create(bundle.Event).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "create escrow event failed", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "commit match failed", err)
	}
	return nil
}

// GetTrade 查询交易
func (s *gormTradeStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	var trade model.Trade
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&trade).Error; err != nil {
		return nil, wrapNotFound(err, "trade not found")
	}
	return &trade, nil
}

// ListTradesByUser 查询用户作为买方或卖方的全部交易
func (s *gormTradeStore) ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	var trades []model.Trade
	if err := s.db.WithContext(ctx).
		Where("seller_id = ? OR buyer_id = ?", userID, userID).
		Order("created_at DESC").Find(&trades).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list trades failed", err)
	}
	return trades, nil
}

// GetChecklist 查询指定角色清单
func (s *gormTradeStore) GetChecklist(ctx context.Context, tradeID string, role model.ChecklistRole) (*model.Checklist, error) {
	var cl model.Checklist
	if err := s.db.WithContext(ctx).
		Where("trade_id = ? AND checklist_type = ?", tradeID, role).
		First(&cl).Error; err != nil {
		return nil, wrapNotFound(err, "checklist not found")
	}
	return &cl, nil
}

// GetChecklists 查询交易双方清单
func (s *gormTradeStore) GetChecklists(ctx context.Context, tradeID string) ([]model.Checklist, error) {
	var cls []model.Checklist
	if err := s.db.WithContext(ctx).Where("trade_id = ?", tradeID).Find(&cls).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "get checklists failed", err)
	}
	return cls, nil
}

// SaveChecklistProgress 保存清单进度，advance时交易迁移到in_progress
func (s *gormTradeStore) SaveChecklistProgress(ctx context.Context, cl *model.Checklist, advance bool) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	// 状态守卫用IN(accepted,in_progress)：并发勾选各自合法推进，
	// 只有交易真正离开活跃态才关死
	updates := map[string]interface{}{"updated_at": now}
	if advance {
		updates["status"] = model.TradeStatusInProgress
	}
	res := tx.Model(&model.Trade{}).
		Where("id = ? AND status IN ?", cl.TradeID,
			[]model.TradeStatus{model.TradeStatusAccepted, model.TradeStatusInProgress}).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "update trade status failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return errs.New(errs.CodeInvalidState, "trade no longer active")
	}

	if err := tx.Model(&model.Checklist{}).Where("id = ?", cl.ID).
		Updates(map[string]interface{}{
			"items":       cl.Items,
			"is_complete": cl.IsComplete,
			"updated_at":  now,
		}).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "save checklist failed", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "commit checklist progress failed", err)
	}
	return nil
}

// CompleteTradeIfReady 保存清单并在双方均完成时联动完成交易与放款
func (s *gormTradeStore) CompleteTradeIfReady(ctx context.Context, cl *model.Checklist, event *model.EscrowEvent) (bool, error) {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()

	// 先按固定顺序锁住本交易的两份清单再写。
	// 必须加行锁：REPEATABLE READ下两笔收尾勾选各自快照到对方未满，
	// 会双双走未满分支，交易永远停在in_progress；
	// 固定加锁顺序避免双方各持己方行等对方行的死锁
	var rows []model.Checklist
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trade_id = ?", cl.TradeID).
		Order("checklist_type ASC").
		Find(&rows).Error; err != nil {
		tx.Rollback()
		return false, errs.Wrap(errs.CodeInternal, "lock checklists failed", err)
	}
	var other *model.Checklist
	for i := range rows {
		if rows[i].Role != cl.Role {
			other = &rows[i]
		}
	}
	if other == nil {
		tx.Rollback()
		return false, errs.New(errs.CodeNotFound, "counterparty checklist not found")
	}

	if err := tx.Model(&model.Checklist{}).Where("id = ?", cl.ID).
		Updates(map[string]interface{}{
			"items":       cl.Items,
			"is_complete": cl.IsComplete,
			"updated_at":  now,
		}).Error; err != nil {
		tx.Rollback()
		return false, errs.Wrap(errs.CodeInternal, "save checklist failed", err)
	}

	if !cl.IsComplete || !other.IsComplete {
		// 尚未双满：仅推进交易到in_progress（首个勾选即离开accepted）
		res := tx.Model(&model.Trade{}).
			Where("id = ? AND status IN ?", cl.TradeID,
				[]model.TradeStatus{model.TradeStatusAccepted, model.TradeStatusInProgress}).
			Updates(map[string]interface{}{"status": model.TradeStatusInProgress, "updated_at": now})
		if res.Error != nil {
			tx.Rollback()
			return false, errs.Wrap(errs.CodeInternal, "update trade status failed", res.Error)
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			return false, errs.New(errs.CodeInvalidState, "trade no longer active")
		}
		if err := tx.Commit().Error; err != nil {
			return false, errs.Wrap(errs.CodeInternal, "commit checklist progress failed", err)
		}
		return false, nil
	}

	// 双满：交易completed + 托管released必须同事务落地，禁止出现中间态
	res := tx.Model(&model.Trade{}).
		Where("id = ? AND status IN ?", cl.TradeID,
			[]model.TradeStatus{model.TradeStatusAccepted, model.TradeStatusInProgress}).
		Updates(map[string]interface{}{
			"status":        model.TradeStatusCompleted,
			"escrow_status": model.EscrowStatusReleased,
			"updated_at":    now,
		})
	if res.Error != nil {
		tx.Rollback()
		return false, errs.Wrap(errs.CodeInternal, "complete trade failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return false, errs.New(errs.CodeInvalidState, "trade no longer active")
	}

	res = tx.Model(&model.EscrowEntry{}).
		Where("trade_id = ? AND state = ?", cl.TradeID, model.EscrowStatusHeld).
		Updates(map[string]interface{}{"state": model.EscrowStatusReleased, "resolved_at": &now})
	if res.Error != nil {
		tx.Rollback()
		return false, errs.Wrap(errs.CodeInternal, "release escrow failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return false, errs.New(errs.CodeInvalidState, "escrow not held")
	}

	seq, err := nextEscrowSeq(tx, cl.TradeID)
	if err != nil {
		tx.Rollback()
		return false, errs.Wrap(errs.CodeInternal, "next escrow seq failed", err)
	}
	event.Seq = seq
	if err := tx.Create(event).Error; err != nil {
		tx.Rollback()
		return false, errs.Wrap(errs.CodeInternal, "create escrow event failed", err)
	}

	if err := tx.Commit().Error; err != nil {
		return false, errs.Wrap(errs.CodeInternal, "commit trade completion failed", err)
	}
	return true, nil
}

// FreezeEscrow 争议冻结：交易→disputed + 托管held→frozen
func (s *gormTradeStore) FreezeEscrow(ctx context.Context, tradeID, actor, reason string, event *model.EscrowEvent) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	res := tx.Model(&model.Trade{}).
		Where("id = ? AND status IN ?", tradeID,
			[]model.TradeStatus{model.TradeStatusAccepted, model.TradeStatusInProgress}).
		Updates(map[string]interface{}{
			"status":         model.TradeStatusDisputed,
			"escrow_status":  model.EscrowStatusFrozen,
			"dispute_reason": reason,
			"disputed_by":    actor,
			"updated_at":     now,
		})
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "dispute trade failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return errs.New(errs.CodeInvalidState, "trade not in disputable state")
	}

	res = tx.Model(&model.EscrowEntry{}).
		Where("trade_id = ? AND state = ?", tradeID, model.EscrowStatusHeld).
		Update("state", model.EscrowStatusFrozen)
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "freeze escrow failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return errs.New(errs.CodeInvalidState, "escrow not held")
	}

	seq, err := nextEscrowSeq(tx, tradeID)
	if err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "next escrow seq failed", err)
	}
	event.Seq = seq
	if err := tx.Create(event).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "create escrow event failed", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "commit dispute failed", err)
	}
	return nil
}

// ResolveDispute 仲裁落地：disputed→终态 + frozen→released/refunded
func (s *gormTradeStore) ResolveDispute(ctx context.Context, tradeID string, tradeStatus model.TradeStatus, escrowState model.EscrowStatus, event *model.EscrowEvent) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	res := tx.Model(&model.Trade{}).
		Where("id = ? AND status = ?", tradeID, model.TradeStatusDisputed).
		Updates(map[string]interface{}{
			"status":        tradeStatus,
			"escrow_status": escrowState,
			"updated_at":    now,
		})
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "resolve trade failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return errs.New(errs.CodeInvalidState, "trade not disputed")
	}

	res = tx.Model(&model.EscrowEntry{}).
		Where("trade_id = ? AND state = ?", tradeID, model.EscrowStatusFrozen).
		Updates(map[string]interface{}{"state": escrowState, "resolved_at": &now})
	if res.Error != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "resolve escrow failed", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return errs.New(errs.CodeInvalidState, "escrow not frozen")
	}

	seq, err := nextEscrowSeq(tx, tradeID)
	if err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "next escrow seq failed", err)
	}
	event.Seq = seq
	if err := tx.Create(event).Error; err != nil {
		tx.Rollback()
		return errs.Wrap(errs.CodeInternal, "create escrow event failed", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "commit resolution failed", err)
	}
	return nil
}

// GetEscrow 查询托管账目
func (s *gormTradeStore) GetEscrow(ctx context.Context, tradeID string) (*model.EscrowEntry, error) {
	var entry model.EscrowEntry
	if err := s.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&entry).Error; err != nil {
		return nil, wrapNotFound(err, "escrow entry not found")
	}
	return &entry, nil
}

// ListEscrowEvents 按seq升序查询托管流水
func (s *gormTradeStore) ListEscrowEvents(ctx context.Context, tradeID string) ([]model.EscrowEvent, error) {
	var events []model.EscrowEvent
	if err := s.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("seq ASC").Find(&events).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list escrow events failed", err)
	}
	return events, nil
}
