package service

import (
	"context"
	"fmt"
	"time"

	"petro_trade/dao"
	"petro_trade/errs"
	"petro_trade/model"
	"petro_trade/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ArbitratorDecision 仲裁裁决
type ArbitratorDecision string

const (
	DecisionReleaseToSeller ArbitratorDecision = "release_to_seller" // 交易completed，托管released
	DecisionRefundToBuyer   ArbitratorDecision = "refund_to_buyer"   // 交易cancelled，托管refunded
)

// TradeService 交易生命周期服务接口
type TradeService interface {
	CreateListing(ctx context.Context, req CreateListingReq) (string, error)
	WithdrawListing(ctx context.Context, listingID, sellerID string) error
	GetListing(ctx context.Context, listingID string) (*model.TradeListing, error)
	ListOpenListings(ctx context.Context, page, pageSize int) ([]model.TradeListing, int64, error)
	ListSellerListings(ctx context.Context, sellerID string) ([]model.TradeListing, error)
	AcceptTrade(ctx context.Context, req AcceptTradeReq) (string, error)
	CompleteChecklistItem(ctx context.Context, req ToggleChecklistReq) (*ChecklistProgress, error)
	RaiseDispute(ctx context.Context, req RaiseDisputeReq) (*model.Trade, error)
	ResolveDispute(ctx context.Context, req ResolveDisputeReq) (*model.Trade, error)
	GetTradeDetail(ctx context.Context, tradeID, viewerID string, arbitrator bool) (*TradeDetail, error)
	ListUserTrades(ctx context.Context, userID string) ([]model.Trade, error)
	ReplayEscrow(ctx context.Context, tradeID string) (model.EscrowStatus, []model.EscrowEvent, error)
}

// tradeService 交易服务实现
type tradeService struct {
	store   dao.TradeStore
	feeRate decimal.Decimal
}

// NewTradeService 创建交易服务
// feeRate为托管服务费比例（全局统一配置）
func NewTradeService(store dao.TradeStore, feeRate float64) TradeService {
	return &tradeService{
		store:   store,
		feeRate: decimal.NewFromFloat(feeRate),
	}
}

// -------------- 请求/响应结构体 --------------

// CreateListingReq 创建挂单请求
type CreateListingReq struct {
	SellerID             string     `json:"-"`
	ProductType          string     `json:"product_type"`
	Quantity             string     `json:"quantity"`
	Unit                 string     `json:"unit"`
	PricePerUnit         string     `json:"price_per_unit"`
	PaymentMethod        string     `json:"payment_method"`
	DeliveryLocation     string     `json:"delivery_location"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
}

// AcceptTradeReq 买家撮合请求
type AcceptTradeReq struct {
	ListingID        string `json:"listing_id"`
	BuyerID          string `json:"-"`
	Quantity         string `json:"quantity"` // 可空，默认整单
	DeliveryLocation string `json:"delivery_location"`
}

// ToggleChecklistReq 清单项勾选请求
type ToggleChecklistReq struct {
	TradeID   string              `json:"trade_id"`
	Role      model.ChecklistRole `json:"role"`
	ItemID    string              `json:"item_id"`
	Completed bool                `json:"completed"`
	ActorID   string              `json:"-"`
}

// RaiseDisputeReq 发起争议请求
type RaiseDisputeReq struct {
	TradeID string `json:"trade_id"`
	Reason  string `json:"reason"`
	ActorID string `json:"-"`
}

// ResolveDisputeReq 仲裁裁决请求
type ResolveDisputeReq struct {
	TradeID      string             `json:"trade_id"`
	Decision     ArbitratorDecision `json:"decision"`
	ArbitratorID string             `json:"-"`
}

// ChecklistProgress 清单进度
type ChecklistProgress struct {
	Role                 model.ChecklistRole `json:"role"`
	CompletionPercentage float64             `json:"completion_percentage"`
	IsComplete           bool                `json:"is_complete"`
	TradeStatus          model.TradeStatus   `json:"trade_status"`
	EscrowStatus         model.EscrowStatus  `json:"escrow_status"`
}

// ChecklistView 清单视图（完成度为派生值）
type ChecklistView struct {
	Role                 model.ChecklistRole  `json:"role"`
	Items                model.ChecklistItems `json:"items"`
	CompletionPercentage float64              `json:"completion_percentage"`
	IsComplete           bool                 `json:"is_complete"`
}

// TradeDetail 交易详情
type TradeDetail struct {
	Trade      *model.Trade        `json:"trade"`
	Listing    *model.TradeListing `json:"listing"`
	Checklists []ChecklistView     `json:"checklists"`
	Escrow     *model.EscrowEntry  `json:"escrow"`
}

// -------------- 挂单 --------------

// CreateListing 创建挂单（总额服务端重算，不信任入参）
func (s *tradeService) CreateListing(ctx context.Context, req CreateListingReq) (string, error) {
	if req.ProductType == "" || req.Unit == "" {
		return "", errs.New(errs.CodeValidation, "product type and unit required")
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || !quantity.IsPositive() {
		return "", errs.New(errs.CodeValidation, "quantity must be positive")
	}
	pricePerUnit, err := decimal.NewFromString(req.PricePerUnit)
	if err != nil || !pricePerUnit.IsPositive() {
		return "", errs.New(errs.CodeValidation, "price per unit must be positive")
	}

	paymentMethod := model.PaymentMethod(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = model.PaymentMethodUSDT
	}
	if !paymentMethod.Enabled() {
		return "", errs.Newf(errs.CodeValidation, "payment method %s not yet available", paymentMethod)
	}

	listing := &model.TradeListing{
		ID:                   uuid.NewString(),
		SellerID:             req.SellerID,
		ProductType:          req.ProductType,
		Quantity:             quantity,
		Unit:                 req.Unit,
		PricePerUnit:         pricePerUnit,
		TotalAmount:          quantity.Mul(pricePerUnit),
		PaymentMethod:        paymentMethod,
		DeliveryLocation:     req.DeliveryLocation,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Status:               model.ListingStatusOpen,
	}

	if err := s.store.CreateListing(ctx, listing); err != nil {
		return "", err
	}

	if err := dao.AddListingToBoard(ctx, listing); err != nil {
		// 榜只是缓存，落库成功即成功
		utils.Logger.Warn("挂单上榜失败", zap.String("listing_id", listing.ID), zap.Error(err))
	}

	utils.PublishLifecycleMsg(ctx, &utils.LifecycleMsg{
		Event:   "listing.created",
		RefID:   listing.ID,
		UserIDs: []string{listing.SellerID},
		Actor:   listing.SellerID,
		Detail:  fmt.Sprintf("%s %s %s @ %s", listing.Quantity, listing.Unit, listing.ProductType, listing.PricePerUnit),
	})

	return listing.ID, nil
}

// WithdrawListing 撤下挂单（仅限未撮合，撮合后走争议通道）
func (s *tradeService) WithdrawListing(ctx context.Context, listingID, sellerID string) error {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.SellerID != sellerID {
		return errs.New(errs.CodeUnauthorized, "not the listing owner")
	}

	if err := s.store.WithdrawListing(ctx, listingID); err != nil {
		return err
	}

	if err := dao.RemoveListingFromBoard(ctx, listingID); err != nil {
		utils.Logger.Warn("挂单下榜失败", zap.String("listing_id", listingID), zap.Error(err))
	}
	return nil
}

// GetListing 查询单条挂单
func (s *tradeService) GetListing(ctx context.Context, listingID string) (*model.TradeListing, error) {
	return s.store.GetListing(ctx, listingID)
}

// ListOpenListings 查询公开报盘（优先走Redis榜，缓存失效回落DB）
func (s *tradeService) ListOpenListings(ctx context.Context, page, pageSize int) ([]model.TradeListing, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	ids, err := dao.GetBoardListingIDs(ctx, page, pageSize)
	if err == nil && len(ids) > 0 {
		listings, err := s.store.GetListings(ctx, ids)
		if err == nil {
			total, sizeErr := dao.BoardSize(ctx)
			if sizeErr == nil {
				return orderByBoard(ids, listings), total, nil
			}
		}
	}

	return s.store.ListOpenListings(ctx, page, pageSize)
}

// orderByBoard 按榜序重排DB结果，过滤榜上已失效的ID
func orderByBoard(ids []string, listings []model.TradeListing) []model.TradeListing {
	byID := make(map[string]model.TradeListing, len(listings))
	for _, l := range listings {
		// 榜是缓存，可能短暂滞后于DB，只展示仍挂单中的
		if l.Status == model.ListingStatusOpen {
			byID[l.ID] = l
		}
	}
	ordered := make([]model.TradeListing, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}
	return ordered
}

// ListSellerListings 查询卖家挂单
func (s *tradeService) ListSellerListings(ctx context.Context, sellerID string) ([]model.TradeListing, error) {
	return s.store.ListListingsBySeller(ctx, sellerID)
}

// -------------- 撮合 --------------

// AcceptTrade 买家接受挂单：原子撮合并建立托管与双方清单
func (s *tradeService) AcceptTrade(ctx context.Context, req AcceptTradeReq) (string, error) {
	if req.DeliveryLocation == "" {
		return "", errs.New(errs.CodeValidation, "delivery address required")
	}

	listing, err := s.store.GetListing(ctx, req.ListingID)
	if err != nil {
		return "", err
	}
	if listing.SellerID == req.BuyerID {
		return "", errs.New(errs.CodeValidation, "cannot trade with yourself")
	}
	if !listing.PaymentMethod.Enabled() {
		return "", errs.Newf(errs.CodeValidation, "payment method %s not yet available", listing.PaymentMethod)
	}

	// 请求量缺省为整单，不允许超出挂单量
	if req.Quantity != "" {
		quantity, err := decimal.NewFromString(req.Quantity)
		if err != nil || !quantity.IsPositive() {
			return "", errs.New(errs.CodeValidation, "quantity must be positive")
		}
		if quantity.GreaterThan(listing.Quantity) {
			return "", errs.New(errs.CodeValidation, "quantity exceeds listing quantity")
		}
	}

	// 分布式锁：收敛同一挂单的并发撮合；DB条件更新仍是最终裁决
	if utils.Redisync != nil {
		lockKey := fmt.Sprintf("petro:lock:listing:%s", req.ListingID)
		mutex, err := utils.GetRedisLock(ctx, lockKey, 10*time.Second)
		if err != nil {
			utils.Logger.Error("获取分布式锁失败", zap.String("lock_key", lockKey), zap.Error(err))
			return "", errs.New(errs.CodeAlreadyMatched, "listing is being matched, try again")
		}
		defer utils.ReleaseRedisLock(mutex)
	}

	tradeID := uuid.NewString()
	// 托管金额 = 挂单总额 ×（1+费率），建立后不再重算
	amountHeld := listing.TotalAmount.Mul(decimal.NewFromInt(1).Add(s.feeRate))

	bundle := &dao.MatchBundle{
		Trade: &model.Trade{
			ID:               tradeID,
			ListingID:        listing.ID,
			SellerID:         listing.SellerID,
			BuyerID:          req.BuyerID,
			Status:           model.TradeStatusAccepted,
			EscrowStatus:     model.EscrowStatusHeld,
			PaymentMethod:    listing.PaymentMethod,
			DeliveryLocation: req.DeliveryLocation,
		},
		Checklists: []*model.Checklist{
			model.NewChecklist(uuid.NewString(), tradeID, model.ChecklistRoleSeller),
			model.NewChecklist(uuid.NewString(), tradeID, model.ChecklistRoleBuyer),
		},
		Escrow: &model.EscrowEntry{
			ID:         uuid.NewString(),
			TradeID:    tradeID,
			AmountHeld: amountHeld,
			FeeRate:    s.feeRate,
			State:      model.EscrowStatusHeld,
		},
		Event: &model.EscrowEvent{
			TradeID:   tradeID,
			FromState: model.EscrowStatusNone,
			ToState:   model.EscrowStatusHeld,
			Note:      "escrow opened on match",
		},
	}

	if err := s.store.MatchListing(ctx, req.ListingID, bundle); err != nil {
		return "", err
	}

	if err := dao.RemoveListingFromBoard(ctx, req.ListingID); err != nil {
		utils.Logger.Warn("挂单下榜失败", zap.String("listing_id", req.ListingID), zap.Error(err))
	}

	utils.PublishLifecycleMsg(ctx, &utils.LifecycleMsg{
		Event:   "trade.accepted",
		RefID:   tradeID,
		UserIDs: []string{listing.SellerID, req.BuyerID},
		Actor:   req.BuyerID,
		Detail:  fmt.Sprintf("escrow held %s", amountHeld),
	})

	utils.Logger.Info("撮合成功",
		zap.String("listing_id", req.ListingID),
		zap.String("trade_id", tradeID),
		zap.String("amount_held", amountHeld.String()))

	return tradeID, nil
}

// -------------- 履约清单 --------------

// CompleteChecklistItem 勾选/取消勾选清单项。
// 双方清单同时到100%时，交易completed与托管released在同一事务落地
func (s *tradeService) CompleteChecklistItem(ctx context.Context, req ToggleChecklistReq) (*ChecklistProgress, error) {
	if req.Role != model.ChecklistRoleSeller && req.Role != model.ChecklistRoleBuyer {
		return nil, errs.New(errs.CodeValidation, "invalid checklist role")
	}

	// 先取锁再读：读取-校验-落库全程在锁内，不拿过期状态做守卫
	if utils.Redisync != nil {
		lockKey := fmt.Sprintf("petro:lock:trade:%s", req.TradeID)
		mutex, err := utils.GetRedisLock(ctx, lockKey, 10*time.Second)
		if err != nil {
			utils.Logger.Error("获取分布式锁失败", zap.String("lock_key", lockKey), zap.Error(err))
			return nil, errs.New(errs.CodeInvalidState, "trade is being updated, try again")
		}
		defer utils.ReleaseRedisLock(mutex)
	}

	trade, err := s.store.GetTrade(ctx, req.TradeID)
	if err != nil {
		return nil, err
	}

	actorRole := trade.PartyRole(req.ActorID)
	if actorRole == "" || actorRole != req.Role {
		return nil, errs.New(errs.CodeUnauthorized, "checklist belongs to another role")
	}

	// 状态有疑义一律关死：终态/争议中不可变更
	if trade.Status.Terminal() {
		return nil, errs.New(errs.CodeInvalidState, "trade already settled")
	}
	if !trade.Active() {
		return nil, errs.New(errs.CodeInvalidState, "trade not active")
	}

	// 托管已放款后清单冻结
	escrow, err := s.store.GetEscrow(ctx, req.TradeID)
	if err != nil {
		return nil, err
	}
	if escrow.State != model.EscrowStatusHeld {
		return nil, errs.New(errs.CodeInvalidState, "escrow no longer held")
	}

	cl, err := s.store.GetChecklist(ctx, req.TradeID, req.Role)
	if err != nil {
		return nil, err
	}
	if err := cl.Toggle(req.ItemID, req.Completed); err != nil {
		return nil, errs.Wrap(errs.CodeValidation, "unknown checklist item", err)
	}

	progress := &ChecklistProgress{
		Role:                 req.Role,
		CompletionPercentage: cl.CompletionPercentage(),
		IsComplete:           cl.IsComplete,
	}

	if cl.IsComplete && req.Completed {
		// 本方已满，交由存储层在同一事务内核对对方并联动完成
		event := &model.EscrowEvent{
			TradeID:   req.TradeID,
			FromState: model.EscrowStatusHeld,
			ToState:   model.EscrowStatusReleased,
			Note:      "both checklists complete",
		}
		done, err := s.store.CompleteTradeIfReady(ctx, cl, event)
		if err != nil {
			return nil, err
		}
		if done {
			progress.TradeStatus = model.TradeStatusCompleted
			progress.EscrowStatus = model.EscrowStatusReleased
			utils.PublishLifecycleMsg(ctx, &utils.LifecycleMsg{
				Event:   "trade.completed",
				RefID:   req.TradeID,
				UserIDs: []string{trade.SellerID, trade.BuyerID},
				Actor:   req.ActorID,
				Detail:  "escrow released",
			})
			utils.Logger.Info("交易完成，托管放款",
				zap.String("trade_id", req.TradeID),
				zap.String("amount_held", escrow.AmountHeld.String()))
			return progress, nil
		}
		progress.TradeStatus = model.TradeStatusInProgress
		progress.EscrowStatus = model.EscrowStatusHeld
		return progress, nil
	}

	// 普通进度保存：首次勾选使交易离开accepted，取消勾选不回退状态
	if err := s.store.SaveChecklistProgress(ctx, cl, req.Completed); err != nil {
		return nil, err
	}

	progress.TradeStatus = trade.Status
	if req.Completed {
		progress.TradeStatus = model.TradeStatusInProgress
	}
	progress.EscrowStatus = escrow.State
	return progress, nil
}

// -------------- 争议 --------------

// RaiseDispute 发起争议：托管冻结，交易进入disputed。
// 重复发起幂等返回现状，不重复冻结
func (s *tradeService) RaiseDispute(ctx context.Context, req RaiseDisputeReq) (*model.Trade, error) {
	trade, err := s.store.GetTrade(ctx, req.TradeID)
	if err != nil {
		return nil, err
	}
	if trade.PartyRole(req.ActorID) == "" {
		return nil, errs.New(errs.CodeUnauthorized, "not a trade party")
	}

	// 幂等：已在争议中直接返回
	if trade.Status == model.TradeStatusDisputed {
		return trade, nil
	}
	if !trade.Status.CanTransition(model.TradeStatusDisputed) {
		return nil, errs.New(errs.CodeInvalidState, "trade not disputable")
	}
	if req.Reason == "" {
		return nil, errs.New(errs.CodeValidation, "dispute reason required")
	}

	if utils.Redisync != nil {
		lockKey := fmt.Sprintf("petro:lock:trade:%s", req.TradeID)
		mutex, err := utils.GetRedisLock(ctx, lockKey, 10*time.Second)
		if err != nil {
			utils.Logger.Error("获取分布式锁失败", zap.String("lock_key", lockKey), zap.Error(err))
			return nil, errs.New(errs.CodeInvalidState, "trade is being updated, try again")
		}
		defer utils.ReleaseRedisLock(mutex)
	}

	event := &model.EscrowEvent{
		TradeID:   req.TradeID,
		FromState: model.EscrowStatusHeld,
		ToState:   model.EscrowStatusFrozen,
		Note:      req.Reason,
	}
	if err := s.store.FreezeEscrow(ctx, req.TradeID, req.ActorID, req.Reason, event); err != nil {
		// 并发争议：对方先冻结成功同样视为幂等命中
		if errs.IsCode(err, errs.CodeInvalidState) {
			if current, getErr := s.store.GetTrade(ctx, req.TradeID); getErr == nil &&
				current.Status == model.TradeStatusDisputed {
				return current, nil
			}
		}
		return nil, err
	}

	utils.PublishLifecycleMsg(ctx, &utils.LifecycleMsg{
		Event:   "trade.disputed",
		RefID:   req.TradeID,
		UserIDs: []string{trade.SellerID, trade.BuyerID},
		Actor:   req.ActorID,
		Detail:  req.Reason,
	})

	return s.store.GetTrade(ctx, req.TradeID)
}

// ResolveDispute 仲裁裁决（仅外部仲裁方可调用，handler层校验角色）。
// 裁决放款不受清单完成度约束
func (s *tradeService) ResolveDispute(ctx context.Context, req ResolveDisputeReq) (*model.Trade, error) {
	var tradeStatus model.TradeStatus
	var escrowState model.EscrowStatus
	switch req.Decision {
	case DecisionReleaseToSeller:
		tradeStatus = model.TradeStatusCompleted
		escrowState = model.EscrowStatusReleased
	case DecisionRefundToBuyer:
		tradeStatus = model.TradeStatusCancelled
		escrowState = model.EscrowStatusRefunded
	default:
		return nil, errs.Newf(errs.CodeValidation, "unknown decision %q", req.Decision)
	}

	trade, err := s.store.GetTrade(ctx, req.TradeID)
	if err != nil {
		return nil, err
	}
	// 仅争议中可裁决；存储层条件更新仍兜底
	if trade.Status != model.TradeStatusDisputed {
		return nil, errs.New(errs.CodeInvalidState, "trade not disputed")
	}

	event := &model.EscrowEvent{
		TradeID:   req.TradeID,
		FromState: model.EscrowStatusFrozen,
		ToState:   escrowState,
		Note:      fmt.Sprintf("arbitration: %s", req.Decision),
	}
	if err := s.store.ResolveDispute(ctx, req.TradeID, tradeStatus, escrowState, event); err != nil {
		return nil, err
	}

	utils.PublishLifecycleMsg(ctx, &utils.LifecycleMsg{
		Event:   "trade.resolved",
		RefID:   req.TradeID,
		UserIDs: []string{trade.SellerID, trade.BuyerID},
		Actor:   req.ArbitratorID,
		Detail:  string(req.Decision),
	})

	return s.store.GetTrade(ctx, req.TradeID)
}

// -------------- 查询 --------------

// GetTradeDetail 查询交易详情（仅交易双方与仲裁方可见）
func (s *tradeService) GetTradeDetail(ctx context.Context, tradeID, viewerID string, arbitrator bool) (*TradeDetail, error) {
	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !arbitrator && trade.PartyRole(viewerID) == "" {
		return nil, errs.New(errs.CodeUnauthorized, "not a trade party")
	}

	listing, err := s.store.GetListing(ctx, trade.ListingID)
	if err != nil {
		return nil, err
	}
	checklists, err := s.store.GetChecklists(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	escrow, err := s.store.GetEscrow(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	views := make([]ChecklistView, 0, len(checklists))
	for i := range checklists {
		cl := checklists[i]
		views = append(views, ChecklistView{
			Role:                 cl.Role,
			Items:                cl.Items,
			CompletionPercentage: cl.CompletionPercentage(),
			IsComplete:           cl.IsComplete,
		})
	}

	return &TradeDetail{
		Trade:      trade,
		Listing:    listing,
		Checklists: views,
		Escrow:     escrow,
	}, nil
}

// ListUserTrades 查询用户全部交易
func (s *tradeService) ListUserTrades(ctx context.Context, userID string) ([]model.Trade, error) {
	return s.store.ListTradesByUser(ctx, userID)
}

// ReplayEscrow 回放托管流水重建状态（审计接口）
func (s *tradeService) ReplayEscrow(ctx context.Context, tradeID string) (model.EscrowStatus, []model.EscrowEvent, error) {
	events, err := s.store.ListEscrowEvents(ctx, tradeID)
	if err != nil {
		return "", nil, err
	}
	state, err := model.ReplayEscrowState(events)
	if err != nil {
		return "", nil, errs.Wrap(errs.CodeInternal, "escrow ledger corrupt", err)
	}
	return state, events, nil
}
