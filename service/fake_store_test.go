package service

import (
	"context"
	"sort"
	"sync"

	"petro_trade/dao"
	"petro_trade/errs"
	"petro_trade/model"
)

var (
	_ dao.TradeStore = (*memTradeStore)(nil)
	_ dao.ShopStore  = (*memShopStore)(nil)
)

// memTradeStore 内存版TradeStore，语义对齐MySQL实现：
// 条件更新失败返回同样的错误码，多行原子操作在同一把锁内完成
type memTradeStore struct {
	mu         sync.Mutex
	listings   map[string]*model.TradeListing
	trades     map[string]*model.Trade
	checklists map[string]*model.Checklist // key: tradeID/role
	escrows    map[string]*model.EscrowEntry
	events     map[string][]model.EscrowEvent
}

func newMemTradeStore() *memTradeStore {
	return &memTradeStore{
		listings:   make(map[string]*model.TradeListing),
		trades:     make(map[string]*model.Trade),
		checklists: make(map[string]*model.Checklist),
		escrows:    make(map[string]*model.EscrowEntry),
		events:     make(map[string][]model.EscrowEvent),
	}
}

func clKey(tradeID string, role model.ChecklistRole) string {
	return tradeID + "/" + string(role)
}

func copyChecklist(cl *model.Checklist) *model.Checklist {
	c := *cl
	c.Items = make(model.ChecklistItems, len(cl.Items))
	copy(c.Items, cl.Items)
	return &c
}

func (s *memTradeStore) CreateListing(ctx context.Context, listing *model.TradeListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := *listing
	s.listings[l.ID] = &l
	return nil
}

func (s *memTradeStore) GetListing(ctx context.Context, id string) (*model.TradeListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "listing not found")
	}
	c := *l
	return &c, nil
}

func (s *memTradeStore) GetListings(ctx context.Context, ids []string) ([]model.TradeListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TradeListing
	for _, id := range ids {
		if l, ok := s.listings[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memTradeStore) ListOpenListings(ctx context.Context, page, pageSize int) ([]model.TradeListing, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []model.TradeListing
	for _, l := range s.listings {
		if l.Status == model.ListingStatusOpen {
			open = append(open, *l)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.After(open[j].CreatedAt) })
	total := int64(len(open))

	offset := (page - 1) * pageSize
	if offset >= len(open) {
		return nil, total, nil
	}
	end := offset + pageSize
	if end > len(open) {
		end = len(open)
	}
	return open[offset:end], total, nil
}

func (s *memTradeStore) ListListingsBySeller(ctx context.Context, sellerID string) ([]model.TradeListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TradeListing
	for _, l := range s.listings {
		if l.SellerID == sellerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memTradeStore) WithdrawListing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return errs.New(errs.CodeNotFound, "listing not found")
	}
	if l.Status != model.ListingStatusOpen {
		return errs.New(errs.CodeInvalidState, "listing already matched")
	}
	l.Status = model.ListingStatusWithdrawn
	return nil
}

func (s *memTradeStore) MatchListing(ctx context.Context, listingID string, bundle *dao.MatchBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return errs.New(errs.CodeNotFound, "listing not found or withdrawn")
	}
	switch l.Status {
	case model.ListingStatusOpen:
	case model.ListingStatusWithdrawn:
		return errs.New(errs.CodeNotFound, "listing withdrawn")
	default:
		return errs.New(errs.CodeAlreadyMatched, "listing already matched")
	}

	l.Status = model.ListingStatusMatched
	trade := *bundle.Trade
	s.trades[trade.ID] = &trade
	for _, cl := range bundle.Checklists {
		s.checklists[clKey(cl.TradeID, cl.Role)] = copyChecklist(cl)
	}
	escrow := *bundle.Escrow
	s.escrows[escrow.TradeID] = &escrow
	event := *bundle.Event
	event.Seq = 1
	s.events[event.TradeID] = append(s.events[event.TradeID], event)
	return nil
}

func (s *memTradeStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "trade not found")
	}
	c := *t
	return &c, nil
}

func (s *memTradeStore) ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Trade
	for _, t := range s.trades {
		if t.SellerID == userID || t.BuyerID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTradeStore) GetChecklist(ctx context.Context, tradeID string, role model.ChecklistRole) (*model.Checklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, ok := s.checklists[clKey(tradeID, role)]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "checklist not found")
	}
	return copyChecklist(cl), nil
}

func (s *memTradeStore) GetChecklists(ctx context.Context, tradeID string) ([]model.Checklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Checklist
	for _, role := range []model.ChecklistRole{model.ChecklistRoleSeller, model.ChecklistRoleBuyer} {
		if cl, ok := s.checklists[clKey(tradeID, role)]; ok {
			out = append(out, *copyChecklist(cl))
		}
	}
	return out, nil
}

func (s *memTradeStore) SaveChecklistProgress(ctx context.Context, cl *model.Checklist, advance bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[cl.TradeID]
	if !ok || (trade.Status != model.TradeStatusAccepted && trade.Status != model.TradeStatusInProgress) {
		return errs.New(errs.CodeInvalidState, "trade no longer active")
	}
	if advance {
		trade.Status = model.TradeStatusInProgress
	}
	s.checklists[clKey(cl.TradeID, cl.Role)] = copyChecklist(cl)
	return nil
}

func (s *memTradeStore) CompleteTradeIfReady(ctx context.Context, cl *model.Checklist, event *model.EscrowEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[cl.TradeID]
	if !ok {
		return false, errs.New(errs.CodeNotFound, "trade not found")
	}
	if trade.Status != model.TradeStatusAccepted && trade.Status != model.TradeStatusInProgress {
		return false, errs.New(errs.CodeInvalidState, "trade no longer active")
	}

	s.checklists[clKey(cl.TradeID, cl.Role)] = copyChecklist(cl)

	otherRole := model.ChecklistRoleBuyer
	if cl.Role == model.ChecklistRoleBuyer {
		otherRole = model.ChecklistRoleSeller
	}
	other, ok := s.checklists[clKey(cl.TradeID, otherRole)]
	if !ok {
		return false, errs.New(errs.CodeNotFound, "counterparty checklist not found")
	}

	if !cl.IsComplete || !other.IsComplete {
		trade.Status = model.TradeStatusInProgress
		return false, nil
	}

	escrow, ok := s.escrows[cl.TradeID]
	if !ok || escrow.State != model.EscrowStatusHeld {
		return false, errs.New(errs.CodeInvalidState, "escrow not held")
	}
	trade.Status = model.TradeStatusCompleted
	trade.EscrowStatus = model.EscrowStatusReleased
	escrow.State = model.EscrowStatusReleased

	ev := *event
	ev.Seq = int64(len(s.events[cl.TradeID]) + 1)
	s.events[cl.TradeID] = append(s.events[cl.TradeID], ev)
	return true, nil
}

func (s *memTradeStore) FreezeEscrow(ctx context.Context, tradeID, actor, reason string, event *model.EscrowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok {
		return errs.New(errs.CodeNotFound, "trade not found")
	}
	if trade.Status != model.TradeStatusAccepted && trade.Status != model.TradeStatusInProgress {
		return errs.New(errs.CodeInvalidState, "trade not in disputable state")
	}
	escrow, ok := s.escrows[tradeID]
	if !ok || escrow.State != model.EscrowStatusHeld {
		return errs.New(errs.CodeInvalidState, "escrow not held")
	}

	trade.Status = model.TradeStatusDisputed
	trade.EscrowStatus = model.EscrowStatusFrozen
	trade.DisputeReason = reason
	trade.DisputedBy = actor
	escrow.State = model.EscrowStatusFrozen

	ev := *event
	ev.Seq = int64(len(s.events[tradeID]) + 1)
	s.events[tradeID] = append(s.events[tradeID], ev)
	return nil
}

func (s *memTradeStore) ResolveDispute(ctx context.Context, tradeID string, tradeStatus model.TradeStatus, escrowState model.EscrowStatus, event *model.EscrowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok {
		return errs.New(errs.CodeNotFound, "trade not found")
	}
	if trade.Status != model.TradeStatusDisputed {
		return errs.New(errs.CodeInvalidState, "trade not disputed")
	}
	escrow, ok := s.escrows[tradeID]
	if !ok || escrow.State != model.EscrowStatusFrozen {
		return errs.New(errs.CodeInvalidState, "escrow not frozen")
	}

	trade.Status = tradeStatus
	trade.EscrowStatus = escrowState
	escrow.State = escrowState

	ev := *event
	ev.Seq = int64(len(s.events[tradeID]) + 1)
	s.events[tradeID] = append(s.events[tradeID], ev)
	return nil
}

func (s *memTradeStore) GetEscrow(ctx context.Context, tradeID string) (*model.EscrowEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[tradeID]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "escrow entry not found")
	}
	c := *e
	return &c, nil
}

func (s *memTradeStore) ListEscrowEvents(ctx context.Context, tradeID string) ([]model.EscrowEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]model.EscrowEvent, len(s.events[tradeID]))
	copy(events, s.events[tradeID])
	return events, nil
}

// memShopStore 内存版ShopStore
type memShopStore struct {
	mu       sync.Mutex
	products map[string]*model.Product
	orders   map[string]*model.Order
}

func newMemShopStore() *memShopStore {
	return &memShopStore{
		products: make(map[string]*model.Product),
		orders:   make(map[string]*model.Order),
	}
}

func (s *memShopStore) CreateProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.products[c.ID] = &c
	return nil
}

func (s *memShopStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "product not found")
	}
	c := *p
	return &c, nil
}

func (s *memShopStore) ListProducts(ctx context.Context, category model.ProductCategory, activeOnly bool) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Product
	for _, p := range s.products {
		if activeOnly && !p.IsActive {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *memShopStore) CreateOrderReservingStock(ctx context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[order.ProductID]
	if !ok || !p.IsActive {
		return errs.New(errs.CodeNotFound, "product not found")
	}
	if p.StockQuantity < order.Quantity {
		return errs.New(errs.CodeOutOfStock, "insufficient stock")
	}
	p.StockQuantity -= order.Quantity
	c := *order
	s.orders[c.ID] = &c
	return nil
}

func (s *memShopStore) CancelOrderRestock(ctx context.Context, orderID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return errs.New(errs.CodeNotFound, "order not found")
	}
	if o.OrderStatus != model.OrderStatusPending {
		return errs.New(errs.CodeInvalidState, "order not cancellable")
	}
	o.OrderStatus = model.OrderStatusCancelled
	if p, ok := s.products[o.ProductID]; ok {
		p.StockQuantity += o.Quantity
	}
	return nil
}

func (s *memShopStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "order not found")
	}
	c := *o
	return &c, nil
}

func (s *memShopStore) ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}
