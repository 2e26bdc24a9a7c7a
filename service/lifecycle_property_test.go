package service

import (
	"context"
	"testing"

	"petro_trade/errs"
	"petro_trade/model"

	"pgregory.net/rapid"
)

// 性质：任意勾选序列下，交易completed当且仅当托管released，
// 且放款当刻双方清单均为100%；放款后清单全部封死
func TestProperty_CompletionImpliesRelease(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc, store := newTestTradeService()

		listingID := mustCreateListingRapid(t, svc)
		tradeID, err := svc.AcceptTrade(ctx, AcceptTradeReq{
			ListingID: listingID, BuyerID: "buyer-1", DeliveryLocation: "Rotterdam",
		})
		if err != nil {
			t.Fatalf("撮合失败: %v", err)
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			role := model.ChecklistRoleSeller
			actor := "seller-1"
			if rapid.Bool().Draw(t, "asBuyer") {
				role = model.ChecklistRoleBuyer
				actor = "buyer-1"
			}
			itemID := rapid.SampledFrom([]string{"1", "2", "3", "4", "5"}).Draw(t, "item")
			completed := rapid.Bool().Draw(t, "completed")

			_, err := svc.CompleteChecklistItem(ctx, ToggleChecklistReq{
				TradeID: tradeID, Role: role, ItemID: itemID, Completed: completed, ActorID: actor,
			})

			trade, getErr := store.GetTrade(ctx, tradeID)
			if getErr != nil {
				t.Fatalf("查交易失败: %v", getErr)
			}
			escrow, getErr := store.GetEscrow(ctx, tradeID)
			if getErr != nil {
				t.Fatalf("查托管失败: %v", getErr)
			}

			// 联动不变式：completed ⟺ released
			if (trade.Status == model.TradeStatusCompleted) != (escrow.State == model.EscrowStatusReleased) {
				t.Fatalf("中间态泄漏: trade=%s escrow=%s", trade.Status, escrow.State)
			}

			if trade.Status == model.TradeStatusCompleted {
				// 放款当刻双方清单必须都为100%
				cls, _ := store.GetChecklists(ctx, tradeID)
				for _, cl := range cls {
					if !cl.IsComplete {
						t.Fatalf("放款时%s清单未满", cl.Role)
					}
				}
				// 终态后任何勾选被关死
				if err == nil {
					// 本次操作正是触发完成的那一次，合法
					continue
				}
				if !errs.IsCode(err, errs.CodeInvalidState) {
					t.Fatalf("终态后勾选应返回invalid_state: %v", err)
				}
			} else if err != nil {
				t.Fatalf("活跃态勾选不应失败: %v", err)
			}
		}

		// 序列结束后流水回放必须与账目现状一致
		trade, _ := store.GetTrade(ctx, tradeID)
		escrow, _ := store.GetEscrow(ctx, tradeID)
		replayed, events, err := svc.ReplayEscrow(ctx, tradeID)
		if err != nil {
			t.Fatalf("流水回放失败: %v", err)
		}
		if replayed != escrow.State {
			t.Fatalf("回放状态%s与账目%s不一致", replayed, escrow.State)
		}
		if trade.EscrowStatus != escrow.State {
			t.Fatalf("交易冗余托管状态%s与账目%s不一致", trade.EscrowStatus, escrow.State)
		}
		for i, ev := range events {
			if ev.Seq != int64(i+1) {
				t.Fatalf("流水seq断档: %v", events)
			}
		}
	})
}

func mustCreateListingRapid(t *rapid.T, svc TradeService) string {
	id, err := svc.CreateListing(context.Background(), CreateListingReq{
		SellerID:         "seller-1",
		ProductType:      "Bonny Light Crude",
		Quantity:         "100",
		Unit:             "barrels",
		PricePerUnit:     "85",
		DeliveryLocation: "Rotterdam",
	})
	if err != nil {
		t.Fatalf("创建挂单失败: %v", err)
	}
	return id
}
