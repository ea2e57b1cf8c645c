package service

import (
	"context"
	"testing"

	erpentity "github.com/bitfantasy/nimo-reserve/internal/erp/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/testutil"
)

func TestSummarizeUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.summary.Summarize(context.Background(), "SO-404")
	if err == nil || !IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSummarizeZeroDemandProducesNoRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 订单行无BOM，需求为零
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-A",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 10,
		Lines:        map[string]float64{"FP-NOBOM": 100},
	})

	rows, err := env.summary.Summarize(ctx, "SO-A")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestSummarizeIndependentOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedSteelWorld(t, env)
	testutil.SeedInventory(t, env.db, "RM-STEEL", "WH-MAIN", 90)
	testutil.SeedInventory(t, env.db, "RM-STEEL", "WH-SUB", 60)
	testutil.SeedOpenPOItem(t, env.db, "PO-001", "SO-A", "RM-STEEL", 30, 10, 14)
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-A",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 60,
		Lines:        map[string]float64{"FP-FRAME": 100},
	})
	if err := env.alloc.OnOrderSubmit(ctx, "SO-A"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rows, err := env.summary.Summarize(ctx, "SO-A")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]

	if row.ItemCode != "RM-STEEL" {
		t.Errorf("item = %s, want RM-STEEL", row.ItemCode)
	}
	if !row.DemandQty.Equal(dec(t, "100")) {
		t.Errorf("demand = %s, want 100", row.DemandQty.String())
	}
	if !row.StockQty.Equal(dec(t, "150")) {
		t.Errorf("stock = %s, want 150（跨仓汇总）", row.StockQty.String())
	}
	if !row.ReservedQty.Equal(dec(t, "100")) {
		t.Errorf("reserved = %s, want 100", row.ReservedQty.String())
	}
	if !row.TotalReservedSystemWide.Equal(dec(t, "100")) {
		t.Errorf("total reserved = %s, want 100", row.TotalReservedSystemWide.String())
	}
	if !row.TotalLongTermPool.Equal(dec(t, "100")) {
		t.Errorf("pool = %s, want 100", row.TotalLongTermPool.String())
	}
	// 敞口 = 需求 − (库存 − 全系统预留) = 100 − (150−100) = 50
	if !row.OpenQty.Equal(dec(t, "50")) {
		t.Errorf("open = %s, want 50", row.OpenQty.String())
	}

	if len(row.PendingPurchases) != 1 {
		t.Fatalf("pending purchases = %d, want 1", len(row.PendingPurchases))
	}
	if !row.PendingPurchases[0].PendingQty.Equal(dec(t, "20")) {
		t.Errorf("pending qty = %s, want 20", row.PendingPurchases[0].PendingQty.String())
	}

	if len(row.PoolHolders) != 1 || row.PoolHolders[0].OrderID != "SO-A" {
		t.Fatalf("pool holders = %+v, want SO-A", row.PoolHolders)
	}
	if !row.PoolHolders[0].ReservedQty.Equal(dec(t, "100")) {
		t.Errorf("holder reserved = %s, want 100", row.PoolHolders[0].ReservedQty.String())
	}
}

// 自占用行既是预留又是占用，汇总时只能计一次
func TestSummarizeIndependentAfterSelfAllocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedSteelWorld(t, env)
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-A",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 60,
		Lines:        map[string]float64{"FP-FRAME": 50},
	})
	if err := env.alloc.OnOrderSubmit(ctx, "SO-A"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	lines := []AllocationLine{{ItemCode: "RM-STEEL", Qty: dec(t, "20")}}
	if err := env.alloc.UseLongTermReserveBulk(ctx, "SO-A", lines); err != nil {
		t.Fatalf("self allocate: %v", err)
	}

	rows, err := env.summary.Summarize(ctx, "SO-A")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if !row.ReservedQty.Equal(dec(t, "70")) {
		t.Errorf("reserved = %s, want 70", row.ReservedQty.String())
	}
	if !row.UsedFromLongTerm.Equal(dec(t, "20")) {
		t.Errorf("used = %s, want 20（自占用行不得重复计数）", row.UsedFromLongTerm.String())
	}

	// 未挂靠的占用行仍计入
	if err := env.repos.Usage.Adjust(ctx, "SO-A", "RM-STEEL", dec(t, "-20"), nil); err != nil {
		t.Fatalf("clear linked usage: %v", err)
	}
	if err := env.repos.Usage.Adjust(ctx, "SO-A", "RM-STEEL", dec(t, "5"), nil); err != nil {
		t.Fatalf("seed unlinked usage: %v", err)
	}
	rows, err = env.summary.Summarize(ctx, "SO-A")
	if err != nil {
		t.Fatalf("Summarize again: %v", err)
	}
	if !rows[0].UsedFromLongTerm.Equal(dec(t, "5")) {
		t.Errorf("used = %s, want 5", rows[0].UsedFromLongTerm.String())
	}
}

func TestSummarizeChildBranches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedSteelWorld(t, env)
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-A",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 60,
		Lines:        map[string]float64{"FP-FRAME": 100},
	})
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:            "SO-B",
		DocStatus:     erpentity.OrderStatusDraft,
		DeliveryDays:  7,
		IsChild:       true,
		ParentOrderID: "SO-A",
		Lines:         map[string]float64{"FP-FRAME": 40},
	})
	if err := env.alloc.OnOrderSubmit(ctx, "SO-A"); err != nil {
		t.Fatalf("submit SO-A: %v", err)
	}

	// 未提交子单：长期储备列展示父单持有量
	rows, err := env.summary.Summarize(ctx, "SO-B")
	if err != nil {
		t.Fatalf("Summarize draft child: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if !rows[0].LongTermReserveQty.Equal(dec(t, "100")) {
		t.Errorf("long term reserve = %s, want 100（父单持有）", rows[0].LongTermReserveQty.String())
	}
	if !rows[0].UsedFromLongTerm.IsZero() {
		t.Errorf("used = %s, want 0", rows[0].UsedFromLongTerm.String())
	}

	// 提交后：只看自身占用，且无敞口
	testutil.SetOrderStatus(t, env.db, "SO-B", erpentity.OrderStatusSubmitted)
	if err := env.alloc.OnOrderSubmit(ctx, "SO-B"); err != nil {
		t.Fatalf("submit SO-B: %v", err)
	}
	rows, err = env.summary.Summarize(ctx, "SO-B")
	if err != nil {
		t.Fatalf("Summarize submitted child: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if !rows[0].UsedFromLongTerm.Equal(dec(t, "40")) {
		t.Errorf("used = %s, want 40", rows[0].UsedFromLongTerm.String())
	}
	if !rows[0].OpenQty.IsZero() {
		t.Errorf("open = %s, want 0（已提交子单无敞口）", rows[0].OpenQty.String())
	}

	// 父单视角：持有者明细里能看到被子单提取的量
	rows, err = env.summary.Summarize(ctx, "SO-A")
	if err != nil {
		t.Fatalf("Summarize parent: %v", err)
	}
	if len(rows) != 1 || len(rows[0].PoolHolders) != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	holder := rows[0].PoolHolders[0]
	if holder.OrderID != "SO-A" || !holder.ReservedQty.Equal(dec(t, "60")) {
		t.Errorf("holder = %+v, want SO-A with 60", holder)
	}
	if len(holder.DrawnBy) != 1 || holder.DrawnBy[0].ChildOrderID != "SO-B" ||
		!holder.DrawnBy[0].UsedQty.Equal(dec(t, "40")) {
		t.Errorf("drawn by = %+v, want SO-B with 40", holder.DrawnBy)
	}
}
