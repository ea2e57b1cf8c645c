package service

import (
	"context"
	"testing"

	erpentity "github.com/bitfantasy/nimo-reserve/internal/erp/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/testutil"
)

func TestComputeDemandSingleLevelWithFiltering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 组件三种：合格原料、不可采购的半成品、不可库存的服务项
	testutil.SeedMaterial(t, env.db, "RM-STEEL", "冷轧钢板", true, true)
	testutil.SeedMaterial(t, env.db, "SEMI-WELD", "焊接组件", true, false)
	testutil.SeedMaterial(t, env.db, "SVC-COAT", "喷涂外协", false, true)
	testutil.SeedBOM(t, env.db, "FP-FRAME", map[string]float64{
		"RM-STEEL":  2.5,
		"SEMI-WELD": 1,
		"SVC-COAT":  1,
	})
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-001",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 10,
		Lines:        map[string]float64{"FP-FRAME": 4},
	})

	order, err := env.erp.GetOrder(ctx, "SO-001")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	demand, err := env.demand.ComputeDemand(ctx, order)
	if err != nil {
		t.Fatalf("ComputeDemand: %v", err)
	}

	if len(demand) != 1 {
		t.Fatalf("demand items = %d, want 1（只计可库存且可采购的组件）", len(demand))
	}
	if !demand["RM-STEEL"].Equal(dec(t, "10")) {
		t.Errorf("RM-STEEL = %s, want 10", demand["RM-STEEL"].String())
	}
}

func TestComputeDemandAccumulatesAcrossLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, env.db, "RM-STEEL", "冷轧钢板", true, true)
	testutil.SeedBOM(t, env.db, "FP-FRAME", map[string]float64{"RM-STEEL": 2})
	testutil.SeedBOM(t, env.db, "FP-PANEL", map[string]float64{"RM-STEEL": 0.5})
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-001",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 10,
		Lines:        map[string]float64{"FP-FRAME": 3, "FP-PANEL": 8},
	})

	order, err := env.erp.GetOrder(ctx, "SO-001")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	demand, err := env.demand.ComputeDemand(ctx, order)
	if err != nil {
		t.Fatalf("ComputeDemand: %v", err)
	}

	// 3*2 + 8*0.5 = 10
	if !demand["RM-STEEL"].Equal(dec(t, "10")) {
		t.Errorf("RM-STEEL = %s, want 10", demand["RM-STEEL"].String())
	}
}

func TestComputeDemandLineWithoutBOMContributesZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedSteelWorld(t, env)
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-001",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 10,
		Lines:        map[string]float64{"FP-FRAME": 5, "FP-NOBOM": 100},
	})

	order, err := env.erp.GetOrder(ctx, "SO-001")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	demand, err := env.demand.ComputeDemand(ctx, order)
	if err != nil {
		t.Fatalf("ComputeDemand: %v", err)
	}

	if !demand["RM-STEEL"].Equal(dec(t, "5")) {
		t.Errorf("RM-STEEL = %s, want 5（无BOM行贡献为零）", demand["RM-STEEL"].String())
	}
}

func TestComputeDemandSkipsNonPositiveLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedSteelWorld(t, env)
	testutil.SeedOrder(t, env.db, testutil.OrderSpec{
		ID:           "SO-001",
		DocStatus:    erpentity.OrderStatusSubmitted,
		DeliveryDays: 10,
		Lines:        map[string]float64{"FP-FRAME": 0},
	})

	order, err := env.erp.GetOrder(ctx, "SO-001")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	demand, err := env.demand.ComputeDemand(ctx, order)
	if err != nil {
		t.Fatalf("ComputeDemand: %v", err)
	}
	if len(demand) != 0 {
		t.Errorf("demand = %v, want empty", demand)
	}
}
