package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/repository"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testEnv 服务层测试环境：内存库上的全量装配
type testEnv struct {
	db        *gorm.DB
	repos     *repository.Repositories
	erp       *ERPProvider
	demand    *DemandService
	alloc     *AllocationService
	summary   *SummaryService
	reconcile *ReconcileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	erp := NewERPProvider(db)
	repos := repository.NewRepositories(db)
	demand := NewDemandService(erp, erp, logger)

	return &testEnv{
		db:        db,
		repos:     repos,
		erp:       erp,
		demand:    demand,
		alloc:     NewAllocationService(db, erp, erp, demand, 30, logger),
		summary:   NewSummaryService(repos, erp, erp, erp, demand, nil, 30, logger),
		reconcile: NewReconcileService(db, erp, demand, logger),
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// seedSteelWorld 常用场景：原材料RM-STEEL，成品FP-FRAME单位用量1
func seedSteelWorld(t *testing.T, env *testEnv) {
	t.Helper()
	testutil.SeedMaterial(t, env.db, "RM-STEEL", "冷轧钢板", true, true)
	testutil.SeedMaterial(t, env.db, "FP-FRAME", "机架成品", true, false)
	testutil.SeedBOM(t, env.db, "FP-FRAME", map[string]float64{"RM-STEEL": 1})
}

func reservationQty(t *testing.T, env *testEnv, orderID, itemCode string) decimal.Decimal {
	t.Helper()
	res, err := env.repos.Reservation.Get(context.Background(), orderID, itemCode)
	if err == repository.ErrNotFound {
		return decimal.Zero
	}
	if err != nil {
		t.Fatalf("reservation %s/%s: %v", orderID, itemCode, err)
	}
	return res.Quantity
}

func usageQty(t *testing.T, env *testEnv, childOrderID, itemCode string) decimal.Decimal {
	t.Helper()
	u, err := env.repos.Usage.Get(context.Background(), childOrderID, itemCode)
	if err == repository.ErrNotFound {
		return decimal.Zero
	}
	if err != nil {
		t.Fatalf("usage %s/%s: %v", childOrderID, itemCode, err)
	}
	return u.UsedQty
}
