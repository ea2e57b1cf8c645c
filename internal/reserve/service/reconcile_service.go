package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/qty"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 单订单校正结果
const (
	ReconcileOutcomeUpdated   = "updated"
	ReconcileOutcomeUnchanged = "unchanged"
	ReconcileOutcomeError     = "error"
)

// ReconcileResult 单订单校正结果
type ReconcileResult struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// ReconcileSummary 批量校正汇总
type ReconcileSummary struct {
	Processed int               `json:"processed"`
	Updated   int               `json:"updated"`
	Results   []ReconcileResult `json:"results"`
}

// NormalizeSummary 数量归一化作业汇总
type NormalizeSummary struct {
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// ReconcileService 批量幂等重算与清理作业。
// 逐单提交，单订单失败记入结果继续跑，不回滚已完成的订单。
type ReconcileService struct {
	db     *gorm.DB
	orders OrderProvider
	demand *DemandService
	logger *zap.Logger
}

func NewReconcileService(
	db *gorm.DB,
	orders OrderProvider,
	demand *DemandService,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{db: db, orders: orders, demand: demand, logger: logger}
}

// ReconcileAll 对全部已提交订单重算预留。
// 非子单：按最新需求覆盖预留行；子单：清掉违规持有的预留行。
// dryRun只报告将发生的变化。
func (s *ReconcileService) ReconcileAll(ctx context.Context, dryRun bool) (*ReconcileSummary, error) {
	orderIDs, err := s.orders.ListSubmittedOrderIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询已提交订单失败: %w", err)
	}

	summary := &ReconcileSummary{}
	for _, orderID := range orderIDs {
		summary.Processed++
		result := s.reconcileOne(ctx, orderID, dryRun)
		if result.Outcome == ReconcileOutcomeUpdated {
			summary.Updated++
		}
		if result.Outcome == ReconcileOutcomeError {
			s.logger.Warn("订单校正失败，跳过",
				zap.String("order_id", orderID),
				zap.String("detail", result.Detail))
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

func (s *ReconcileService) reconcileOne(ctx context.Context, orderID string, dryRun bool) ReconcileResult {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeError, Detail: err.Error()}
	}

	repos := repository.NewRepositories(s.db)
	existing, err := repos.Reservation.ListByOrder(ctx, orderID)
	if err != nil {
		return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeError, Detail: err.Error()}
	}

	if order.IsChild() {
		// 子单不得持有预留行
		if len(existing) == 0 {
			return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeUnchanged}
		}
		detail := fmt.Sprintf("清除子单违规持有的%d条预留行", len(existing))
		if dryRun {
			return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeUpdated, Detail: detail + "（干跑）"}
		}
		err := s.db.Transaction(func(tx *gorm.DB) error {
			_, err := repository.NewRepositories(tx).Reservation.DeleteByOrder(ctx, orderID)
			return err
		})
		if err != nil {
			return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeError, Detail: err.Error()}
		}
		return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeUpdated, Detail: detail}
	}

	demand, err := s.demand.ComputeDemand(ctx, order)
	if err != nil {
		return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeError, Detail: err.Error()}
	}

	// 与现状比对：数量有偏差或多出陈旧行才算有变化
	changed := false
	current := make(map[string]entity.RawMaterialReservation, len(existing))
	for _, row := range existing {
		current[row.ItemCode] = row
	}
	for code, want := range demand {
		row, ok := current[code]
		if !ok || !qty.IsEffectivelyZero(row.Quantity.Sub(want)) {
			changed = true
			break
		}
	}
	if !changed {
		for code := range current {
			if _, ok := demand[code]; !ok {
				changed = true
				break
			}
		}
	}
	if !changed {
		return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeUnchanged}
	}
	if dryRun {
		return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeUpdated, Detail: "预留与需求不一致（干跑）"}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		txRepos := repository.NewRepositories(tx)
		for code, want := range demand {
			row := entity.RawMaterialReservation{
				OrderID:     orderID,
				ItemCode:    code,
				Quantity:    want,
				Customer:    order.Customer,
				EndCustomer: order.EndCustomer,
			}
			if existing, ok := current[code]; ok {
				row.ItemName = existing.ItemName
			}
			if err := txRepos.Reservation.ReplaceQuantity(ctx, &row); err != nil {
				return err
			}
		}
		for code := range current {
			if _, ok := demand[code]; !ok {
				if err := txRepos.Reservation.DeleteOne(ctx, orderID, code); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeError, Detail: err.Error()}
	}
	return ReconcileResult{OrderID: orderID, Outcome: ReconcileOutcomeUpdated, Detail: "预留已按需求重算"}
}

// NormalizeAllQuantities 全台账数量归一化：逐行取6位小数，近零行删除
func (s *ReconcileService) NormalizeAllQuantities(ctx context.Context) (*NormalizeSummary, error) {
	summary := &NormalizeSummary{}
	repos := repository.NewRepositories(s.db)

	reservations, err := repos.Reservation.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取预留台账失败: %w", err)
	}
	for _, row := range reservations {
		normalized := qty.Normalize(row.Quantity)
		switch {
		case qty.IsEffectivelyZero(normalized):
			if err := repos.Reservation.DeleteOne(ctx, row.OrderID, row.ItemCode); err != nil {
				return nil, err
			}
			summary.Deleted++
		case !normalized.Equal(row.Quantity):
			row.Quantity = normalized
			if err := repos.Reservation.ReplaceQuantity(ctx, &row); err != nil {
				return nil, err
			}
			summary.Updated++
		}
	}

	usages, err := repos.Usage.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取占用台账失败: %w", err)
	}
	for _, row := range usages {
		normalized := qty.Normalize(row.UsedQty)
		switch {
		case qty.IsEffectivelyZero(normalized):
			if err := repos.Usage.DeleteOne(ctx, row.ChildOrderID, row.ItemCode); err != nil {
				return nil, err
			}
			summary.Deleted++
		case !normalized.Equal(row.UsedQty):
			row.UsedQty = normalized
			if err := repos.Usage.Replace(ctx, &row); err != nil {
				return nil, err
			}
			summary.Updated++
		}
	}

	s.logger.Info("数量归一化完成",
		zap.Int("updated", summary.Updated),
		zap.Int("deleted", summary.Deleted))
	return summary, nil
}
