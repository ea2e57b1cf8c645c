package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/qty"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// itemLocks 按物料码串行化检查-写入序列。
// 同一物料的并发提交/分配在这里排队，避免双读储备后双扣的丢失更新。
type itemLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newItemLocks() *itemLocks {
	return &itemLocks{m: make(map[string]*sync.Mutex)}
}

// acquire 固定序加锁，返回解锁函数
func (l *itemLocks) acquire(codes []string) func() {
	uniq := make(map[string]bool, len(codes))
	for _, c := range codes {
		uniq[c] = true
	}
	sorted := make([]string, 0, len(uniq))
	for c := range uniq {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	locked := make([]*sync.Mutex, 0, len(sorted))
	for _, c := range sorted {
		l.mu.Lock()
		m, ok := l.m[c]
		if !ok {
			m = &sync.Mutex{}
			l.m[c] = m
		}
		l.mu.Unlock()
		m.Lock()
		locked = append(locked, m)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

// AllocationLine 显式分配请求行
type AllocationLine struct {
	ItemCode string          `json:"item_code" binding:"required"`
	Qty      decimal.Decimal `json:"qty" binding:"required"`
}

// AllocationService 分配编排：订单生命周期事件驱动两本台账
type AllocationService struct {
	db           *gorm.DB
	orders       OrderProvider
	items        ItemProvider
	demand       *DemandService
	longTermDays int
	locks        *itemLocks
	logger       *zap.Logger
}

func NewAllocationService(
	db *gorm.DB,
	orders OrderProvider,
	items ItemProvider,
	demand *DemandService,
	longTermDays int,
	logger *zap.Logger,
) *AllocationService {
	return &AllocationService{
		db:           db,
		orders:       orders,
		items:        items,
		demand:       demand,
		longTermDays: longTermDays,
		locks:        newItemLocks(),
		logger:       logger,
	}
}

func (s *AllocationService) getOrder(ctx context.Context, orderID string) (*OrderInfo, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, NewValidationError("订单不存在或尚未保存: %s", orderID)
		}
		return nil, err
	}
	return order, nil
}

// itemName 物料名称查不到不阻断流程
func (s *AllocationService) itemName(ctx context.Context, itemCode string) string {
	flags, err := s.items.GetItemFlags(ctx, itemCode)
	if err != nil || flags == nil {
		return ""
	}
	return flags.ItemName
}

// OnOrderSubmit 订单提交：非子单按需求整单覆盖预留（重提交幂等）；
// 子单校验父单储备足额后扣父单并登记占用，不为子单建预留行。
func (s *AllocationService) OnOrderSubmit(ctx context.Context, orderID string) error {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}

	demand, err := s.demand.ComputeDemand(ctx, order)
	if err != nil {
		return fmt.Errorf("计算物料需求失败: %w", err)
	}
	if len(demand) == 0 {
		return nil
	}

	codes := sortedKeys(demand)
	unlock := s.locks.acquire(codes)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		if order.IsChild() {
			return s.submitChild(ctx, repos, order, demand, codes)
		}
		return s.submitIndependent(ctx, repos, order, demand, codes)
	})
}

func (s *AllocationService) submitIndependent(ctx context.Context, repos *repository.Repositories, order *OrderInfo, demand map[string]decimal.Decimal, codes []string) error {
	for _, code := range codes {
		err := repos.Reservation.ReplaceQuantity(ctx, &entity.RawMaterialReservation{
			OrderID:     order.ID,
			ItemCode:    code,
			Quantity:    demand[code],
			ItemName:    s.itemName(ctx, code),
			Customer:    order.Customer,
			EndCustomer: order.EndCustomer,
		})
		if err != nil {
			return fmt.Errorf("写入预留失败 %s/%s: %w", order.ID, code, err)
		}
	}
	s.logger.Info("订单预留已登记",
		zap.String("order_id", order.ID),
		zap.Int("items", len(codes)))
	return nil
}

func (s *AllocationService) submitChild(ctx context.Context, repos *repository.Repositories, order *OrderInfo, demand map[string]decimal.Decimal, codes []string) error {
	parentID := *order.ParentOrderID
	if _, err := s.orders.GetOrder(ctx, parentID); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return NewValidationError("父订单不存在: %s", parentID)
		}
		return err
	}

	// 先整批校验：重提交时把已挂靠的占用视作可回补的额度
	var shortfalls []string
	for _, code := range codes {
		parentQty := decimal.Zero
		if res, err := repos.Reservation.Get(ctx, parentID, code); err == nil {
			parentQty = res.Quantity
		} else if err != repository.ErrNotFound {
			return err
		}

		if u, err := repos.Usage.Get(ctx, order.ID, code); err == nil {
			if u.ParentOrderID != nil && *u.ParentOrderID == parentID {
				parentQty = parentQty.Add(u.UsedQty)
			}
		} else if err != repository.ErrNotFound {
			return err
		}

		if !qty.AtLeast(parentQty, demand[code]) {
			shortfalls = append(shortfalls, fmt.Sprintf("%s：需求%s，父单储备%s",
				code, demand[code].String(), parentQty.String()))
		}
	}
	if len(shortfalls) > 0 {
		return NewValidationError("父单长期储备不足，提交中止：%s", strings.Join(shortfalls, "；"))
	}

	for _, code := range codes {
		// 重提交：先回补上次占用，再按新需求扣减
		if u, err := repos.Usage.Get(ctx, order.ID, code); err == nil {
			if u.ParentOrderID != nil && *u.ParentOrderID == parentID {
				if err := repos.Reservation.AdjustQuantity(ctx, parentID, code, u.UsedQty,
					s.itemName(ctx, code), order.Customer, order.EndCustomer); err != nil {
					return err
				}
			}
		} else if err != repository.ErrNotFound {
			return err
		}

		remaining, err := repos.Reservation.Consume(ctx, parentID, code, demand[code])
		if err != nil {
			return err
		}
		if !qty.IsEffectivelyZero(remaining) {
			return fmt.Errorf("父单预留扣减不足 %s/%s，剩余%s", parentID, code, remaining.String())
		}

		err = repos.Usage.Replace(ctx, &entity.LongTermUsage{
			ChildOrderID:  order.ID,
			ParentOrderID: &parentID,
			ItemCode:      code,
			UsedQty:       demand[code],
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("子单占用已登记",
		zap.String("order_id", order.ID),
		zap.String("parent_order_id", parentID),
		zap.Int("items", len(codes)))
	return nil
}

// OnOrderCancel 订单取消：先冲销本单持有的占用行（回补父单），
// 非子单再整单删除自己的预留。
func (s *AllocationService) OnOrderCancel(ctx context.Context, orderID string) error {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}

	codes, err := s.touchedItemCodes(ctx, orderID)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		return nil
	}
	unlock := s.locks.acquire(codes)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		if err := s.reverseUsageForOrder(ctx, repos, order); err != nil {
			return err
		}
		if !order.IsChild() {
			if _, err := repos.Reservation.DeleteByOrder(ctx, orderID); err != nil {
				return err
			}
		}
		s.logger.Info("订单分配已冲销", zap.String("order_id", orderID))
		return nil
	})
}

// reverseUsageForOrder 冲销订单持有的占用行：挂靠外部父单的先回补父单预留，再删行
func (s *AllocationService) reverseUsageForOrder(ctx context.Context, repos *repository.Repositories, order *OrderInfo) error {
	usages, err := repos.Usage.ListByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, u := range usages {
		if u.ParentOrderID != nil && *u.ParentOrderID != order.ID {
			err := repos.Reservation.AdjustQuantity(ctx, *u.ParentOrderID, u.ItemCode, u.UsedQty,
				s.itemName(ctx, u.ItemCode), order.Customer, order.EndCustomer)
			if err != nil {
				return err
			}
		}
		if err := repos.Usage.DeleteOne(ctx, u.ChildOrderID, u.ItemCode); err != nil {
			return err
		}
	}
	return nil
}

// OnPhysicalConsumption 实物消耗（投产/调拨）：先吃预留，余量吃占用，
// 两本台账都覆盖不了的部分不追账。
func (s *AllocationService) OnPhysicalConsumption(ctx context.Context, orderID, itemCode string, consumeQty decimal.Decimal) error {
	if _, err := s.getOrder(ctx, orderID); err != nil {
		return err
	}

	unlock := s.locks.acquire([]string{itemCode})
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		remaining, err := repos.Reservation.Consume(ctx, orderID, itemCode, consumeQty)
		if err != nil {
			return err
		}
		if qty.IsEffectivelyZero(remaining) {
			return nil
		}
		leftover, err := repos.Usage.Consume(ctx, orderID, itemCode, remaining)
		if err != nil {
			return err
		}
		if !qty.IsEffectivelyZero(leftover) {
			s.logger.Debug("消耗超出台账覆盖，余量不追账",
				zap.String("order_id", orderID),
				zap.String("item_code", itemCode),
				zap.String("leftover", leftover.String()))
		}
		return nil
	})
}

// OnConsumptionReversed 消耗回退只回补预留台账。
// 占用行是储备池提取的授予记录，不随实物回退恢复：父单可能已把
// 回补的额度重新分配，此处对称恢复会凭空放大池子。
func (s *AllocationService) OnConsumptionReversed(ctx context.Context, orderID, itemCode string, restoreQty decimal.Decimal) error {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}

	unlock := s.locks.acquire([]string{itemCode})
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		return repos.Reservation.AdjustQuantity(ctx, orderID, itemCode, restoreQty,
			s.itemName(ctx, itemCode), order.Customer, order.EndCustomer)
	})
}

// UseLongTermReserveBulk 显式长期储备分配。
// 任一行超出当前可用池，整批拒绝且不落任何写入。
func (s *AllocationService) UseLongTermReserveBulk(ctx context.Context, orderID string, lines []AllocationLine) error {
	if len(lines) == 0 {
		return NewValidationError("分配请求不能为空")
	}
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}

	scope, err := s.poolScope(ctx, order)
	if err != nil {
		return err
	}

	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		codes = append(codes, line.ItemCode)
	}
	unlock := s.locks.acquire(codes)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		// 整批先校验
		for _, line := range lines {
			reqQty := qty.Normalize(line.Qty)
			if qty.IsEffectivelyZero(reqQty) || reqQty.IsNegative() {
				return NewValidationError("分配数量必须为正: %s", line.ItemCode)
			}

			reserved, err := repos.Reservation.TotalForOrders(ctx, line.ItemCode, scope)
			if err != nil {
				return err
			}
			used, err := repos.Usage.TotalForOrders(ctx, line.ItemCode, scope)
			if err != nil {
				return err
			}
			available := qty.Normalize(reserved.Sub(used))
			if !qty.AtLeast(available, reqQty) {
				return NewValidationError("长期储备不足：%s 请求%s，可用%s",
					line.ItemCode, reqQty.String(), available.String())
			}

			if order.IsChild() {
				parentQty := decimal.Zero
				if res, err := repos.Reservation.Get(ctx, *order.ParentOrderID, line.ItemCode); err == nil {
					parentQty = res.Quantity
				} else if err != repository.ErrNotFound {
					return err
				}
				if !qty.AtLeast(parentQty, reqQty) {
					return NewValidationError("父单预留不足：%s 请求%s，父单持有%s",
						line.ItemCode, reqQty.String(), parentQty.String())
				}
			}
		}

		for _, line := range lines {
			reqQty := qty.Normalize(line.Qty)
			if order.IsChild() {
				parentID := *order.ParentOrderID
				remaining, err := repos.Reservation.Consume(ctx, parentID, line.ItemCode, reqQty)
				if err != nil {
					return err
				}
				if !qty.IsEffectivelyZero(remaining) {
					return fmt.Errorf("父单预留扣减不足 %s/%s", parentID, line.ItemCode)
				}
				if err := repos.Usage.Adjust(ctx, order.ID, line.ItemCode, reqQty, &parentID); err != nil {
					return err
				}
				continue
			}

			// 独立订单：既消耗虚拟池，又成为新的持有者
			err := repos.Reservation.AdjustQuantity(ctx, order.ID, line.ItemCode, reqQty,
				s.itemName(ctx, line.ItemCode), order.Customer, order.EndCustomer)
			if err != nil {
				return err
			}
			selfID := order.ID
			if err := repos.Usage.Adjust(ctx, order.ID, line.ItemCode, reqQty, &selfID); err != nil {
				return err
			}
		}

		s.logger.Info("长期储备分配完成",
			zap.String("order_id", order.ID),
			zap.Int("lines", len(lines)))
		return nil
	})
}

// poolScope 池口径：子单限定父单链，独立订单看全部合格长期订单
func (s *AllocationService) poolScope(ctx context.Context, order *OrderInfo) ([]string, error) {
	if order.IsChild() {
		parentID := *order.ParentOrderID
		children, err := s.orders.ListChildOrderIDs(ctx, parentID)
		if err != nil {
			return nil, err
		}
		return append([]string{parentID}, children...), nil
	}
	return s.orders.ListLongTermOrderIDs(ctx, s.longTermDays)
}

// ClearRemainingReserves 手工强制清理父单剩余预留，逐行落审计
func (s *AllocationService) ClearRemainingReserves(ctx context.Context, parentOrderID, reason, actor string) (int, error) {
	if _, err := s.getOrder(ctx, parentOrderID); err != nil {
		return 0, err
	}

	codes, err := s.touchedItemCodes(ctx, parentOrderID)
	if err != nil {
		return 0, err
	}
	unlock := s.locks.acquire(codes)
	defer unlock()

	cleared := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		rows, err := repos.Reservation.DeleteByOrder(ctx, parentOrderID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			err := repos.Audit.Create(ctx, &entity.ReserveReleaseLog{
				OrderID:   row.OrderID,
				ItemCode:  row.ItemCode,
				Quantity:  row.Quantity,
				Reason:    reason,
				ClearedBy: actor,
			})
			if err != nil {
				return err
			}
		}
		cleared = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("剩余储备已清理",
		zap.String("order_id", parentOrderID),
		zap.String("cleared_by", actor),
		zap.Int("rows", cleared))
	return cleared, nil
}

// touchedItemCodes 订单两本台账涉及的全部物料码（加锁范围）
func (s *AllocationService) touchedItemCodes(ctx context.Context, orderID string) ([]string, error) {
	repos := repository.NewRepositories(s.db)
	reservations, err := repos.Reservation.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	usages, err := repos.Usage.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, r := range reservations {
		codes = append(codes, r.ItemCode)
	}
	for _, u := range usages {
		codes = append(codes, u.ItemCode)
	}
	return codes, nil
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
