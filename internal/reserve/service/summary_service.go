package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/qty"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const stockCacheTTL = 30 * time.Second

// PoolDraw 子单对某持有者储备的提取
type PoolDraw struct {
	ChildOrderID string          `json:"child_order_id"`
	UsedQty      decimal.Decimal `json:"used_qty"`
}

// PoolHolder 持有长期储备的订单及被提取明细
type PoolHolder struct {
	OrderID     string          `json:"order_id"`
	ReservedQty decimal.Decimal `json:"reserved_qty"`
	DrawnBy     []PoolDraw      `json:"drawn_by,omitempty"`
}

// MaterialRow 单物料的需求/库存/预留汇总行
type MaterialRow struct {
	ItemCode                string            `json:"item_code"`
	ItemName                string            `json:"item_name"`
	DemandQty               decimal.Decimal   `json:"demand_qty"`
	StockQty                decimal.Decimal   `json:"stock_qty"`
	ReservedQty             decimal.Decimal   `json:"reserved_qty"`
	LongTermReserveQty      decimal.Decimal   `json:"long_term_reserve_qty"`
	UsedFromLongTerm        decimal.Decimal   `json:"used_from_long_term"`
	TotalReservedSystemWide decimal.Decimal   `json:"total_reserved_system_wide"`
	TotalLongTermPool       decimal.Decimal   `json:"total_long_term_pool"`
	OpenQty                 decimal.Decimal   `json:"open_qty"`
	PendingPurchases        []PendingPurchase `json:"pending_purchases,omitempty"`
	PoolHolders             []PoolHolder      `json:"pool_holders,omitempty"`
}

// SummaryService 库存与预留汇总
type SummaryService struct {
	repos        *repository.Repositories
	orders       OrderProvider
	stock        StockProvider
	procurement  ProcurementProvider
	demand       *DemandService
	rdb          *redis.Client // 可为nil：无缓存直查
	longTermDays int
	logger       *zap.Logger
}

func NewSummaryService(
	repos *repository.Repositories,
	orders OrderProvider,
	stock StockProvider,
	procurement ProcurementProvider,
	demand *DemandService,
	rdb *redis.Client,
	longTermDays int,
	logger *zap.Logger,
) *SummaryService {
	return &SummaryService{
		repos:        repos,
		orders:       orders,
		stock:        stock,
		procurement:  procurement,
		demand:       demand,
		rdb:          rdb,
		longTermDays: longTermDays,
		logger:       logger,
	}
}

// Summarize 生成订单的物料汇总行。零需求物料不产生行。
func (s *SummaryService) Summarize(ctx context.Context, orderID string) ([]MaterialRow, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if err == ErrOrderNotFound {
			return nil, NewValidationError("订单不存在或尚未保存: %s", orderID)
		}
		return nil, err
	}

	demand, err := s.demand.ComputeDemand(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("计算物料需求失败: %w", err)
	}
	if len(demand) == 0 {
		return nil, nil
	}

	itemCodes := make([]string, 0, len(demand))
	itemNames := make(map[string]string)
	for code := range demand {
		itemCodes = append(itemCodes, code)
	}
	sort.Strings(itemCodes)
	for _, line := range order.Lines {
		itemNames[line.ItemCode] = line.ItemName
	}

	stock, err := s.getStock(ctx, itemCodes)
	if err != nil {
		return nil, fmt.Errorf("查询现有库存失败: %w", err)
	}

	ltOrderIDs, err := s.orders.ListLongTermOrderIDs(ctx, s.longTermDays)
	if err != nil {
		return nil, fmt.Errorf("查询长期订单失败: %w", err)
	}

	rows := make([]MaterialRow, 0, len(itemCodes))
	for _, code := range itemCodes {
		row, err := s.buildRow(ctx, order, code, demand[code], stock[code], ltOrderIDs)
		if err != nil {
			return nil, err
		}
		row.ItemName = itemNames[code]
		rows = append(rows, *row)
	}
	return rows, nil
}

func (s *SummaryService) buildRow(ctx context.Context, order *OrderInfo, itemCode string, demandQty, stockQty decimal.Decimal, ltOrderIDs []string) (*MaterialRow, error) {
	row := &MaterialRow{
		ItemCode:  itemCode,
		DemandQty: demandQty,
		StockQty:  qty.Normalize(stockQty),
	}

	// 本订单自己的预留行
	if res, err := s.repos.Reservation.Get(ctx, order.ID, itemCode); err == nil {
		row.ReservedQty = res.Quantity
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	// 长期口径按订单类型分支
	switch {
	case order.IsChild() && order.IsSubmitted():
		// 已提交子单：只看自己的占用行
		if u, err := s.repos.Usage.Get(ctx, order.ID, itemCode); err == nil {
			row.UsedFromLongTerm = u.UsedQty
		} else if err != repository.ErrNotFound {
			return nil, err
		}
	case order.IsChild():
		// 未提交子单：看父单的预留行
		if res, err := s.repos.Reservation.Get(ctx, *order.ParentOrderID, itemCode); err == nil {
			row.LongTermReserveQty = res.Quantity
		} else if err != repository.ErrNotFound {
			return nil, err
		}
	default:
		// 独立订单：自己的预留加挂靠自己的占用。
		// 自占用行parent指向本单，已被ListByParent覆盖，这里只补未挂靠行。
		row.LongTermReserveQty = row.ReservedQty
		used := decimal.Zero
		drawn, err := s.repos.Usage.ListByParent(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		for _, u := range drawn {
			if u.ItemCode == itemCode {
				used = used.Add(u.UsedQty)
			}
		}
		if own, err := s.repos.Usage.Get(ctx, order.ID, itemCode); err == nil {
			if own.ParentOrderID == nil {
				used = used.Add(own.UsedQty)
			}
		} else if err != repository.ErrNotFound {
			return nil, err
		}
		row.UsedFromLongTerm = qty.Normalize(used)
	}

	totalReserved, err := s.repos.Reservation.TotalForItem(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	row.TotalReservedSystemWide = totalReserved

	poolTotal, err := s.repos.Reservation.TotalForOrders(ctx, itemCode, ltOrderIDs)
	if err != nil {
		return nil, err
	}
	row.TotalLongTermPool = poolTotal

	// 可用库存按全系统预留扣减
	availableStock := qty.Normalize(row.StockQty.Sub(totalReserved))
	if order.IsChild() && order.IsSubmitted() {
		// 已提交子单完全从父单储备取数，自身无敞口
		row.OpenQty = decimal.Zero
	} else {
		open := qty.Normalize(demandQty.Sub(availableStock))
		if open.IsNegative() || qty.IsEffectivelyZero(open) {
			open = decimal.Zero
		}
		row.OpenQty = open
	}

	pending, err := s.procurement.GetOpenPurchaseDemand(ctx, itemCode, order.ID)
	if err != nil {
		s.logger.Warn("查询在途采购失败，明细留空",
			zap.String("item_code", itemCode), zap.Error(err))
	} else {
		row.PendingPurchases = pending
	}

	holders, err := s.poolHolders(ctx, itemCode, ltOrderIDs)
	if err != nil {
		return nil, err
	}
	row.PoolHolders = holders

	return row, nil
}

// poolHolders 哪些长期订单为该物料持有储备、各被哪些子单提取了多少
func (s *SummaryService) poolHolders(ctx context.Context, itemCode string, ltOrderIDs []string) ([]PoolHolder, error) {
	if len(ltOrderIDs) == 0 {
		return nil, nil
	}
	ltSet := make(map[string]bool, len(ltOrderIDs))
	for _, id := range ltOrderIDs {
		ltSet[id] = true
	}

	reservations, err := s.repos.Reservation.ListByItem(ctx, itemCode)
	if err != nil {
		return nil, err
	}

	var holders []PoolHolder
	for _, res := range reservations {
		if !ltSet[res.OrderID] {
			continue
		}
		holder := PoolHolder{OrderID: res.OrderID, ReservedQty: res.Quantity}
		usages, err := s.repos.Usage.ListByParent(ctx, res.OrderID)
		if err != nil {
			return nil, err
		}
		for _, u := range usages {
			if u.ItemCode != itemCode {
				continue
			}
			holder.DrawnBy = append(holder.DrawnBy, PoolDraw{
				ChildOrderID: u.ChildOrderID,
				UsedQty:      u.UsedQty,
			})
		}
		holders = append(holders, holder)
	}
	return holders, nil
}

// getStock 现有库存查询，redis短缓存挡重复汇总
func (s *SummaryService) getStock(ctx context.Context, itemCodes []string) (map[string]decimal.Decimal, error) {
	if s.rdb == nil {
		return s.stock.GetStockOnHand(ctx, itemCodes)
	}

	result := make(map[string]decimal.Decimal, len(itemCodes))
	var missing []string
	for _, code := range itemCodes {
		val, err := s.rdb.Get(ctx, "reserve:stock:"+code).Result()
		if err != nil {
			missing = append(missing, code)
			continue
		}
		d, err := decimal.NewFromString(val)
		if err != nil {
			missing = append(missing, code)
			continue
		}
		result[code] = d
	}

	if len(missing) > 0 {
		fresh, err := s.stock.GetStockOnHand(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, code := range missing {
			result[code] = fresh[code]
			if setErr := s.rdb.Set(ctx, "reserve:stock:"+code, fresh[code].String(), stockCacheTTL).Err(); setErr != nil {
				s.logger.Warn("库存缓存写入失败", zap.String("item_code", code), zap.Error(setErr))
			}
		}
	}
	return result, nil
}
