package service

import (
	"context"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/qty"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DemandService 需求计算：订单行经单层BOM展开汇总为原材料需求
type DemandService struct {
	bom    BOMProvider
	items  ItemProvider
	logger *zap.Logger
}

func NewDemandService(bom BOMProvider, items ItemProvider, logger *zap.Logger) *DemandService {
	return &DemandService{bom: bom, items: items, logger: logger}
}

// ComputeDemand 计算订单的原材料需求汇总。
// 单层展开；行无默认BOM贡献为零（记警告，不报错）；
// 组件须同时可库存、可采购才计入。
func (s *DemandService) ComputeDemand(ctx context.Context, order *OrderInfo) (map[string]decimal.Decimal, error) {
	demand := make(map[string]decimal.Decimal)

	for _, line := range order.Lines {
		lineQty := qty.Normalize(line.Qty)
		if qty.IsEffectivelyZero(lineQty) || lineQty.IsNegative() {
			continue
		}

		bomLines, err := s.bom.GetDefaultBOM(ctx, line.ItemCode)
		if err != nil {
			return nil, err
		}
		if len(bomLines) == 0 {
			s.logger.Warn("订单行无默认BOM，需求贡献为零",
				zap.String("order_id", order.ID),
				zap.String("item_code", line.ItemCode))
			continue
		}

		for _, comp := range bomLines {
			flags, err := s.items.GetItemFlags(ctx, comp.ComponentCode)
			if err != nil {
				return nil, err
			}
			if flags == nil {
				s.logger.Warn("组件物料属性无法解析，跳过",
					zap.String("order_id", order.ID),
					zap.String("component_code", comp.ComponentCode))
				continue
			}
			if !flags.IsStockItem || !flags.IsPurchaseItem {
				continue
			}

			required := qty.Normalize(comp.QtyPerUnit.Mul(lineQty))
			if qty.IsEffectivelyZero(required) {
				continue
			}
			demand[comp.ComponentCode] = qty.Normalize(demand[comp.ComponentCode].Add(required))
		}
	}

	return demand, nil
}
