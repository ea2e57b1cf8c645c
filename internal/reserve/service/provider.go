package service

import (
	"context"
	"errors"
	"time"

	erpentity "github.com/bitfantasy/nimo-reserve/internal/erp/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/qty"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLine 订单行：成品及数量
type OrderLine struct {
	ItemCode string
	ItemName string
	Qty      decimal.Decimal
}

// OrderInfo 订单快照（来自ERP侧，预留子系统只读）
type OrderInfo struct {
	ID              string
	Code            string
	Customer        string
	EndCustomer     string
	DocStatus       string
	DeliveryDate    *time.Time
	IsLongTermChild bool
	ParentOrderID   *string
	Lines           []OrderLine
}

// IsSubmitted 订单已提交
func (o *OrderInfo) IsSubmitted() bool {
	return o.DocStatus == erpentity.OrderStatusSubmitted
}

// IsChild 长期协议的分批释放子单
func (o *OrderInfo) IsChild() bool {
	return o.IsLongTermChild && o.ParentOrderID != nil && *o.ParentOrderID != ""
}

// BOMLine BOM组件行：单位用量
type BOMLine struct {
	ComponentCode string
	QtyPerUnit    decimal.Decimal
}

// ItemFlags 物料属性标记
type ItemFlags struct {
	ItemName       string
	IsStockItem    bool
	IsPurchaseItem bool
}

// PendingPurchase 在途采购明细（仅展示）
type PendingPurchase struct {
	SourceDoc    string          `json:"source_doc"`
	PendingQty   decimal.Decimal `json:"pending_qty"`
	ExpectedDate *time.Time      `json:"expected_date"`
}

// OrderProvider 订单数据能力
type OrderProvider interface {
	GetOrder(ctx context.Context, orderID string) (*OrderInfo, error)
	ListSubmittedOrderIDs(ctx context.Context) ([]string, error)
	ListLongTermOrderIDs(ctx context.Context, longTermDays int) ([]string, error)
	ListChildOrderIDs(ctx context.Context, parentOrderID string) ([]string, error)
}

// BOMProvider BOM展开能力。无默认BOM时返回(nil, nil)。
type BOMProvider interface {
	GetDefaultBOM(ctx context.Context, itemCode string) ([]BOMLine, error)
}

// ItemProvider 物料主数据能力
type ItemProvider interface {
	GetItemFlags(ctx context.Context, itemCode string) (*ItemFlags, error)
}

// StockProvider 现有库存能力（跨仓汇总）
type StockProvider interface {
	GetStockOnHand(ctx context.Context, itemCodes []string) (map[string]decimal.Decimal, error)
}

// ProcurementProvider 在途采购能力（仅展示）
type ProcurementProvider interface {
	GetOpenPurchaseDemand(ctx context.Context, itemCode, orderID string) ([]PendingPurchase, error)
}

// ERPProvider 直接读ERP表的能力实现
type ERPProvider struct {
	db *gorm.DB
}

var (
	_ OrderProvider       = (*ERPProvider)(nil)
	_ BOMProvider         = (*ERPProvider)(nil)
	_ ItemProvider        = (*ERPProvider)(nil)
	_ StockProvider       = (*ERPProvider)(nil)
	_ ProcurementProvider = (*ERPProvider)(nil)
)

func NewERPProvider(db *gorm.DB) *ERPProvider {
	return &ERPProvider{db: db}
}

// GetOrder 读取订单及行项
func (p *ERPProvider) GetOrder(ctx context.Context, orderID string) (*OrderInfo, error) {
	if orderID == "" {
		return nil, ErrOrderNotFound
	}
	var order erpentity.SalesOrder
	err := p.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	info := &OrderInfo{
		ID:              order.ID,
		Code:            order.OrderCode,
		Customer:        order.CustomerName,
		EndCustomer:     order.EndCustomer,
		DocStatus:       order.DocStatus,
		DeliveryDate:    order.DeliveryDate,
		IsLongTermChild: order.IsLongTermChild,
		ParentOrderID:   order.ParentOrderID,
	}
	for _, item := range order.Items {
		info.Lines = append(info.Lines, OrderLine{
			ItemCode: item.MaterialCode,
			ItemName: item.MaterialName,
			Qty:      qty.FromFloat(item.Quantity),
		})
	}
	return info, nil
}

// ListSubmittedOrderIDs 全部已提交订单ID
func (p *ERPProvider) ListSubmittedOrderIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).
		Model(&erpentity.SalesOrder{}).
		Where("docstatus = ?", erpentity.OrderStatusSubmitted).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ListLongTermOrderIDs 交期在长期阈值之外的已提交非子单（储备池持有者）
func (p *ERPProvider) ListLongTermOrderIDs(ctx context.Context, longTermDays int) ([]string, error) {
	horizon := time.Now().AddDate(0, 0, longTermDays)
	var ids []string
	err := p.db.WithContext(ctx).
		Model(&erpentity.SalesOrder{}).
		Where("docstatus = ? AND is_long_term_child = ? AND delivery_date >= ?",
			erpentity.OrderStatusSubmitted, false, horizon).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ListChildOrderIDs 某父单下的全部子单ID
func (p *ERPProvider) ListChildOrderIDs(ctx context.Context, parentOrderID string) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).
		Model(&erpentity.SalesOrder{}).
		Where("parent_order_id = ? AND is_long_term_child = ?", parentOrderID, true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// GetDefaultBOM 解析物料的默认生效BOM并返回组件行，无BOM返回nil
func (p *ERPProvider) GetDefaultBOM(ctx context.Context, itemCode string) ([]BOMLine, error) {
	var header erpentity.BOMHeader
	err := p.db.WithContext(ctx).
		Where("product_code = ? AND status = ? AND is_default = ?",
			itemCode, erpentity.BOMStatusActive, true).
		Order("created_at DESC").
		First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var items []erpentity.BOMItem
	if err := p.db.WithContext(ctx).
		Where("bom_header_id = ?", header.ID).
		Find(&items).Error; err != nil {
		return nil, err
	}

	lines := make([]BOMLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, BOMLine{
			ComponentCode: item.ComponentCode,
			QtyPerUnit:    qty.FromFloat(item.QtyPerUnit),
		})
	}
	return lines, nil
}

// GetItemFlags 读取物料属性标记
func (p *ERPProvider) GetItemFlags(ctx context.Context, itemCode string) (*ItemFlags, error) {
	var mat erpentity.Material
	err := p.db.WithContext(ctx).Where("code = ?", itemCode).First(&mat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ItemFlags{
		ItemName:       mat.Name,
		IsStockItem:    mat.IsStockItem,
		IsPurchaseItem: mat.IsPurchaseItem,
	}, nil
}

// GetStockOnHand 跨仓汇总现有库存
func (p *ERPProvider) GetStockOnHand(ctx context.Context, itemCodes []string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal, len(itemCodes))
	if len(itemCodes) == 0 {
		return result, nil
	}
	var rows []erpentity.Inventory
	err := p.db.WithContext(ctx).
		Where("material_code IN ?", itemCodes).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.MaterialCode] = result[row.MaterialCode].Add(qty.FromFloat(row.AvailableQty))
	}
	return result, nil
}

// GetOpenPurchaseDemand 某物料未到货采购明细，orderID非空时只看按单采购
func (p *ERPProvider) GetOpenPurchaseDemand(ctx context.Context, itemCode, orderID string) ([]PendingPurchase, error) {
	query := p.db.WithContext(ctx).
		Where("material_code = ? AND status IN ?", itemCode,
			[]string{erpentity.POItemStatusPending, erpentity.POItemStatusPartial})
	if orderID != "" {
		query = query.Where("order_id = ?", orderID)
	}
	var items []erpentity.PurchaseOrderItem
	if err := query.Order("expected_date ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	var result []PendingPurchase
	for _, item := range items {
		pending := qty.FromFloat(item.Quantity).Sub(qty.FromFloat(item.ReceivedQty))
		if qty.IsEffectivelyZero(pending) || pending.IsNegative() {
			continue
		}
		result = append(result, PendingPurchase{
			SourceDoc:    item.POCode,
			PendingQty:   pending,
			ExpectedDate: item.ExpectedDate,
		})
	}
	return result, nil
}
