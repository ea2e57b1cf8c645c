package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/qty"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReservationRepository 原材料预留台账。
// 数量运算全部在decimal里完成后落库，不在SQL里做加减。
type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Get 按(订单,物料)唯一键查找预留行
func (r *ReservationRepository) Get(ctx context.Context, orderID, itemCode string) (*entity.RawMaterialReservation, error) {
	var res entity.RawMaterialReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND item_code = ?", orderID, itemCode).
		First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// ListByOrder 某订单的全部预留行
func (r *ReservationRepository) ListByOrder(ctx context.Context, orderID string) ([]entity.RawMaterialReservation, error) {
	var items []entity.RawMaterialReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("item_code ASC").
		Find(&items).Error
	return items, err
}

// ListByItem 某物料在所有订单下的预留行
func (r *ReservationRepository) ListByItem(ctx context.Context, itemCode string) ([]entity.RawMaterialReservation, error) {
	var items []entity.RawMaterialReservation
	err := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("order_id ASC").
		Find(&items).Error
	return items, err
}

// ListAll 全部预留行（批量校正作业用）
func (r *ReservationRepository) ListAll(ctx context.Context) ([]entity.RawMaterialReservation, error) {
	var items []entity.RawMaterialReservation
	err := r.db.WithContext(ctx).Order("order_id ASC, item_code ASC").Find(&items).Error
	return items, err
}

// ReplaceQuantity 覆盖式写入（重算语义，非累加）。
// 归一化后近零则直接删行，不落零行。
func (r *ReservationRepository) ReplaceQuantity(ctx context.Context, res *entity.RawMaterialReservation) error {
	res.Quantity = qty.Normalize(res.Quantity)
	if qty.IsEffectivelyZero(res.Quantity) {
		return r.DeleteOne(ctx, res.OrderID, res.ItemCode)
	}

	existing, err := r.Get(ctx, res.OrderID, res.ItemCode)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if res.ID == "" {
			res.ID = uuid.New().String()[:32]
		}
		return r.db.WithContext(ctx).Create(res).Error
	}

	existing.Quantity = res.Quantity
	existing.ItemName = res.ItemName
	existing.Customer = res.Customer
	existing.EndCustomer = res.EndCustomer
	return r.db.WithContext(ctx).Save(existing).Error
}

// AdjustQuantity 增量调整（消耗回退/父单回补）。行不存在时新建。
func (r *ReservationRepository) AdjustQuantity(ctx context.Context, orderID, itemCode string, delta decimal.Decimal, itemName, customer, endCustomer string) error {
	delta = qty.Normalize(delta)

	existing, err := r.Get(ctx, orderID, itemCode)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if qty.IsEffectivelyZero(delta) || delta.IsNegative() {
			return nil
		}
		return r.db.WithContext(ctx).Create(&entity.RawMaterialReservation{
			ID:          uuid.New().String()[:32],
			OrderID:     orderID,
			ItemCode:    itemCode,
			Quantity:    delta,
			ItemName:    itemName,
			Customer:    customer,
			EndCustomer: endCustomer,
		}).Error
	}

	newQty := qty.Normalize(existing.Quantity.Add(delta))
	if qty.IsEffectivelyZero(newQty) {
		return r.db.WithContext(ctx).Delete(existing).Error
	}
	existing.Quantity = newQty
	return r.db.WithContext(ctx).Save(existing).Error
}

// Consume 扣减预留，返回未被本台账覆盖的剩余量。
// 行扣到近零即删除；无预留行时原量返还给调用方继续扣占用台账。
func (r *ReservationRepository) Consume(ctx context.Context, orderID, itemCode string, consumeQty decimal.Decimal) (decimal.Decimal, error) {
	consumeQty = qty.Normalize(consumeQty)
	if qty.IsEffectivelyZero(consumeQty) || consumeQty.IsNegative() {
		return decimal.Zero, nil
	}

	existing, err := r.Get(ctx, orderID, itemCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return consumeQty, nil
		}
		return consumeQty, err
	}

	if qty.AtLeast(existing.Quantity, consumeQty) {
		remaining := qty.Normalize(existing.Quantity.Sub(consumeQty))
		if qty.IsEffectivelyZero(remaining) {
			return decimal.Zero, r.db.WithContext(ctx).Delete(existing).Error
		}
		existing.Quantity = remaining
		return decimal.Zero, r.db.WithContext(ctx).Save(existing).Error
	}

	// 预留不足：整行吃掉，余量交给上层
	leftover := qty.Normalize(consumeQty.Sub(existing.Quantity))
	if err := r.db.WithContext(ctx).Delete(existing).Error; err != nil {
		return consumeQty, err
	}
	return leftover, nil
}

// DeleteOne 删除单行（不存在不算错）
func (r *ReservationRepository) DeleteOne(ctx context.Context, orderID, itemCode string) error {
	return r.db.WithContext(ctx).
		Where("order_id = ? AND item_code = ?", orderID, itemCode).
		Delete(&entity.RawMaterialReservation{}).Error
}

// DeleteByOrder 删除订单全部预留行，返回被删内容（审计用）
func (r *ReservationRepository) DeleteByOrder(ctx context.Context, orderID string) ([]entity.RawMaterialReservation, error) {
	rows, err := r.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&entity.RawMaterialReservation{}).Error
	return rows, err
}

// TotalForItem 某物料全系统预留合计
func (r *ReservationRepository) TotalForItem(ctx context.Context, itemCode string) (decimal.Decimal, error) {
	rows, err := r.ListByItem(ctx, itemCode)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Quantity)
	}
	return qty.Normalize(total), nil
}

// TotalForOrders 某物料在指定订单集合内的预留合计
func (r *ReservationRepository) TotalForOrders(ctx context.Context, itemCode string, orderIDs []string) (decimal.Decimal, error) {
	if len(orderIDs) == 0 {
		return decimal.Zero, nil
	}
	var rows []entity.RawMaterialReservation
	err := r.db.WithContext(ctx).
		Where("item_code = ? AND order_id IN ?", itemCode, orderIDs).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Quantity)
	}
	return qty.Normalize(total), nil
}
