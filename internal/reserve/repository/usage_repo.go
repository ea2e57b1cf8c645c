package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/qty"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UsageRepository 长期储备占用台账
type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Get 按(子订单,物料)唯一键查找占用行
func (r *UsageRepository) Get(ctx context.Context, childOrderID, itemCode string) (*entity.LongTermUsage, error) {
	var u entity.LongTermUsage
	err := r.db.WithContext(ctx).
		Where("child_order_id = ? AND item_code = ?", childOrderID, itemCode).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListByOrder 某订单持有的全部占用行
func (r *UsageRepository) ListByOrder(ctx context.Context, childOrderID string) ([]entity.LongTermUsage, error) {
	var items []entity.LongTermUsage
	err := r.db.WithContext(ctx).
		Where("child_order_id = ?", childOrderID).
		Order("item_code ASC").
		Find(&items).Error
	return items, err
}

// ListByParent 挂靠某父单的全部占用行
func (r *UsageRepository) ListByParent(ctx context.Context, parentOrderID string) ([]entity.LongTermUsage, error) {
	var items []entity.LongTermUsage
	err := r.db.WithContext(ctx).
		Where("parent_order_id = ?", parentOrderID).
		Order("child_order_id ASC, item_code ASC").
		Find(&items).Error
	return items, err
}

// ListByItem 某物料的全部占用行
func (r *UsageRepository) ListByItem(ctx context.Context, itemCode string) ([]entity.LongTermUsage, error) {
	var items []entity.LongTermUsage
	err := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("child_order_id ASC").
		Find(&items).Error
	return items, err
}

// ListAll 全部占用行（批量校正作业用）
func (r *UsageRepository) ListAll(ctx context.Context) ([]entity.LongTermUsage, error) {
	var items []entity.LongTermUsage
	err := r.db.WithContext(ctx).Order("child_order_id ASC, item_code ASC").Find(&items).Error
	return items, err
}

// Replace 覆盖式写入占用行，近零即删
func (r *UsageRepository) Replace(ctx context.Context, u *entity.LongTermUsage) error {
	u.UsedQty = qty.Normalize(u.UsedQty)
	if qty.IsEffectivelyZero(u.UsedQty) {
		return r.DeleteOne(ctx, u.ChildOrderID, u.ItemCode)
	}

	existing, err := r.Get(ctx, u.ChildOrderID, u.ItemCode)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if u.ID == "" {
			u.ID = uuid.New().String()[:32]
		}
		if u.UsageDate.IsZero() {
			u.UsageDate = time.Now()
		}
		return r.db.WithContext(ctx).Create(u).Error
	}

	existing.UsedQty = u.UsedQty
	existing.ParentOrderID = u.ParentOrderID
	existing.UsageDate = time.Now()
	return r.db.WithContext(ctx).Save(existing).Error
}

// Adjust 增量调整占用行（同一子单多次提取时累加）
func (r *UsageRepository) Adjust(ctx context.Context, childOrderID, itemCode string, delta decimal.Decimal, parentOrderID *string) error {
	delta = qty.Normalize(delta)

	existing, err := r.Get(ctx, childOrderID, itemCode)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if qty.IsEffectivelyZero(delta) || delta.IsNegative() {
			return nil
		}
		return r.db.WithContext(ctx).Create(&entity.LongTermUsage{
			ID:            uuid.New().String()[:32],
			ChildOrderID:  childOrderID,
			ParentOrderID: parentOrderID,
			ItemCode:      itemCode,
			UsedQty:       delta,
			UsageDate:     time.Now(),
		}).Error
	}

	newQty := qty.Normalize(existing.UsedQty.Add(delta))
	if qty.IsEffectivelyZero(newQty) {
		return r.db.WithContext(ctx).Delete(existing).Error
	}
	existing.UsedQty = newQty
	existing.UsageDate = time.Now()
	return r.db.WithContext(ctx).Save(existing).Error
}

// Consume 扣减占用，返回两个台账都覆盖不了的剩余量
func (r *UsageRepository) Consume(ctx context.Context, childOrderID, itemCode string, consumeQty decimal.Decimal) (decimal.Decimal, error) {
	consumeQty = qty.Normalize(consumeQty)
	if qty.IsEffectivelyZero(consumeQty) || consumeQty.IsNegative() {
		return decimal.Zero, nil
	}

	existing, err := r.Get(ctx, childOrderID, itemCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return consumeQty, nil
		}
		return consumeQty, err
	}

	if qty.AtLeast(existing.UsedQty, consumeQty) {
		remaining := qty.Normalize(existing.UsedQty.Sub(consumeQty))
		if qty.IsEffectivelyZero(remaining) {
			return decimal.Zero, r.db.WithContext(ctx).Delete(existing).Error
		}
		existing.UsedQty = remaining
		return decimal.Zero, r.db.WithContext(ctx).Save(existing).Error
	}

	leftover := qty.Normalize(consumeQty.Sub(existing.UsedQty))
	if err := r.db.WithContext(ctx).Delete(existing).Error; err != nil {
		return consumeQty, err
	}
	return leftover, nil
}

// DeleteOne 删除单行（不存在不算错）
func (r *UsageRepository) DeleteOne(ctx context.Context, childOrderID, itemCode string) error {
	return r.db.WithContext(ctx).
		Where("child_order_id = ? AND item_code = ?", childOrderID, itemCode).
		Delete(&entity.LongTermUsage{}).Error
}

// TotalForItem 某物料全系统占用合计
func (r *UsageRepository) TotalForItem(ctx context.Context, itemCode string) (decimal.Decimal, error) {
	rows, err := r.ListByItem(ctx, itemCode)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.UsedQty)
	}
	return qty.Normalize(total), nil
}

// TotalForOrders 某物料限定在订单集合（父单及其子单圈）内的占用合计
func (r *UsageRepository) TotalForOrders(ctx context.Context, itemCode string, orderIDs []string) (decimal.Decimal, error) {
	if len(orderIDs) == 0 {
		return decimal.Zero, nil
	}
	var rows []entity.LongTermUsage
	err := r.db.WithContext(ctx).
		Where("item_code = ? AND (child_order_id IN ? OR parent_order_id IN ?)", itemCode, orderIDs, orderIDs).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.UsedQty)
	}
	return qty.Normalize(total), nil
}
