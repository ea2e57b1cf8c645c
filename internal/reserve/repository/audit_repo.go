package repository

import (
	"context"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository 储备清理审计日志（仅追加）
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create 写入一条清理记录
func (r *AuditRepository) Create(ctx context.Context, log *entity.ReserveReleaseLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByOrder 某订单的清理记录
func (r *AuditRepository) ListByOrder(ctx context.Context, orderID string) ([]entity.ReserveReleaseLog, error) {
	var logs []entity.ReserveReleaseLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}
