package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 预留子系统仓库集合
type Repositories struct {
	Reservation *ReservationRepository
	Usage       *UsageRepository
	Audit       *AuditRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Reservation: NewReservationRepository(db),
		Usage:       NewUsageRepository(db),
		Audit:       NewAuditRepository(db),
	}
}
