package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawMaterialReservation 原材料预留：为某订单自身交付锁定的数量。
// (order_id, item_code) 唯一；提交时创建，消耗或子单占用时扣减，归零即删行。
type RawMaterialReservation struct {
	ID          string          `json:"id" gorm:"primaryKey;size:32"`
	OrderID     string          `json:"order_id" gorm:"size:32;not null;uniqueIndex:idx_reservation_order_item"`
	ItemCode    string          `json:"item_code" gorm:"size:64;not null;uniqueIndex:idx_reservation_order_item;index"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(20,6);not null"`
	ItemName    string          `json:"item_name" gorm:"size:200"`
	Customer    string          `json:"customer" gorm:"size:200"`
	EndCustomer string          `json:"end_customer" gorm:"size:200"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (RawMaterialReservation) TableName() string {
	return "reserve_raw_material_reservations"
}

// LongTermUsage 长期储备占用：子订单（或自占用的独立订单）从储备池提取的数量。
// (child_order_id, item_code) 唯一；parent为空表示未挂靠具体父单的池占用。
type LongTermUsage struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	ChildOrderID  string          `json:"child_order_id" gorm:"size:32;not null;uniqueIndex:idx_usage_child_item"`
	ParentOrderID *string         `json:"parent_order_id" gorm:"size:32;index"`
	ItemCode      string          `json:"item_code" gorm:"size:64;not null;uniqueIndex:idx_usage_child_item;index"`
	UsedQty       decimal.Decimal `json:"used_quantity" gorm:"column:used_quantity;type:decimal(20,6);not null"`
	UsageDate     time.Time       `json:"usage_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (LongTermUsage) TableName() string {
	return "reserve_long_term_usages"
}

// ReserveReleaseLog 手工清理储备的审计记录（仅追加）
type ReserveReleaseLog struct {
	ID        string          `json:"id" gorm:"primaryKey;size:32"`
	OrderID   string          `json:"order_id" gorm:"size:32;not null;index"`
	ItemCode  string          `json:"item_code" gorm:"size:64;not null"`
	Quantity  decimal.Decimal `json:"quantity" gorm:"type:decimal(20,6);not null"`
	Reason    string          `json:"reason" gorm:"size:500"`
	ClearedBy string          `json:"cleared_by" gorm:"size:64"`
	CreatedAt time.Time       `json:"created_at"`
}

func (ReserveReleaseLog) TableName() string {
	return "reserve_release_logs"
}
