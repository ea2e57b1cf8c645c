package entity

import "time"

// Inventory 分仓库存（预留子系统只读现有量）
type Inventory struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	MaterialCode string     `json:"material_code" gorm:"size:64;not null;index"`
	MaterialName string     `json:"material_name" gorm:"size:200"`
	WarehouseID  string     `json:"warehouse_id" gorm:"size:32;not null;index"`
	Quantity     float64    `json:"quantity" gorm:"type:decimal(20,6);not null;default:0"`
	AvailableQty float64    `json:"available_qty" gorm:"type:decimal(20,6);default:0"`
	Unit         string     `json:"unit" gorm:"size:20;default:pcs"`
	LastMovedAt  *time.Time `json:"last_moved_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Inventory) TableName() string {
	return "erp_inventory"
}

// PO行项状态
const (
	POItemStatusPending  = "pending"
	POItemStatusPartial  = "partial"
	POItemStatusReceived = "received"
)

// PurchaseOrderItem 采购订单行项（未到货部分构成在途供应，仅展示用）
type PurchaseOrderItem struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	POCode       string     `json:"po_code" gorm:"size:50;not null;index"`
	OrderID      *string    `json:"order_id" gorm:"size:32;index"` // 按单采购时关联的销售订单
	MaterialCode string     `json:"material_code" gorm:"size:64;not null;index"`
	Quantity     float64    `json:"quantity" gorm:"type:decimal(20,6);not null"`
	ReceivedQty  float64    `json:"received_qty" gorm:"type:decimal(20,6);default:0"`
	Status       string     `json:"status" gorm:"size:20;default:pending"`
	ExpectedDate *time.Time `json:"expected_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (PurchaseOrderItem) TableName() string {
	return "erp_po_items"
}
