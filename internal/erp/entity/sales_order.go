package entity

import "time"

// 订单状态（与ERP侧docstatus对齐）
const (
	OrderStatusDraft     = "draft"
	OrderStatusSubmitted = "submitted"
	OrderStatusCancelled = "cancelled"
)

// SalesOrder 销售订单（预留子系统只读）
type SalesOrder struct {
	ID              string     `json:"id" gorm:"primaryKey;size:32"`
	OrderCode       string     `json:"order_code" gorm:"size:50;uniqueIndex"`
	CustomerID      string     `json:"customer_id" gorm:"size:32;index"`
	CustomerName    string     `json:"customer_name" gorm:"size:200"`
	EndCustomer     string     `json:"end_customer" gorm:"size:200"`
	DocStatus       string     `json:"docstatus" gorm:"column:docstatus;size:20;not null;default:draft"`
	DeliveryDate    *time.Time `json:"delivery_date"`
	IsLongTermChild bool       `json:"is_long_term_child" gorm:"default:false"`
	ParentOrderID   *string    `json:"parent_order_id" gorm:"size:32;index"`
	Notes           string     `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Items []SalesOrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (SalesOrder) TableName() string {
	return "erp_sales_orders"
}

// SalesOrderItem 销售订单行项
type SalesOrderItem struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	OrderID      string    `json:"order_id" gorm:"size:32;not null;index"`
	MaterialCode string    `json:"material_code" gorm:"size:64;not null"`
	MaterialName string    `json:"material_name" gorm:"size:200"`
	Quantity     float64   `json:"quantity" gorm:"type:decimal(20,6);not null"`
	Unit         string    `json:"unit" gorm:"size:20;default:pcs"`
	SortOrder    int       `json:"sort_order" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (SalesOrderItem) TableName() string {
	return "erp_sales_order_items"
}
