package entity

import "time"

// Material 物料主数据
type Material struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	Code           string    `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name           string    `json:"name" gorm:"size:200"`
	Specification  string    `json:"specification" gorm:"size:500"`
	Unit           string    `json:"unit" gorm:"size:20;default:pcs"`
	// 布尔标记不设列默认值：gorm插入时省略零值字段，false会被默认值吞掉
	IsStockItem    bool      `json:"is_stock_item"`
	IsPurchaseItem bool      `json:"is_purchase_item"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Material) TableName() string {
	return "erp_materials"
}

// BOM状态
const (
	BOMStatusActive   = "active"
	BOMStatusInactive = "inactive"
)

// BOMHeader 物料清单头（每个产品一个默认生效BOM）
type BOMHeader struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	ProductCode string    `json:"product_code" gorm:"size:64;not null;index"`
	Version     string    `json:"version" gorm:"size:20;default:v1"`
	Status      string    `json:"status" gorm:"size:20;not null;default:active"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Items []BOMItem `json:"items,omitempty" gorm:"foreignKey:BOMHeaderID"`
}

func (BOMHeader) TableName() string {
	return "erp_bom_headers"
}

// BOMItem BOM行项（单层组件用量）
type BOMItem struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	BOMHeaderID   string    `json:"bom_header_id" gorm:"size:32;not null;index"`
	ComponentCode string    `json:"component_code" gorm:"size:64;not null"`
	QtyPerUnit    float64   `json:"qty_per_unit" gorm:"type:decimal(20,6);not null"`
	Unit          string    `json:"unit" gorm:"size:20;default:pcs"`
	CreatedAt     time.Time `json:"created_at"`
}

func (BOMItem) TableName() string {
	return "erp_bom_items"
}
