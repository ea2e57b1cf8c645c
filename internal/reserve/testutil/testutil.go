package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	erpentity "github.com/bitfantasy/nimo-reserve/internal/erp/entity"
	"github.com/bitfantasy/nimo-reserve/internal/middleware"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "nimo-reserve-jwt-secret-test"

var dbSeq int64

// SetupTestDB 每个测试独立的内存sqlite库，迁移ERP侧与预留侧全部表
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&erpentity.SalesOrder{},
		&erpentity.SalesOrderItem{},
		&erpentity.Material{},
		&erpentity.BOMHeader{},
		&erpentity.BOMItem{},
		&erpentity.Inventory{},
		&erpentity.PurchaseOrderItem{},
		&entity.RawMaterialReservation{},
		&entity.LongTermUsage{},
		&entity.ReserveReleaseLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupRouter 测试用gin引擎
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup 带JWT认证的测试路由组
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken 签发测试token
func GenerateTestToken(userID, name string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"roles": []string{"reserve_admin"},
		"iss":   "nimo-reserve",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest 对测试路由发起HTTP请求
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse 解析JSON响应体
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedMaterial 建一条物料主数据
func SeedMaterial(t *testing.T, db *gorm.DB, code, name string, isStock, isPurchase bool) *erpentity.Material {
	t.Helper()
	mat := &erpentity.Material{
		ID:             uuid.New().String()[:32],
		Code:           code,
		Name:           name,
		IsStockItem:    isStock,
		IsPurchaseItem: isPurchase,
	}
	if err := db.Create(mat).Error; err != nil {
		t.Fatalf("Failed to seed material %s: %v", code, err)
	}
	return mat
}

// SeedBOM 为产品建默认生效BOM，components为组件码到单位用量
func SeedBOM(t *testing.T, db *gorm.DB, productCode string, components map[string]float64) *erpentity.BOMHeader {
	t.Helper()
	header := &erpentity.BOMHeader{
		ID:          uuid.New().String()[:32],
		ProductCode: productCode,
		Status:      erpentity.BOMStatusActive,
		IsDefault:   true,
	}
	if err := db.Create(header).Error; err != nil {
		t.Fatalf("Failed to seed BOM header for %s: %v", productCode, err)
	}
	for code, q := range components {
		item := &erpentity.BOMItem{
			ID:            uuid.New().String()[:32],
			BOMHeaderID:   header.ID,
			ComponentCode: code,
			QtyPerUnit:    q,
		}
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("Failed to seed BOM item %s: %v", code, err)
		}
	}
	return header
}

// OrderSpec 测试订单参数
type OrderSpec struct {
	ID            string
	DocStatus     string
	DeliveryDays  int
	IsChild       bool
	ParentOrderID string
	Customer      string
	EndCustomer   string
	Lines         map[string]float64 // 成品码 -> 数量
}

// SeedOrder 建销售订单及行项
func SeedOrder(t *testing.T, db *gorm.DB, spec OrderSpec) *erpentity.SalesOrder {
	t.Helper()
	delivery := time.Now().AddDate(0, 0, spec.DeliveryDays)
	order := &erpentity.SalesOrder{
		ID:              spec.ID,
		OrderCode:       "SO-" + spec.ID,
		CustomerName:    spec.Customer,
		EndCustomer:     spec.EndCustomer,
		DocStatus:       spec.DocStatus,
		DeliveryDate:    &delivery,
		IsLongTermChild: spec.IsChild,
	}
	if spec.ParentOrderID != "" {
		parentID := spec.ParentOrderID
		order.ParentOrderID = &parentID
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("Failed to seed order %s: %v", spec.ID, err)
	}
	i := 0
	for code, q := range spec.Lines {
		item := &erpentity.SalesOrderItem{
			ID:           uuid.New().String()[:32],
			OrderID:      spec.ID,
			MaterialCode: code,
			MaterialName: "品名-" + code,
			Quantity:     q,
			SortOrder:    i,
		}
		i++
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("Failed to seed order item %s: %v", code, err)
		}
	}
	return order
}

// SetOrderStatus 调整订单状态
func SetOrderStatus(t *testing.T, db *gorm.DB, orderID, status string) {
	t.Helper()
	err := db.Model(&erpentity.SalesOrder{}).Where("id = ?", orderID).
		Update("docstatus", status).Error
	if err != nil {
		t.Fatalf("Failed to set order status: %v", err)
	}
}

// SeedInventory 建一条分仓库存
func SeedInventory(t *testing.T, db *gorm.DB, itemCode, warehouseID string, qty float64) {
	t.Helper()
	inv := &erpentity.Inventory{
		ID:           uuid.New().String()[:32],
		MaterialCode: itemCode,
		WarehouseID:  warehouseID,
		Quantity:     qty,
		AvailableQty: qty,
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("Failed to seed inventory %s: %v", itemCode, err)
	}
}

// SeedOpenPOItem 建一条未到货采购行项，orderID非空表示按单采购
func SeedOpenPOItem(t *testing.T, db *gorm.DB, poCode, orderID, itemCode string, qty, received float64, expectedDays int) {
	t.Helper()
	expected := time.Now().AddDate(0, 0, expectedDays)
	item := &erpentity.PurchaseOrderItem{
		ID:           uuid.New().String()[:32],
		POCode:       poCode,
		MaterialCode: itemCode,
		Quantity:     qty,
		ReceivedQty:  received,
		Status:       erpentity.POItemStatusPending,
		ExpectedDate: &expected,
	}
	if orderID != "" {
		id := orderID
		item.OrderID = &id
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to seed PO item %s: %v", itemCode, err)
	}
}
