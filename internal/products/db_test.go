package product

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:product_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Category{}, &models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func mustCreateTestProduct(t *testing.T, tx *gorm.DB, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:          fmt.Sprintf("Listing %s", uuid.NewString()[:8]),
		Price:         decimal.NewFromFloat(19.99),
		StockQuantity: stock,
		Status:        enums.ProductStatusActive,
	}
	if err := tx.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}
