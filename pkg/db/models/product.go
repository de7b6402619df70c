package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/enums"
)

// Product is the canonical catalog listing. StockQuantity is the single
// piece of contended shared state in the system; it is only ever reduced
// through the guarded conditional decrement in the product repository.
type Product struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name          string              `gorm:"column:name;not null"`
	Description   *string             `gorm:"column:description"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	StockQuantity int                 `gorm:"column:stock_quantity;not null;default:0"`
	CategoryID    *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	Images        pq.StringArray      `gorm:"column:images;type:text[]"`
	Featured      bool                `gorm:"column:featured;not null;default:false"`
	Status        enums.ProductStatus `gorm:"column:status;not null;default:'active'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Purchasable reports whether the listing can be added to a cart at all.
func (p *Product) Purchasable() bool {
	return p != nil && p.Status == enums.ProductStatusActive
}
