package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/enums"
)

// Order is the immutable record produced by a committed checkout.
// TotalAmount and the associated items never change after creation;
// admin flows may only move Status and PaymentStatus.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	PaymentMethod   string              `gorm:"column:payment_method;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
