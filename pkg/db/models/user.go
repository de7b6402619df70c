package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/enums"
)

// User is a storefront account. Carts and orders hang off it.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name         string         `gorm:"column:name;not null"`
	Email        string         `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Phone        *string        `gorm:"column:phone"`
	Address      *string        `gorm:"column:address"`
	Role         enums.UserRole `gorm:"column:role;not null;default:'user'"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
