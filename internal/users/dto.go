package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
)

// UserDTO is the account representation exposed to API consumers. The
// password hash never leaves the persistence layer.
type UserDTO struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     *string        `json:"phone,omitempty"`
	Address   *string        `json:"address,omitempty"`
	Role      enums.UserRole `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateUserDTO carries the fields needed to persist a new account.
type CreateUserDTO struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	Address      *string
	Role         enums.UserRole
}

// FromModel converts a persisted user into its API representation.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Address:   u.Address,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// ToModel builds the persistence model for a new account.
func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	return &models.User{
		Name:         c.Name,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Phone:        c.Phone,
		Address:      c.Address,
		Role:         role,
	}
}
