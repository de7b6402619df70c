package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
)

// ProductDTO is the catalog representation returned to API consumers.
type ProductDTO struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	Description   *string             `json:"description,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	StockQuantity int                 `json:"stock_quantity"`
	CategoryID    *uuid.UUID          `json:"category_id,omitempty"`
	Images        []string            `json:"images"`
	Featured      bool                `json:"featured"`
	Status        enums.ProductStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// CategoryDTO is the category representation returned to API consumers.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListPage is one page of catalog DTOs plus the continuation cursor.
type ListPage struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toProductDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	images := make([]string, len(p.Images))
	copy(images, p.Images)
	return &ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		CategoryID:    p.CategoryID,
		Images:        images,
		Featured:      p.Featured,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toCategoryDTO(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}
