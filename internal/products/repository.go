package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	"github.com/smaite/weser/pkg/pagination"
)

// ErrStockConflict reports that a guarded stock decrement matched no row:
// either the available quantity dropped below the requested amount after
// validation, or the product stopped being active. Callers distinguish it
// from I/O failures to decide whether a retry makes sense.
var ErrStockConflict = errors.New("stock decrement conflict")

// Repository wires together product catalog persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads all products matching the given ids. Missing ids are
// simply absent from the result; the caller decides what that means.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Update saves the provided product row.
func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes a product by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// DecrementStock applies the guarded conditional decrement that keeps
// stock from going negative. The WHERE clause re-checks availability at
// write time, so a concurrent checkout that drained stock after this
// transaction's validation makes the update match zero rows.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.New("decrement quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND status = ? AND stock_quantity >= ?", productID, enums.ProductStatusActive, qty).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

// SetStock overwrites the stock level, used by admin restock flows.
func (r *Repository) SetStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty < 0 {
		return errors.New("stock quantity cannot be negative")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": qty,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListFilters narrows the catalog listing.
type ListFilters struct {
	CategoryID *uuid.UUID
	Status     *enums.ProductStatus
	Featured   *bool
	Query      string
}

type listQuery struct {
	Pagination pagination.Params
	Filters    ListFilters
}

// ListResult is one page of catalog listings.
type ListResult struct {
	Products   []models.Product
	NextCursor string
}

// List returns a page of products ordered by (created_at, id) descending.
func (r *Repository) List(ctx context.Context, query listQuery) (*ListResult, error) {
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(query.Pagination.Limit)

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.Product{})

	filter := query.Filters
	if filter.CategoryID != nil {
		qb = qb.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Status != nil {
		qb = qb.Where("status = ?", *filter.Status)
	}
	if filter.Featured != nil {
		qb = qb.Where("featured = ?", *filter.Featured)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("LOWER(name) LIKE ?", pattern)
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &ListResult{Products: rows, NextCursor: nextCursor}, nil
}
