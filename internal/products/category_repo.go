package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
)

// CategoryRepository exposes persistence for the category tree.
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository builds a category repository.
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	if tx == nil {
		return r
	}
	return &CategoryRepository{db: tx}
}

// FindByID loads a single category.
func (r *CategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// ListAll returns every category ordered by name.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a new category row.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// Update saves the provided category row.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes a category by ID. Products referencing it fall back to
// a null category via the FK's ON DELETE SET NULL.
func (r *CategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{}).Error
}
