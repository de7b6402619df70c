package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	pkgerrors "github.com/smaite/weser/pkg/errors"
	"github.com/smaite/weser/pkg/pagination"
)

// Service exposes catalog browsing plus admin product and category management.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ListPage, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	RestockProduct(ctx context.Context, productID uuid.UUID, quantity int) (*ProductDTO, error)

	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, categoryID uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, categoryID uuid.UUID) error
}

// ListProductsInput carries listing filters and pagination.
type ListProductsInput struct {
	Pagination pagination.Params
	CategoryID *uuid.UUID
	Featured   *bool
	Query      string
	// IncludeInactive is only honored for admin listings.
	IncludeInactive bool
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name          string
	Description   *string
	Price         decimal.Decimal
	StockQuantity int
	CategoryID    *uuid.UUID
	Images        []string
	Featured      bool
	Status        enums.ProductStatus
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
	CategoryID    *uuid.UUID
	Images        *[]string
	Featured      *bool
	Status        *enums.ProductStatus
}

// CategoryInput holds the payload for category create and update.
type CategoryInput struct {
	Name        string
	Description *string
}

type service struct {
	repo         *Repository
	categoryRepo *CategoryRepository
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, categoryRepo *CategoryRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if categoryRepo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{repo: repo, categoryRepo: categoryRepo}, nil
}

// GetProduct loads one listing by id.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return toProductDTO(product), nil
}

// ListProducts returns a catalog page. Non-admin callers only see active listings.
func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ListPage, error) {
	filters := ListFilters{
		CategoryID: input.CategoryID,
		Featured:   input.Featured,
		Query:      input.Query,
	}
	if !input.IncludeInactive {
		status := enums.ProductStatusActive
		filters.Status = &status
	}

	result, err := s.repo.List(ctx, listQuery{Pagination: input.Pagination, Filters: filters})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}

	page := &ListPage{
		Products:   make([]ProductDTO, 0, len(result.Products)),
		NextCursor: result.NextCursor,
	}
	for i := range result.Products {
		page.Products = append(page.Products, *toProductDTO(&result.Products[i]))
	}
	return page, nil
}

// CreateProduct inserts a new catalog listing.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateProductInput(input.Name, input.Price, input.StockQuantity); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = enums.ProductStatusActive
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
	}

	if err := s.ensureCategoryExists(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:          input.Name,
		Description:   input.Description,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		CategoryID:    input.CategoryID,
		Images:        input.Images,
		Featured:      input.Featured,
		Status:        status,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	return toProductDTO(created), nil
}

// UpdateProduct applies the provided partial update.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.StockQuantity != nil {
		product.StockQuantity = *input.StockQuantity
	}
	if input.CategoryID != nil {
		if err := s.ensureCategoryExists(ctx, input.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = input.CategoryID
	}
	if input.Images != nil {
		product.Images = *input.Images
	}
	if input.Featured != nil {
		product.Featured = *input.Featured
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
		}
		product.Status = *input.Status
	}

	if err := validateProductInput(product.Name, product.Price, product.StockQuantity); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return toProductDTO(updated), nil
}

// DeleteProduct removes a listing. Cart rows referencing it are left in
// place; validation reports them as gone at checkout time.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}
	return nil
}

// RestockProduct overwrites the stock level.
func (s *service) RestockProduct(ctx context.Context, productID uuid.UUID, quantity int) (*ProductDTO, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	if err := s.repo.SetStock(ctx, productID, quantity); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: restock product")
	}
	return s.GetProduct(ctx, productID)
}

// ListCategories returns the full category list.
func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list categories")
	}
	dtos := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toCategoryDTO(&rows[i]))
	}
	return dtos, nil
}

// CreateCategory inserts a new category.
func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}
	created, err := s.categoryRepo.Create(ctx, &models.Category{
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert category")
	}
	return toCategoryDTO(created), nil
}

// UpdateCategory renames or re-describes a category.
func (s *service) UpdateCategory(ctx context.Context, categoryID uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}
	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
	}
	category.Name = input.Name
	category.Description = input.Description
	updated, err := s.categoryRepo.Update(ctx, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update category")
	}
	return toCategoryDTO(updated), nil
}

// DeleteCategory removes a category.
func (s *service) DeleteCategory(ctx context.Context, categoryID uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
	}
	if err := s.categoryRepo.Delete(ctx, categoryID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete category")
	}
	return nil
}

func (s *service) ensureCategoryExists(ctx context.Context, categoryID *uuid.UUID) error {
	if categoryID == nil || *categoryID == uuid.Nil {
		return nil
	}
	if _, err := s.categoryRepo.FindByID(ctx, *categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
	}
	return nil
}

func validateProductInput(name string, price decimal.Decimal, stock int) error {
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	return nil
}
