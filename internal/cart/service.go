package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
	pkgerrors "github.com/smaite/weser/pkg/errors"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service exposes the cart operations available to a signed-in user.
type Service interface {
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	SetQuantity(ctx context.Context, userID uuid.UUID, input SetQuantityInput) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// AddItemInput is the payload for an additive cart add.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// SetQuantityInput replaces a line's quantity outright.
type SetQuantityInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartLineDTO is one cart line joined with its current listing data.
type CartLineDTO struct {
	ProductID   uuid.UUID       `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	InStock     int             `json:"in_stock"`
	Purchasable bool            `json:"purchasable"`
}

// CartDTO is the full cart view with an indicative total. Prices here
// are current catalog prices; the binding snapshot happens at checkout.
type CartDTO struct {
	Items []CartLineDTO   `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// InsufficientStockDetails explains a rejected add or quantity change.
type InsufficientStockDetails struct {
	ProductID uuid.UUID `json:"product_id"`
	Available int       `json:"available"`
	Requested int       `json:"requested"`
	InCart    int       `json:"in_cart,omitempty"`
}

type service struct {
	repo     *Repository
	products productLoader
}

// NewService constructs a cart service instance.
func NewService(repo *Repository, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, products: products}, nil
}

// AddItem accumulates quantity onto the user's line for the product.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	listing, err := s.loadPurchasable(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	// The upsert only guards the accumulate branch, so a fresh line has
	// to be screened here before any row exists.
	if input.Quantity > listing.StockQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(InsufficientStockDetails{
				ProductID: input.ProductID,
				Available: listing.StockQuantity,
				Requested: input.Quantity,
				InCart:    s.currentQuantity(ctx, userID, input.ProductID),
			})
	}

	applied, err := s.repo.AddItem(ctx, userID, input.ProductID, input.Quantity, listing.StockQuantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: add cart item")
	}
	if !applied {
		inCart := s.currentQuantity(ctx, userID, input.ProductID)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(InsufficientStockDetails{
				ProductID: input.ProductID,
				Available: listing.StockQuantity,
				Requested: input.Quantity,
				InCart:    inCart,
			})
	}
	return s.GetCart(ctx, userID)
}

// SetQuantity overwrites a line's quantity. Zero or less removes the line.
func (s *service) SetQuantity(ctx context.Context, userID uuid.UUID, input SetQuantityInput) (*CartDTO, error) {
	if input.Quantity <= 0 {
		return s.RemoveItem(ctx, userID, input.ProductID)
	}

	listing, err := s.loadPurchasable(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if input.Quantity > listing.StockQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(InsufficientStockDetails{
				ProductID: input.ProductID,
				Available: listing.StockQuantity,
				Requested: input.Quantity,
			})
	}

	updated, err := s.repo.UpdateQuantity(ctx, userID, input.ProductID, input.Quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart quantity")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	return s.GetCart(ctx, userID)
}

// RemoveItem deletes the line if present; absent lines are a no-op.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: remove cart item")
	}
	return s.GetCart(ctx, userID)
}

// GetCart joins cart lines with their listings and totals them.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart items")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	listings, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(listings))
	for i := range listings {
		byID[listings[i].ID] = &listings[i]
	}

	dto := &CartDTO{Items: make([]CartLineDTO, 0, len(items)), Total: decimal.Zero}
	for _, item := range items {
		line := CartLineDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			LineTotal: decimal.Zero,
		}
		if listing, ok := byID[item.ProductID]; ok {
			line.Name = listing.Name
			line.Price = listing.Price
			line.InStock = listing.StockQuantity
			line.Purchasable = listing.Purchasable()
			line.LineTotal = listing.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			dto.Total = dto.Total.Add(line.LineTotal)
		}
		dto.Items = append(dto.Items, line)
	}
	return dto, nil
}

// Clear drops the entire cart.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
	}
	return nil
}

func (s *service) loadPurchasable(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	listing, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if !listing.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available")
	}
	return listing, nil
}

func (s *service) currentQuantity(ctx context.Context, userID, productID uuid.UUID) int {
	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return 0
	}
	for _, item := range items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}
