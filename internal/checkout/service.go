package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smaite/weser/internal/cart"
	"github.com/smaite/weser/internal/orders"
	product "github.com/smaite/weser/internal/products"
	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	pkgerrors "github.com/smaite/weser/pkg/errors"
	"github.com/smaite/weser/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns a cart into an order inside one transaction.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*models.Order, error)
}

// CheckoutInput captures the order details supplied at submit time.
type CheckoutInput struct {
	ShippingAddress string
	PaymentMethod   string
}

type service struct {
	tx              txRunner
	cartRepo        *cart.Repository
	productRepo     *product.Repository
	ordersRepo      *orders.Repository
	metrics         *metrics.CheckoutMetrics
	conflictRetries int
}

// NewService builds the checkout service. conflictRetries bounds how many
// times a lost stock race triggers a fresh attempt before giving up.
func NewService(
	tx txRunner,
	cartRepo *cart.Repository,
	productRepo *product.Repository,
	ordersRepo *orders.Repository,
	checkoutMetrics *metrics.CheckoutMetrics,
	conflictRetries int,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if conflictRetries < 0 {
		conflictRetries = 0
	}
	return &service{
		tx:              tx,
		cartRepo:        cartRepo,
		productRepo:     productRepo,
		ordersRepo:      ordersRepo,
		metrics:         checkoutMetrics,
		conflictRetries: conflictRetries,
	}, nil
}

// Execute materializes the user's cart into an order. Everything happens
// in one transaction per attempt: re-validation, order creation with
// price snapshots, the guarded stock decrements, and the cart wipe. A
// lost stock race rolls the whole attempt back and is retried from
// scratch, so a returned order always reflects a consistent commit.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*models.Order, error) {
	started := time.Now()
	order, err := s.execute(ctx, userID, input)
	s.observe(started, err)
	return order, err
}

func (s *service) execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.ShippingAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if input.PaymentMethod == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}

	for attempt := 0; ; attempt++ {
		order, err := s.attempt(ctx, userID, input)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, product.ErrStockConflict) {
			return nil, err
		}
		if attempt >= s.conflictRetries {
			return nil, s.conflictOutcome(ctx, userID)
		}
		s.metrics.IncConflictRetry()
	}
}

func (s *service) attempt(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		// Locked read: a second submit for the same user blocks here
		// until the first commits, then sees the drained cart and fails
		// the empty check instead of materializing a duplicate order.
		items, err := cartRepo.ListItemsForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		lines := make([]Line, len(items))
		ids := make([]uuid.UUID, len(items))
		for i, item := range items {
			lines[i] = Line{ProductID: item.ProductID, Quantity: item.Quantity}
			ids[i] = item.ProductID
		}

		listings, err := productRepo.FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart products")
		}
		byID := make(map[uuid.UUID]*models.Product, len(listings))
		for i := range listings {
			byID[listings[i].ID] = &listings[i]
		}

		if failures := ValidateStock(lines, byID); len(failures) > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart cannot be fulfilled").
				WithDetails(failures)
		}

		total := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			listing := byID[item.ProductID]
			lineTotal := listing.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(lineTotal)
			orderItems = append(orderItems, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     listing.Price,
			})
		}

		order = &models.Order{
			UserID:          userID,
			TotalAmount:     total,
			Status:          enums.OrderStatusPending,
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusPending,
			Items:           orderItems,
		}
		if _, err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}

		for _, item := range items {
			if err := productRepo.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, product.ErrStockConflict) {
					// raw sentinel: rolls the attempt back and drives the retry loop
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement stock")
			}
		}

		if err := cartRepo.Clear(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// conflictOutcome converts an exhausted retry budget into the stock
// failure callers can act on. The conflicting attempt rolled back, so a
// fresh read reflects whatever the winning checkout left behind.
func (s *service) conflictOutcome(ctx context.Context, userID uuid.UUID) error {
	items, err := s.cartRepo.ListItems(ctx, userID)
	if err != nil || len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	}

	lines := make([]Line, len(items))
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		lines[i] = Line{ProductID: item.ProductID, Quantity: item.Quantity}
		ids[i] = item.ProductID
	}
	listings, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	}
	byID := make(map[uuid.UUID]*models.Product, len(listings))
	for i := range listings {
		byID[listings[i].ID] = &listings[i]
	}

	typed := pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	if failures := ValidateStock(lines, byID); len(failures) > 0 {
		typed = typed.WithDetails(failures)
	}
	return typed
}

func (s *service) observe(started time.Time, err error) {
	elapsed := time.Since(started)
	if err == nil {
		s.metrics.IncCommitted()
		s.metrics.ObserveDuration("committed", elapsed)
		return
	}
	outcome := "error"
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation:
			outcome = "rejected_validation"
		case pkgerrors.CodeStateConflict:
			outcome = "rejected_stock"
		}
		s.metrics.IncRejected(string(typed.Code()))
	}
	s.metrics.ObserveDuration(outcome, elapsed)
}
