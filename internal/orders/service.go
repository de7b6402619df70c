package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	pkgerrors "github.com/smaite/weser/pkg/errors"
	"github.com/smaite/weser/pkg/pagination"
)

// Service exposes order history reads plus admin status management.
type Service interface {
	GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)

	AdminGetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	AdminListOrders(ctx context.Context, params pagination.Params, filters AdminListFilters) (*AdminOrderPage, error)
	AdminUpdateStatuses(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
	AdminStats(ctx context.Context) (*Stats, error)
}

// UpdateStatusInput carries the only mutable order fields.
type UpdateStatusInput struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

// OrderItemDTO is one snapshotted line of a committed order.
type OrderItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderDTO is the order representation returned to API consumers.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	Items           []OrderItemDTO      `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

// AdminOrderPage is one admin page of order DTOs.
type AdminOrderPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type service struct {
	repo *Repository
}

// NewService constructs an orders service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

// GetOrder loads one of the user's own orders.
func (s *service) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return ToOrderDTO(order), nil
}

// ListOrders returns the user's order history, newest first.
func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *ToOrderDTO(&rows[i]))
	}
	return dtos, nil
}

// AdminGetOrder loads any order by id.
func (s *service) AdminGetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return ToOrderDTO(order), nil
}

// AdminListOrders pages over every order.
func (s *service) AdminListOrders(ctx context.Context, params pagination.Params, filters AdminListFilters) (*AdminOrderPage, error) {
	result, err := s.repo.ListAll(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list all orders")
	}
	page := &AdminOrderPage{
		Orders:     make([]OrderDTO, 0, len(result.Orders)),
		NextCursor: result.NextCursor,
	}
	for i := range result.Orders {
		page.Orders = append(page.Orders, *ToOrderDTO(&result.Orders[i]))
	}
	return page, nil
}

// AdminUpdateStatuses moves status fields on a committed order. The
// update path cannot touch amounts or items by construction.
func (s *service) AdminUpdateStatuses(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if input.Status == nil && input.PaymentStatus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no status change supplied")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	updated, err := s.repo.UpdateStatuses(ctx, orderID, input.Status, input.PaymentStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.AdminGetOrder(ctx, orderID)
}

// AdminStats returns the dashboard aggregates.
func (s *service) AdminStats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.AggregateStats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: aggregate order stats")
	}
	return stats, nil
}

// ToOrderDTO converts a persisted order into its API representation.
func ToOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return &OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		TotalAmount:     order.TotalAmount,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}
