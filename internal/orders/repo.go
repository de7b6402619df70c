package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	"github.com/smaite/weser/pkg/pagination"
)

// Repository exposes persistence operations for committed orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order together with its line items.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByIDForUser loads an order with items, restricted to its owner.
func (r *Repository) FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByID loads an order with items without an ownership restriction.
func (r *Repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns the user's orders newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// AdminListResult is one admin page of orders.
type AdminListResult struct {
	Orders     []models.Order
	NextCursor string
}

// AdminListFilters narrows the admin order listing.
type AdminListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	UserID        *uuid.UUID
}

// ListAll returns a cursor page over every order, newest first.
func (r *Repository) ListAll(ctx context.Context, params pagination.Params, filters AdminListFilters) (*AdminListResult, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Preload("Items").Model(&models.Order{})
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		qb = qb.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.UserID != nil {
		qb = qb.Where("user_id = ?", *filters.UserID)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := qb.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &AdminListResult{Orders: rows, NextCursor: nextCursor}, nil
}

// UpdateStatuses moves the fulfillment and payment status columns and
// nothing else: totals and line items stay frozen after commit.
func (r *Repository) UpdateStatuses(ctx context.Context, orderID uuid.UUID, status *enums.OrderStatus, paymentStatus *enums.PaymentStatus) (bool, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if status != nil {
		updates["status"] = *status
	}
	if paymentStatus != nil {
		updates["payment_status"] = *paymentStatus
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Stats aggregates totals per order status plus revenue over completed
// payments, excluding cancelled orders from the revenue sum.
type Stats struct {
	TotalOrders    int64                       `json:"total_orders"`
	CountsByStatus map[enums.OrderStatus]int64 `json:"counts_by_status"`
	Revenue        decimal.Decimal             `json:"revenue"`
}

// AggregateStats computes the admin dashboard summary.
func (r *Repository) AggregateStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{CountsByStatus: map[enums.OrderStatus]int64{}, Revenue: decimal.Zero}

	type statusCount struct {
		Status enums.OrderStatus
		Count  int64
	}
	var counts []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, row := range counts {
		stats.CountsByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
	}

	type revenueRow struct {
		Revenue decimal.NullDecimal
	}
	var revenue revenueRow
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("SUM(total_amount) AS revenue").
		Where("payment_status = ? AND status <> ?", enums.PaymentStatusCompleted, enums.OrderStatusCancelled).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	if revenue.Revenue.Valid {
		stats.Revenue = revenue.Revenue.Decimal
	}
	return stats, nil
}
