package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smaite/weser/pkg/db/models"
)

// addItemSQL folds a repeated add into the existing row. The conflict
// target is the (user_id, product_id) unique index, so two adds for the
// same product accumulate instead of producing a second line. The WHERE
// on the update branch caps the accumulated quantity at the bound the
// caller supplies (current stock); a capped update matches zero rows.
// The insert branch carries no guard: the service checks a fresh
// quantity against stock before issuing the statement.
const addItemSQL = `
INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, product_id) DO UPDATE
SET quantity = cart_items.quantity + excluded.quantity,
    updated_at = excluded.updated_at
WHERE cart_items.quantity + excluded.quantity <= ?
`

// Repository exposes persistence operations for per-user cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// AddItem inserts or accumulates a cart line in a single statement.
// Returns false when the accumulated quantity would exceed maxQty.
func (r *Repository) AddItem(ctx context.Context, userID, productID uuid.UUID, qty, maxQty int) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Exec(addItemSQL,
		uuid.New(), userID, productID, qty, now, now, maxQty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateQuantity overwrites the quantity of an existing cart line.
// Returns false when the user has no line for the product.
func (r *Repository) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]any{
			"quantity":   qty,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveItem deletes the cart line if present. Removing an absent line
// is not an error.
func (r *Repository) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{}).Error
}

// ListItems returns the user's cart lines in insertion order.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListItemsForUpdate reads the user's cart lines under a row lock so two
// transactions draining the same cart serialize on the snapshot. The
// sqlite test driver has no FOR UPDATE; its single-writer transactions
// already serialize, so the lock clause is skipped there.
func (r *Repository) ListItemsForUpdate(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.CartItem
	if err := q.
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Clear removes every cart line belonging to the user.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}
