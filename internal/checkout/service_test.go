package checkout

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smaite/weser/internal/cart"
	"github.com/smaite/weser/internal/orders"
	product "github.com/smaite/weser/internal/products"
	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	pkgerrors "github.com/smaite/weser/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type checkoutEnv struct {
	db       *gorm.DB
	cartRepo *cart.Repository
	products *product.Repository
	orders   *orders.Repository
	svc      Service
}

func newCheckoutEnv(t *testing.T, conflictRetries int) *checkoutEnv {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{},
	))

	env := &checkoutEnv{
		db:       db,
		cartRepo: cart.NewRepository(db),
		products: product.NewRepository(db),
		orders:   orders.NewRepository(db),
	}
	env.svc, err = NewService(gormTxRunner{db: db}, env.cartRepo, env.products, env.orders, nil, conflictRetries)
	require.NoError(t, err)
	return env
}

func (e *checkoutEnv) mustCreateProduct(t *testing.T, price string, stock int) *models.Product {
	t.Helper()
	listing := &models.Product{
		Name:          fmt.Sprintf("Listing %s", uuid.NewString()[:8]),
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Status:        enums.ProductStatusActive,
	}
	require.NoError(t, e.db.Create(listing).Error)
	return listing
}

func (e *checkoutEnv) mustAddToCart(t *testing.T, userID, productID uuid.UUID, qty int) {
	t.Helper()
	applied, err := e.cartRepo.AddItem(context.Background(), userID, productID, qty, 1<<30)
	require.NoError(t, err)
	require.True(t, applied)
}

func (e *checkoutEnv) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var listing models.Product
	require.NoError(t, e.db.First(&listing, "id = ?", productID).Error)
	return listing.StockQuantity
}

func (e *checkoutEnv) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.Order{}).Count(&count).Error)
	return count
}

func defaultInput() CheckoutInput {
	return CheckoutInput{ShippingAddress: "12 Harbor Lane", PaymentMethod: "card"}
}

func TestExecuteCommitsOrder(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv(t, 1)
	ctx := context.Background()
	userID := uuid.New()
	shelf := env.mustCreateProduct(t, "10.00", 5)
	lamp := env.mustCreateProduct(t, "7.50", 3)
	env.mustAddToCart(t, userID, shelf.ID, 2)
	env.mustAddToCart(t, userID, lamp.ID, 2)

	order, err := env.svc.Execute(ctx, userID, defaultInput())
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("35.00")))
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)

	// total always equals the sum of its snapshotted lines
	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, order.TotalAmount.Equal(sum))

	assert.Equal(t, 3, env.stockOf(t, shelf.ID))
	assert.Equal(t, 1, env.stockOf(t, lamp.ID))

	items, err := env.cartRepo.ListItems(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, items, "commit must clear the cart")
}

func TestExecuteEmptyCart(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv(t, 1)

	_, err := env.svc.Execute(context.Background(), uuid.New(), defaultInput())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestExecuteInputValidation(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv(t, 1)
	ctx := context.Background()

	_, err := env.svc.Execute(ctx, uuid.New(), CheckoutInput{PaymentMethod: "card"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = env.svc.Execute(ctx, uuid.New(), CheckoutInput{ShippingAddress: "12 Harbor Lane"})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestExecuteRollsBackMixedCart(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv(t, 1)
	ctx := context.Background()
	userID := uuid.New()
	available := env.mustCreateProduct(t, "10.00", 5)
	scarce := env.mustCreateProduct(t, "20.00", 1)
	gone := env.mustCreateProduct(t, "30.00", 5)

	env.mustAddToCart(t, userID, available.ID, 2)
	env.mustAddToCart(t, userID, scarce.ID, 3)
	env.mustAddToCart(t, userID, gone.ID, 1)
	require.NoError(t, env.db.Where("id = ?", gone.ID).Delete(&models.Product{}).Error)

	_, err := env.svc.Execute(ctx, userID, defaultInput())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// all problems come back in one pass, not just the first
	failures, ok := typed.Details().([]Failure)
	require.True(t, ok)
	require.Len(t, failures, 2)
	byProduct := map[uuid.UUID]Failure{}
	for _, f := range failures {
		byProduct[f.ProductID] = f
	}
	assert.Equal(t, ReasonInsufficient, byProduct[scarce.ID].Reason)
	assert.Equal(t, 1, byProduct[scarce.ID].Available)
	assert.Equal(t, ReasonDeleted, byProduct[gone.ID].Reason)

	// nothing committed, nothing decremented, cart untouched
	assert.Equal(t, int64(0), env.orderCount(t))
	assert.Equal(t, 5, env.stockOf(t, available.ID))
	assert.Equal(t, 1, env.stockOf(t, scarce.ID))
	items, err := env.cartRepo.ListItems(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestExecuteSnapshotsPrices(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv(t, 1)
	ctx := context.Background()
	userID := uuid.New()
	listing := env.mustCreateProduct(t, "10.00", 5)
	env.mustAddToCart(t, userID, listing.ID, 1)

	order, err := env.svc.Execute(ctx, userID, defaultInput())
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.Product{}).
		Where("id = ?", listing.ID).
		Update("price", decimal.RequireFromString("99.00")).Error)

	loaded, err := env.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.True(t, loaded.Items[0].Price.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, loaded.TotalAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestExecuteDoubleSubmit(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv(t, 1)
	ctx := context.Background()
	userID := uuid.New()
	listing := env.mustCreateProduct(t, "10.00", 5)
	env.mustAddToCart(t, userID, listing.ID, 2)

	_, err := env.svc.Execute(ctx, userID, defaultInput())
	require.NoError(t, err)

	_, err = env.svc.Execute(ctx, userID, defaultInput())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code(), "second submit sees an empty cart")

	assert.Equal(t, int64(1), env.orderCount(t))
	assert.Equal(t, 3, env.stockOf(t, listing.ID), "stock only decremented once")
}

func TestExecuteSequentialOversell(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv(t, 1)
	ctx := context.Background()
	listing := env.mustCreateProduct(t, "10.00", 1)

	alice := uuid.New()
	bob := uuid.New()
	env.mustAddToCart(t, alice, listing.ID, 1)
	env.mustAddToCart(t, bob, listing.ID, 1)

	_, err := env.svc.Execute(ctx, alice, defaultInput())
	require.NoError(t, err)

	_, err = env.svc.Execute(ctx, bob, defaultInput())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	assert.Equal(t, int64(1), env.orderCount(t))
	assert.Equal(t, 0, env.stockOf(t, listing.ID), "stock never goes negative")
}

// stealStockOnce drains a product's stock right before the first guarded
// decrement runs, mimicking a concurrent checkout winning the race after
// this transaction's validation passed.
func stealStockOnce(t *testing.T, db *gorm.DB, productID uuid.UUID, leave int) {
	t.Helper()
	stolen := false
	err := db.Callback().Update().Before("gorm:update").Register("test:steal_stock_once", func(tx *gorm.DB) {
		if stolen || tx.Statement.Table != "products" {
			return
		}
		stolen = true
		if _, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE products SET stock_quantity = ? WHERE id = ?", leave, productID); err != nil {
			t.Errorf("steal stock: %v", err)
		}
	})
	require.NoError(t, err)
}

func TestExecuteRetriesAfterLostRace(t *testing.T) {
	env := newCheckoutEnv(t, 1)
	ctx := context.Background()
	userID := uuid.New()
	listing := env.mustCreateProduct(t, "10.00", 5)
	env.mustAddToCart(t, userID, listing.ID, 2)

	// first attempt loses the race and rolls back; the thief's write rolls
	// back with it, so the retry sees full stock and commits
	stealStockOnce(t, env.db, listing.ID, 0)

	order, err := env.svc.Execute(ctx, userID, defaultInput())
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, int64(1), env.orderCount(t))
	assert.Equal(t, 3, env.stockOf(t, listing.ID))
}

func TestExecuteSurfacesConflictWhenRetriesExhausted(t *testing.T) {
	env := newCheckoutEnv(t, 0)
	ctx := context.Background()
	userID := uuid.New()
	listing := env.mustCreateProduct(t, "10.00", 5)
	env.mustAddToCart(t, userID, listing.ID, 2)

	stealStockOnce(t, env.db, listing.ID, 0)

	_, err := env.svc.Execute(ctx, userID, defaultInput())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	assert.Equal(t, int64(0), env.orderCount(t))
	items, listErr := env.cartRepo.ListItems(ctx, userID)
	require.NoError(t, listErr)
	assert.Len(t, items, 1, "cart survives a failed checkout")
}
