package cart

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

	product "github.com/smaite/weser/internal/products"
	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	pkgerrors "github.com/smaite/weser/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db), product.NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func mustCreateProduct(t *testing.T, db *gorm.DB, price string, stock int) *models.Product {
	t.Helper()
	listing := &models.Product{
		Name:          fmt.Sprintf("Listing %s", uuid.NewString()[:8]),
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Status:        enums.ProductStatusActive,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func TestAddItemAccumulates(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	listing := mustCreateProduct(t, db, "10.00", 10)

	cart, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	cart, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "repeated add must not create a second line")
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("50.00")))
}

func TestAddItemRejectsOverStock(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	listing := mustCreateProduct(t, db, "10.00", 5)

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 4})
	require.NoError(t, err)

	// 4 in cart + 2 requested > 5 in stock
	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 2})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	details, ok := typed.Details().(InsufficientStockDetails)
	require.True(t, ok)
	assert.Equal(t, 5, details.Available)
	assert.Equal(t, 2, details.Requested)
	assert.Equal(t, 4, details.InCart)

	cart, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity, "rejected add must leave the cart untouched")
}

func TestAddItemRejectsOverStockOnFirstAdd(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	listing := mustCreateProduct(t, db, "10.00", 5)

	// no existing line, so the insert branch is the one that must reject
	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 10})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	details, ok := typed.Details().(InsufficientStockDetails)
	require.True(t, ok)
	assert.Equal(t, 5, details.Available)
	assert.Equal(t, 10, details.Requested)
	assert.Equal(t, 0, details.InCart)

	cart, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "rejected first add must not create a line")
}

func TestAddItemValidation(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: uuid.New(), Quantity: 0})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: uuid.New(), Quantity: 1})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	inactive := mustCreateProduct(t, db, "10.00", 5)
	require.NoError(t, db.Model(&models.Product{}).
		Where("id = ?", inactive.ID).
		Update("status", enums.ProductStatusInactive).Error)

	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: inactive.ID, Quantity: 1})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestSetQuantity(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	listing := mustCreateProduct(t, db, "10.00", 10)

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 2})
	require.NoError(t, err)

	cart, err := svc.SetQuantity(ctx, userID, SetQuantityInput{ProductID: listing.ID, Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Items[0].Quantity, "set replaces, never accumulates")

	_, err = svc.SetQuantity(ctx, userID, SetQuantityInput{ProductID: listing.ID, Quantity: 11})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// zero removes the line
	cart, err = svc.SetQuantity(ctx, userID, SetQuantityInput{ProductID: listing.ID, Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	other := mustCreateProduct(t, db, "5.00", 10)
	_, err = svc.SetQuantity(ctx, userID, SetQuantityInput{ProductID: other.ID, Quantity: 1})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code(), "set on an absent line is not an add")
}

func TestRemoveItemIdempotent(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	listing := mustCreateProduct(t, db, "10.00", 10)

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 1})
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, userID, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	// removing again, or removing something never added, succeeds quietly
	cart, err = svc.RemoveItem(ctx, userID, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = svc.RemoveItem(ctx, userID, uuid.New())
	require.NoError(t, err)
}

func TestGetCartWithDanglingProduct(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	listing := mustCreateProduct(t, db, "10.00", 10)

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: listing.ID, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, db.Where("id = ?", listing.ID).Delete(&models.Product{}).Error)

	cart, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.False(t, cart.Items[0].Purchasable)
	assert.True(t, cart.Items[0].LineTotal.IsZero())
	assert.True(t, cart.Total.IsZero())
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()
	listing := mustCreateProduct(t, db, "10.00", 10)

	_, err := svc.AddItem(ctx, alice, AddItemInput{ProductID: listing.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, bob, AddItemInput{ProductID: listing.ID, Quantity: 5})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, alice))

	bobCart, err := svc.GetCart(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobCart.Items, 1)
	assert.Equal(t, 5, bobCart.Items[0].Quantity)
}
