package product

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	"github.com/smaite/weser/pkg/pagination"
)

func TestDecrementStockGuards(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	listing := mustCreateTestProduct(t, db, 5)

	require.NoError(t, repo.DecrementStock(ctx, listing.ID, 3))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", listing.ID).Error)
	assert.Equal(t, 2, reloaded.StockQuantity)

	// more than remains: no row matches, stock untouched
	err := repo.DecrementStock(ctx, listing.ID, 3)
	require.ErrorIs(t, err, ErrStockConflict)
	require.NoError(t, db.First(&reloaded, "id = ?", listing.ID).Error)
	assert.Equal(t, 2, reloaded.StockQuantity)

	require.NoError(t, repo.DecrementStock(ctx, listing.ID, 2))
	require.NoError(t, db.First(&reloaded, "id = ?", listing.ID).Error)
	assert.Equal(t, 0, reloaded.StockQuantity)
}

func TestDecrementStockInactiveProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	listing := mustCreateTestProduct(t, db, 5)
	require.NoError(t, db.Model(&models.Product{}).
		Where("id = ?", listing.ID).
		Update("status", enums.ProductStatusInactive).Error)

	err := repo.DecrementStock(ctx, listing.ID, 1)
	assert.ErrorIs(t, err, ErrStockConflict)
}

func TestDecrementStockMissingProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	err := repo.DecrementStock(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrStockConflict)

	err = repo.DecrementStock(context.Background(), uuid.New(), 0)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrStockConflict))
}

func TestSetStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	listing := mustCreateTestProduct(t, db, 1)

	require.NoError(t, repo.SetStock(ctx, listing.ID, 42))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", listing.ID).Error)
	assert.Equal(t, 42, reloaded.StockQuantity)

	assert.ErrorIs(t, repo.SetStock(ctx, uuid.New(), 1), gorm.ErrRecordNotFound)
}

func TestListPaginatesByCreatedAt(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		listing := mustCreateTestProduct(t, db, 10)
		require.NoError(t, db.Model(&models.Product{}).
			Where("id = ?", listing.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	first, err := repo.List(ctx, listQuery{Pagination: pagination.Params{Limit: 3}})
	require.NoError(t, err)
	require.Len(t, first.Products, 3)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.List(ctx, listQuery{Pagination: pagination.Params{Limit: 3, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Products, 2)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, p := range append(first.Products, second.Products...) {
		assert.False(t, seen[p.ID], "duplicate row across pages")
		seen[p.ID] = true
	}
}

func TestListFiltersStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	active := mustCreateTestProduct(t, db, 10)
	hidden := mustCreateTestProduct(t, db, 10)
	require.NoError(t, db.Model(&models.Product{}).
		Where("id = ?", hidden.ID).
		Update("status", enums.ProductStatusInactive).Error)

	status := enums.ProductStatusActive
	result, err := repo.List(ctx, listQuery{Filters: ListFilters{Status: &status}})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, active.ID, result.Products[0].ID)
}
