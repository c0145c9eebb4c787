package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func closedPosition(id string, closeTime time.Time) *domain.Position {
	return &domain.Position{
		ID:                id,
		Status:            domain.StatusClosed,
		SpotAmount:        decimal.RequireFromString("0.07154321"),
		SpotEntryPrice:    decimal.NewFromInt(100_000_000),
		SpotFee:           decimal.NewFromInt(2_500),
		FuturesAmount:     decimal.RequireFromString("0.07154321"),
		FuturesEntryPrice: decimal.NewFromInt(70_000),
		FuturesFee:        decimal.RequireFromString("1.4"),
		EntryPremium:      decimal.RequireFromString("3.61"),
		EntryTime:         closeTime.Add(-time.Hour),
		SpotExitPrice:     decimal.NewFromInt(101_000_000),
		FuturesExitPrice:  decimal.NewFromInt(70_500),
		SpotExitFee:       decimal.NewFromInt(2_520),
		FuturesExitFee:    decimal.RequireFromString("1.41"),
		ClosePremium:      decimal.RequireFromString("1.92"),
		CloseReason:       domain.CloseTakeProfit,
		CloseTime:         closeTime,
		RealizedPnL:       decimal.RequireFromString("21345.77"),
	}
}

func TestSaveAndListPositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.SavePosition(ctx, closedPosition("a", now.Add(-2*time.Minute))))
	require.NoError(t, store.SavePosition(ctx, closedPosition("b", now)))

	positions, err := store.ListPositions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	// Newest close first.
	assert.Equal(t, "b", positions[0].ID)
	assert.Equal(t, "a", positions[1].ID)

	got := positions[0]
	assert.Equal(t, domain.StatusClosed, got.Status)
	assert.Equal(t, domain.CloseTakeProfit, got.CloseReason)
	assert.True(t, got.SpotAmount.Equal(decimal.RequireFromString("0.07154321")),
		"decimal survives the round trip, got %s", got.SpotAmount)
	assert.True(t, got.RealizedPnL.Equal(decimal.RequireFromString("21345.77")))
}

func TestListPositionsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SavePosition(ctx, closedPosition(id, now)))
		now = now.Add(time.Minute)
	}

	positions, err := store.ListPositions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestSavePositionUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := closedPosition("a", time.Now().UTC())
	require.NoError(t, store.SavePosition(ctx, p))

	p.RealizedPnL = decimal.NewFromInt(-500)
	require.NoError(t, store.SavePosition(ctx, p))

	positions, err := store.ListPositions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].RealizedPnL.Equal(decimal.NewFromInt(-500)))
}
