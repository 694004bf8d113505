package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stockledger/inventory-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingAdjustment(productID uint, delta int) *StockAdjustment {
	return &StockAdjustment{
		AdjustmentID: uuid.New().String(),
		EntryID:      uuid.New().String(),
		ProductID:    productID,
		Delta:        delta,
		Status:       AdjustmentPending,
	}
}

func TestProcessPendingAppliesQueuedDeltas(t *testing.T) {
	store := newTestStore(t)
	gateway := newFakeGateway(map[uint]int{1: 10, 2: 10})
	processor := NewProcessor(store, gateway)

	require.NoError(t, store.CreateAdjustment(pendingAdjustment(1, 5)))
	require.NoError(t, store.CreateAdjustment(pendingAdjustment(2, -4)))

	require.NoError(t, processor.ProcessPending(context.Background()))

	assert.Equal(t, 15, gateway.stock(1))
	assert.Equal(t, 6, gateway.stock(2))

	pending, err := store.GetPendingAdjustments()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessPendingKeepsFailedAdjustment(t *testing.T) {
	store := newTestStore(t)
	gateway := newFakeGateway(map[uint]int{1: 10})
	gateway.applyErr = types.ErrRemoteUnavailable
	processor := NewProcessor(store, gateway)

	adjustment := pendingAdjustment(1, 5)
	require.NoError(t, store.CreateAdjustment(adjustment))

	require.NoError(t, processor.ProcessPending(context.Background()))

	pending, err := store.GetPendingAdjustments()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.NotEmpty(t, pending[0].LastError)

	// Once the remote recovers, the next pass drains it.
	gateway.applyErr = nil
	require.NoError(t, processor.ProcessPending(context.Background()))

	assert.Equal(t, 15, gateway.stock(1))
	pending, err = store.GetPendingAdjustments()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessPendingConflictDoesNotBurnAttempts(t *testing.T) {
	store := newTestStore(t)
	gateway := newFakeGateway(map[uint]int{1: 10})
	gateway.conflicts = 3
	processor := NewProcessor(store, gateway)
	processor.maxAttempts = 1

	adjustment := pendingAdjustment(1, 5)
	require.NoError(t, store.CreateAdjustment(adjustment))

	// Three passes lose the conditional write; the adjustment survives them
	// all with its attempt budget intact.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, processor.ProcessPending(ctx))
	}

	pending, err := store.GetPendingAdjustments()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)

	// With the concurrent writer gone, the next pass drains it.
	require.NoError(t, processor.ProcessPending(ctx))
	assert.Equal(t, 15, gateway.stock(1))

	pending, err = store.GetPendingAdjustments()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessPendingAbandonsAfterMaxAttempts(t *testing.T) {
	store := newTestStore(t)
	gateway := newFakeGateway(map[uint]int{1: 10})
	gateway.applyErr = types.ErrRemoteUnavailable
	processor := NewProcessor(store, gateway)
	processor.maxAttempts = 2

	adjustment := pendingAdjustment(1, 5)
	require.NoError(t, store.CreateAdjustment(adjustment))

	ctx := context.Background()
	require.NoError(t, processor.ProcessPending(ctx))
	require.NoError(t, processor.ProcessPending(ctx))

	pending, err := store.GetPendingAdjustments()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The row survives as an abandoned record, not a silent delete.
	var abandoned StockAdjustment
	require.NoError(t, store.db.Where("adjustment_id = ?", adjustment.AdjustmentID).First(&abandoned).Error)
	assert.Equal(t, AdjustmentAbandoned, abandoned.Status)
	assert.Equal(t, 2, abandoned.Attempts)
	assert.Equal(t, 10, gateway.stock(1))
}
