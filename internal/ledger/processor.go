package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stockledger/inventory-api/internal/stock"
	"github.com/stockledger/inventory-api/internal/types"
)

// Processor drains the pending stock adjustment outbox: deltas that could not
// be pushed to the Products service when their ledger entry was written.
type Processor struct {
	db           *Database
	gateway      stock.Gateway
	processDelay time.Duration // Time between drain attempts
	maxAttempts  int           // Attempts before an adjustment is abandoned
}

func NewProcessor(db *Database, gateway stock.Gateway) *Processor {
	return &Processor{
		db:           db,
		gateway:      gateway,
		processDelay: 30 * time.Second,
		maxAttempts:  5,
	}
}

// Start begins the adjustment processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "adjustment_processor").Logger()
	logger.Info().Msg("starting stock adjustment processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down stock adjustment processor")
			return
		case <-ticker.C:
			if err := p.ProcessPending(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to process pending adjustments")
			}
		}
	}
}

// ProcessPending attempts every pending adjustment once. An adjustment that
// has exhausted its attempts is abandoned and logged for manual
// reconciliation; it is never silently dropped.
func (p *Processor) ProcessPending(ctx context.Context) error {
	logger := log.With().Str("component", "adjustment_processor").Logger()

	adjustments, err := p.db.GetPendingAdjustments()
	if err != nil {
		return err
	}
	if len(adjustments) == 0 {
		return nil
	}

	logger.Info().Int("pending_count", len(adjustments)).Msg("processing pending stock adjustments")

	for i := range adjustments {
		adjustment := &adjustments[i]

		applyErr := p.apply(ctx, adjustment)
		if applyErr == nil {
			adjustment.Status = AdjustmentApplied
			adjustment.LastError = ""
			logger.Info().
				Str("adjustment_id", adjustment.AdjustmentID).
				Str("entry_id", adjustment.EntryID).
				Int("delta", adjustment.Delta).
				Msg("pending stock adjustment applied")
		} else if errors.Is(applyErr, types.ErrStockConflict) {
			// Lost the conditional write to a concurrent writer. The next
			// pass re-reads and recomputes, so this does not burn an attempt.
			logger.Debug().
				Str("adjustment_id", adjustment.AdjustmentID).
				Msg("stock adjustment lost conditional write, retrying next pass")
			continue
		} else {
			adjustment.Attempts++
			adjustment.LastError = applyErr.Error()
			if adjustment.Attempts >= p.maxAttempts {
				adjustment.Status = AdjustmentAbandoned
				logger.Warn().
					Str("adjustment_id", adjustment.AdjustmentID).
					Str("entry_id", adjustment.EntryID).
					Int("attempts", adjustment.Attempts).
					Str("last_error", adjustment.LastError).
					Msg("stock adjustment abandoned, manual reconciliation required")
			} else {
				logger.Error().
					Err(applyErr).
					Str("adjustment_id", adjustment.AdjustmentID).
					Int("attempts", adjustment.Attempts).
					Msg("stock adjustment attempt failed")
			}
		}

		if err := p.db.UpdateAdjustment(adjustment); err != nil {
			logger.Error().
				Err(err).
				Str("adjustment_id", adjustment.AdjustmentID).
				Msg("failed to update adjustment record")
		}
	}

	return nil
}

// apply pushes one adjustment's delta with a conditional write. A conflict
// is not counted as a hard failure here; the next drain pass re-reads anyway.
func (p *Processor) apply(ctx context.Context, adjustment *StockAdjustment) error {
	product, err := p.gateway.FetchStock(ctx, adjustment.ProductID)
	if err != nil {
		return err
	}

	expected := product.Stock
	return p.gateway.ApplyStock(ctx, adjustment.ProductID, product.Stock+adjustment.Delta, &expected)
}
