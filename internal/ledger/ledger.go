package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stockledger/inventory-api/internal/stock"
	"github.com/stockledger/inventory-api/internal/types"
	"github.com/stockledger/inventory-api/pkg/response"
	"gorm.io/gorm"
)

// maxApplyAttempts bounds the read-recompute-write loop against the Products
// service. Each conditional write that loses to a concurrent writer triggers
// a fresh read; after this many losses the operation fails rather than spin.
const maxApplyAttempts = 3

// Service is the reconciliation engine: it keeps remote stock consistent
// with the net effect of ledger entries. The ledger rows live in the local
// store, the stock lives on the Products side, and there is no transaction
// spanning the two, so every mutating operation here is a small two-step
// saga with an explicit ordering and failure contract.
type Service struct {
	db      *Database
	gateway stock.Gateway
}

// NewService creates a reconciliation engine over the given local store and
// stock gateway. The gateway is shared and long-lived; the engine never
// constructs its own.
func NewService(gormDB *gorm.DB, gateway stock.Gateway) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		gateway: gateway,
	}
}

// Create validates a candidate entry, records it, then pushes the matching
// stock delta to the Products service.
//
// The ordering is deliberate and asymmetric: the ledger write happens before
// the stock write, so a remote failure after the insert leaves the entry
// recorded with stock unadjusted. That outcome is surfaced as
// ErrStockUnreconciled (never a generic failure) and a pending adjustment is
// queued for the background processor, so the window is observable and
// eventually drained rather than silent.
func (s *Service) Create(ctx context.Context, draft EntryDraft) (*LedgerEntry, error) {
	kind, err := ParseKind(draft.Kind)
	if err != nil {
		return nil, err
	}
	if draft.Quantity <= 0 {
		return nil, types.Validationf("quantity must be positive, got %d", draft.Quantity)
	}
	if draft.ProductID == 0 {
		return nil, types.Validationf("product_id is required")
	}
	if draft.UnitPrice.IsNegative() || draft.TotalPrice.IsNegative() {
		return nil, types.Validationf("prices must be non-negative")
	}

	logger := log.With().
		Str("service", "ledger").
		Str("kind", kind).
		Uint("product_id", draft.ProductID).
		Int("quantity", draft.Quantity).
		Logger()

	// A sale is validated against remote stock before anything is written.
	// Purchases need no pre-validation: stock only goes up.
	if kind == KindSale {
		product, err := s.gateway.FetchStock(ctx, draft.ProductID)
		if err != nil {
			logger.Error().Err(err).Msg("stock validation read failed")
			return nil, err
		}
		if product.Stock < draft.Quantity {
			logger.Info().
				Int("stock", product.Stock).
				Msg("sale rejected for insufficient stock")
			return nil, types.Wrapf(types.ErrInsufficientStock, nil,
				"sale of %d exceeds current stock %d", draft.Quantity, product.Stock)
		}
	}

	entry := &LedgerEntry{
		EntryID:    uuid.New().String(),
		Timestamp:  time.Now(),
		Kind:       kind,
		ProductID:  draft.ProductID,
		Quantity:   draft.Quantity,
		UnitPrice:  draft.UnitPrice,
		TotalPrice: draft.TotalPrice,
		Detail:     draft.Detail,
	}

	// Past this insert the ledger reflects the transaction.
	if err := s.db.CreateEntry(entry); err != nil {
		logger.Error().Err(err).Msg("failed to record ledger entry")
		return nil, err
	}

	delta := stockDelta(kind, entry.Quantity)
	if err := s.applyDelta(ctx, entry.ProductID, delta); err != nil {
		// The entry stays recorded. Queue the delta so the processor can
		// retry, and tell the caller exactly what state they are in.
		adjustment := &StockAdjustment{
			AdjustmentID: uuid.New().String(),
			EntryID:      entry.EntryID,
			ProductID:    entry.ProductID,
			Delta:        delta,
			Status:       AdjustmentPending,
			LastError:    err.Error(),
		}
		if qErr := s.db.CreateAdjustment(adjustment); qErr != nil {
			logger.Error().Err(qErr).Msg("failed to queue pending stock adjustment")
		}

		logger.Error().
			Err(err).
			Str("entry_id", entry.EntryID).
			Int("delta", delta).
			Msg("ledger entry recorded but stock adjustment failed")
		return entry, types.Wrap(types.ErrStockUnreconciled, err)
	}

	logger.Info().
		Str("entry_id", entry.EntryID).
		Int("delta", delta).
		Msg("ledger entry created and stock adjusted")
	return entry, nil
}

// Amend applies a partial update to an active entry and reconciles stock with
// the net effect of the change. Unlike Create, the remote write happens
// before the local one: if the stock adjustment fails the entry is left
// untouched, so amend never produces a half-applied state.
//
// The net delta undoes the original entry's effect and reapplies the new
// quantity: +old-qty for an amended sale, -old-qty for an amended purchase,
// then the reapplication with the opposite sign at the new quantity. A sale's
// sufficiency is checked as if the original quantity were first given back.
func (s *Service) Amend(ctx context.Context, entryID string, amendment EntryAmendment) (*LedgerEntry, error) {
	entry, err := s.db.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, types.ErrEntryNotFound
	}
	if entry.Deleted {
		return nil, types.ErrAlreadyRetired
	}

	// Kind, product and timestamp are immutable. A payload that tries to
	// change them is a caller bug worth reporting, not ignoring.
	if amendment.Kind != nil {
		kind, err := ParseKind(*amendment.Kind)
		if err != nil {
			return nil, err
		}
		if kind != entry.Kind {
			return nil, types.Validationf("kind is immutable: entry is %s", entry.Kind)
		}
	}
	if amendment.ProductID != nil && *amendment.ProductID != entry.ProductID {
		return nil, types.Validationf("product_id is immutable")
	}

	newQuantity := entry.Quantity
	if amendment.Quantity != nil {
		if *amendment.Quantity <= 0 {
			return nil, types.Validationf("quantity must be positive, got %d", *amendment.Quantity)
		}
		newQuantity = *amendment.Quantity
	}
	if amendment.UnitPrice != nil && amendment.UnitPrice.IsNegative() {
		return nil, types.Validationf("unit price must be non-negative")
	}
	if amendment.TotalPrice != nil && amendment.TotalPrice.IsNegative() {
		return nil, types.Validationf("total price must be non-negative")
	}

	logger := log.With().
		Str("service", "ledger").
		Str("entry_id", entry.EntryID).
		Uint("product_id", entry.ProductID).
		Logger()

	reversal := -stockDelta(entry.Kind, entry.Quantity)
	reapplication := stockDelta(entry.Kind, newQuantity)
	netDelta := reversal + reapplication

	if netDelta != 0 {
		if err := s.amendStock(ctx, entry, newQuantity, netDelta); err != nil {
			logger.Error().Err(err).Int("net_delta", netDelta).Msg("stock adjustment for amendment failed")
			return nil, err
		}
	}

	entry.Quantity = newQuantity
	if amendment.UnitPrice != nil {
		entry.UnitPrice = *amendment.UnitPrice
	}
	if amendment.TotalPrice != nil {
		entry.TotalPrice = *amendment.TotalPrice
	}
	if amendment.Detail != nil {
		entry.Detail = *amendment.Detail
	}

	if err := s.db.UpdateEntry(entry); err != nil {
		logger.Error().Err(err).Msg("failed to persist amended entry after stock adjustment")
		return nil, err
	}

	logger.Info().
		Int("quantity", newQuantity).
		Int("net_delta", netDelta).
		Msg("ledger entry amended")
	return entry, nil
}

// Retire tombstones an active entry. It deliberately does not reverse the
// entry's stock effect: a retired sale stays subtracted from stock. Entries
// record historical fact; correcting stock after the fact is a separate,
// explicit stock write on the Products side.
func (s *Service) Retire(ctx context.Context, entryID string) error {
	if err := s.db.MarkRetired(entryID); err != nil {
		return err
	}

	log.Info().
		Str("service", "ledger").
		Str("entry_id", entryID).
		Msg("ledger entry retired")
	return nil
}

// Query lists active entries. Filter inputs are validated before the store is
// touched: an unparseable kind or date is a validation error, never a silent
// empty result.
func (s *Service) Query(productID uint, kindRaw, fromRaw, toRaw string) ([]LedgerEntry, error) {
	filter := Filter{ProductID: productID}

	if kindRaw != "" {
		kind, err := ParseKind(kindRaw)
		if err != nil {
			return nil, err
		}
		filter.Kind = kind
	}
	if fromRaw != "" {
		from, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return nil, types.Validationf("invalid from date: %q", fromRaw)
		}
		filter.From = &from
	}
	if toRaw != "" {
		to, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return nil, types.Validationf("invalid to date: %q", toRaw)
		}
		filter.To = &to
	}

	return s.db.ListEntries(filter)
}

// applyDelta pushes a signed stock change using read-recompute-write with a
// conditional write. Losing the condition means another writer moved the
// stock between our read and write; re-read and recompute rather than apply
// a stale value.
func (s *Service) applyDelta(ctx context.Context, productID uint, delta int) error {
	var lastErr error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		product, err := s.gateway.FetchStock(ctx, productID)
		if err != nil {
			return err
		}

		expected := product.Stock
		err = s.gateway.ApplyStock(ctx, productID, product.Stock+delta, &expected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, types.ErrStockConflict) {
			return err
		}
		lastErr = err
	}
	return types.Wrapf(types.ErrStockConflict, lastErr,
		"stock write lost to concurrent writers %d times", maxApplyAttempts)
}

// amendStock validates and applies an amendment's net delta. Sufficiency and
// the conditional write use the same stock read, so a concurrent writer
// invalidates both and forces revalidation on retry.
func (s *Service) amendStock(ctx context.Context, entry *LedgerEntry, newQuantity, netDelta int) error {
	var lastErr error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		product, err := s.gateway.FetchStock(ctx, entry.ProductID)
		if err != nil {
			return err
		}

		// Sufficiency for a sale treats the original quantity as given back
		// first: the amendment replaces the old sale, it does not stack.
		if entry.Kind == KindSale && product.Stock+entry.Quantity < newQuantity {
			return types.Wrapf(types.ErrInsufficientStock, nil,
				"amended sale of %d exceeds stock %d plus reversed %d",
				newQuantity, product.Stock, entry.Quantity)
		}

		expected := product.Stock
		err = s.gateway.ApplyStock(ctx, entry.ProductID, product.Stock+netDelta, &expected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, types.ErrStockConflict) {
			return err
		}
		lastErr = err
	}
	return types.Wrapf(types.ErrStockConflict, lastErr,
		"stock write lost to concurrent writers %d times", maxApplyAttempts)
}

// GinHandlers contains HTTP handlers for ledger endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for ledger endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListEntriesHandler handles GET requests for the ledger listing
// Query parameters: product_id, kind, from, to (RFC3339, inclusive)
func (h *GinHandlers) ListEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var productID uint
		if raw := c.Query("product_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				response.BadRequest(c, "Invalid product_id filter")
				return
			}
			productID = uint(parsed)
		}

		entries, err := h.service.Query(productID, c.Query("kind"), c.Query("from"), c.Query("to"))
		response.Handle(c, entries, err)
	}
}

// CreateEntryHandler handles POST requests recording a purchase or sale
func (h *GinHandlers) CreateEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var draft EntryDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		entry, err := h.service.Create(c.Request.Context(), draft)
		response.Handle(c, entry, err)
	}
}

// AmendEntryHandler handles PATCH requests updating an active entry
// URL parameter: entry_id
func (h *GinHandlers) AmendEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entryID := c.Param("entry_id")
		if entryID == "" {
			response.BadRequest(c, "Entry ID is required")
			return
		}

		var amendment EntryAmendment
		if err := c.ShouldBindJSON(&amendment); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		entry, err := h.service.Amend(c.Request.Context(), entryID, amendment)
		response.Handle(c, entry, err)
	}
}

// RetireEntryHandler handles DELETE requests tombstoning an entry
// URL parameter: entry_id
func (h *GinHandlers) RetireEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entryID := c.Param("entry_id")
		if entryID == "" {
			response.BadRequest(c, "Entry ID is required")
			return
		}

		err := h.service.Retire(c.Request.Context(), entryID)
		response.Handle(c, gin.H{"retired": entryID}, err)
	}
}
