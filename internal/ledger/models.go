package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory-api/internal/types"
	"gorm.io/gorm"
)

// Entry kinds. A purchase adds its quantity to the product's stock, a sale
// subtracts it.
const (
	KindPurchase = "PURCHASE"
	KindSale     = "SALE"
)

// Adjustment outbox statuses.
const (
	AdjustmentPending   = "PENDING"
	AdjustmentApplied   = "APPLIED"
	AdjustmentAbandoned = "ABANDONED"
)

// LedgerEntry is a recorded purchase or sale against one product. Kind,
// ProductID and Timestamp are immutable after creation; Deleted only ever
// transitions false to true.
type LedgerEntry struct {
	gorm.Model `json:"-"`
	EntryID    string          `gorm:"uniqueIndex" json:"entry_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Kind       string          `json:"kind"`
	ProductID  uint            `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_price"`
	Detail     string          `json:"detail"`
	Deleted    bool            `json:"-"`
}

// EntryDraft is the caller-supplied payload for creating a ledger entry.
// Timestamp is always stamped by the engine, never accepted from the caller.
type EntryDraft struct {
	Kind       string          `json:"kind" binding:"required"`
	ProductID  uint            `json:"product_id" binding:"required"`
	Quantity   int             `json:"quantity" binding:"required"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Detail     string          `json:"detail"`
}

// EntryAmendment carries the fields that may legitimately change after
// creation. Kind and ProductID are accepted in the payload only so that a
// caller attempting to change them gets a validation error instead of a
// silent ignore.
type EntryAmendment struct {
	Quantity   *int             `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	TotalPrice *decimal.Decimal `json:"total_price"`
	Detail     *string          `json:"detail"`
	Kind       *string          `json:"kind"`
	ProductID  *uint            `json:"product_id"`
}

// StockAdjustment is a durable record of a stock delta that could not be
// pushed to the Products service when its ledger entry was written. The
// background processor drains pending rows; rows that exhaust their attempts
// are abandoned and left for manual reconciliation.
type StockAdjustment struct {
	gorm.Model   `json:"-"`
	AdjustmentID string `gorm:"uniqueIndex" json:"adjustment_id"`
	EntryID      string `json:"entry_id"`
	ProductID    uint   `json:"product_id"`
	Delta        int    `json:"delta"`
	Status       string `json:"status"` // PENDING, APPLIED, ABANDONED
	Attempts     int    `json:"attempts"`
	LastError    string `json:"last_error"`
}

// Filter narrows a ledger listing. Nil/zero fields are unconstrained; the
// timestamp bounds are inclusive. Retired entries are always excluded.
type Filter struct {
	ProductID uint
	Kind      string
	From      *time.Time
	To        *time.Time
}

// ParseKind normalizes a kind string, rejecting anything outside the enum.
func ParseKind(raw string) (string, error) {
	switch strings.ToUpper(raw) {
	case KindPurchase:
		return KindPurchase, nil
	case KindSale:
		return KindSale, nil
	default:
		return "", types.Validationf("invalid transaction kind: %q", raw)
	}
}

// stockDelta is the signed stock change a quantity of the given kind applies.
func stockDelta(kind string, quantity int) int {
	if kind == KindSale {
		return -quantity
	}
	return quantity
}
