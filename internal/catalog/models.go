package catalog

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the registry's single resource. Stock is the authoritative value
// the ledger side reconciles against; Version increments on every stock write
// so concurrent writers can be detected.
type Product struct {
	gorm.Model  `json:"-"`
	ProductID   uint            `gorm:"uniqueIndex" json:"id"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Stock       int             `json:"stock"`
	Version     int             `json:"version"`
	Deleted     bool            `json:"-"`
}

// ProductPatch carries the explicitly mutable fields of a product. Only
// fields present in the request body are applied; absent fields keep their
// stored values. ExpectedStock makes a stock write conditional on the current
// value still matching.
type ProductPatch struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Category      *string          `json:"category"`
	Image         *string          `json:"image"`
	Price         *decimal.Decimal `json:"price"`
	Stock         *int             `json:"stock"`
	ExpectedStock *int             `json:"expected_stock"`
}

// Empty reports whether the patch carries no changes at all.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Category == nil &&
		p.Image == nil && p.Price == nil && p.Stock == nil
}

// ListFilter narrows the product listing. Zero values mean no filtering.
type ListFilter struct {
	Name     string
	Category string
}
