package types

import "github.com/shopspring/decimal"

// ProductStock is the slice of the Products service's representation the
// ledger side cares about. The remote stock value is authoritative at the
// instant it is read; nothing is cached locally.
type ProductStock struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// StockWrite is the body of the stock overwrite call against the Products
// service. Stock is absolute, not a delta. ExpectedStock, when set, makes the
// write conditional: the Products side rejects it if the current stock no
// longer matches, which lets callers detect concurrent writers.
type StockWrite struct {
	Stock         int  `json:"stock"`
	ExpectedStock *int `json:"expected_stock,omitempty"`
}
