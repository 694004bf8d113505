package database

import (
	"github.com/stockledger/inventory-api/internal/catalog"
	"github.com/stockledger/inventory-api/internal/ledger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewProductsDatabase opens the Products service's datastore and migrates
// its schema. Each service owns its own database file; nothing is shared.
func NewProductsDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&catalog.Product{}); err != nil {
		return nil, err
	}

	return db, nil
}

// NewTransactionsDatabase opens the Transactions service's datastore and
// migrates the ledger and adjustment outbox schemas.
func NewTransactionsDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&ledger.LedgerEntry{},
		&ledger.StockAdjustment{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
