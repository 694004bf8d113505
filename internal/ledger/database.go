package ledger

import (
	"errors"

	"github.com/stockledger/inventory-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateEntry(entry *LedgerEntry) error {
	return d.db.Create(entry).Error
}

// GetEntry returns the entry with the given ID, retired or not; callers
// decide what a tombstone means for their operation. Returns nil when the
// entry does not exist.
func (d *Database) GetEntry(entryID string) (*LedgerEntry, error) {
	var entry LedgerEntry
	if err := d.db.Where("entry_id = ?", entryID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListEntries returns active entries matching the filter, oldest first.
// Retired entries never surface here regardless of the filter.
func (d *Database) ListEntries(filter Filter) ([]LedgerEntry, error) {
	query := d.db.Where("deleted = ?", false)
	if filter.ProductID != 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.From != nil {
		query = query.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("timestamp <= ?", *filter.To)
	}

	var entries []LedgerEntry
	if err := query.Order("timestamp").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *Database) UpdateEntry(entry *LedgerEntry) error {
	return d.db.Save(entry).Error
}

// MarkRetired tombstones an entry, distinguishing a missing entry from one
// already retired. The transition is terminal; nothing un-retires an entry.
func (d *Database) MarkRetired(entryID string) error {
	entry, err := d.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return types.ErrEntryNotFound
	}
	if entry.Deleted {
		return types.ErrAlreadyRetired
	}

	return d.db.Model(entry).Update("deleted", true).Error
}

func (d *Database) CreateAdjustment(adjustment *StockAdjustment) error {
	return d.db.Create(adjustment).Error
}

func (d *Database) GetPendingAdjustments() ([]StockAdjustment, error) {
	var adjustments []StockAdjustment
	if err := d.db.Where("status = ?", AdjustmentPending).Order("id").Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (d *Database) UpdateAdjustment(adjustment *StockAdjustment) error {
	return d.db.Save(adjustment).Error
}
