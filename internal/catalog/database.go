package catalog

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateProduct inserts a product and assigns its public ProductID from the
// row's primary key in the same transaction.
func (d *Database) CreateProduct(product *Product) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		product.ProductID = product.ID
		return tx.Model(product).Update("product_id", product.ProductID).Error
	})
}

// GetProduct returns the product with the given public ID, or nil when it
// does not exist or is tombstoned.
func (d *Database) GetProduct(productID uint) (*Product, error) {
	var product Product
	err := d.db.Where("product_id = ? AND deleted = ?", productID, false).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// ListProducts returns non-deleted products matching the filter.
func (d *Database) ListProducts(filter ListFilter) ([]Product, error) {
	query := d.db.Where("deleted = ?", false)
	if filter.Name != "" {
		query = query.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var products []Product
	if err := query.Order("product_id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (d *Database) UpdateProduct(product *Product) error {
	return d.db.Save(product).Error
}

// UpdateStockIfMatch overwrites the product's stock only when the stored
// value still equals expected, bumping the version in the same statement.
// Returns false without error when the guard fails.
func (d *Database) UpdateStockIfMatch(productID uint, newStock, expected int) (bool, error) {
	result := d.db.Model(&Product{}).
		Where("product_id = ? AND deleted = ? AND stock = ?", productID, false, expected).
		Updates(map[string]interface{}{
			"stock":   newStock,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetStock overwrites the product's stock unconditionally.
func (d *Database) SetStock(productID uint, newStock int) error {
	result := d.db.Model(&Product{}).
		Where("product_id = ? AND deleted = ?", productID, false).
		Updates(map[string]interface{}{
			"stock":   newStock,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateFields applies a set of column changes to a non-deleted product.
func (d *Database) UpdateFields(productID uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	result := d.db.Model(&Product{}).
		Where("product_id = ? AND deleted = ?", productID, false).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkDeleted tombstones a product. The row is never physically erased.
func (d *Database) MarkDeleted(productID uint) (bool, error) {
	result := d.db.Model(&Product{}).
		Where("product_id = ? AND deleted = ?", productID, false).
		Update("deleted", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
