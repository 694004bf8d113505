package catalog

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stockledger/inventory-api/internal/types"
	"github.com/stockledger/inventory-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles product registry operations
type Service struct {
	db *Database
}

// NewService creates a new catalog service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// ListProducts returns non-deleted products matching the optional name and
// category filters.
func (s *Service) ListProducts(filter ListFilter) ([]Product, error) {
	return s.db.ListProducts(filter)
}

// GetProduct retrieves a product by its public ID
func (s *Service) GetProduct(productID uint) (*Product, error) {
	product, err := s.db.GetProduct(productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, types.ErrProductNotFound
	}
	return product, nil
}

// CreateProduct registers a new product
func (s *Service) CreateProduct(product *Product) error {
	if product.Stock < 0 {
		return types.Validationf("stock must be non-negative")
	}
	if product.Price.IsNegative() {
		return types.Validationf("price must be non-negative")
	}

	if err := s.db.CreateProduct(product); err != nil {
		return err
	}

	log.Info().
		Str("service", "catalog").
		Uint("product_id", product.ProductID).
		Str("name", product.Name).
		Int("stock", product.Stock).
		Msg("product created")
	return nil
}

// ReplaceProduct overwrites all mutable fields of an existing product
func (s *Service) ReplaceProduct(productID uint, replacement *Product) (*Product, error) {
	if replacement.Stock < 0 {
		return nil, types.Validationf("stock must be non-negative")
	}
	if replacement.Price.IsNegative() {
		return nil, types.Validationf("price must be non-negative")
	}

	product, err := s.GetProduct(productID)
	if err != nil {
		return nil, err
	}

	product.Name = replacement.Name
	product.Description = replacement.Description
	product.Category = replacement.Category
	product.Image = replacement.Image
	product.Price = replacement.Price
	product.Stock = replacement.Stock
	product.Version++

	if err := s.db.UpdateProduct(product); err != nil {
		return nil, err
	}
	return product, nil
}

// PatchProduct applies an explicit partial update. Stock writes are absolute
// overwrites; when the patch carries expected_stock the write only lands if
// the stored stock still matches, so a concurrent writer surfaces as a
// conflict instead of a lost update.
func (s *Service) PatchProduct(productID uint, patch ProductPatch) (*Product, error) {
	if patch.Empty() {
		return nil, types.Validationf("patch body carries no updatable fields")
	}

	// Validate the whole patch before the first write. A patch either lands
	// in full or leaves the product untouched; stock must not move when a
	// later field turns out to be invalid.
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, types.Validationf("stock must be non-negative")
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, types.Validationf("price must be non-negative")
	}

	if _, err := s.GetProduct(productID); err != nil {
		return nil, err
	}

	if patch.Stock != nil {
		if patch.ExpectedStock != nil {
			ok, err := s.db.UpdateStockIfMatch(productID, *patch.Stock, *patch.ExpectedStock)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Warn().
					Str("service", "catalog").
					Uint("product_id", productID).
					Int("expected_stock", *patch.ExpectedStock).
					Int("new_stock", *patch.Stock).
					Msg("conditional stock write rejected")
				return nil, types.ErrStockConflict
			}
		} else if err := s.db.SetStock(productID, *patch.Stock); err != nil {
			return nil, err
		}

		log.Debug().
			Str("service", "catalog").
			Uint("product_id", productID).
			Int("stock", *patch.Stock).
			Msg("stock overwritten")
	}

	fields := make(map[string]interface{})
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Category != nil {
		fields["category"] = *patch.Category
	}
	if patch.Image != nil {
		fields["image"] = *patch.Image
	}
	if patch.Price != nil {
		fields["price"] = *patch.Price
	}
	if err := s.db.UpdateFields(productID, fields); err != nil {
		return nil, err
	}

	return s.GetProduct(productID)
}

// DeleteProduct tombstones a product; it stops appearing in listings and
// lookups but the row is retained.
func (s *Service) DeleteProduct(productID uint) error {
	ok, err := s.db.MarkDeleted(productID)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrProductNotFound
	}

	log.Info().
		Str("service", "catalog").
		Uint("product_id", productID).
		Msg("product deleted")
	return nil
}

// GinHandlers contains HTTP handlers for product endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for product endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func productIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("product_id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// ListProductsHandler handles GET requests for the product listing
// Query parameters: name (substring match), category (exact match)
func (h *GinHandlers) ListProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := ListFilter{
			Name:     c.Query("name"),
			Category: c.Query("category"),
		}

		products, err := h.service.ListProducts(filter)
		response.Handle(c, products, err)
	}
}

// GetProductHandler handles GET requests for a single product
// URL parameter: product_id
func (h *GinHandlers) GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := productIDParam(c)
		if !ok {
			response.BadRequest(c, "Invalid product ID")
			return
		}

		product, err := h.service.GetProduct(productID)
		response.Handle(c, product, err)
	}
}

// CreateProductHandler handles POST requests to register products
func (h *GinHandlers) CreateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var product Product
		if err := c.ShouldBindJSON(&product); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err := h.service.CreateProduct(&product)
		response.Handle(c, product, err)
	}
}

// UpdateProductHandler handles PUT requests replacing a product's fields
// URL parameter: product_id
func (h *GinHandlers) UpdateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := productIDParam(c)
		if !ok {
			response.BadRequest(c, "Invalid product ID")
			return
		}

		var replacement Product
		if err := c.ShouldBindJSON(&replacement); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		product, err := h.service.ReplaceProduct(productID, &replacement)
		response.Handle(c, product, err)
	}
}

// PatchProductHandler handles PATCH requests with an explicit partial update.
// This is also the stock-write endpoint used by the transactions side.
func (h *GinHandlers) PatchProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := productIDParam(c)
		if !ok {
			response.BadRequest(c, "Invalid product ID")
			return
		}

		var patch ProductPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		product, err := h.service.PatchProduct(productID, patch)
		response.Handle(c, product, err)
	}
}

// DeleteProductHandler handles DELETE requests tombstoning a product
// URL parameter: product_id
func (h *GinHandlers) DeleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := productIDParam(c)
		if !ok {
			response.BadRequest(c, "Invalid product ID")
			return
		}

		err := h.service.DeleteProduct(productID)
		response.Handle(c, gin.H{"deleted": productID}, err)
	}
}
