package service

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// Catalog is the authoritative price source. Products absent from the result
// were not found; a zero-priced product still comes back as a row.
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// PriceValidator compares client-submitted cart prices against the catalog.
// It performs no writes: one batch read, then pure classification.
type PriceValidator struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewPriceValidator creates a price validator.
func NewPriceValidator(catalog Catalog) *PriceValidator {
	return &PriceValidator{
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// ValidateCartPrices classifies every cart line against the catalog. The
// returned error is non-nil only when the catalog itself is unreachable, in
// which case the cart must be treated as invalid (fail closed) — unknown
// prices are never assumed correct.
func (v *PriceValidator) ValidateCartPrices(ctx context.Context, items []models.CartLineRequest) (*models.ValidationResult, error) {
	ctx, span := util.StartSpan(ctx, "PriceValidator.ValidateCartPrices")
	defer span.End()

	if len(items) == 0 {
		return nil, fmt.Errorf("empty cart")
	}

	seen := make(map[string]bool, len(items))
	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			productIDs = append(productIDs, item.ProductID)
		}
	}

	start := time.Now()
	products, err := v.catalog.GetProductsByIDs(ctx, productIDs)
	util.CatalogLookupLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}

	productMap := make(map[string]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	result := &models.ValidationResult{
		Valid:          true,
		ValidatedItems: make([]models.ValidatedLineItem, 0, len(items)),
	}

	for _, item := range items {
		line := models.ValidatedLineItem{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			CartPrice:    item.Price,
			SelectedSize: item.SelectedSize,
		}

		if item.Quantity < 1 {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("invalid quantity %d for product %s", item.Quantity, item.ProductID))
			result.ValidatedItems = append(result.ValidatedItems, line)
			continue
		}

		product, found := productMap[item.ProductID]
		if !found {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %s not found", item.ProductID))
			result.ValidatedItems = append(result.ValidatedItems, line)
			continue
		}

		dbPrice := product.Price
		line.DBPrice = &dbPrice

		// Exact decimal comparison. Prices are fixed-point currency
		// amounts; any nonzero difference is tampering, not drift.
		if !item.Price.Equal(dbPrice) {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("price mismatch for product %s", item.ProductID))
			v.logger.Warn("Cart price mismatch",
				zap.String("product_id", item.ProductID),
				zap.String("cart_price", item.Price.String()),
				zap.String("db_price", dbPrice.String()))
			result.ValidatedItems = append(result.ValidatedItems, line)
			continue
		}

		line.IsValid = true

		// Out of stock stays a warning: the line is priced correctly and
		// the order may proceed. See DESIGN.md for the policy decision.
		if !product.Purchasable {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("product %s is currently unavailable", item.ProductID))
		}

		result.ValidatedItems = append(result.ValidatedItems, line)
	}

	return result, nil
}
