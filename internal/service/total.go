package service

import (
	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

// CalculateValidatedTotal sums db_price * quantity over the validated items.
// The total is independent of any client-submitted price by construction: only
// catalog prices feed the sum. Precondition: the owning ValidationResult is
// valid, so every item carries a non-nil DBPrice.
func CalculateValidatedTotal(items []models.ValidatedLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.DBPrice == nil {
			continue
		}
		total = total.Add(item.DBPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
