package service

import (
	"testing"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validatedLine(productID string, qty int, dbPrice, cartPrice string) models.ValidatedLineItem {
	db := price(dbPrice)
	return models.ValidatedLineItem{
		ProductID: productID,
		Quantity:  qty,
		CartPrice: price(cartPrice),
		DBPrice:   &db,
		IsValid:   true,
	}
}

func TestCalculateValidatedTotal(t *testing.T) {
	total := CalculateValidatedTotal([]models.ValidatedLineItem{
		validatedLine("p1", 2, "500", "500"),
		validatedLine("p2", 1, "129.50", "129.50"),
	})

	assert.True(t, total.Equal(price("1129.50")), "got %s", total)
}

func TestCalculateValidatedTotal_IgnoresCartPrice(t *testing.T) {
	// Holding db price and quantity fixed, the total never moves no matter
	// what the client claims.
	base := CalculateValidatedTotal([]models.ValidatedLineItem{
		validatedLine("p1", 2, "500", "500"),
	})

	for _, claimed := range []string{"0", "1", "499.99", "999999", "0.005"} {
		total := CalculateValidatedTotal([]models.ValidatedLineItem{
			validatedLine("p1", 2, "500", claimed),
		})
		assert.True(t, total.Equal(base), "cart price %s leaked into the total", claimed)
	}
}

func TestCalculateValidatedTotal_NoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 style amounts stay exact in fixed-point.
	total := CalculateValidatedTotal([]models.ValidatedLineItem{
		validatedLine("p1", 1, "0.10", "0.10"),
		validatedLine("p2", 1, "0.20", "0.20"),
	})
	assert.True(t, total.Equal(price("0.30")), "got %s", total)

	many := make([]models.ValidatedLineItem, 0, 100)
	for i := 0; i < 100; i++ {
		many = append(many, validatedLine("p", 1, "0.01", "0.01"))
	}
	assert.True(t, CalculateValidatedTotal(many).Equal(price("1.00")))
}

func TestCalculateValidatedTotal_Empty(t *testing.T) {
	assert.True(t, CalculateValidatedTotal(nil).Equal(decimal.Zero))
}
