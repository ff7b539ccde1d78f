// Package pricing resolves the unit price charged for a product.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Resolution is the price chosen for a product along with the list it came from.
type Resolution struct {
	UnitPriceCents int64
	PriceType      enums.PriceType
}

// ResolveUnitPrice returns the unit price in cents for the customer class.
// Wholesale customers get the wholesale price when one above zero is defined;
// everyone else gets the retail price. Malformed or missing prices resolve to 0.
func ResolveUnitPrice(product models.Product, customerType enums.PriceType) int64 {
	return Resolve(product, customerType).UnitPriceCents
}

// Resolve is ResolveUnitPrice plus the price list that won.
func Resolve(product models.Product, customerType enums.PriceType) Resolution {
	if customerType == enums.PriceTypeWholesale {
		if wholesale := toCents(product.WholesalePrice); wholesale > 0 {
			return Resolution{UnitPriceCents: wholesale, PriceType: enums.PriceTypeWholesale}
		}
	}
	return Resolution{UnitPriceCents: toCents(product.Price), PriceType: enums.PriceTypeRetail}
}

func toCents(field types.PriceField) int64 {
	amount := field.Resolve()
	if amount.IsNegative() {
		return 0
	}
	return amount.Mul(hundred).Round(0).IntPart()
}
