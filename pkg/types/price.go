package types

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PriceField holds a catalog price that was stored either as a plain number
// or as an {"mrp", "salePrice"} pair. Malformed input decodes to an empty field.
type PriceField struct {
	Amount    *decimal.Decimal
	MRP       *decimal.Decimal
	SalePrice *decimal.Decimal
}

type pricePair struct {
	MRP       *decimal.Decimal `json:"mrp,omitempty"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
}

// NewPlainPrice builds a PriceField from a single amount in major units.
func NewPlainPrice(amount decimal.Decimal) PriceField {
	return PriceField{Amount: &amount}
}

// NewPricePair builds a PriceField from optional mrp/sale amounts.
func NewPricePair(mrp, sale *decimal.Decimal) PriceField {
	return PriceField{MRP: mrp, SalePrice: sale}
}

// Resolve returns the effective amount: a plain amount, else salePrice, else mrp, else zero.
func (p PriceField) Resolve() decimal.Decimal {
	switch {
	case p.Amount != nil:
		return *p.Amount
	case p.SalePrice != nil:
		return *p.SalePrice
	case p.MRP != nil:
		return *p.MRP
	default:
		return decimal.Zero
	}
}

// IsZero reports whether no amount was provided in any form.
func (p PriceField) IsZero() bool {
	return p.Amount == nil && p.MRP == nil && p.SalePrice == nil
}

func (p PriceField) MarshalJSON() ([]byte, error) {
	if p.Amount != nil {
		return json.Marshal(p.Amount)
	}
	if p.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(pricePair{MRP: p.MRP, SalePrice: p.SalePrice})
}

func (p *PriceField) UnmarshalJSON(data []byte) error {
	*p = PriceField{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		var pair pricePair
		if err := json.Unmarshal(trimmed, &pair); err != nil {
			return nil
		}
		p.MRP = pair.MRP
		p.SalePrice = pair.SalePrice
		return nil
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(trimmed); err != nil {
		return nil
	}
	p.Amount = &amount
	return nil
}
