package enums

import "strings"

// PriceType tags which price list a cart line was priced from. It doubles as
// the customer class carried on the caller's identity.
type PriceType string

const (
	PriceTypeRetail    PriceType = "retail"
	PriceTypeWholesale PriceType = "wholesale"
)

var validPriceTypes = []PriceType{
	PriceTypeRetail,
	PriceTypeWholesale,
}

func (p PriceType) String() string {
	return string(p)
}

func (p PriceType) IsValid() bool {
	return oneOf(p, validPriceTypes)
}

// ParsePriceType is lenient: empty input means retail.
func ParsePriceType(value string) (PriceType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return PriceTypeRetail, nil
	}
	return parse("price type", value, validPriceTypes)
}
