package enums

// DiscountType describes how a coupon's discount value is interpreted.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFlat    DiscountType = "flat"
)

var validDiscountTypes = []DiscountType{
	DiscountTypePercent,
	DiscountTypeFlat,
}

func (d DiscountType) String() string {
	return string(d)
}

func (d DiscountType) IsValid() bool {
	return oneOf(d, validDiscountTypes)
}

func ParseDiscountType(value string) (DiscountType, error) {
	return parse("discount type", value, validDiscountTypes)
}
