package orders

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TaxBreakdown is the GST split for one order line, in cents.
type TaxBreakdown struct {
	CGST int64
	SGST int64
	IGST int64
}

func (t TaxBreakdown) Total() int64 {
	return t.CGST + t.SGST + t.IGST
}

// ComputeLineTax applies ratePercent to the line amount, rounding half-up to a
// cent. Intra-state supplies split the tax into CGST and SGST; SGST takes the
// odd cent. Inter-state supplies carry it all as IGST.
func ComputeLineTax(lineCents int64, ratePercent decimal.Decimal, intraState bool) TaxBreakdown {
	if lineCents <= 0 || !ratePercent.IsPositive() {
		return TaxBreakdown{}
	}
	total := decimal.NewFromInt(lineCents).Mul(ratePercent).Div(hundred).Round(0).IntPart()
	if !intraState {
		return TaxBreakdown{IGST: total}
	}
	cgst := total / 2
	return TaxBreakdown{CGST: cgst, SGST: total - cgst}
}

// IsIntraState compares the shipping state with the seller's origin state.
func IsIntraState(shippingState, originState string) bool {
	s := strings.TrimSpace(shippingState)
	o := strings.TrimSpace(originState)
	return s != "" && strings.EqualFold(s, o)
}
