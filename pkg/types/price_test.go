package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceFieldUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain number", raw: `120.5`, want: "120.5"},
		{name: "quoted number", raw: `"99"`, want: "99"},
		{name: "sale wins over mrp", raw: `{"mrp": 150, "salePrice": 120}`, want: "120"},
		{name: "mrp fallback", raw: `{"mrp": 150}`, want: "150"},
		{name: "null sale falls back", raw: `{"mrp": 150, "salePrice": null}`, want: "150"},
		{name: "zero sale is present", raw: `{"mrp": 150, "salePrice": 0}`, want: "0"},
		{name: "empty pair", raw: `{}`, want: "0"},
		{name: "null", raw: `null`, want: "0"},
		{name: "malformed", raw: `"abc"`, want: "0"},
		{name: "malformed pair", raw: `{"mrp": "x"}`, want: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p PriceField
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &p))
			assert.True(t, decimal.RequireFromString(tc.want).Equal(p.Resolve()), "got %s", p.Resolve())
		})
	}
}

func TestPriceFieldMarshalKeepsShape(t *testing.T) {
	plain, err := json.Marshal(NewPlainPrice(decimal.NewFromInt(100)))
	require.NoError(t, err)
	assert.Equal(t, `"100"`, string(plain))

	mrp := decimal.NewFromInt(150)
	sale := decimal.NewFromInt(120)
	pair, err := json.Marshal(NewPricePair(&mrp, &sale))
	require.NoError(t, err)

	var back PriceField
	require.NoError(t, json.Unmarshal(pair, &back))
	require.NotNil(t, back.MRP)
	require.NotNil(t, back.SalePrice)
	assert.Nil(t, back.Amount)
	assert.True(t, sale.Equal(back.Resolve()))

	empty, err := json.Marshal(PriceField{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(empty))
}
