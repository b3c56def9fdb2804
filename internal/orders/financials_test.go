package orders

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeLineTaxesAfterDiscount(t *testing.T) {
	got, err := ComputeLine(LineInput{
		Quantity:  dec("3"),
		UnitPrice: dec("100"),
		Discount:  dec("50"),
		TaxRate:   dec("0.14"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string][2]decimal.Decimal{
		"net":      {got.Net, dec("300")},
		"tax base": {got.TaxBase, dec("250")},
		"tax":      {got.Tax, dec("35")},
		"total":    {got.Total, dec("285")},
	}
	for name, pair := range want {
		if !pair[0].Equal(pair[1]) {
			t.Fatalf("%s: expected %s got %s", name, pair[1], pair[0])
		}
	}
}

func TestComputeLineRoundsTaxToFourPlaces(t *testing.T) {
	got, err := ComputeLine(LineInput{
		Quantity:  dec("1"),
		UnitPrice: dec("0.33333"),
		TaxRate:   dec("0.15"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Tax.Equal(dec("0.05")) {
		t.Fatalf("expected tax 0.05 got %s", got.Tax)
	}
}

func TestComputeLineRejects(t *testing.T) {
	tests := []struct {
		name string
		line LineInput
		code pkgerrors.Code
	}{
		{name: "zero quantity", line: LineInput{Quantity: dec("0"), UnitPrice: dec("1")}, code: pkgerrors.CodeInvalidQuantity},
		{name: "negative quantity", line: LineInput{Quantity: dec("-2"), UnitPrice: dec("1")}, code: pkgerrors.CodeInvalidQuantity},
		{name: "negative price", line: LineInput{Quantity: dec("1"), UnitPrice: dec("-1")}, code: pkgerrors.CodeValidation},
		{name: "negative discount", line: LineInput{Quantity: dec("1"), UnitPrice: dec("1"), Discount: dec("-1")}, code: pkgerrors.CodeInvalidDiscount},
		{name: "discount above net", line: LineInput{Quantity: dec("2"), UnitPrice: dec("10"), Discount: dec("20.01")}, code: pkgerrors.CodeInvalidDiscount},
		{name: "negative tax rate", line: LineInput{Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: dec("-0.1")}, code: pkgerrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeLine(tt.line)
			if !pkgerrors.Is(err, tt.code) {
				t.Fatalf("expected %s got %v", tt.code, err)
			}
		})
	}
}

func TestComputeLineFullDiscount(t *testing.T) {
	got, err := ComputeLine(LineInput{Quantity: dec("2"), UnitPrice: dec("10"), Discount: dec("20"), TaxRate: dec("0.2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Tax.IsZero() || !got.Total.IsZero() {
		t.Fatalf("expected zero tax and total, got %s and %s", got.Tax, got.Total)
	}
}

func TestTotalsAdd(t *testing.T) {
	var totals Totals
	totals.Add(LineAmounts{Net: dec("300"), Discount: dec("50"), Tax: dec("35"), Total: dec("285")})
	totals.Add(LineAmounts{Net: dec("10"), Discount: dec("0"), Tax: dec("1.4"), Total: dec("11.4")})
	if !totals.Total.Equal(dec("296.4")) || !totals.Net.Equal(dec("310")) {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
