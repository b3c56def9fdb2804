package orders

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

const moneyPlaces = 4

// LineAmounts are the computed money fields of one line.
type LineAmounts struct {
	Net      decimal.Decimal
	Discount decimal.Decimal
	TaxBase  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeLine applies net = qty × price, tax on max(0, net − discount) and
// total = net − discount + tax.
func ComputeLine(line LineInput) (LineAmounts, error) {
	if !line.Quantity.IsPositive() {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
			WithDetails(map[string]any{"quantity": line.Quantity.String()})
	}
	if line.UnitPrice.IsNegative() {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if line.Discount.IsNegative() {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeInvalidDiscount, "discount must not be negative")
	}
	if line.TaxRate.IsNegative() {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must not be negative")
	}

	net := line.Quantity.Mul(line.UnitPrice)
	if line.Discount.GreaterThan(net) {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeInvalidDiscount, "discount exceeds line net amount").
			WithDetails(map[string]any{"net": net.String(), "discount": line.Discount.String()})
	}
	taxBase := decimal.Max(decimal.Zero, net.Sub(line.Discount))
	tax := taxBase.Mul(line.TaxRate).Round(moneyPlaces)
	return LineAmounts{
		Net:      net,
		Discount: line.Discount,
		TaxBase:  taxBase,
		Tax:      tax,
		Total:    net.Sub(line.Discount).Add(tax),
	}, nil
}

// Totals accumulates line amounts into header totals.
type Totals struct {
	Net      decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func (t *Totals) Add(a LineAmounts) {
	t.Net = t.Net.Add(a.Net)
	t.Discount = t.Discount.Add(a.Discount)
	t.Tax = t.Tax.Add(a.Tax)
	t.Total = t.Total.Add(a.Total)
}
