package uom

import "github.com/shopspring/decimal"

var names = map[Unit][2]string{
	Milligram:  {"milligram", "milligrams"},
	Gram:       {"gram", "grams"},
	Kilogram:   {"kilogram", "kilograms"},
	Milliliter: {"milliliter", "milliliters"},
	Centiliter: {"centiliter", "centiliters"},
	Liter:      {"liter", "liters"},
	Piece:      {"piece", "pieces"},
}

// Describe returns a pluralised display name for qty of u, e.g. "1 gram",
// "2.5 liters". Display only; never used in calculations.
func Describe(qty decimal.Decimal, u Unit) string {
	n, ok := names[u]
	if !ok {
		return qty.String() + " " + string(u)
	}
	if qty.Abs().Equal(decimal.NewFromInt(1)) {
		return qty.String() + " " + n[0]
	}
	return qty.String() + " " + n[1]
}
