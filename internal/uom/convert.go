// Package uom converts quantities between kitchen units of measure. All
// stock quantities are ultimately stored in an item's base unit; this package
// normalises purchase and recipe entries into that basis.
package uom

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unit is a supported unit of measure code.
type Unit string

// Mass units.
const (
	Milligram Unit = "mg"
	Gram      Unit = "g"
	Kilogram  Unit = "kg"
)

// Volume units.
const (
	Milliliter Unit = "ml"
	Centiliter Unit = "cl"
	Liter      Unit = "l"
)

// Count unit.
const (
	Piece Unit = "piece"
)

// Dimension groups units that convert into each other.
type Dimension int

const (
	DimensionUnknown Dimension = iota
	DimensionMass
	DimensionVolume
	DimensionCount
)

// factors express each unit in its dimension's smallest unit (mg, ml, piece).
var factors = map[Unit]struct {
	dim    Dimension
	factor decimal.Decimal
}{
	Milligram:  {DimensionMass, decimal.NewFromInt(1)},
	Gram:       {DimensionMass, decimal.NewFromInt(1000)},
	Kilogram:   {DimensionMass, decimal.NewFromInt(1000000)},
	Milliliter: {DimensionVolume, decimal.NewFromInt(1)},
	Centiliter: {DimensionVolume, decimal.NewFromInt(10)},
	Liter:      {DimensionVolume, decimal.NewFromInt(1000)},
	Piece:      {DimensionCount, decimal.NewFromInt(1)},
}

// DimensionOf returns the dimension of u, or DimensionUnknown.
func DimensionOf(u Unit) Dimension {
	return factors[u].dim
}

// Valid reports whether u is a known unit code.
func Valid(u Unit) bool {
	_, ok := factors[u]
	return ok
}

// Convert converts qty from one unit to another within the same dimension.
func Convert(qty decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	if from == to {
		return qty, nil
	}
	f, ok := factors[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("uom: unknown unit %q", from)
	}
	t, ok := factors[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("uom: unknown unit %q", to)
	}
	if f.dim != t.dim {
		return decimal.Zero, fmt.Errorf("uom: cannot convert %s to %s", from, to)
	}
	return qty.Mul(f.factor).Div(t.factor), nil
}
