package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// DecomposeTax splits a tax-inclusive unit cost into net and tax components
// for the given percentage rate. The decomposition is computed once at write
// time and frozen into the entry; later tax-rate edits never change it.
// net + tax always reproduces gross exactly because tax is derived by
// subtraction.
func DecomposeTax(gross, ratePct decimal.Decimal) (net, tax decimal.Decimal) {
	if ratePct.IsZero() {
		return gross, decimal.Zero
	}
	net = gross.Div(one.Add(ratePct.Div(hundred)))
	tax = gross.Sub(net)
	return net, tax
}

// Apply folds a non-voided entry into the aggregate. Remove-kind operations
// subtract; everything else adds.
func (s Stock) Apply(e LedgerEntry) Stock {
	if e.Voided {
		return s
	}
	qty := e.Quantity
	gross := e.UnitCost.Mul(e.Quantity)
	net := e.UnitCostNet.Mul(e.Quantity)
	tax := e.UnitCostTax.Mul(e.Quantity)
	if e.OperationID.Kind() == KindRemoveStock {
		return Stock{
			Qty:       s.Qty.Sub(qty),
			CostGross: s.CostGross.Sub(gross),
			CostNet:   s.CostNet.Sub(net),
			CostTax:   s.CostTax.Sub(tax),
		}
	}
	return Stock{
		Qty:       s.Qty.Add(qty),
		CostGross: s.CostGross.Add(gross),
		CostNet:   s.CostNet.Add(net),
		CostTax:   s.CostTax.Add(tax),
	}
}

// Average derives the weighted-average unit cost. Undefined when the item
// holds no stock.
func (s Stock) Average() AverageCost {
	if s.Qty.Sign() <= 0 {
		return AverageCost{}
	}
	return AverageCost{
		Gross:   s.CostGross.Div(s.Qty),
		Net:     s.CostNet.Div(s.Qty),
		Tax:     s.CostTax.Div(s.Qty),
		Defined: true,
	}
}

// EffectiveRate reconstructs the tax percentage embedded in an average cost,
// used when an outbound entry is costed at average.
func (a AverageCost) EffectiveRate() decimal.Decimal {
	if !a.Defined || a.Net.Sign() <= 0 {
		return decimal.Zero
	}
	return a.Tax.Div(a.Net).Mul(hundred)
}

// initialStockDate pins the opening entry to the day before the beginning
// inventory month starts, so it sorts ahead of every movement recorded in
// that month.
func initialStockDate(beginningInventory time.Time) time.Time {
	monthStart := time.Date(beginningInventory.Year(), beginningInventory.Month(), 1, 0, 0, 0, 0, time.UTC)
	return monthStart.AddDate(0, 0, -1)
}
