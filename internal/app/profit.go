package app

import "github.com/shopspring/decimal"

// computeProfit returns the realized profit of a long round trip net of an
// estimated fee on both legs, rounded to cents.
func computeProfit(entry, exit, qty, feeRate float64) float64 {
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	q := decimal.NewFromFloat(qty)

	gross := x.Sub(e).Mul(q)
	fees := e.Add(x).Mul(q).Mul(decimal.NewFromFloat(feeRate))
	profit, _ := gross.Sub(fees).Round(2).Float64()
	return profit
}

// blendFills merges two executions of one position into their volume
// weighted price and total quantity.
func blendFills(price1, qty1, price2, qty2 float64) (float64, float64) {
	q1 := decimal.NewFromFloat(qty1)
	q2 := decimal.NewFromFloat(qty2)
	total := q1.Add(q2)
	if !total.IsPositive() {
		return 0, 0
	}
	notional := decimal.NewFromFloat(price1).Mul(q1).Add(decimal.NewFromFloat(price2).Mul(q2))
	price, _ := notional.Div(total).Round(8).Float64()
	qty, _ := total.Float64()
	return price, qty
}
