package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DerivePrice converts a rial price into US cents at the given rials-per-dollar
// rate, truncating toward zero. A nil base stays nil; a non-positive rate
// yields zero.
func DerivePrice(base *int64, rate decimal.Decimal) *int64 {
	if base == nil {
		return nil
	}
	var cents int64
	if rate.IsPositive() {
		quotient, _ := decimal.NewFromInt(*base).Mul(hundred).QuoRem(rate, 0)
		cents = quotient.IntPart()
	}
	return &cents
}
