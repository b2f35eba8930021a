package spot

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

// pow10 returns 10^p, failing when it does not fit in a uint64.
func pow10(p uint32) (uint64, error) {
	if p > 19 {
		return 0, fmt.Errorf("%w: 10^%d", ErrOverflow, p)
	}
	v := uint64(1)
	for i := uint32(0); i < p; i++ {
		v *= 10
	}
	return v, nil
}

// mulDiv computes a*b/d with a 256-bit intermediate, truncating toward zero.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrOverflow)
	}
	x := new(uint256.Int).SetUint64(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(d))
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: %d*%d/%d", ErrOverflow, a, b, d)
	}
	return x.Uint64(), nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d+%d", ErrOverflow, a, b)
	}
	return sum, nil
}

// quoteAmount converts an amount of the first token into the second at
// price: amount*price/10^precision(first).
func quoteAmount(amount, price uint64, firstPrecision uint32) (uint64, error) {
	unit, err := pow10(firstPrecision)
	if err != nil {
		return 0, err
	}
	return mulDiv(amount, price, unit)
}

// rollingAverage blends a new trade into the previous average, weighting
// the previous average by window*10^precision(second):
//
//	(prev*S + amount*price) / (S + amount)
func rollingAverage(prev, price, amount uint64, secondPrecision uint32, window uint64) (uint64, error) {
	unit, err := pow10(secondPrecision)
	if err != nil {
		return 0, err
	}
	weight := new(uint256.Int).Mul(uint256.NewInt(unit), uint256.NewInt(window))

	num := new(uint256.Int).Mul(uint256.NewInt(prev), weight)
	num.Add(num, new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(price)))
	den := new(uint256.Int).Add(weight, uint256.NewInt(amount))
	if den.IsZero() {
		return price, nil
	}
	num.Div(num, den)
	if !num.IsUint64() {
		return 0, fmt.Errorf("%w: average price", ErrOverflow)
	}
	return num.Uint64(), nil
}
