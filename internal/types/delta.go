package types

import (
	"fmt"
	"math/big"
)

// maxInt128 bounds delta legs to signed 128-bit range, matching the width
// ledger entries are accounted in.
var maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
var minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

// BalanceDelta is a signed two-leg quantity expressing what an account owes
// (negative) or is owed (positive) in a pool's two currencies.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// NewBalanceDelta builds a delta from two signed legs. The inputs are copied.
func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}
}

// ZeroDelta returns a delta with both legs zero.
func ZeroDelta() BalanceDelta {
	return BalanceDelta{Amount0: big.NewInt(0), Amount1: big.NewInt(0)}
}

// Add returns the leg-wise sum of two deltas, failing closed if either
// resulting leg leaves the signed 128-bit range.
func (d BalanceDelta) Add(other BalanceDelta) (BalanceDelta, error) {
	amount0, err := CheckedAdd(d.Amount0, other.Amount0)
	if err != nil {
		return BalanceDelta{}, err
	}
	amount1, err := CheckedAdd(d.Amount1, other.Amount1)
	if err != nil {
		return BalanceDelta{}, err
	}
	return BalanceDelta{Amount0: amount0, Amount1: amount1}, nil
}

// Neg returns the delta with both legs negated.
func (d BalanceDelta) Neg() BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Neg(d.Amount0),
		Amount1: new(big.Int).Neg(d.Amount1),
	}
}

// IsZero reports whether both legs are zero.
func (d BalanceDelta) IsZero() bool {
	return d.Amount0.Sign() == 0 && d.Amount1.Sign() == 0
}

func (d BalanceDelta) String() string {
	return fmt.Sprintf("(%s, %s)", d.Amount0, d.Amount1)
}

// CheckedAdd adds two signed big integers and errors if the sum leaves the
// signed 128-bit range. Used wherever ledger quantities accumulate.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(maxInt128) > 0 || sum.Cmp(minInt128) < 0 {
		return nil, fmt.Errorf("int128 overflow: %s + %s", a, b)
	}
	return sum, nil
}
