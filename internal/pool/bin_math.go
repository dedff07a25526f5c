package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultsim/internal/types"
)

// binPrice returns the price of bin id as the ratio num/den in currency1
// per currency0.
func binPrice(binStep uint16, id uint32) (*big.Int, *big.Int) {
	k := int64(id) - binIDOffset
	if k == 0 {
		return big.NewInt(1), big.NewInt(1)
	}

	exp := k
	if exp < 0 {
		exp = -exp
	}
	base := big.NewInt(int64(binStepDenominator + binStep))
	unit := big.NewInt(binStepDenominator)

	num := new(big.Int).Exp(base, big.NewInt(exp), nil)
	den := new(big.Int).Exp(unit, big.NewInt(exp), nil)
	if k < 0 {
		return den, num
	}
	return num, den
}

// mint deposits amounts into a bin and credits the owner with shares
// proportional to the value added. Returns the delta owed to the pool.
func (p *binPool) mint(owner common.Address, binID uint32, amount0, amount1 *big.Int) (types.BalanceDelta, error) {
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return types.BalanceDelta{}, fmt.Errorf("%w: negative deposit", ErrInvalidAmount)
	}

	num, den := binPrice(p.key.Parameters.BinStep, binID)

	// Value is measured in currency0 units scaled by den so share math
	// stays integral.
	value := new(big.Int).Mul(amount0, den)
	value.Add(value, new(big.Int).Mul(amount1, num))
	if value.Sign() == 0 {
		return types.BalanceDelta{}, fmt.Errorf("%w: zero-value deposit", ErrInvalidAmount)
	}

	b, ok := p.bins[binID]
	if !ok {
		b = &bin{reserve0: big.NewInt(0), reserve1: big.NewInt(0)}
		p.bins[binID] = b
	}
	total, ok := p.totalShares[binID]
	if !ok {
		total = big.NewInt(0)
	}

	var minted *big.Int
	binValue := new(big.Int).Mul(b.reserve0, den)
	binValue.Add(binValue, new(big.Int).Mul(b.reserve1, num))
	if total.Sign() == 0 || binValue.Sign() == 0 {
		minted = value
	} else {
		minted = new(big.Int).Mul(total, value)
		minted.Div(minted, binValue)
		if minted.Sign() == 0 {
			return types.BalanceDelta{}, fmt.Errorf("%w: deposit too small for share", ErrInvalidAmount)
		}
	}

	b.reserve0.Add(b.reserve0, amount0)
	b.reserve1.Add(b.reserve1, amount1)
	p.totalShares[binID] = new(big.Int).Add(total, minted)

	sk := binShareKey{owner: owner, binID: binID}
	if held, ok := p.shares[sk]; ok {
		held.Add(held, minted)
	} else {
		p.shares[sk] = new(big.Int).Set(minted)
	}

	if binID < p.minBinID {
		p.minBinID = binID
	}
	if binID > p.maxBinID {
		p.maxBinID = binID
	}

	return types.NewBalanceDelta(new(big.Int).Neg(amount0), new(big.Int).Neg(amount1)), nil
}

// burn redeems shares for a proportional cut of the bin's reserves.
// Returns the delta owed by the pool.
func (p *binPool) burn(owner common.Address, binID uint32, burnShares *big.Int) (types.BalanceDelta, error) {
	sk := binShareKey{owner: owner, binID: binID}
	held, ok := p.shares[sk]
	if !ok || held.Cmp(burnShares) < 0 {
		have := big.NewInt(0)
		if ok {
			have = held
		}
		return types.BalanceDelta{}, fmt.Errorf("%w: have %s shares, burning %s", ErrInsufficientPosition, have, burnShares)
	}

	total := p.totalShares[binID]
	b := p.bins[binID]

	amount0 := new(big.Int).Mul(b.reserve0, burnShares)
	amount0.Div(amount0, total)
	amount1 := new(big.Int).Mul(b.reserve1, burnShares)
	amount1.Div(amount1, total)

	b.reserve0.Sub(b.reserve0, amount0)
	b.reserve1.Sub(b.reserve1, amount1)

	held.Sub(held, burnShares)
	if held.Sign() == 0 {
		delete(p.shares, sk)
	}
	remaining := new(big.Int).Sub(total, burnShares)
	if remaining.Sign() == 0 {
		delete(p.totalShares, binID)
	} else {
		p.totalShares[binID] = remaining
	}

	return types.NewBalanceDelta(amount0, amount1), nil
}

// swap walks bins in the trade direction filling against each bin's
// opposing reserve. The fee is carved out of the input leg per bin and left
// in the bin's input reserve, accruing to that bin's shareholders.
func (p *binPool) swap(params BinSwapParams) (types.BalanceDelta, error) {
	fee := big.NewInt(int64(p.key.Fee))
	feeComplement := new(big.Int).Sub(big.NewInt(feeDenominator), fee)
	if feeComplement.Sign() <= 0 {
		return types.BalanceDelta{}, fmt.Errorf("%w: fee %d consumes the whole input", ErrInvalidAmount, p.key.Fee)
	}

	totalIn := big.NewInt(0)
	totalOut := big.NewInt(0)

	exactInput := params.AmountSpecified.Sign() < 0
	remaining := new(big.Int).Abs(params.AmountSpecified)

	// activeID lands on the last bin that actually traded
	lastTraded := p.activeID
	traded := false

	b := p.activeID
	for remaining.Sign() > 0 {
		if params.LimitBinID != 0 {
			if params.ZeroForOne && b < params.LimitBinID {
				break
			}
			if !params.ZeroForOne && b > params.LimitBinID {
				break
			}
		}

		current, ok := p.bins[b]
		var outReserve, inReserve *big.Int
		if ok {
			if params.ZeroForOne {
				inReserve, outReserve = current.reserve0, current.reserve1
			} else {
				inReserve, outReserve = current.reserve1, current.reserve0
			}
		}

		if !ok || outReserve.Sign() == 0 {
			next, more := p.nextBin(b, params.ZeroForOne)
			if !more {
				break
			}
			b = next
			continue
		}

		num, den := binPrice(p.key.Parameters.BinStep, b)
		// output per unit of net input at this bin's price
		outNum, outDen := num, den
		if !params.ZeroForOne {
			outNum, outDen = den, num
		}

		if exactInput {
			netRemaining := new(big.Int).Mul(remaining, feeComplement)
			netRemaining.Div(netRemaining, big.NewInt(feeDenominator))
			maxOut := new(big.Int).Mul(netRemaining, outNum)
			maxOut.Div(maxOut, outDen)

			if maxOut.Cmp(outReserve) <= 0 {
				inReserve.Add(inReserve, remaining)
				outReserve.Sub(outReserve, maxOut)
				totalIn.Add(totalIn, remaining)
				totalOut.Add(totalOut, maxOut)
				remaining.SetInt64(0)
				lastTraded, traded = b, true
				break
			}

			out := new(big.Int).Set(outReserve)
			netNeeded := ceilDiv(new(big.Int).Mul(out, outDen), outNum)
			grossNeeded := ceilDiv(new(big.Int).Mul(netNeeded, big.NewInt(feeDenominator)), feeComplement)
			if grossNeeded.Cmp(remaining) > 0 {
				grossNeeded = new(big.Int).Set(remaining)
			}

			inReserve.Add(inReserve, grossNeeded)
			outReserve.SetInt64(0)
			totalIn.Add(totalIn, grossNeeded)
			totalOut.Add(totalOut, out)
			remaining.Sub(remaining, grossNeeded)
			lastTraded, traded = b, true
		} else {
			outStep := new(big.Int).Set(remaining)
			if outStep.Cmp(outReserve) > 0 {
				outStep = new(big.Int).Set(outReserve)
			}
			netNeeded := ceilDiv(new(big.Int).Mul(outStep, outDen), outNum)
			grossNeeded := ceilDiv(new(big.Int).Mul(netNeeded, big.NewInt(feeDenominator)), feeComplement)

			inReserve.Add(inReserve, grossNeeded)
			outReserve.Sub(outReserve, outStep)
			totalIn.Add(totalIn, grossNeeded)
			totalOut.Add(totalOut, outStep)
			remaining.Sub(remaining, outStep)
			lastTraded, traded = b, true
			if remaining.Sign() == 0 {
				break
			}
		}

		next, more := p.nextBin(b, params.ZeroForOne)
		if !more {
			break
		}
		b = next
	}

	if traded {
		p.activeID = lastTraded
	}

	if params.ZeroForOne {
		return types.NewBalanceDelta(new(big.Int).Neg(totalIn), totalOut), nil
	}
	return types.NewBalanceDelta(totalOut, new(big.Int).Neg(totalIn)), nil
}

// nextBin steps one bin in the trade direction, staying inside the range
// that has ever held liquidity.
func (p *binPool) nextBin(current uint32, zeroForOne bool) (uint32, bool) {
	if zeroForOne {
		if current <= p.minBinID {
			return 0, false
		}
		return current - 1, true
	}
	if current >= p.maxBinID {
		return 0, false
	}
	return current + 1, true
}
