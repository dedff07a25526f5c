package pool

import (
	"fmt"
	"math"
	"math/big"
)

// feeDenominator expresses fees in hundredths of a bip (parts per million).
const feeDenominator = 1_000_000

// q96 and q192 are the fixed-point scale factors for sqrt prices.
var (
	q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	q192 = new(big.Int).Lsh(big.NewInt(1), 192)
)

// Slot0 is the per-pool price state.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	ProtocolFee  uint32
	LpFee        uint32
}

// SwapResult is a price model's answer to a swap request. Amounts follow
// the delta sign convention: negative legs are owed to the pool.
type SwapResult struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Tick         int32
}

// PriceModel supplies the pricing mathematics the pool manager deliberately
// treats as external: liquidity-to-amount conversion and swap quoting. The
// built-in ConstantPriceModel is a harness-grade stand-in; real curve math
// plugs in here.
type PriceModel interface {
	// AmountsForLiquidity returns the positive token amounts corresponding
	// to |liquidityDelta| over the tick range at the current price.
	AmountsForLiquidity(slot0 Slot0, tickLower, tickUpper int32, liquidityDelta *big.Int) (amount0, amount1 *big.Int, err error)

	// Quote fills a swap against the current price. amountSpecified < 0 is
	// exact input, > 0 exact output. A supplied price limit stops the fill
	// rather than failing it.
	Quote(slot0 Slot0, liquidity *big.Int, zeroForOne bool, amountSpecified, sqrtPriceLimitX96 *big.Int) (SwapResult, error)

	// TickAtSqrtPrice maps a sqrt price to its tick.
	TickAtSqrtPrice(sqrtPriceX96 *big.Int) (int32, error)
}

// ConstantPriceModel trades at the pool's current price without moving it.
// Its price-limit policy: a limit at or past the current price in the trade
// direction yields a zero fill (the swap stops immediately); any other
// limit is never reached because the price does not move.
type ConstantPriceModel struct{}

func (ConstantPriceModel) AmountsForLiquidity(slot0 Slot0, tickLower, tickUpper int32, liquidityDelta *big.Int) (*big.Int, *big.Int, error) {
	if tickLower >= tickUpper {
		return nil, nil, fmt.Errorf("tick range inverted: [%d, %d)", tickLower, tickUpper)
	}
	if liquidityDelta.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: zero liquidity delta", ErrInvalidAmount)
	}

	liquidity := new(big.Int).Abs(liquidityDelta)

	// One unit of liquidity backs one unit of currency0 plus its
	// price-equivalent of currency1. Floor rounding in both directions so
	// an add followed by an equal remove nets to exactly zero.
	amount0 := new(big.Int).Set(liquidity)
	amount1 := new(big.Int).Mul(liquidity, slot0.SqrtPriceX96)
	amount1.Mul(amount1, slot0.SqrtPriceX96)
	amount1.Div(amount1, q192)

	return amount0, amount1, nil
}

func (ConstantPriceModel) Quote(slot0 Slot0, _ *big.Int, zeroForOne bool, amountSpecified, sqrtPriceLimitX96 *big.Int) (SwapResult, error) {
	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return SwapResult{}, fmt.Errorf("%w: zero amount specified", ErrInvalidAmount)
	}

	result := SwapResult{
		Amount0:      big.NewInt(0),
		Amount1:      big.NewInt(0),
		SqrtPriceX96: new(big.Int).Set(slot0.SqrtPriceX96),
		Tick:         slot0.Tick,
	}

	if limitBlocks(slot0.SqrtPriceX96, sqrtPriceLimitX96, zeroForOne) {
		return result, nil
	}

	priceNum := new(big.Int).Mul(slot0.SqrtPriceX96, slot0.SqrtPriceX96)
	fee := big.NewInt(int64(slot0.LpFee))
	feeComplement := new(big.Int).Sub(big.NewInt(feeDenominator), fee)
	if feeComplement.Sign() <= 0 {
		return SwapResult{}, fmt.Errorf("%w: fee %d consumes the whole input", ErrInvalidAmount, slot0.LpFee)
	}

	if amountSpecified.Sign() < 0 {
		// Exact input: fee is carved out of the input before conversion.
		amountIn := new(big.Int).Neg(amountSpecified)
		netIn := new(big.Int).Mul(amountIn, feeComplement)
		netIn.Div(netIn, big.NewInt(feeDenominator))

		if zeroForOne {
			out := new(big.Int).Mul(netIn, priceNum)
			out.Div(out, q192)
			result.Amount0 = new(big.Int).Neg(amountIn)
			result.Amount1 = out
		} else {
			out := new(big.Int).Mul(netIn, q192)
			out.Div(out, priceNum)
			result.Amount0 = out
			result.Amount1 = new(big.Int).Neg(amountIn)
		}
		return result, nil
	}

	// Exact output: gross the input up to cover the fee.
	amountOut := new(big.Int).Set(amountSpecified)
	var netIn *big.Int
	if zeroForOne {
		netIn = ceilDiv(new(big.Int).Mul(amountOut, q192), priceNum)
	} else {
		netIn = ceilDiv(new(big.Int).Mul(amountOut, priceNum), q192)
	}
	grossIn := ceilDiv(new(big.Int).Mul(netIn, big.NewInt(feeDenominator)), feeComplement)

	if zeroForOne {
		result.Amount0 = new(big.Int).Neg(grossIn)
		result.Amount1 = amountOut
	} else {
		result.Amount0 = amountOut
		result.Amount1 = new(big.Int).Neg(grossIn)
	}
	return result, nil
}

func (ConstantPriceModel) TickAtSqrtPrice(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("%w: non-positive sqrt price", ErrInvalidAmount)
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), new(big.Float).SetInt(q96))
	sqrtPrice, _ := ratio.Float64()
	if sqrtPrice <= 0 || math.IsInf(sqrtPrice, 0) {
		return 0, fmt.Errorf("sqrt price out of float range")
	}
	tick := math.Floor(2 * math.Log(sqrtPrice) / math.Log(1.0001))
	if tick > math.MaxInt32 || tick < math.MinInt32 {
		return 0, fmt.Errorf("tick out of range: %f", tick)
	}
	return int32(tick), nil
}

// limitBlocks reports whether the supplied price limit sits at or past the
// current price in the trade direction, in which case the fill stops at
// zero rather than failing.
func limitBlocks(current, limit *big.Int, zeroForOne bool) bool {
	if limit == nil || limit.Sign() == 0 {
		return false
	}
	if zeroForOne {
		return limit.Cmp(current) >= 0
	}
	return limit.Cmp(current) <= 0
}

func ceilDiv(numerator, denominator *big.Int) *big.Int {
	quotient, remainder := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}

// SqrtPriceFromRatio builds a Q96 sqrt price for a currency1/currency0
// price expressed as a ratio. Convenience for fixtures and scenarios.
func SqrtPriceFromRatio(num, den int64) (*big.Int, error) {
	if num <= 0 || den <= 0 {
		return nil, fmt.Errorf("%w: non-positive price ratio %d/%d", ErrInvalidAmount, num, den)
	}
	ratio := new(big.Int).Mul(big.NewInt(num), q192)
	ratio.Div(ratio, big.NewInt(den))
	return new(big.Int).Sqrt(ratio), nil
}
