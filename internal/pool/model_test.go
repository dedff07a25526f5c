package pool

import (
	"math/big"
	"testing"
)

func TestTickAtSqrtPrice(t *testing.T) {
	model := ConstantPriceModel{}

	tick, err := model.TickAtSqrtPrice(new(big.Int).Set(q96))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick != 0 {
		t.Fatalf("unit price should map to tick 0, got %d", tick)
	}

	price, err := SqrtPriceFromRatio(4, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tick, err = model.TickAtSqrtPrice(price)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1.0001^13862 ~= 4
	if tick < 13860 || tick > 13865 {
		t.Fatalf("price 4 should map near tick 13863, got %d", tick)
	}

	if _, err := model.TickAtSqrtPrice(big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero price")
	}
}

func TestSqrtPriceFromRatioValidation(t *testing.T) {
	if _, err := SqrtPriceFromRatio(0, 1); err == nil {
		t.Fatalf("expected error for zero numerator")
	}
	if _, err := SqrtPriceFromRatio(1, -2); err == nil {
		t.Fatalf("expected error for negative denominator")
	}
}

func TestQuoteZeroAmount(t *testing.T) {
	model := ConstantPriceModel{}
	slot0 := Slot0{SqrtPriceX96: new(big.Int).Set(q96), LpFee: 3000}

	if _, err := model.Quote(slot0, nil, true, big.NewInt(0), nil); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestBinPriceSymmetry(t *testing.T) {
	num, den := binPrice(2000, binIDOffset+1)
	if num.Int64() != 12000 || den.Int64() != 10000 {
		t.Fatalf("bin above offset should price 12000/10000, got %s/%s", num, den)
	}

	num, den = binPrice(2000, binIDOffset-1)
	if num.Int64() != 10000 || den.Int64() != 12000 {
		t.Fatalf("bin below offset should price 10000/12000, got %s/%s", num, den)
	}

	num, den = binPrice(2000, binIDOffset)
	if num.Int64() != 1 || den.Int64() != 1 {
		t.Fatalf("offset bin should price 1/1, got %s/%s", num, den)
	}
}
