package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestNewPoolKeyOrdering(t *testing.T) {
	lo := NewCurrency(common.HexToAddress("0x1000000000000000000000000000000000000001"))
	hi := NewCurrency(common.HexToAddress("0x2000000000000000000000000000000000000002"))
	manager := common.HexToAddress("0x3000000000000000000000000000000000000003")

	if _, err := NewPoolKey(lo, hi, 3000, PoolParameters{TickSpacing: 60}, common.Address{}, manager); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewPoolKey(hi, lo, 3000, PoolParameters{TickSpacing: 60}, common.Address{}, manager); err == nil {
		t.Fatalf("expected error for out-of-order currencies")
	}

	if _, err := NewPoolKey(lo, lo, 3000, PoolParameters{TickSpacing: 60}, common.Address{}, manager); err == nil {
		t.Fatalf("expected error for equal currencies")
	}
}

func TestPoolIDDeterministic(t *testing.T) {
	lo := NewCurrency(common.HexToAddress("0x1000000000000000000000000000000000000001"))
	hi := NewCurrency(common.HexToAddress("0x2000000000000000000000000000000000000002"))
	manager := common.HexToAddress("0x3000000000000000000000000000000000000003")

	a, err := NewPoolKey(lo, hi, 3000, PoolParameters{TickSpacing: 60}, common.Address{}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewPoolKey(lo, hi, 3000, PoolParameters{TickSpacing: 60}, common.Address{}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID() != b.ID() {
		t.Fatalf("identical keys produced different ids: %s != %s", a.ID(), b.ID())
	}
}

func TestPoolIDSensitiveToFields(t *testing.T) {
	lo := NewCurrency(common.HexToAddress("0x1000000000000000000000000000000000000001"))
	hi := NewCurrency(common.HexToAddress("0x2000000000000000000000000000000000000002"))
	manager := common.HexToAddress("0x3000000000000000000000000000000000000003")

	base, err := NewPoolKey(lo, hi, 3000, PoolParameters{TickSpacing: 60}, common.Address{}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	variants := []PoolKey{}

	feeVariant := base
	feeVariant.Fee = 500
	variants = append(variants, feeVariant)

	spacingVariant := base
	spacingVariant.Parameters.TickSpacing = 10
	variants = append(variants, spacingVariant)

	binVariant := base
	binVariant.Parameters.BinStep = 25
	variants = append(variants, binVariant)

	hookVariant := base
	hookVariant.Hooks = common.HexToAddress("0x4000000000000000000000000000000000000004")
	variants = append(variants, hookVariant)

	for i, variant := range variants {
		if variant.ID() == base.ID() {
			t.Fatalf("variant %d collides with base id", i)
		}
	}
}
