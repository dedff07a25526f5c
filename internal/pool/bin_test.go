package pool

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"vaultsim/internal/token"
	"vaultsim/internal/types"
	"vaultsim/internal/vault"
)

const activeBin = uint32(binIDOffset)

type binFixture struct {
	vault   *vault.Vault
	manager *BinPoolManager
	key     types.PoolKey
}

// newBinFixture builds a vault plus bin manager with a 20% bin step and no
// swap fee so fills are exact rationals.
func newBinFixture(t *testing.T, fee uint32) *binFixture {
	t.Helper()

	registry := token.NewRegistry()
	registry.Register(types.NewCurrency(testToken0), token.NewStandardToken("TKA", 18))
	registry.Register(types.NewCurrency(testToken1), token.NewStandardToken("TKB", 18))

	v := vault.New(vault.Config{Address: testVaultAddr, Owner: testOwnerAddr, Tokens: registry})
	manager := NewBinPoolManager(BinConfig{Address: testBinAddr, Vault: v})
	v.AddSnapshotter(registry)
	v.AddSnapshotter(manager)
	if err := v.RegisterApp(testOwnerAddr, testBinAddr); err != nil {
		t.Fatalf("register app: %v", err)
	}

	key, err := types.NewPoolKey(
		types.NewCurrency(testToken0),
		types.NewCurrency(testToken1),
		fee,
		types.PoolParameters{BinStep: 2000},
		common.Address{},
		testBinAddr,
	)
	if err != nil {
		t.Fatalf("pool key: %v", err)
	}

	return &binFixture{vault: v, manager: manager, key: key}
}

func (f *binFixture) initialize(t *testing.T) {
	t.Helper()
	if _, err := f.manager.Initialize(f.key, activeBin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func (f *binFixture) mint(t *testing.T, binID uint32, amount0, amount1 int64) {
	t.Helper()
	err := inLock(t, f.vault, func() error {
		params := BinLiquidityParams{BinID: binID, Amount0: big.NewInt(amount0), Amount1: big.NewInt(amount1)}
		_, _, err := f.manager.ModifyLiquidity(f.key, params, nil)
		return err
	})
	if err != nil {
		t.Fatalf("mint bin %d: %v", binID, err)
	}
}

func TestBinInitializeIdempotent(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)

	if _, err := f.manager.Initialize(f.key, activeBin+5); !errors.Is(err, ErrPoolAlreadyInitialized) {
		t.Fatalf("expected ErrPoolAlreadyInitialized, got %v", err)
	}
	got, err := f.manager.ActiveBin(f.key.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != activeBin {
		t.Fatalf("active bin changed by failed re-init: %d", got)
	}
}

func TestBinGetSlot0AtUnitPrice(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)

	slot0, err := f.manager.GetSlot0(f.key.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot0.Tick != 0 {
		t.Fatalf("bin at offset should project tick 0, got %d", slot0.Tick)
	}
	if slot0.SqrtPriceX96.Cmp(q96) != 0 {
		t.Fatalf("unit price should project sqrt price 2^96, got %s", slot0.SqrtPriceX96)
	}

	if _, err := f.manager.GetSlot0(types.PoolID{}); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("expected ErrPoolNotInitialized, got %v", err)
	}
}

func TestBinMintBurnRoundTrip(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)

	var minted types.BalanceDelta
	err := inLock(t, f.vault, func() error {
		params := BinLiquidityParams{BinID: activeBin, Amount0: big.NewInt(1000), Amount1: big.NewInt(2000)}
		delta, _, err := f.manager.ModifyLiquidity(f.key, params, nil)
		if err != nil {
			return err
		}
		minted = delta

		if delta.Amount0.Int64() != -1000 || delta.Amount1.Int64() != -2000 {
			t.Fatalf("deposit delta should be (-1000, -2000), got %s", delta)
		}

		// burning every share returns the reserves exactly
		shares := new(big.Int).Add(big.NewInt(1000), big.NewInt(2000)) // value at unit price
		burn := BinLiquidityParams{BinID: activeBin, BurnShares: shares}
		burnDelta, _, err := f.manager.ModifyLiquidity(f.key, burn, nil)
		if err != nil {
			return err
		}

		sum, err := minted.Add(burnDelta)
		if err != nil {
			return err
		}
		if !sum.IsZero() {
			t.Fatalf("mint+burn should net zero, got %s", sum)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBinBurnTooManyShares(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)
	f.mint(t, activeBin, 100, 0)

	err := inLock(t, f.vault, func() error {
		burn := BinLiquidityParams{BinID: activeBin, BurnShares: big.NewInt(1_000_000)}
		_, _, err := f.manager.ModifyLiquidity(f.key, burn, nil)
		return err
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("expected ErrInsufficientPosition, got %v", err)
	}
}

func TestBinModifyLiquidityValidation(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)

	err := inLock(t, f.vault, func() error {
		// neither deposit nor burn
		_, _, err := f.manager.ModifyLiquidity(f.key, BinLiquidityParams{BinID: activeBin}, nil)
		return err
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	err = inLock(t, f.vault, func() error {
		// both at once
		params := BinLiquidityParams{BinID: activeBin, Amount0: big.NewInt(1), BurnShares: big.NewInt(1)}
		_, _, err := f.manager.ModifyLiquidity(f.key, params, nil)
		return err
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestBinSwapWithinActiveBin(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)
	f.mint(t, activeBin, 0, 10_000)

	err := inLock(t, f.vault, func() error {
		params := BinSwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-1000)}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}
		// unit price, no fee: one for one
		if delta.Amount0.Int64() != -1000 || delta.Amount1.Int64() != 1000 {
			t.Fatalf("unexpected delta: %s", delta)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBinSwapCrossesBins(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)
	f.mint(t, activeBin, 0, 1000)
	f.mint(t, activeBin-1, 0, 1200)

	err := inLock(t, f.vault, func() error {
		params := BinSwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-3000)}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}

		// bin A drains 1000 out for 1000 in at unit price; bin A-1 trades
		// at 10000/12000 and drains 1200 out for 1440 in; the remaining 560
		// of input finds no liquidity and stays with the trader
		if delta.Amount0.Int64() != -2440 {
			t.Fatalf("input leg should be -2440, got %s", delta.Amount0)
		}
		if delta.Amount1.Int64() != 2200 {
			t.Fatalf("output leg should be 2200, got %s", delta.Amount1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := f.manager.ActiveBin(f.key.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != activeBin-1 {
		t.Fatalf("active bin should move to the last traded bin, got %d", got)
	}
}

func TestBinSwapLimitStopsFill(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)
	f.mint(t, activeBin, 0, 1000)
	f.mint(t, activeBin-1, 0, 1200)

	err := inLock(t, f.vault, func() error {
		params := BinSwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-3000), LimitBinID: activeBin}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}
		// the limit keeps the fill inside the active bin: partial fill, no
		// error
		if delta.Amount0.Int64() != -1000 || delta.Amount1.Int64() != 1000 {
			t.Fatalf("unexpected delta: %s", delta)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := f.manager.ActiveBin(f.key.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != activeBin {
		t.Fatalf("active bin should stay at the limit, got %d", got)
	}
}

func TestBinSwapExactOutput(t *testing.T) {
	f := newBinFixture(t, 0)
	f.initialize(t)
	f.mint(t, activeBin, 0, 10_000)

	err := inLock(t, f.vault, func() error {
		params := BinSwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(500)}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}
		if delta.Amount0.Int64() != -500 || delta.Amount1.Int64() != 500 {
			t.Fatalf("unexpected delta: %s", delta)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBinSwapFeeStaysInBin(t *testing.T) {
	f := newBinFixture(t, 10_000) // 1% fee
	f.initialize(t)
	f.mint(t, activeBin, 0, 100_000)

	err := inLock(t, f.vault, func() error {
		params := BinSwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-1000)}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}
		// 1% fee: 990 net in buys 990 out at unit price; the full 1000
		// gross lands in the bin's reserve0
		if delta.Amount0.Int64() != -1000 || delta.Amount1.Int64() != 990 {
			t.Fatalf("unexpected delta: %s", delta)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reserve0, reserve1, err := f.manager.BinReserves(f.key.ID(), activeBin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reserve0.Int64() != 1000 {
		t.Fatalf("gross input including fee should sit in reserve0, got %s", reserve0)
	}
	if reserve1.Int64() != 99_010 {
		t.Fatalf("reserve1 should drop by the 990 output, got %s", reserve1)
	}
}
