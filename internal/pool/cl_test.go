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

var (
	testVaultAddr  = common.HexToAddress("0x7a01000000000000000000000000000000000001")
	testOwnerAddr  = common.HexToAddress("0x7a02000000000000000000000000000000000002")
	testCLAddr     = common.HexToAddress("0x7a03000000000000000000000000000000000003")
	testBinAddr    = common.HexToAddress("0x7a04000000000000000000000000000000000004")
	testRouterAddr = common.HexToAddress("0x7a05000000000000000000000000000000000005")

	testToken0 = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testToken1 = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

type clFixture struct {
	vault   *vault.Vault
	manager *CLPoolManager
	key     types.PoolKey
	price   *big.Int
}

// newCLFixture builds a vault plus CL manager with a canonical pool key at
// price 4 (a perfect square, so the Q96 sqrt price is exact).
func newCLFixture(t *testing.T, fee uint32) *clFixture {
	t.Helper()

	registry := token.NewRegistry()
	registry.Register(types.NewCurrency(testToken0), token.NewStandardToken("TKA", 18))
	registry.Register(types.NewCurrency(testToken1), token.NewStandardToken("TKB", 18))

	v := vault.New(vault.Config{Address: testVaultAddr, Owner: testOwnerAddr, Tokens: registry})
	manager := NewCLPoolManager(CLConfig{Address: testCLAddr, Vault: v})
	v.AddSnapshotter(registry)
	v.AddSnapshotter(manager)
	if err := v.RegisterApp(testOwnerAddr, testCLAddr); err != nil {
		t.Fatalf("register app: %v", err)
	}

	key, err := types.NewPoolKey(
		types.NewCurrency(testToken0),
		types.NewCurrency(testToken1),
		fee,
		types.PoolParameters{TickSpacing: 60},
		common.Address{},
		testCLAddr,
	)
	if err != nil {
		t.Fatalf("pool key: %v", err)
	}

	price, err := SqrtPriceFromRatio(4, 1)
	if err != nil {
		t.Fatalf("sqrt price: %v", err)
	}

	return &clFixture{vault: v, manager: manager, key: key, price: price}
}

// inLock runs fn inside a vault lock session held by the test router.
func inLock(t *testing.T, v *vault.Vault, fn func() error) error {
	t.Helper()
	_, err := v.Lock(testRouterAddr, vault.CallbackFunc(func(interface{}) (interface{}, error) {
		return nil, fn()
	}), nil)
	return err
}

func TestInitializeIdempotent(t *testing.T) {
	f := newCLFixture(t, 3000)

	tick, err := f.manager.Initialize(f.key, f.price)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	otherPrice, err := SqrtPriceFromRatio(9, 1)
	if err != nil {
		t.Fatalf("sqrt price: %v", err)
	}
	if _, err := f.manager.Initialize(f.key, otherPrice); !errors.Is(err, ErrPoolAlreadyInitialized) {
		t.Fatalf("expected ErrPoolAlreadyInitialized, got %v", err)
	}

	slot0, err := f.manager.GetSlot0(f.key.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot0.SqrtPriceX96.Cmp(f.price) != 0 {
		t.Fatalf("price changed by failed re-init: %s", slot0.SqrtPriceX96)
	}
	if slot0.Tick != tick {
		t.Fatalf("tick changed by failed re-init: %d != %d", slot0.Tick, tick)
	}
}

func TestGetSlot0Unknown(t *testing.T) {
	f := newCLFixture(t, 3000)
	if _, err := f.manager.GetSlot0(f.key.ID()); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("expected ErrPoolNotInitialized, got %v", err)
	}
}

func TestModifyLiquidityOutsideSession(t *testing.T) {
	f := newCLFixture(t, 3000)
	if _, err := f.manager.Initialize(f.key, f.price); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	params := ModifyLiquidityParams{TickLower: -60, TickUpper: 60, LiquidityDelta: big.NewInt(1000)}
	if _, _, err := f.manager.ModifyLiquidity(f.key, params, nil); !errors.Is(err, vault.ErrNoActiveLock) {
		t.Fatalf("expected ErrNoActiveLock, got %v", err)
	}
}

func TestModifyLiquidityRoundTrip(t *testing.T) {
	f := newCLFixture(t, 3000)
	if _, err := f.manager.Initialize(f.key, f.price); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	liquidity := big.NewInt(1000)
	err := inLock(t, f.vault, func() error {
		addParams := ModifyLiquidityParams{TickLower: -60, TickUpper: 60, LiquidityDelta: liquidity}
		addDelta, _, err := f.manager.ModifyLiquidity(f.key, addParams, nil)
		if err != nil {
			return err
		}

		// deposit owes the pool: both principal legs negative, amount1 at
		// the price-4 equivalent
		if addDelta.Amount0.Int64() != -1000 || addDelta.Amount1.Int64() != -4000 {
			t.Fatalf("unexpected add delta: %s", addDelta)
		}

		removeParams := ModifyLiquidityParams{TickLower: -60, TickUpper: 60, LiquidityDelta: new(big.Int).Neg(liquidity)}
		removeDelta, _, err := f.manager.ModifyLiquidity(f.key, removeParams, nil)
		if err != nil {
			return err
		}

		sum, err := addDelta.Add(removeDelta)
		if err != nil {
			return err
		}
		if !sum.IsZero() {
			t.Fatalf("add+remove principal should net zero, got %s", sum)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// net ledger entries cancel out too
	if got := f.vault.Delta(testRouterAddr, f.key.Currency0); got.Sign() != 0 {
		t.Fatalf("currency0 ledger should net zero, got %s", got)
	}
	if got := f.vault.Delta(testRouterAddr, f.key.Currency1); got.Sign() != 0 {
		t.Fatalf("currency1 ledger should net zero, got %s", got)
	}
}

func TestModifyLiquidityRemoveTooMuch(t *testing.T) {
	f := newCLFixture(t, 3000)
	if _, err := f.manager.Initialize(f.key, f.price); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := inLock(t, f.vault, func() error {
		add := ModifyLiquidityParams{TickLower: -60, TickUpper: 60, LiquidityDelta: big.NewInt(500)}
		if _, _, err := f.manager.ModifyLiquidity(f.key, add, nil); err != nil {
			return err
		}
		remove := ModifyLiquidityParams{TickLower: -60, TickUpper: 60, LiquidityDelta: big.NewInt(-600)}
		_, _, err := f.manager.ModifyLiquidity(f.key, remove, nil)
		return err
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("expected ErrInsufficientPosition, got %v", err)
	}
}

func TestSwapExactInput(t *testing.T) {
	f := newCLFixture(t, 3000)
	if _, err := f.manager.Initialize(f.key, f.price); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := inLock(t, f.vault, func() error {
		params := SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-1_000_000)}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}

		// 0.3% fee leaves 997000 net in; at price 4 that buys 3988000 out
		if delta.Amount0.Int64() != -1_000_000 {
			t.Fatalf("input leg should be -1000000, got %s", delta.Amount0)
		}
		if delta.Amount1.Int64() != 3_988_000 {
			t.Fatalf("output leg should be 3988000, got %s", delta.Amount1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSwapExactOutput(t *testing.T) {
	f := newCLFixture(t, 3000)
	if _, err := f.manager.Initialize(f.key, f.price); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := inLock(t, f.vault, func() error {
		params := SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(4000)}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}

		// 4000 out needs 1000 net in, grossed up for the 0.3% fee
		if delta.Amount1.Int64() != 4000 {
			t.Fatalf("output leg should be 4000, got %s", delta.Amount1)
		}
		if delta.Amount0.Int64() != -1004 {
			t.Fatalf("input leg should be -1004, got %s", delta.Amount0)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSwapPriceLimitStopsFill(t *testing.T) {
	f := newCLFixture(t, 3000)
	if _, err := f.manager.Initialize(f.key, f.price); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := inLock(t, f.vault, func() error {
		// a zeroForOne limit at the current price blocks any movement: the
		// fill stops at zero instead of failing
		params := SwapParams{
			ZeroForOne:        true,
			AmountSpecified:   big.NewInt(-1_000_000),
			SqrtPriceLimitX96: new(big.Int).Set(f.price),
		}
		delta, err := f.manager.Swap(f.key, params, nil)
		if err != nil {
			return err
		}
		if !delta.IsZero() {
			t.Fatalf("blocked swap should fill zero, got %s", delta)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slot0, err := f.manager.GetSlot0(f.key.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot0.SqrtPriceX96.Cmp(f.price) != 0 {
		t.Fatalf("price moved on blocked swap: %s", slot0.SqrtPriceX96)
	}
}

func TestSwapUninitializedPool(t *testing.T) {
	f := newCLFixture(t, 3000)

	err := inLock(t, f.vault, func() error {
		_, err := f.manager.Swap(f.key, SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-1)}, nil)
		return err
	})
	if !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("expected ErrPoolNotInitialized, got %v", err)
	}
}

type vetoHooks struct {
	NoopHooks
	err error
}

func (h vetoHooks) BeforeSwap(types.PoolKey, []byte) error { return h.err }

func TestSwapHookVeto(t *testing.T) {
	f := newCLFixture(t, 3000)

	hookAddr := common.HexToAddress("0x9000000000000000000000000000000000000009")
	veto := errors.New("hook veto")
	f.manager.RegisterHooks(hookAddr, vetoHooks{err: veto})

	key := f.key
	key.Hooks = hookAddr
	if _, err := f.manager.Initialize(key, f.price); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := inLock(t, f.vault, func() error {
		_, err := f.manager.Swap(key, SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-100)}, nil)
		return err
	})
	if !errors.Is(err, veto) {
		t.Fatalf("expected hook veto to propagate, got %v", err)
	}
}
