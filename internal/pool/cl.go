// Package pool implements the vault's registered apps: the concentrated-
// liquidity and bin pool managers. Each operation computes a BalanceDelta
// and forwards it to the vault's accounting against the current lock
// session's locker.
package pool

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultsim/internal/journal"
	"vaultsim/internal/types"
	"vaultsim/internal/vault"
)

// ModifyLiquidityParams describes a concentrated-liquidity position change.
type ModifyLiquidityParams struct {
	TickLower      int32
	TickUpper      int32
	LiquidityDelta *big.Int
	Salt           common.Hash
}

// SwapParams describes a swap request. AmountSpecified < 0 is exact input,
// > 0 exact output. A zero or nil SqrtPriceLimitX96 means no limit.
type SwapParams struct {
	ZeroForOne        bool
	AmountSpecified   *big.Int
	SqrtPriceLimitX96 *big.Int
}

type positionKey struct {
	owner     common.Address
	tickLower int32
	tickUpper int32
	salt      common.Hash
}

type clPool struct {
	key       types.PoolKey
	slot0     Slot0
	liquidity *big.Int
	positions map[positionKey]*big.Int
}

// CLConfig holds a concentrated-liquidity manager's fixed collaborators.
type CLConfig struct {
	Address common.Address
	Vault   *vault.Vault
	Model   PriceModel
	Journal *journal.Journal
	Logger  *zap.Logger
}

// CLPoolManager manages concentrated-liquidity pools.
type CLPoolManager struct {
	addr    common.Address
	vault   *vault.Vault
	model   PriceModel
	hooks   *hooksRegistry
	journal *journal.Journal
	logger  *zap.Logger

	mu    sync.Mutex
	pools map[types.PoolID]*clPool
}

func NewCLPoolManager(cfg CLConfig) *CLPoolManager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == nil {
		model = ConstantPriceModel{}
	}
	return &CLPoolManager{
		addr:    cfg.Address,
		vault:   cfg.Vault,
		model:   model,
		hooks:   newHooksRegistry(),
		journal: cfg.Journal,
		logger:  logger,
		pools:   make(map[types.PoolID]*clPool),
	}
}

// Address returns the manager's app address as registered with the vault.
func (m *CLPoolManager) Address() common.Address {
	return m.addr
}

// RegisterHooks binds a hook implementation to a hook address so pool keys
// can reference it.
func (m *CLPoolManager) RegisterHooks(addr common.Address, h Hooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks.register(addr, h)
}

// Initialize stores the pool's initial price. A second initialize on the
// same key fails without touching the stored state.
func (m *CLPoolManager) Initialize(key types.PoolKey, sqrtPriceX96 *big.Int) (int32, error) {
	if err := m.validateKey(key); err != nil {
		return 0, err
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("%w: non-positive sqrt price", ErrInvalidAmount)
	}

	hooks := m.hooksFor(key)
	if err := hooks.BeforeInitialize(key); err != nil {
		return 0, fmt.Errorf("before initialize hook: %w", err)
	}

	tick, err := m.model.TickAtSqrtPrice(sqrtPriceX96)
	if err != nil {
		return 0, err
	}

	poolID := key.ID()
	m.mu.Lock()
	if _, ok := m.pools[poolID]; ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, poolID)
	}
	m.pools[poolID] = &clPool{
		key: key,
		slot0: Slot0{
			SqrtPriceX96: new(big.Int).Set(sqrtPriceX96),
			Tick:         tick,
			LpFee:        key.Fee,
		},
		liquidity: big.NewInt(0),
		positions: make(map[positionKey]*big.Int),
	}
	m.mu.Unlock()

	if err := hooks.AfterInitialize(key); err != nil {
		return 0, fmt.Errorf("after initialize hook: %w", err)
	}

	m.emit(journal.KindPoolInitialized, journal.PoolInitializedPayload{
		PoolID:    poolID.Hex(),
		Currency0: key.Currency0.String(),
		Currency1: key.Currency1.String(),
		Fee:       key.Fee,
		Price:     sqrtPriceX96.String(),
		Tick:      tick,
	})
	m.logger.Debug("pool initialized", zap.String("pool_id", poolID.Hex()), zap.Int32("tick", tick))
	return tick, nil
}

// ModifyLiquidity applies a liquidity change and posts the resulting delta
// to the vault against the session locker. The fee delta stream is reported
// separately from principal; the built-in price model accrues no position
// fees, so it is zero unless a hook adjusts it.
func (m *CLPoolManager) ModifyLiquidity(key types.PoolKey, params ModifyLiquidityParams, hookData []byte) (types.BalanceDelta, types.BalanceDelta, error) {
	zero := types.ZeroDelta()

	locker, ok := m.vault.Locker()
	if !ok {
		return zero, zero, vault.ErrNoActiveLock
	}
	if err := m.validateKey(key); err != nil {
		return zero, zero, err
	}
	if params.LiquidityDelta == nil || params.LiquidityDelta.Sign() == 0 {
		return zero, zero, fmt.Errorf("%w: zero liquidity delta", ErrInvalidAmount)
	}

	hooks := m.hooksFor(key)
	if err := hooks.BeforeModifyLiquidity(key, hookData); err != nil {
		return zero, zero, fmt.Errorf("before modify liquidity hook: %w", err)
	}

	poolID := key.ID()
	m.mu.Lock()
	p, ok := m.pools[poolID]
	if !ok {
		m.mu.Unlock()
		return zero, zero, fmt.Errorf("%w: %s", ErrPoolNotInitialized, poolID)
	}

	amount0, amount1, err := m.model.AmountsForLiquidity(p.slot0, params.TickLower, params.TickUpper, params.LiquidityDelta)
	if err != nil {
		m.mu.Unlock()
		return zero, zero, err
	}

	posKey := positionKey{owner: locker, tickLower: params.TickLower, tickUpper: params.TickUpper, salt: params.Salt}
	position, ok := p.positions[posKey]
	if !ok {
		position = big.NewInt(0)
	}

	var delta types.BalanceDelta
	if params.LiquidityDelta.Sign() > 0 {
		delta = types.NewBalanceDelta(new(big.Int).Neg(amount0), new(big.Int).Neg(amount1))
		position = new(big.Int).Add(position, params.LiquidityDelta)
	} else {
		removed := new(big.Int).Neg(params.LiquidityDelta)
		if position.Cmp(removed) < 0 {
			m.mu.Unlock()
			return zero, zero, fmt.Errorf("%w: have %s, removing %s", ErrInsufficientPosition, position, removed)
		}
		delta = types.NewBalanceDelta(amount0, amount1)
		position = new(big.Int).Sub(position, removed)
	}

	if position.Sign() == 0 {
		delete(p.positions, posKey)
	} else {
		p.positions[posKey] = position
	}
	p.liquidity = new(big.Int).Add(p.liquidity, params.LiquidityDelta)
	m.mu.Unlock()

	delta, err = hooks.AfterModifyLiquidity(key, delta, hookData)
	if err != nil {
		return zero, zero, fmt.Errorf("after modify liquidity hook: %w", err)
	}

	feeDelta := types.ZeroDelta()
	combined, err := delta.Add(feeDelta)
	if err != nil {
		return zero, zero, err
	}
	if err := m.vault.AccountAppBalanceDelta(m.addr, key.Currency0, key.Currency1, combined, locker); err != nil {
		return zero, zero, err
	}

	m.emit(journal.KindLiquidityModified, journal.LiquidityModifiedPayload{
		PoolID:         poolID.Hex(),
		TickLower:      params.TickLower,
		TickUpper:      params.TickUpper,
		LiquidityDelta: params.LiquidityDelta.String(),
		Amount0:        delta.Amount0.String(),
		Amount1:        delta.Amount1.String(),
	})
	m.logger.Debug("liquidity modified",
		zap.String("pool_id", poolID.Hex()),
		zap.String("liquidity_delta", params.LiquidityDelta.String()),
		zap.String("amount0", delta.Amount0.String()),
		zap.String("amount1", delta.Amount1.String()),
	)
	return delta, feeDelta, nil
}

// Swap fills a swap against the pool's price model, updates the pool price,
// and posts the delta to the vault against the session locker.
func (m *CLPoolManager) Swap(key types.PoolKey, params SwapParams, hookData []byte) (types.BalanceDelta, error) {
	zero := types.ZeroDelta()

	locker, ok := m.vault.Locker()
	if !ok {
		return zero, vault.ErrNoActiveLock
	}
	if err := m.validateKey(key); err != nil {
		return zero, err
	}

	hooks := m.hooksFor(key)
	if err := hooks.BeforeSwap(key, hookData); err != nil {
		return zero, fmt.Errorf("before swap hook: %w", err)
	}

	poolID := key.ID()
	m.mu.Lock()
	p, ok := m.pools[poolID]
	if !ok {
		m.mu.Unlock()
		return zero, fmt.Errorf("%w: %s", ErrPoolNotInitialized, poolID)
	}

	result, err := m.model.Quote(p.slot0, p.liquidity, params.ZeroForOne, params.AmountSpecified, params.SqrtPriceLimitX96)
	if err != nil {
		m.mu.Unlock()
		return zero, err
	}

	p.slot0.SqrtPriceX96 = result.SqrtPriceX96
	p.slot0.Tick = result.Tick
	m.mu.Unlock()

	delta := types.NewBalanceDelta(result.Amount0, result.Amount1)
	delta, err = hooks.AfterSwap(key, delta, hookData)
	if err != nil {
		return zero, fmt.Errorf("after swap hook: %w", err)
	}

	if err := m.vault.AccountAppBalanceDelta(m.addr, key.Currency0, key.Currency1, delta, locker); err != nil {
		return zero, err
	}

	m.emit(journal.KindSwapExecuted, journal.SwapExecutedPayload{
		PoolID:          poolID.Hex(),
		ZeroForOne:      params.ZeroForOne,
		AmountSpecified: params.AmountSpecified.String(),
		Amount0:         delta.Amount0.String(),
		Amount1:         delta.Amount1.String(),
	})
	m.logger.Debug("swap executed",
		zap.String("pool_id", poolID.Hex()),
		zap.Bool("zero_for_one", params.ZeroForOne),
		zap.String("amount0", delta.Amount0.String()),
		zap.String("amount1", delta.Amount1.String()),
	)
	return delta, nil
}

// GetSlot0 returns the pool's price state.
func (m *CLPoolManager) GetSlot0(poolID types.PoolID) (Slot0, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return Slot0{}, fmt.Errorf("%w: %s", ErrPoolNotInitialized, poolID)
	}
	return Slot0{
		SqrtPriceX96: new(big.Int).Set(p.slot0.SqrtPriceX96),
		Tick:         p.slot0.Tick,
		ProtocolFee:  p.slot0.ProtocolFee,
		LpFee:        p.slot0.LpFee,
	}, nil
}

// Liquidity returns the pool's total in-range liquidity.
func (m *CLPoolManager) Liquidity(poolID types.PoolID) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotInitialized, poolID)
	}
	return new(big.Int).Set(p.liquidity), nil
}

// Snapshot deep-copies all pool state and returns a closure restoring it,
// so pool state joins the vault's lock transaction.
func (m *CLPoolManager) Snapshot() func() {
	m.mu.Lock()
	saved := make(map[types.PoolID]*clPool, len(m.pools))
	for id, p := range m.pools {
		positions := make(map[positionKey]*big.Int, len(p.positions))
		for k, liquidity := range p.positions {
			positions[k] = new(big.Int).Set(liquidity)
		}
		saved[id] = &clPool{
			key: p.key,
			slot0: Slot0{
				SqrtPriceX96: new(big.Int).Set(p.slot0.SqrtPriceX96),
				Tick:         p.slot0.Tick,
				ProtocolFee:  p.slot0.ProtocolFee,
				LpFee:        p.slot0.LpFee,
			},
			liquidity: new(big.Int).Set(p.liquidity),
			positions: positions,
		}
	}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		m.pools = saved
		m.mu.Unlock()
	}
}

func (m *CLPoolManager) validateKey(key types.PoolKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if key.PoolManager != m.addr {
		return fmt.Errorf("%w: key wants %s", ErrWrongManager, key.PoolManager.Hex())
	}
	return nil
}

func (m *CLPoolManager) hooksFor(key types.PoolKey) Hooks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hooks.forKey(key)
}

func (m *CLPoolManager) emit(kind journal.Kind, payload interface{}) {
	if m.journal != nil {
		m.journal.Emit(kind, payload)
	}
}
