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

// binIDOffset is the bin id of price 1. Bin b trades at
// (1 + binStep/10000)^(b - binIDOffset).
const binIDOffset = 1 << 23

// ParityBinID is the bin id whose price is exactly 1.
const ParityBinID uint32 = binIDOffset

const binStepDenominator = 10_000

// BinLiquidityParams describes a bin pool liquidity change: either a
// deposit of amounts into a bin or a burn of previously minted shares.
type BinLiquidityParams struct {
	BinID      uint32
	Amount0    *big.Int
	Amount1    *big.Int
	BurnShares *big.Int
}

// BinSwapParams describes a bin pool swap. AmountSpecified < 0 is exact
// input, > 0 exact output. LimitBinID of zero means no limit; otherwise the
// fill stops before crossing past that bin.
type BinSwapParams struct {
	ZeroForOne      bool
	AmountSpecified *big.Int
	LimitBinID      uint32
}

type binShareKey struct {
	owner common.Address
	binID uint32
}

type bin struct {
	reserve0 *big.Int
	reserve1 *big.Int
}

type binPool struct {
	key         types.PoolKey
	activeID    uint32
	minBinID    uint32
	maxBinID    uint32
	bins        map[uint32]*bin
	shares      map[binShareKey]*big.Int
	totalShares map[uint32]*big.Int
}

// BinConfig holds a bin pool manager's fixed collaborators.
type BinConfig struct {
	Address common.Address
	Vault   *vault.Vault
	Journal *journal.Journal
	Logger  *zap.Logger
}

// BinPoolManager manages liquidity-book style pools: discrete price bins,
// each trading at a fixed price, consumed in order by swaps. Partial fills
// fall out naturally: a swap that exhausts available bins (or reaches its
// limit bin) stops and returns what it filled.
type BinPoolManager struct {
	addr    common.Address
	vault   *vault.Vault
	hooks   *hooksRegistry
	journal *journal.Journal
	logger  *zap.Logger

	mu    sync.Mutex
	pools map[types.PoolID]*binPool
}

func NewBinPoolManager(cfg BinConfig) *BinPoolManager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinPoolManager{
		addr:    cfg.Address,
		vault:   cfg.Vault,
		hooks:   newHooksRegistry(),
		journal: cfg.Journal,
		logger:  logger,
		pools:   make(map[types.PoolID]*binPool),
	}
}

// Address returns the manager's app address as registered with the vault.
func (m *BinPoolManager) Address() common.Address {
	return m.addr
}

// RegisterHooks binds a hook implementation to a hook address.
func (m *BinPoolManager) RegisterHooks(addr common.Address, h Hooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks.register(addr, h)
}

// Initialize stores the pool's starting active bin. A second initialize on
// the same key fails without touching the stored state.
func (m *BinPoolManager) Initialize(key types.PoolKey, activeID uint32) (uint32, error) {
	if err := m.validateKey(key); err != nil {
		return 0, err
	}
	if key.Parameters.BinStep == 0 {
		return 0, fmt.Errorf("%w: zero bin step", ErrInvalidAmount)
	}

	hooks := m.hooksFor(key)
	if err := hooks.BeforeInitialize(key); err != nil {
		return 0, fmt.Errorf("before initialize hook: %w", err)
	}

	poolID := key.ID()
	m.mu.Lock()
	if _, ok := m.pools[poolID]; ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, poolID)
	}
	m.pools[poolID] = &binPool{
		key:         key,
		activeID:    activeID,
		minBinID:    activeID,
		maxBinID:    activeID,
		bins:        make(map[uint32]*bin),
		shares:      make(map[binShareKey]*big.Int),
		totalShares: make(map[uint32]*big.Int),
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
		Price:     fmt.Sprintf("%d", activeID),
		Tick:      int32(int64(activeID) - binIDOffset),
	})
	m.logger.Debug("bin pool initialized", zap.String("pool_id", poolID.Hex()), zap.Uint32("active_id", activeID))
	return activeID, nil
}

// ModifyLiquidity deposits amounts into a bin (minting shares) or burns
// shares for a proportional cut of the bin's reserves, and posts the
// resulting delta to the vault against the session locker. Swap fees fold
// into bin reserves, so the fee stream is zero unless a hook adjusts it.
func (m *BinPoolManager) ModifyLiquidity(key types.PoolKey, params BinLiquidityParams, hookData []byte) (types.BalanceDelta, types.BalanceDelta, error) {
	zero := types.ZeroDelta()

	locker, ok := m.vault.Locker()
	if !ok {
		return zero, zero, vault.ErrNoActiveLock
	}
	if err := m.validateKey(key); err != nil {
		return zero, zero, err
	}

	burning := params.BurnShares != nil && params.BurnShares.Sign() > 0
	depositing := (params.Amount0 != nil && params.Amount0.Sign() > 0) || (params.Amount1 != nil && params.Amount1.Sign() > 0)
	if burning == depositing {
		return zero, zero, fmt.Errorf("%w: specify either deposit amounts or shares to burn", ErrInvalidAmount)
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

	var delta types.BalanceDelta
	var err error
	if burning {
		delta, err = p.burn(locker, params.BinID, params.BurnShares)
	} else {
		delta, err = p.mint(locker, params.BinID, orZero(params.Amount0), orZero(params.Amount1))
	}
	if err != nil {
		m.mu.Unlock()
		return zero, zero, err
	}
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
		TickLower:      int32(int64(params.BinID) - binIDOffset),
		TickUpper:      int32(int64(params.BinID) - binIDOffset),
		LiquidityDelta: liquidityLabel(params),
		Amount0:        delta.Amount0.String(),
		Amount1:        delta.Amount1.String(),
	})
	return delta, feeDelta, nil
}

// Swap walks bins in the trade direction, consuming each bin's opposing
// reserve at that bin's price, and posts the filled delta to the vault. The
// fill stops, without error, when liquidity runs out or the limit bin would
// be crossed.
func (m *BinPoolManager) Swap(key types.PoolKey, params BinSwapParams, hookData []byte) (types.BalanceDelta, error) {
	zero := types.ZeroDelta()

	locker, ok := m.vault.Locker()
	if !ok {
		return zero, vault.ErrNoActiveLock
	}
	if err := m.validateKey(key); err != nil {
		return zero, err
	}
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return zero, fmt.Errorf("%w: zero amount specified", ErrInvalidAmount)
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
	delta, err := p.swap(params)
	if err != nil {
		m.mu.Unlock()
		return zero, err
	}
	m.mu.Unlock()

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
	return delta, nil
}

// GetSlot0 projects the active bin onto the slot0 shape: the sqrt price of
// the active bin and its id offset as the tick.
func (m *BinPoolManager) GetSlot0(poolID types.PoolID) (Slot0, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return Slot0{}, fmt.Errorf("%w: %s", ErrPoolNotInitialized, poolID)
	}

	num, den := binPrice(p.key.Parameters.BinStep, p.activeID)
	ratio := new(big.Int).Mul(num, q192)
	ratio.Div(ratio, den)
	return Slot0{
		SqrtPriceX96: new(big.Int).Sqrt(ratio),
		Tick:         int32(int64(p.activeID) - binIDOffset),
		LpFee:        p.key.Fee,
	}, nil
}

// ActiveBin returns the pool's current active bin id.
func (m *BinPoolManager) ActiveBin(poolID types.PoolID) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPoolNotInitialized, poolID)
	}
	return p.activeID, nil
}

// BinReserves returns a bin's current reserves.
func (m *BinPoolManager) BinReserves(poolID types.PoolID, binID uint32) (*big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPoolNotInitialized, poolID)
	}
	b, ok := p.bins[binID]
	if !ok {
		return big.NewInt(0), big.NewInt(0), nil
	}
	return new(big.Int).Set(b.reserve0), new(big.Int).Set(b.reserve1), nil
}

// Snapshot deep-copies all pool state and returns a closure restoring it.
func (m *BinPoolManager) Snapshot() func() {
	m.mu.Lock()
	saved := make(map[types.PoolID]*binPool, len(m.pools))
	for id, p := range m.pools {
		bins := make(map[uint32]*bin, len(p.bins))
		for binID, b := range p.bins {
			bins[binID] = &bin{
				reserve0: new(big.Int).Set(b.reserve0),
				reserve1: new(big.Int).Set(b.reserve1),
			}
		}
		shares := make(map[binShareKey]*big.Int, len(p.shares))
		for k, s := range p.shares {
			shares[k] = new(big.Int).Set(s)
		}
		totals := make(map[uint32]*big.Int, len(p.totalShares))
		for binID, s := range p.totalShares {
			totals[binID] = new(big.Int).Set(s)
		}
		saved[id] = &binPool{
			key:         p.key,
			activeID:    p.activeID,
			minBinID:    p.minBinID,
			maxBinID:    p.maxBinID,
			bins:        bins,
			shares:      shares,
			totalShares: totals,
		}
	}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		m.pools = saved
		m.mu.Unlock()
	}
}

func (m *BinPoolManager) validateKey(key types.PoolKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if key.PoolManager != m.addr {
		return fmt.Errorf("%w: key wants %s", ErrWrongManager, key.PoolManager.Hex())
	}
	return nil
}

func (m *BinPoolManager) hooksFor(key types.PoolKey) Hooks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hooks.forKey(key)
}

func (m *BinPoolManager) emit(kind journal.Kind, payload interface{}) {
	if m.journal != nil {
		m.journal.Emit(kind, payload)
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func liquidityLabel(params BinLiquidityParams) string {
	if params.BurnShares != nil && params.BurnShares.Sign() > 0 {
		return "-" + params.BurnShares.String()
	}
	return fmt.Sprintf("+%s/%s", orZero(params.Amount0), orZero(params.Amount1))
}
