package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultsim/internal/pool"
	"vaultsim/internal/token"
	"vaultsim/internal/types"
	"vaultsim/internal/vault"
)

type clModifyOp struct {
	key    types.PoolKey
	params pool.ModifyLiquidityParams
	user   common.Address
}

type binModifyOp struct {
	key    types.PoolKey
	params pool.BinLiquidityParams
	user   common.Address
}

// LiquidityConfig holds the liquidity manager's fixed collaborators.
type LiquidityConfig struct {
	Address common.Address
	Vault   *vault.Vault
	CL      *pool.CLPoolManager
	Bin     *pool.BinPoolManager
	Tokens  *token.Registry
	Logger  *zap.Logger
}

// LiquidityManager adds and removes liquidity on behalf of end users,
// settling the resulting deltas inside a vault lock session. Positions are
// attributed to the manager itself (the contract inside the session), with
// the end user tracked by the manager's own bookkeeping.
type LiquidityManager struct {
	addr   common.Address
	vault  *vault.Vault
	cl     *pool.CLPoolManager
	bin    *pool.BinPoolManager
	logger *zap.Logger
	settle settler
}

func NewLiquidityManager(cfg LiquidityConfig) *LiquidityManager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiquidityManager{
		addr:   cfg.Address,
		vault:  cfg.Vault,
		cl:     cfg.CL,
		bin:    cfg.Bin,
		logger: logger,
		settle: settler{self: cfg.Address, vault: cfg.Vault, tokens: cfg.Tokens},
	}
}

// Address returns the liquidity manager's account address.
func (lm *LiquidityManager) Address() common.Address {
	return lm.addr
}

// ModifyLiquidity changes a concentrated-liquidity position for the user
// and settles the resulting delta. Positive LiquidityDelta deposits, the
// user funds the legs; negative withdraws, the user receives them.
func (lm *LiquidityManager) ModifyLiquidity(key types.PoolKey, params pool.ModifyLiquidityParams, user common.Address) (types.BalanceDelta, error) {
	result, err := lm.vault.Lock(lm.addr, lm, clModifyOp{key: key, params: params, user: user})
	if err != nil {
		return types.ZeroDelta(), err
	}
	delta := result.(types.BalanceDelta)
	lm.logger.Info("liquidity settled",
		zap.String("user", user.Hex()),
		zap.String("liquidity_delta", params.LiquidityDelta.String()),
		zap.String("amount0", delta.Amount0.String()),
		zap.String("amount1", delta.Amount1.String()),
	)
	return delta, nil
}

// ModifyLiquidityBin deposits into or burns from a bin pool for the user
// and settles the resulting delta.
func (lm *LiquidityManager) ModifyLiquidityBin(key types.PoolKey, params pool.BinLiquidityParams, user common.Address) (types.BalanceDelta, error) {
	result, err := lm.vault.Lock(lm.addr, lm, binModifyOp{key: key, params: params, user: user})
	if err != nil {
		return types.ZeroDelta(), err
	}
	delta := result.(types.BalanceDelta)
	lm.logger.Info("bin liquidity settled",
		zap.String("user", user.Hex()),
		zap.String("amount0", delta.Amount0.String()),
		zap.String("amount1", delta.Amount1.String()),
	)
	return delta, nil
}

// LockAcquired dispatches the liquidity manager's lock payload variants.
func (lm *LiquidityManager) LockAcquired(payload interface{}) (interface{}, error) {
	switch op := payload.(type) {
	case clModifyOp:
		delta, _, err := lm.cl.ModifyLiquidity(op.key, op.params, nil)
		if err != nil {
			return nil, err
		}
		if err := lm.settle.resolve(op.key, delta, op.user); err != nil {
			return nil, err
		}
		return delta, nil
	case binModifyOp:
		delta, _, err := lm.bin.ModifyLiquidity(op.key, op.params, nil)
		if err != nil {
			return nil, err
		}
		if err := lm.settle.resolve(op.key, delta, op.user); err != nil {
			return nil, err
		}
		return delta, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownOperation, payload)
	}
}

var (
	_ vault.LockCallback = (*LiquidityManager)(nil)
	_ vault.LockCallback = (*Router)(nil)
)
