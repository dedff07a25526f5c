// Package router implements the caller side of the lock protocol: contracts
// that open a vault session, dispatch pool-manager operations from inside
// the callback, and reconcile the resulting deltas with real token
// transfers before the session closes.
//
// Lock payloads are a tagged union of operation structs dispatched by type
// switch, so each operation kind is checked at compile time.
package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultsim/internal/pool"
	"vaultsim/internal/token"
	"vaultsim/internal/types"
	"vaultsim/internal/vault"
)

// clSwapOp and binSwapOp are the router's lock payload variants.
type clSwapOp struct {
	key    types.PoolKey
	params pool.SwapParams
	user   common.Address
	minOut *big.Int
	maxIn  *big.Int
}

type binSwapOp struct {
	key    types.PoolKey
	params pool.BinSwapParams
	user   common.Address
	minOut *big.Int
	maxIn  *big.Int
}

// Config holds the router's fixed collaborators.
type Config struct {
	Address common.Address
	Vault   *vault.Vault
	CL      *pool.CLPoolManager
	Bin     *pool.BinPoolManager
	Tokens  *token.Registry
	Logger  *zap.Logger
}

// Router executes swaps against either pool manager variant on behalf of
// end users.
type Router struct {
	addr   common.Address
	vault  *vault.Vault
	cl     *pool.CLPoolManager
	bin    *pool.BinPoolManager
	logger *zap.Logger
	settle settler
}

func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		addr:   cfg.Address,
		vault:  cfg.Vault,
		cl:     cfg.CL,
		bin:    cfg.Bin,
		logger: logger,
		settle: settler{self: cfg.Address, vault: cfg.Vault, tokens: cfg.Tokens},
	}
}

// Address returns the router's account address.
func (r *Router) Address() common.Address {
	return r.addr
}

// Swap executes a concentrated-liquidity swap for the user and settles both
// legs. minOut bounds the output leg for exact input, maxIn bounds the
// input leg for exact output; nil disables the bound.
func (r *Router) Swap(key types.PoolKey, params pool.SwapParams, user common.Address, minOut, maxIn *big.Int) (types.BalanceDelta, error) {
	result, err := r.vault.Lock(r.addr, r, clSwapOp{key: key, params: params, user: user, minOut: minOut, maxIn: maxIn})
	if err != nil {
		return types.ZeroDelta(), err
	}
	delta := result.(types.BalanceDelta)
	r.logger.Info("swap settled",
		zap.String("user", user.Hex()),
		zap.String("amount0", delta.Amount0.String()),
		zap.String("amount1", delta.Amount1.String()),
	)
	return delta, nil
}

// SwapBin executes a bin pool swap for the user and settles both legs.
func (r *Router) SwapBin(key types.PoolKey, params pool.BinSwapParams, user common.Address, minOut, maxIn *big.Int) (types.BalanceDelta, error) {
	result, err := r.vault.Lock(r.addr, r, binSwapOp{key: key, params: params, user: user, minOut: minOut, maxIn: maxIn})
	if err != nil {
		return types.ZeroDelta(), err
	}
	delta := result.(types.BalanceDelta)
	r.logger.Info("bin swap settled",
		zap.String("user", user.Hex()),
		zap.String("amount0", delta.Amount0.String()),
		zap.String("amount1", delta.Amount1.String()),
	)
	return delta, nil
}

// LockAcquired dispatches the router's lock payload variants.
func (r *Router) LockAcquired(payload interface{}) (interface{}, error) {
	switch op := payload.(type) {
	case clSwapOp:
		delta, err := r.cl.Swap(op.key, op.params, nil)
		if err != nil {
			return nil, err
		}
		return r.finish(op.key, delta, op.params.ZeroForOne, op.user, op.minOut, op.maxIn)
	case binSwapOp:
		delta, err := r.bin.Swap(op.key, op.params, nil)
		if err != nil {
			return nil, err
		}
		return r.finish(op.key, delta, op.params.ZeroForOne, op.user, op.minOut, op.maxIn)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownOperation, payload)
	}
}

func (r *Router) finish(key types.PoolKey, delta types.BalanceDelta, zeroForOne bool, user common.Address, minOut, maxIn *big.Int) (interface{}, error) {
	inLeg, outLeg := delta.Amount1, delta.Amount0
	if zeroForOne {
		inLeg, outLeg = delta.Amount0, delta.Amount1
	}
	if minOut != nil && outLeg.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: got %s, want at least %s", ErrTooLittleReceived, outLeg, minOut)
	}
	if maxIn != nil && new(big.Int).Neg(inLeg).Cmp(maxIn) > 0 {
		return nil, fmt.Errorf("%w: need %s, cap is %s", ErrTooMuchRequested, new(big.Int).Neg(inLeg), maxIn)
	}

	if err := r.settle.resolve(key, delta, user); err != nil {
		return nil, err
	}
	return delta, nil
}
