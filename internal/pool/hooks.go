package pool

import (
	"github.com/ethereum/go-ethereum/common"

	"vaultsim/internal/types"
)

// Hooks is the extension point invoked around pool operations. A hook may
// veto an operation by returning an error, and the after-hooks may adjust
// the operation's delta before it is posted to the vault.
type Hooks interface {
	BeforeInitialize(key types.PoolKey) error
	AfterInitialize(key types.PoolKey) error

	BeforeModifyLiquidity(key types.PoolKey, hookData []byte) error
	AfterModifyLiquidity(key types.PoolKey, delta types.BalanceDelta, hookData []byte) (types.BalanceDelta, error)

	BeforeSwap(key types.PoolKey, hookData []byte) error
	AfterSwap(key types.PoolKey, delta types.BalanceDelta, hookData []byte) (types.BalanceDelta, error)
}

// hooksRegistry resolves a pool key's hook address to an implementation.
// The zero address and unregistered addresses resolve to NoopHooks.
type hooksRegistry struct {
	hooks map[common.Address]Hooks
}

func newHooksRegistry() *hooksRegistry {
	return &hooksRegistry{hooks: make(map[common.Address]Hooks)}
}

func (r *hooksRegistry) register(addr common.Address, h Hooks) {
	r.hooks[addr] = h
}

func (r *hooksRegistry) forKey(key types.PoolKey) Hooks {
	if h, ok := r.hooks[key.Hooks]; ok {
		return h
	}
	return NoopHooks{}
}

// NoopHooks is the default Hooks implementation; it never vetoes and never
// adjusts.
type NoopHooks struct{}

func (NoopHooks) BeforeInitialize(types.PoolKey) error { return nil }
func (NoopHooks) AfterInitialize(types.PoolKey) error  { return nil }

func (NoopHooks) BeforeModifyLiquidity(types.PoolKey, []byte) error { return nil }
func (NoopHooks) AfterModifyLiquidity(_ types.PoolKey, delta types.BalanceDelta, _ []byte) (types.BalanceDelta, error) {
	return delta, nil
}

func (NoopHooks) BeforeSwap(types.PoolKey, []byte) error { return nil }
func (NoopHooks) AfterSwap(_ types.PoolKey, delta types.BalanceDelta, _ []byte) (types.BalanceDelta, error) {
	return delta, nil
}
