package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"vaultsim/internal/types"
)

// Token is the minimal fungible-asset surface the settlement core consumes.
// Implementations are free to deliver less than the nominal transfer amount
// (fees, burns) or to rescale balances over time; callers must measure
// actual balance changes rather than trust nominal amounts.
//
// Snapshot returns a restore closure so token state can join an enclosing
// transaction and be rolled back on failure.
type Token interface {
	Symbol() string
	Decimals() uint8
	BalanceOf(account common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	Mint(to common.Address, amount *big.Int)
	Snapshot() func()
}

// Registry resolves currencies to token implementations. The native-asset
// sentinel currency is served by whatever token is registered at the zero
// address.
type Registry struct {
	mu     sync.RWMutex
	tokens map[types.Currency]Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[types.Currency]Token)}
}

// Register binds a currency to a token implementation.
func (r *Registry) Register(currency types.Currency, t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[currency] = t
}

// Get returns the token bound to a currency.
func (r *Registry) Get(currency types.Currency) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[currency]
	if !ok {
		return nil, fmt.Errorf("unknown currency: %s", currency)
	}
	return t, nil
}

// BalanceOf reads an account's balance in the given currency.
func (r *Registry) BalanceOf(currency types.Currency, account common.Address) (*big.Int, error) {
	t, err := r.Get(currency)
	if err != nil {
		return nil, err
	}
	return t.BalanceOf(account), nil
}

// Transfer moves tokens of the given currency between accounts.
func (r *Registry) Transfer(currency types.Currency, from, to common.Address, amount *big.Int) error {
	t, err := r.Get(currency)
	if err != nil {
		return err
	}
	return t.Transfer(from, to, amount)
}

// Snapshot captures every registered token's state and returns a closure
// restoring all of them.
func (r *Registry) Snapshot() func() {
	r.mu.RLock()
	restores := make([]func(), 0, len(r.tokens))
	for _, t := range r.tokens {
		restores = append(restores, t.Snapshot())
	}
	r.mu.RUnlock()

	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}
