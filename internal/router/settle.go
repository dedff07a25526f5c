package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultsim/internal/token"
	"vaultsim/internal/types"
	"vaultsim/internal/vault"
)

// settler resolves a posted BalanceDelta against real token transfers. It is
// shared by the swap router and the liquidity manager: both settle the same
// way once the pool manager has posted its delta.
type settler struct {
	self   common.Address
	vault  *vault.Vault
	tokens *token.Registry
}

// resolve closes out both legs of a delta for the end user: negative legs
// pull tokens user → caller → vault and settle against the measured
// delivery; positive legs take from the vault straight to the user. Any
// failure aborts the enclosing lock session.
func (s *settler) resolve(key types.PoolKey, delta types.BalanceDelta, user common.Address) error {
	if err := s.resolveLeg(key.Currency0, delta.Amount0, user); err != nil {
		return err
	}
	return s.resolveLeg(key.Currency1, delta.Amount1, user)
}

func (s *settler) resolveLeg(currency types.Currency, amount *big.Int, user common.Address) error {
	switch {
	case amount.Sign() < 0:
		return s.pay(currency, new(big.Int).Neg(amount), user)
	case amount.Sign() > 0:
		return s.vault.Take(s.self, currency, user, amount)
	default:
		return nil
	}
}

// pay covers a debt of `owed` in the given currency: pull from the user,
// forward what actually arrived into the vault, and verify the vault
// measured enough to cover the debt.
func (s *settler) pay(currency types.Currency, owed *big.Int, user common.Address) error {
	if err := s.vault.Sync(currency); err != nil {
		return err
	}

	// Pull from the user and forward only what actually arrived; transfer
	// semantics may deliver less than the nominal amount.
	before, err := s.tokens.BalanceOf(currency, s.self)
	if err != nil {
		return err
	}
	if err := s.tokens.Transfer(currency, user, s.self, owed); err != nil {
		return fmt.Errorf("pull from user: %w", err)
	}
	after, err := s.tokens.BalanceOf(currency, s.self)
	if err != nil {
		return err
	}
	received := new(big.Int).Sub(after, before)

	if err := s.tokens.Transfer(currency, s.self, s.vault.Address(), received); err != nil {
		return fmt.Errorf("forward to vault: %w", err)
	}

	paid, err := s.vault.Settle(s.self)
	if err != nil {
		return err
	}
	if paid.Cmp(owed) < 0 {
		return fmt.Errorf("%w: settled %s of %s owed in %s", ErrInsufficientSettlement, paid, owed, currency)
	}
	return nil
}
