package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const bipsDenominator = 10_000

// MockConfig shapes a synthetic token's transfer semantics.
type MockConfig struct {
	Symbol   string
	Decimals uint8

	// TransferFeeBips is skimmed from every transfer and credited to
	// FeeCollector. BurnBips is skimmed and destroyed. Both reduce what the
	// recipient actually receives.
	TransferFeeBips uint32
	BurnBips        uint32
	FeeCollector    common.Address
}

// MockToken is an in-memory fungible token with configurable adversarial
// transfer behavior.
type MockToken struct {
	cfg MockConfig

	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func NewMockToken(cfg MockConfig) *MockToken {
	return &MockToken{
		cfg:      cfg,
		balances: make(map[common.Address]*big.Int),
	}
}

// NewStandardToken builds a mock token with plain transfer semantics.
func NewStandardToken(symbol string, decimals uint8) *MockToken {
	return NewMockToken(MockConfig{Symbol: symbol, Decimals: decimals})
}

func (t *MockToken) Symbol() string  { return t.cfg.Symbol }
func (t *MockToken) Decimals() uint8 { return t.cfg.Decimals }

// BalanceOf returns a copy of the account's balance.
func (t *MockToken) BalanceOf(account common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bal, ok := t.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Mint credits an account out of thin air.
func (t *MockToken) Mint(to common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
}

// Transfer debits `from` by the nominal amount and credits `to` with the
// nominal amount minus any configured fee and burn skims.
func (t *MockToken) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%s: negative transfer amount %s", t.cfg.Symbol, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: insufficient balance: have %s, need %s", t.cfg.Symbol, t.balanceLocked(from), amount)
	}

	fee := skim(amount, t.cfg.TransferFeeBips)
	burn := skim(amount, t.cfg.BurnBips)

	delivered := new(big.Int).Sub(amount, fee)
	delivered.Sub(delivered, burn)

	bal.Sub(bal, amount)
	t.credit(to, delivered)
	if fee.Sign() > 0 {
		t.credit(t.cfg.FeeCollector, fee)
	}

	return nil
}

// Snapshot deep-copies the balance book and returns a closure restoring it.
func (t *MockToken) Snapshot() func() {
	t.mu.Lock()
	saved := make(map[common.Address]*big.Int, len(t.balances))
	for account, bal := range t.balances {
		saved[account] = new(big.Int).Set(bal)
	}
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		t.balances = saved
		t.mu.Unlock()
	}
}

func (t *MockToken) credit(to common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	if bal, ok := t.balances[to]; ok {
		bal.Add(bal, amount)
		return
	}
	t.balances[to] = new(big.Int).Set(amount)
}

func (t *MockToken) balanceLocked(account common.Address) *big.Int {
	if bal, ok := t.balances[account]; ok {
		return bal
	}
	return big.NewInt(0)
}

func skim(amount *big.Int, bips uint32) *big.Int {
	if bips == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bips)))
	return out.Div(out, big.NewInt(bipsDenominator))
}
