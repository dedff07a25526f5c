package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// RebasingToken models a token whose balances rescale over time. Balances
// are held as internal shares; the externally visible balance is
// shares * scaleNum / scaleDen. Rebase adjusts the scale for every holder
// at once.
type RebasingToken struct {
	symbol   string
	decimals uint8

	mu       sync.Mutex
	shares   map[common.Address]*big.Int
	scaleNum *big.Int
	scaleDen *big.Int
}

func NewRebasingToken(symbol string, decimals uint8) *RebasingToken {
	return &RebasingToken{
		symbol:   symbol,
		decimals: decimals,
		shares:   make(map[common.Address]*big.Int),
		scaleNum: big.NewInt(1),
		scaleDen: big.NewInt(1),
	}
}

func (t *RebasingToken) Symbol() string  { return t.symbol }
func (t *RebasingToken) Decimals() uint8 { return t.decimals }

// Rebase multiplies every balance by num/den. A 5% positive rebase is
// Rebase(105, 100).
func (t *RebasingToken) Rebase(num, den int64) error {
	if num <= 0 || den <= 0 {
		return fmt.Errorf("%s: invalid rebase factor %d/%d", t.symbol, num, den)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scaleNum.Mul(t.scaleNum, big.NewInt(num))
	t.scaleDen.Mul(t.scaleDen, big.NewInt(den))
	return nil
}

func (t *RebasingToken) BalanceOf(account common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.toBalance(t.sharesLocked(account))
}

func (t *RebasingToken) Mint(to common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shares := t.toShares(amount)
	if existing, ok := t.shares[to]; ok {
		existing.Add(existing, shares)
		return
	}
	t.shares[to] = shares
}

func (t *RebasingToken) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%s: negative transfer amount %s", t.symbol, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	shares := t.toShares(amount)
	fromShares := t.sharesLocked(from)
	if fromShares.Cmp(shares) < 0 {
		return fmt.Errorf("%s: insufficient balance: have %s, need %s", t.symbol, t.toBalance(fromShares), amount)
	}

	fromShares.Sub(fromShares, shares)
	t.shares[from] = fromShares
	if existing, ok := t.shares[to]; ok {
		existing.Add(existing, shares)
	} else {
		t.shares[to] = shares
	}

	return nil
}

func (t *RebasingToken) Snapshot() func() {
	t.mu.Lock()
	savedShares := make(map[common.Address]*big.Int, len(t.shares))
	for account, s := range t.shares {
		savedShares[account] = new(big.Int).Set(s)
	}
	savedNum := new(big.Int).Set(t.scaleNum)
	savedDen := new(big.Int).Set(t.scaleDen)
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		t.shares = savedShares
		t.scaleNum = savedNum
		t.scaleDen = savedDen
		t.mu.Unlock()
	}
}

func (t *RebasingToken) sharesLocked(account common.Address) *big.Int {
	if s, ok := t.shares[account]; ok {
		return s
	}
	return big.NewInt(0)
}

func (t *RebasingToken) toShares(balance *big.Int) *big.Int {
	shares := new(big.Int).Mul(balance, t.scaleDen)
	return shares.Div(shares, t.scaleNum)
}

func (t *RebasingToken) toBalance(shares *big.Int) *big.Int {
	balance := new(big.Int).Mul(shares, t.scaleNum)
	return balance.Div(balance, t.scaleDen)
}
