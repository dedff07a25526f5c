// Package vault implements the settlement ledger at the center of the
// lock → operate → settle protocol. The vault owns the per-(account,
// currency) delta ledger exclusively; pool managers and callers mutate it
// only through the vault's API during an active lock session.
//
// There is no ambient caller identity off-chain, so every operation takes
// the acting address as its first argument.
package vault

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultsim/internal/journal"
	"vaultsim/internal/token"
	"vaultsim/internal/types"
)

// LockCallback is implemented by callers of Lock. The payload passes through
// the vault opaquely and the result is returned to the locker verbatim.
type LockCallback interface {
	LockAcquired(payload interface{}) (interface{}, error)
}

// CallbackFunc adapts a plain function to the LockCallback interface.
type CallbackFunc func(payload interface{}) (interface{}, error)

func (f CallbackFunc) LockAcquired(payload interface{}) (interface{}, error) {
	return f(payload)
}

// Snapshotter is transactional state that joins the lock session: snapshots
// are taken at lock entry and restored if the callback fails.
type Snapshotter interface {
	Snapshot() func()
}

// Config holds the vault's fixed collaborators.
type Config struct {
	Address common.Address
	Owner   common.Address
	Tokens  *token.Registry
	Journal *journal.Journal
	Logger  *zap.Logger
}

// Vault is the central settlement ledger.
type Vault struct {
	addr    common.Address
	owner   common.Address
	tokens  *token.Registry
	journal *journal.Journal
	logger  *zap.Logger

	mu           sync.Mutex
	apps         map[common.Address]struct{}
	ledger       map[common.Address]map[types.Currency]*big.Int
	snapshotters []Snapshotter
	session      *session
}

// session is the ephemeral state of one lock. The sync slot holds the
// balance checkpoint for the in-flight settle, one currency at a time.
type session struct {
	locker         common.Address
	syncedCurrency types.Currency
	syncedBalance  *big.Int
	synced         bool
}

func New(cfg Config) *Vault {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		addr:    cfg.Address,
		owner:   cfg.Owner,
		tokens:  cfg.Tokens,
		journal: cfg.Journal,
		logger:  logger,
		apps:    make(map[common.Address]struct{}),
		ledger:  make(map[common.Address]map[types.Currency]*big.Int),
	}
}

// Address returns the vault's own account address, the holder of all
// deposited tokens.
func (v *Vault) Address() common.Address {
	return v.addr
}

// AddSnapshotter registers transactional state to roll back with the vault
// when a lock session fails.
func (v *Vault) AddSnapshotter(s Snapshotter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshotters = append(v.snapshotters, s)
}

// RegisterApp allow-lists a pool manager address. Owner-only, idempotent.
func (v *Vault) RegisterApp(caller, app common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return ErrNotOwner
	}
	if _, ok := v.apps[app]; ok {
		return nil
	}
	v.apps[app] = struct{}{}
	v.emit(journal.KindAppRegistered, journal.AppRegisteredPayload{App: app.Hex()})
	return nil
}

// Lock opens a settlement session for the caller and invokes its callback.
// Reentrant calls fail with ErrLockAlreadyActive. If the callback returns an
// error, every snapshot taken at entry is restored so the session leaves no
// partial effects, and the error is propagated.
func (v *Vault) Lock(locker common.Address, callback LockCallback, payload interface{}) (interface{}, error) {
	v.mu.Lock()
	if v.session != nil {
		v.mu.Unlock()
		return nil, ErrLockAlreadyActive
	}
	v.session = &session{locker: locker}
	restore := v.snapshotLocked()
	v.mu.Unlock()

	v.emit(journal.KindLockOpened, journal.LockPayload{Locker: locker.Hex()})
	v.logger.Debug("lock opened", zap.String("locker", locker.Hex()))

	result, err := callback.LockAcquired(payload)

	v.mu.Lock()
	v.session = nil
	if err != nil {
		restore()
	}
	v.mu.Unlock()

	if err != nil {
		v.emit(journal.KindLockReverted, journal.LockPayload{Locker: locker.Hex(), Reason: err.Error()})
		v.logger.Debug("lock reverted", zap.String("locker", locker.Hex()), zap.Error(err))
		return nil, fmt.Errorf("lock callback: %w", err)
	}

	v.emit(journal.KindLockClosed, journal.LockPayload{Locker: locker.Hex()})
	v.logger.Debug("lock closed", zap.String("locker", locker.Hex()))
	return result, nil
}

// Locker returns the address that opened the active session.
func (v *Vault) Locker() (common.Address, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return common.Address{}, false
	}
	return v.session.locker, true
}

// AccountAppBalanceDelta accumulates a balance delta into the account's
// ledger entries for the pool's two currencies. Only registered apps may
// post, and only during an active session. Accumulation fails closed on
// 128-bit overflow.
func (v *Vault) AccountAppBalanceDelta(app common.Address, currency0, currency1 types.Currency, delta types.BalanceDelta, account common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrNoActiveLock
	}
	if _, ok := v.apps[app]; !ok {
		return fmt.Errorf("%w: %s", ErrAppNotRegistered, app.Hex())
	}

	if err := v.addLocked(account, currency0, delta.Amount0); err != nil {
		return err
	}
	if err := v.addLocked(account, currency1, delta.Amount1); err != nil {
		return err
	}

	v.emit(journal.KindDeltaPosted, journal.DeltaPostedPayload{
		App:       app.Hex(),
		Account:   account.Hex(),
		Currency0: currency0.String(),
		Currency1: currency1.String(),
		Amount0:   delta.Amount0.String(),
		Amount1:   delta.Amount1.String(),
	})
	return nil
}

// Sync checkpoints the vault's real balance of a currency ahead of a
// deposit. The following Settle measures delivery against this checkpoint.
func (v *Vault) Sync(currency types.Currency) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrNoActiveLock
	}

	balance, err := v.tokens.BalanceOf(currency, v.addr)
	if err != nil {
		return fmt.Errorf("sync %s: %w", currency, err)
	}

	v.session.syncedCurrency = currency
	v.session.syncedBalance = balance
	v.session.synced = true

	v.emit(journal.KindSynced, journal.SyncedPayload{
		Currency: currency.String(),
		Balance:  balance.String(),
	})
	return nil
}

// Settle measures how much of the last-synced currency actually arrived
// since Sync and credits the caller's ledger entry by that amount. The
// measured amount is returned; with fee-on-transfer tokens it is less than
// the nominal transfer. Calling Settle without a prior Sync in the session
// fails with ErrNotSynced.
func (v *Vault) Settle(caller common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return nil, ErrNoActiveLock
	}
	if !v.session.synced {
		return nil, ErrNotSynced
	}

	currency := v.session.syncedCurrency
	current, err := v.tokens.BalanceOf(currency, v.addr)
	if err != nil {
		return nil, fmt.Errorf("settle %s: %w", currency, err)
	}

	paid := new(big.Int).Sub(current, v.session.syncedBalance)
	if paid.Sign() < 0 {
		return nil, fmt.Errorf("settle %s: vault balance decreased since sync", currency)
	}

	if err := v.addLocked(caller, currency, paid); err != nil {
		return nil, err
	}

	v.session.synced = false
	v.session.syncedBalance = nil

	v.emit(journal.KindSettled, journal.SettledPayload{
		Account:  caller.Hex(),
		Currency: currency.String(),
		Paid:     paid.String(),
	})
	return paid, nil
}

// Take debits the caller's credit and transfers real tokens out of the
// vault to the recipient. The caller's ledger entry must cover the amount.
func (v *Vault) Take(caller common.Address, currency types.Currency, recipient common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("take: negative amount %s", amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrNoActiveLock
	}

	credit := v.deltaLocked(caller, currency)
	if credit.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s of %s", ErrInsufficientCredit, credit, amount, currency)
	}

	if err := v.addLocked(caller, currency, new(big.Int).Neg(amount)); err != nil {
		return err
	}
	if err := v.tokens.Transfer(currency, v.addr, recipient, amount); err != nil {
		return fmt.Errorf("take transfer: %w", err)
	}

	v.emit(journal.KindTaken, journal.TakenPayload{
		Account:   caller.Hex(),
		Currency:  currency.String(),
		Recipient: recipient.Hex(),
		Amount:    amount.String(),
	})
	return nil
}

// Delta returns the outstanding ledger entry for (account, currency).
func (v *Vault) Delta(account common.Address, currency types.Currency) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.deltaLocked(account, currency))
}

func (v *Vault) deltaLocked(account common.Address, currency types.Currency) *big.Int {
	entries, ok := v.ledger[account]
	if !ok {
		return big.NewInt(0)
	}
	if entry, ok := entries[currency]; ok {
		return entry
	}
	return big.NewInt(0)
}

func (v *Vault) addLocked(account common.Address, currency types.Currency, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	entries, ok := v.ledger[account]
	if !ok {
		entries = make(map[types.Currency]*big.Int)
		v.ledger[account] = entries
	}
	current, ok := entries[currency]
	if !ok {
		current = big.NewInt(0)
	}
	sum, err := types.CheckedAdd(current, amount)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeltaOverflow, err)
	}
	entries[currency] = sum
	return nil
}

// snapshotLocked captures the ledger plus every registered snapshotter and
// returns a closure restoring all of them. Callers hold v.mu.
func (v *Vault) snapshotLocked() func() {
	savedLedger := make(map[common.Address]map[types.Currency]*big.Int, len(v.ledger))
	for account, entries := range v.ledger {
		savedEntries := make(map[types.Currency]*big.Int, len(entries))
		for currency, amount := range entries {
			savedEntries[currency] = new(big.Int).Set(amount)
		}
		savedLedger[account] = savedEntries
	}

	restores := make([]func(), 0, len(v.snapshotters))
	for _, s := range v.snapshotters {
		restores = append(restores, s.Snapshot())
	}

	return func() {
		v.ledger = savedLedger
		for _, restore := range restores {
			restore()
		}
	}
}

func (v *Vault) emit(kind journal.Kind, payload interface{}) {
	if v.journal != nil {
		v.journal.Emit(kind, payload)
	}
}
