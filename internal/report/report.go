// Package report derives per-currency conservation reports from a recorded
// event journal. For every currency it accumulates the net posted ledger
// deltas plus everything settled and taken, and checks that the flows cancel
// out.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"vaultsim/internal/journal"
)

// Flow holds the accumulated movements of a single currency.
type Flow struct {
	Currency   string
	NetPosted  *big.Int
	Settled    *big.Int
	Taken      *big.Int
	EventCount uint64
}

func newFlow(currency string) *Flow {
	return &Flow{
		Currency:  currency,
		NetPosted: big.NewInt(0),
		Settled:   big.NewInt(0),
		Taken:     big.NewInt(0),
	}
}

// Residual is the currency's unreconciled ledger amount: the net posted
// deltas plus what was settled in, minus what was taken out. A fully
// reconciled run leaves it at zero.
func (f *Flow) Residual() *big.Int {
	residual := new(big.Int).Add(f.NetPosted, f.Settled)
	return residual.Sub(residual, f.Taken)
}

// Conserved reports whether the currency's flows cancel out.
func (f *Flow) Conserved() bool {
	return f.Residual().Sign() == 0
}

// Report is the conservation summary of one journal.
type Report struct {
	flows     map[string]*Flow
	swapCount uint64

	// events inside an open lock session are buffered and dropped
	// wholesale if the session reverts
	pending   []journal.EventRecord
	inSession bool
}

// Build accumulates a conservation report from journal records. Events from
// reverted lock sessions are excluded: their state changes were rolled back.
func Build(records []journal.EventRecord) (*Report, error) {
	r := &Report{flows: make(map[string]*Flow)}
	for _, record := range records {
		if err := r.addRecord(record); err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", record.Seq, record.Kind, err)
		}
	}
	return r, nil
}

func (r *Report) addRecord(record journal.EventRecord) error {
	switch record.Kind {
	case journal.KindLockOpened:
		r.pending = r.pending[:0]
		r.inSession = true
		return nil
	case journal.KindLockReverted:
		r.pending = r.pending[:0]
		r.inSession = false
		return nil
	case journal.KindLockClosed:
		for _, buffered := range r.pending {
			if err := r.apply(buffered); err != nil {
				return err
			}
		}
		r.pending = r.pending[:0]
		r.inSession = false
		return nil
	}

	if r.inSession {
		r.pending = append(r.pending, record)
		return nil
	}
	return r.apply(record)
}

func (r *Report) apply(record journal.EventRecord) error {
	switch record.Kind {
	case journal.KindDeltaPosted:
		var posted journal.DeltaPostedPayload
		if err := json.Unmarshal(record.Payload, &posted); err != nil {
			return fmt.Errorf("decode delta: %w", err)
		}
		amount0, err := parseBigInt(posted.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseBigInt(posted.Amount1)
		if err != nil {
			return err
		}
		f0 := r.flow(posted.Currency0)
		f0.NetPosted.Add(f0.NetPosted, amount0)
		f0.EventCount++
		f1 := r.flow(posted.Currency1)
		f1.NetPosted.Add(f1.NetPosted, amount1)
		f1.EventCount++
		return nil

	case journal.KindSettled:
		var settled journal.SettledPayload
		if err := json.Unmarshal(record.Payload, &settled); err != nil {
			return fmt.Errorf("decode settle: %w", err)
		}
		paid, err := parseBigInt(settled.Paid)
		if err != nil {
			return err
		}
		f := r.flow(settled.Currency)
		f.Settled.Add(f.Settled, paid)
		f.EventCount++
		return nil

	case journal.KindTaken:
		var taken journal.TakenPayload
		if err := json.Unmarshal(record.Payload, &taken); err != nil {
			return fmt.Errorf("decode take: %w", err)
		}
		amount, err := parseBigInt(taken.Amount)
		if err != nil {
			return err
		}
		f := r.flow(taken.Currency)
		f.Taken.Add(f.Taken, amount)
		f.EventCount++
		return nil

	case journal.KindSwapExecuted:
		r.swapCount++
		return nil

	default:
		return nil
	}
}

// SwapCount returns how many swaps executed in committed sessions.
func (r *Report) SwapCount() uint64 {
	return r.swapCount
}

func (r *Report) flow(currency string) *Flow {
	f, ok := r.flows[currency]
	if !ok {
		f = newFlow(currency)
		r.flows[currency] = f
	}
	return f
}

// Flows returns the per-currency flows sorted by currency.
func (r *Report) Flows() []*Flow {
	out := make([]*Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// Conserved reports whether every currency's flows cancel out.
func (r *Report) Conserved() bool {
	for _, f := range r.flows {
		if !f.Conserved() {
			return false
		}
	}
	return true
}

// FlowStore persists per-currency conservation rows.
type FlowStore interface {
	UpsertCurrencyFlow(ctx context.Context, currency, posted, settled, taken string, conserved bool) error
}

// Persist writes every flow to the store.
func (r *Report) Persist(ctx context.Context, store FlowStore) error {
	for _, f := range r.Flows() {
		err := store.UpsertCurrencyFlow(ctx, f.Currency, f.NetPosted.String(), f.Settled.String(), f.Taken.String(), f.Conserved())
		if err != nil {
			return fmt.Errorf("persist flow %s: %w", f.Currency, err)
		}
	}
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
