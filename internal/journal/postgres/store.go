package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultsim/internal/journal"
)

// Store provides Postgres persistence for journal events and conservation
// reports.
type Store struct {
	pool *pgxpool.Pool
	run  string
}

// NewStore connects to Postgres. The run label partitions events from
// different simulator invocations.
func NewStore(ctx context.Context, dsn, run string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if run == "" {
		return nil, fmt.Errorf("run label is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, run: run}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEvents inserts a batch of journal events.
func (s *Store) PutEvents(events []journal.Event) error {
	return s.PutEventsContext(context.Background(), events)
}

// PutEventsContext inserts a batch of journal events with a caller context.
func (s *Store) PutEventsContext(ctx context.Context, events []journal.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		batch.Queue(`
			INSERT INTO settlement_events (run, seq, kind, at, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (run, seq) DO NOTHING
		`,
			s.run,
			int64(event.Seq),
			string(event.Kind),
			event.At,
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertCurrencyFlow stores a per-currency conservation report row.
func (s *Store) UpsertCurrencyFlow(ctx context.Context, currency, posted, settled, taken string, conserved bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO currency_flows (run, currency, net_posted, total_settled, total_taken, conserved, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (run, currency) DO UPDATE SET
			net_posted = EXCLUDED.net_posted,
			total_settled = EXCLUDED.total_settled,
			total_taken = EXCLUDED.total_taken,
			conserved = EXCLUDED.conserved,
			updated_at = now()
	`, s.run, currency, posted, settled, taken, conserved)
	return err
}
