package tangle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises concurrent Submit calls so that the sequence
// number mixed into each hash is unique. The value is arbitrary but must be
// consistent across all iamd instances sharing a database.
const advisoryLockKey = int64(2_187_081_243)

// PostgresTangle persists transactions to a PostgreSQL database.
// It implements the Client interface.
type PostgresTangle struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresTangle creates a PostgresTangle backed by the given connection pool.
func NewPostgresTangle(pool *pgxpool.Pool, logger *zap.Logger) *PostgresTangle {
	return &PostgresTangle{pool: pool, logger: logger}
}

// Submit implements Submitter.
// It acquires an advisory lock, reads the current sequence, computes the
// transaction hash and inserts the row within a single transaction.
func (p *PostgresTangle) Submit(ctx context.Context, address, payload string) (*Transaction, error) {
	if err := validateSubmit(address, payload); err != nil {
		return nil, err
	}
	payload = normalizePayload(payload)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var seq int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM tangle_transactions").Scan(&seq); err != nil {
		return nil, fmt.Errorf("read sequence: %w", err)
	}

	t := &Transaction{
		Hash:       hashTransaction(address, payload, uint64(seq)),
		Address:    address,
		Payload:    payload,
		AttachedAt: time.Now().UTC(),
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO tangle_transactions (seq, hash, address, payload, attached_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		seq, t.Hash, t.Address, t.Payload, t.AttachedAt,
	); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	p.logger.Debug("transaction attached",
		zap.Int64("seq", seq),
		zap.String("hash", t.Hash),
		zap.String("address", t.Address),
	)
	return t, nil
}

// FindByAddress implements Fetcher. Rows are returned in attach order.
func (p *PostgresTangle) FindByAddress(ctx context.Context, address string) ([]Transaction, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT hash, address, payload, attached_at
		 FROM tangle_transactions WHERE address = $1 ORDER BY seq ASC`, address,
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.Hash, &t.Address, &t.Payload, &t.AttachedAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get returns the transaction with the given hash.
func (p *PostgresTangle) Get(ctx context.Context, hash string) (*Transaction, error) {
	t := &Transaction{}
	err := p.pool.QueryRow(ctx,
		`SELECT hash, address, payload, attached_at
		 FROM tangle_transactions WHERE hash = $1`, hash,
	).Scan(&t.Hash, &t.Address, &t.Payload, &t.AttachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", hash, err)
	}
	return t, nil
}

// Len returns the total number of stored transactions.
func (p *PostgresTangle) Len(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tangle_transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (p *PostgresTangle) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
