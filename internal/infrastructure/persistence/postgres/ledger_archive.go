package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ARCHIVE
// ══════════════════════════════════════════════════════════════════════════════

// LedgerArchive persists point transactions durably. It satisfies the
// service layer's Archiver contract; append failures are retried briefly and
// then surfaced to the caller, which logs and moves on.
type LedgerArchive struct {
	conn    *Connection
	retrier *retry.Retrier
}

// NewLedgerArchive creates the archive on an existing connection.
func NewLedgerArchive(conn *Connection) *LedgerArchive {
	// Inserts are idempotent (conflict on id is a no-op), so every failure
	// is safe to retry.
	return &LedgerArchive{
		conn:    conn,
		retrier: retry.ArchiveRetrier(retry.WithRetryIf(func(error) bool { return true })),
	}
}

// Append stores one transaction. Replays of the same transaction ID are
// ignored so a store-level retry cannot duplicate an audit row.
func (a *LedgerArchive) Append(ctx context.Context, tx points.Transaction) error {
	return a.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := a.conn.Exec(ctx, `
			INSERT INTO points_transactions (id, user_id, amount, reason, awarded_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, tx.ID, tx.UserID, tx.Amount, tx.Reason, tx.Timestamp)
		if err != nil {
			return fmt.Errorf("archive transaction %s: %w", tx.ID, err)
		}
		return nil
	})
}

// ListByUser returns a user's archived transactions, newest first.
func (a *LedgerArchive) ListByUser(ctx context.Context, userID string, limit int) ([]points.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.conn.Query(ctx, `
		SELECT id, user_id, amount, reason, awarded_at
		FROM points_transactions
		WHERE user_id = $1
		ORDER BY awarded_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []points.Transaction
	for rows.Next() {
		var tx points.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Reason, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// TotalForUser sums a user's archived awards. Useful for reconciling the
// derived profile total against the audit trail.
func (a *LedgerArchive) TotalForUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := a.conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM points_transactions
		WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum transactions for %s: %w", userID, err)
	}
	return total, nil
}

// DeleteOlderThan prunes archive rows awarded before the cutoff. Returns how
// many rows were removed. The cleanup job drives this on its daily cadence.
func (a *LedgerArchive) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := a.conn.Exec(ctx, `
		DELETE FROM points_transactions WHERE awarded_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune transactions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
