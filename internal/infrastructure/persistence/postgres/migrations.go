package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator applies embedded migrations in order, tracking them in
// schema_migrations.
type Migrator struct {
	conn      *Connection
	tableName string
}

// NewMigrator creates the migrator.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, tableName: "schema_migrations"}
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range migrations() {
		if _, done := applied[mig.Version]; done {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx,
		fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_points_transactions",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS points_transactions (
					id UUID PRIMARY KEY,
					user_id TEXT NOT NULL,
					amount BIGINT NOT NULL CHECK (amount > 0),
					reason TEXT NOT NULL,
					awarded_at TIMESTAMP WITH TIME ZONE NOT NULL,
					archived_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_points_tx_user
					ON points_transactions (user_id, awarded_at DESC);
				CREATE INDEX IF NOT EXISTS idx_points_tx_awarded_at
					ON points_transactions (awarded_at);
			`,
			DownSQL: `DROP TABLE IF EXISTS points_transactions;`,
		},
	}
}
