package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
//
// Expected schema:
//
//	CREATE TABLE flags (
//	    name        TEXT PRIMARY KEY,
//	    description TEXT NOT NULL DEFAULT '',
//	    enabled     BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const flagColumns = "name, description, enabled, created_at, updated_at"

func scanFlag(row pgx.Row) (*Flag, error) {
	var f Flag
	if err := row.Scan(&f.Name, &f.Description, &f.Enabled, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func collectFlags(rows pgx.Rows) ([]Flag, error) {
	defer rows.Close()
	flags := make([]Flag, 0)
	for rows.Next() {
		var f Flag
		if err := rows.Scan(&f.Name, &f.Description, &f.Enabled, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// ListFlags retrieves all flags from the database.
func (p *PostgresStore) ListFlags(ctx context.Context) ([]Flag, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+flagColumns+" FROM flags ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	return collectFlags(rows)
}

// ListFlagsByStatus retrieves flags filtered by enabled state.
func (p *PostgresStore) ListFlagsByStatus(ctx context.Context, enabled bool) ([]Flag, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+flagColumns+" FROM flags WHERE enabled = $1 ORDER BY name", enabled)
	if err != nil {
		return nil, fmt.Errorf("list flags by status: %w", err)
	}
	return collectFlags(rows)
}

// GetFlag retrieves a single flag by name.
func (p *PostgresStore) GetFlag(ctx context.Context, name string) (*Flag, error) {
	flag, err := scanFlag(p.pool.QueryRow(ctx,
		"SELECT "+flagColumns+" FROM flags WHERE name = $1", name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag %s: %w", name, err)
	}
	return flag, nil
}

// CreateFlag creates a new flag in the database.
func (p *PostgresStore) CreateFlag(ctx context.Context, params UpsertParams) (*Flag, error) {
	flag, err := scanFlag(p.pool.QueryRow(ctx,
		`INSERT INTO flags (name, description, enabled)
		 VALUES ($1, $2, $3)
		 RETURNING `+flagColumns,
		params.Name, params.Description, params.Enabled))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrExists
		}
		return nil, fmt.Errorf("create flag %s: %w", params.Name, err)
	}
	return flag, nil
}

// UpdateFlag updates the enabled state and description of a flag.
func (p *PostgresStore) UpdateFlag(ctx context.Context, params UpsertParams) (*Flag, error) {
	flag, err := scanFlag(p.pool.QueryRow(ctx,
		`UPDATE flags SET description = $2, enabled = $3, updated_at = now()
		 WHERE name = $1
		 RETURNING `+flagColumns,
		params.Name, params.Description, params.Enabled))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update flag %s: %w", params.Name, err)
	}
	return flag, nil
}

// DeleteFlag removes a flag. Idempotent.
func (p *PostgresStore) DeleteFlag(ctx context.Context, name string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM flags WHERE name = $1", name); err != nil {
		return fmt.Errorf("delete flag %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
