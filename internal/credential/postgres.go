package credential

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Store backed by the client_credentials table.
func NewPostgres(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (r *postgresStore) Load(ctx context.Context, name string) (string, error) {
	const q = `
SELECT value
FROM client_credentials
WHERE name = $1
`
	var value string
	if err := r.pool.QueryRow(ctx, q, name).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *postgresStore) Save(ctx context.Context, name, value string) error {
	const q = `
INSERT INTO client_credentials (name, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.pool.Exec(ctx, q, name, value)
	return err
}

func (r *postgresStore) Delete(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM client_credentials WHERE name = $1`, name)
	return err
}
