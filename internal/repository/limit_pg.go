package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
)

type PostgresLimitRepo struct {
	db *sqlx.DB
}

func NewPostgresLimitRepo(db *sqlx.DB) *PostgresLimitRepo {
	repo := &PostgresLimitRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

// Upsert creates the owner's config or overwrites its ciphertext. The owner
// column is written only on insert.
func (r *PostgresLimitRepo) Upsert(ctx context.Context, cfg *model.LimitConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO limit_configs (address, owner, limit_ciphertext, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE
		SET limit_ciphertext = EXCLUDED.limit_ciphertext,
		    updated_at = EXCLUDED.updated_at
	`, cfg.Address.Bytes(), cfg.Owner.Bytes(), cfg.Limit.Bytes(), cfg.UpdatedAt)
	return err
}

func (r *PostgresLimitRepo) GetByOwner(ctx context.Context, owner model.Address) (*model.LimitConfig, error) {
	addr := model.DeriveLimitAddress(owner)
	var cfg model.LimitConfig
	err := r.db.QueryRowxContext(ctx, `
		SELECT address, owner, limit_ciphertext, updated_at
		FROM limit_configs
		WHERE address = $1
	`, addr.Bytes()).Scan(&cfg.Address, &cfg.Owner, &cfg.Limit, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrMissingLimitConfig, "no limit config stored for owner", nil)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *PostgresLimitRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS limit_configs (
			address BYTEA PRIMARY KEY,
			owner BYTEA NOT NULL,
			limit_ciphertext BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}
