package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
)

type PostgresSwapRepo struct {
	db *sqlx.DB
}

func NewPostgresSwapRepo(db *sqlx.DB) *PostgresSwapRepo {
	repo := &PostgresSwapRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

// Create inserts a fresh swap record. A record already at the derived
// address means the (user, offset) pair was used before.
func (r *PostgresSwapRepo) Create(ctx context.Context, st *model.SwapState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO swap_states (address, user_addr, computation_offset, amount, min_output, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, st.Address.Bytes(), st.User.Bytes(), int64(st.ComputationOffset), int64(st.Amount), int64(st.MinOutput), string(st.Status), st.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperrors.New(apperrors.ErrDuplicateOffset, "swap record already exists for offset", err)
	}
	return err
}

func (r *PostgresSwapRepo) Get(ctx context.Context, user model.Address, offset uint64) (*model.SwapState, error) {
	addr := model.DeriveSwapAddress(user, offset)
	var st model.SwapState
	var off, amount, minOutput int64
	var status string
	err := r.db.QueryRowxContext(ctx, `
		SELECT address, user_addr, computation_offset, amount, min_output, status, created_at
		FROM swap_states
		WHERE address = $1
	`, addr.Bytes()).Scan(&st.Address, &st.User, &off, &amount, &minOutput, &status, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("swap record not found")
	}
	if err != nil {
		return nil, err
	}
	st.ComputationOffset = uint64(off)
	st.Amount = uint64(amount)
	st.MinOutput = uint64(minOutput)
	st.Status = model.SwapStatus(status)
	return &st, nil
}

func (r *PostgresSwapRepo) UpdateStatus(ctx context.Context, user model.Address, offset uint64, status model.SwapStatus) error {
	addr := model.DeriveSwapAddress(user, offset)
	result, err := r.db.ExecContext(ctx, `
		UPDATE swap_states SET status = $2 WHERE address = $1
	`, addr.Bytes(), string(status))
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewNotFound("swap record not found")
	}
	return nil
}

// Delete unwinds a record after a failed dispatch. Settled records are never
// deleted; they are the audit trail.
func (r *PostgresSwapRepo) Delete(ctx context.Context, user model.Address, offset uint64) error {
	addr := model.DeriveSwapAddress(user, offset)
	_, err := r.db.ExecContext(ctx, `DELETE FROM swap_states WHERE address = $1`, addr.Bytes())
	return err
}

func (r *PostgresSwapRepo) ListByUser(ctx context.Context, user model.Address, limit int) ([]*model.SwapState, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryxContext(ctx, `
		SELECT address, user_addr, computation_offset, amount, min_output, status, created_at
		FROM swap_states
		WHERE user_addr = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, user.Bytes(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SwapState
	for rows.Next() {
		var st model.SwapState
		var off, amount, minOutput int64
		var status string
		if err := rows.Scan(&st.Address, &st.User, &off, &amount, &minOutput, &status, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.ComputationOffset = uint64(off)
		st.Amount = uint64(amount)
		st.MinOutput = uint64(minOutput)
		st.Status = model.SwapStatus(status)
		out = append(out, &st)
	}
	return out, rows.Err()
}

func (r *PostgresSwapRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS swap_states (
			address BYTEA PRIMARY KEY,
			user_addr BYTEA NOT NULL,
			computation_offset BIGINT NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			min_output BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_swap_states_user ON swap_states (user_addr, created_at DESC)`)
	return nil
}
