package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/whisprlabs/whisprgate/internal/model"
)

type PostgresEventRepo struct {
	db *sqlx.DB
}

func NewPostgresEventRepo(db *sqlx.DB) *PostgresEventRepo {
	repo := &PostgresEventRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

// Insert appends one journal entry. ON CONFLICT DO NOTHING keeps the journal
// write-once under redelivery.
func (r *PostgresEventRepo) Insert(ctx context.Context, rec *model.EventRecord) error {
	if rec == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO swap_events (id, event_type, user_addr, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, string(rec.Type), rec.User.Bytes(), rec.Payload, rec.CreatedAt)
	return err
}

func (r *PostgresEventRepo) List(ctx context.Context, user model.Address, limit int) ([]*model.EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, event_type, user_addr, payload, created_at FROM swap_events`
	args := []interface{}{}
	if !user.IsZero() {
		query += ` WHERE user_addr = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, user.Bytes(), limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.EventRecord
	for rows.Next() {
		var rec model.EventRecord
		var eventType string
		if err := rows.Scan(&rec.ID, &eventType, &rec.User, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Type = model.EventType(eventType)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *PostgresEventRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS swap_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			user_addr BYTEA NOT NULL,
			payload BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_swap_events_user ON swap_events (user_addr, created_at DESC)`)
	return nil
}
