package signals

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore persists observer subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the signal_subscriptions table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS signal_subscriptions (
			id           VARCHAR(36) PRIMARY KEY,
			url          TEXT NOT NULL,
			secret       VARCHAR(64) NOT NULL,
			types        JSONB NOT NULL,
			active       BOOLEAN DEFAULT TRUE,
			created_at   TIMESTAMPTZ DEFAULT NOW(),
			last_success TIMESTAMPTZ,
			last_error   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_signal_subs_active ON signal_subscriptions(active) WHERE active = TRUE;
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, sub *Subscription) error {
	typesJSON, err := json.Marshal(sub.Types)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO signal_subscriptions (id, url, secret, types, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sub.ID, sub.URL, sub.Secret, typesJSON, sub.Active, sub.CreatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Subscription, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, url, secret, types, active, created_at, last_success, last_error
		FROM signal_subscriptions WHERE id = $1
	`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	return sub, err
}

func (p *PostgresStore) List(ctx context.Context) ([]*Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, url, secret, types, active, created_at, last_success, last_error
		FROM signal_subscriptions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, sub *Subscription) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE signal_subscriptions SET
			active = $1,
			last_success = $2,
			last_error = $3
		WHERE id = $4
	`, sub.Active, sub.LastSuccess, nullIfEmpty(sub.LastError), sub.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM signal_subscriptions WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	sub := &Subscription{}
	var typesJSON []byte
	var lastSuccess sql.NullTime
	var lastError sql.NullString

	err := row.Scan(&sub.ID, &sub.URL, &sub.Secret, &typesJSON,
		&sub.Active, &sub.CreatedAt, &lastSuccess, &lastError)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(typesJSON, &sub.Types); err != nil {
		return nil, err
	}
	if lastSuccess.Valid {
		sub.LastSuccess = &lastSuccess.Time
	}
	sub.LastError = lastError.String
	return sub, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
