package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresStore persists the blocklist and destination table in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed registry store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the registry tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS blocked_addresses (
			address     VARCHAR(64) PRIMARY KEY,
			blocked_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS destinations (
			id              VARCHAR(16) PRIMARY KEY,
			active          BOOLEAN NOT NULL DEFAULT TRUE,
			daily_limit     BIGINT NOT NULL CHECK (daily_limit >= 0),
			consumed_volume BIGINT NOT NULL DEFAULT 0 CHECK (consumed_volume >= 0),
			risk_score      BIGINT NOT NULL DEFAULT 0 CHECK (risk_score >= 0 AND risk_score <= 100),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) Block(ctx context.Context, addr string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_addresses (address) VALUES ($1)
		ON CONFLICT (address) DO NOTHING
	`, strings.ToLower(addr))
	if err != nil {
		return fmt.Errorf("failed to block address: %w", err)
	}
	return nil
}

func (s *PostgresStore) Unblock(ctx context.Context, addr string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM blocked_addresses WHERE address = $1
	`, strings.ToLower(addr))
	if err != nil {
		return fmt.Errorf("failed to unblock address: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsBlocked(ctx context.Context, addr string) (bool, error) {
	var blocked bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM blocked_addresses WHERE address = $1)
	`, strings.ToLower(addr)).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("failed to check blocklist: %w", err)
	}
	return blocked, nil
}

func (s *PostgresStore) PutDestination(ctx context.Context, dest *Destination) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO destinations (id, active, daily_limit, consumed_volume, risk_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			daily_limit = EXCLUDED.daily_limit,
			consumed_volume = EXCLUDED.consumed_volume,
			risk_score = EXCLUDED.risk_score,
			updated_at = NOW()
	`, dest.ID, dest.Active, int64(dest.DailyLimit), int64(dest.ConsumedVolume), int64(dest.RiskScore))
	if err != nil {
		return fmt.Errorf("failed to put destination: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDestination(ctx context.Context, id string) (*Destination, error) {
	dest := &Destination{}
	var dailyLimit, consumed, riskScore int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, active, daily_limit, consumed_volume, risk_score
		FROM destinations WHERE id = $1
	`, id).Scan(&dest.ID, &dest.Active, &dailyLimit, &consumed, &riskScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChainNotSupported
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}
	dest.DailyLimit = uint64(dailyLimit)
	dest.ConsumedVolume = uint64(consumed)
	dest.RiskScore = uint64(riskScore)
	return dest, nil
}

func (s *PostgresStore) ListDestinations(ctx context.Context) ([]*Destination, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, active, daily_limit, consumed_volume, risk_score
		FROM destinations ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Destination
	for rows.Next() {
		dest := &Destination{}
		var dailyLimit, consumed, riskScore int64
		if err := rows.Scan(&dest.ID, &dest.Active, &dailyLimit, &consumed, &riskScore); err != nil {
			return nil, fmt.Errorf("failed to scan destination: %w", err)
		}
		dest.DailyLimit = uint64(dailyLimit)
		dest.ConsumedVolume = uint64(consumed)
		dest.RiskScore = uint64(riskScore)
		out = append(out, dest)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddVolume(ctx context.Context, id string, amount uint64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE destinations
		SET consumed_volume = consumed_volume + $2, updated_at = NOW()
		WHERE id = $1
	`, id, int64(amount))
	if err != nil {
		return fmt.Errorf("failed to add volume: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChainNotSupported
	}
	return nil
}

func (s *PostgresStore) ResetVolume(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE destinations
		SET consumed_volume = 0, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to reset volume: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChainNotSupported
	}
	return nil
}
