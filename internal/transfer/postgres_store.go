package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists transfer requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed request store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transfer_requests table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transfer_requests (
			id             BIGINT PRIMARY KEY,
			sender         VARCHAR(64) NOT NULL,
			amount         BIGINT NOT NULL CHECK (amount >= 0),
			destination    VARCHAR(16) NOT NULL,
			target_address VARCHAR(128) NOT NULL,
			status         VARCHAR(10) NOT NULL CHECK (status IN ('pending', 'approved', 'flagged', 'rejected')),
			risk_score     BIGINT NOT NULL DEFAULT 0 CHECK (risk_score >= 0 AND risk_score <= 100),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transfer_requests_sender
			ON transfer_requests (sender, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_transfer_requests_pending
			ON transfer_requests (created_at) WHERE status = 'pending';
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, req *Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_requests (id, sender, amount, destination, target_address, status, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		int64(req.ID),
		req.Sender,
		int64(req.Amount),
		req.Destination,
		req.TargetAddress,
		string(req.Status),
		int64(req.RiskScore),
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uint64) (*Request, error) {
	req := &Request{}
	var reqID, amount, riskScore int64
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sender, amount, destination, target_address, status, risk_score, created_at
		FROM transfer_requests WHERE id = $1
	`, int64(id)).Scan(&reqID, &req.Sender, &amount, &req.Destination, &req.TargetAddress, &status, &riskScore, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidRequest
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer request: %w", err)
	}
	req.ID = uint64(reqID)
	req.Amount = uint64(amount)
	req.Status = Status(status)
	req.RiskScore = uint64(riskScore)
	return req, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int, before uint64) ([]*Request, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, amount, destination, target_address, status, risk_score, created_at
		FROM transfer_requests
		WHERE ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $1
	`, limit, int64(before))
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Request
	for rows.Next() {
		req := &Request{}
		var reqID, amount, riskScore int64
		var status string
		if err := rows.Scan(&reqID, &req.Sender, &amount, &req.Destination, &req.TargetAddress, &status, &riskScore, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer request: %w", err)
		}
		req.ID = uint64(reqID)
		req.Amount = uint64(amount)
		req.Status = Status(status)
		req.RiskScore = uint64(riskScore)
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetAssessment(ctx context.Context, id uint64, score uint64, status Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_requests
		SET risk_score = $2, status = $3
		WHERE id = $1
	`, int64(id), int64(score), string(status))
	if err != nil {
		return fmt.Errorf("failed to set assessment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidRequest
	}
	return nil
}

func (s *PostgresStore) LastID(ctx context.Context) (uint64, bool, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM transfer_requests`).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read last request id: %w", err)
	}
	if !id.Valid {
		return 0, false, nil
	}
	return uint64(id.Int64), true, nil
}
