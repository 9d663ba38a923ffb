package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/workflowverify/internal/validator"
)

// ResultRecord is one persisted verification outcome, keyed by run id.
// Grounded on the teacher's models.Run / RunRepository shape
// (common/models, common/repository/run.go), adapted from a single
// workflow-run row to a verification-run row.
type ResultRecord struct {
	RunID      uuid.UUID
	NetID      string
	Status     validator.Status
	Result     validator.Result
	SubmittedAt time.Time
}

// ResultRepository persists and retrieves validator results.
type ResultRepository struct {
	db *DB
}

// NewResultRepository constructs a repository over an open DB.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// encodeResult marshals a validator.Result for storage in the result column.
func encodeResult(result validator.Result) ([]byte, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal result: %w", err)
	}
	return payload, nil
}

// decodeResult unmarshals a result column payload back into a
// validator.Result. Split out from the row-scanning callers so the
// marshal/unmarshal round trip is testable without a live database.
func decodeResult(payload []byte) (validator.Result, error) {
	var result validator.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return validator.Result{}, fmt.Errorf("postgres: unmarshal result: %w", err)
	}
	return result, nil
}

// Create inserts a new verification result row.
func (r *ResultRepository) Create(ctx context.Context, rec ResultRecord) error {
	payload, err := encodeResult(rec.Result)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO verification_result (run_id, net_id, status, result, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Exec(ctx, query, rec.RunID, rec.NetID, rec.Status, payload, rec.SubmittedAt); err != nil {
		return fmt.Errorf("postgres: create verification result: %w", err)
	}
	return nil
}

// GetByRunID retrieves a result by its run id.
func (r *ResultRepository) GetByRunID(ctx context.Context, runID uuid.UUID) (*ResultRecord, error) {
	const query = `
		SELECT run_id, net_id, status, result, submitted_at
		FROM verification_result
		WHERE run_id = $1
	`
	var (
		rec     ResultRecord
		payload []byte
	)
	err := r.db.QueryRow(ctx, query, runID).Scan(&rec.RunID, &rec.NetID, &rec.Status, &payload, &rec.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: get verification result: %w", err)
	}
	rec.Result, err = decodeResult(payload)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByNetID lists the most recent results for a net, newest first.
func (r *ResultRepository) ListByNetID(ctx context.Context, netID string, limit int) ([]*ResultRecord, error) {
	const query = `
		SELECT run_id, net_id, status, result, submitted_at
		FROM verification_result
		WHERE net_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, netID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list verification results: %w", err)
	}
	defer rows.Close()

	var out []*ResultRecord
	for rows.Next() {
		var (
			rec     ResultRecord
			payload []byte
		)
		if err := rows.Scan(&rec.RunID, &rec.NetID, &rec.Status, &payload, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan verification result: %w", err)
		}
		var err error
		rec.Result, err = decodeResult(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate verification results: %w", err)
	}
	return out, nil
}
