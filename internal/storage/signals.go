package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/signalhaus/signalhaus/internal/model"
)

// UpsertSignal writes a signal node. Signal IDs are deterministic over
// (company, type, source URL, source date), so re-detection overwrites.
func (db *DB) UpsertSignal(ctx context.Context, s model.Signal) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("storage: marshal signal: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO signals (id, company_id, signal_type, priority, status, confidence, deal_potential, detected_at, expires_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			signal_type = EXCLUDED.signal_type,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			deal_potential = EXCLUDED.deal_potential,
			expires_at = EXCLUDED.expires_at,
			payload = EXCLUDED.payload
	`, s.ID, s.CompanyID, string(s.Type), string(s.Priority), string(s.Status),
		s.Confidence, s.DealPotential, s.DetectedAt, s.ExpiresAt, payload)
	if err != nil {
		return fmt.Errorf("storage: upsert signal %s: %w", s.ID, err)
	}
	return nil
}

// GetSignal loads a signal by ID.
func (db *DB) GetSignal(ctx context.Context, id string) (model.Signal, error) {
	var payload []byte
	err := db.pool.QueryRow(ctx, `SELECT payload FROM signals WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Signal{}, ErrNotFound
	}
	if err != nil {
		return model.Signal{}, fmt.Errorf("storage: get signal: %w", err)
	}
	var s model.Signal
	if err := json.Unmarshal(payload, &s); err != nil {
		return model.Signal{}, fmt.Errorf("storage: unmarshal signal: %w", err)
	}
	return s, nil
}

// ListSignalsByCompany returns a company's signals, newest first.
func (db *DB) ListSignalsByCompany(ctx context.Context, companyID string) ([]model.Signal, error) {
	return db.querySignals(ctx, `
		SELECT payload FROM signals WHERE company_id = $1 ORDER BY detected_at DESC`, companyID)
}

// ListOpenSignals returns signals that are neither terminal nor expired at
// the given instant.
func (db *DB) ListOpenSignals(ctx context.Context, now time.Time, limit int) ([]model.Signal, error) {
	return db.querySignals(ctx, `
		SELECT payload FROM signals
		WHERE status IN ('new', 'viewed') AND expires_at > $1
		ORDER BY confidence DESC LIMIT $2`, now, clampLimit(limit))
}

func (db *DB) querySignals(ctx context.Context, sql string, args ...any) ([]model.Signal, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan signal row: %w", err)
		}
		var s model.Signal
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("storage: unmarshal signal row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSignalStatus moves a signal along its lifecycle. Transitions only
// move forward; anything else is rejected.
func (db *DB) UpdateSignalStatus(ctx context.Context, id string, next model.SignalStatus) (model.Signal, error) {
	s, err := db.GetSignal(ctx, id)
	if err != nil {
		return model.Signal{}, err
	}
	if !s.Status.CanTransition(next) {
		return model.Signal{}, model.NewValidationError("storage", "status",
			fmt.Sprintf("cannot transition %s -> %s", s.Status, next))
	}
	s.Status = next
	if err := db.UpsertSignal(ctx, s); err != nil {
		return model.Signal{}, err
	}
	return s, nil
}

// RecordOutcome marks a signal actioned and appends an immutable outcome row.
// A signal gets at most one outcome; the read and both writes run in one
// transaction, retried on serialization conflicts.
func (db *DB) RecordOutcome(ctx context.Context, signalID string, outcome model.Outcome) (model.Signal, error) {
	var s model.Signal
	err := WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		var err error
		s, err = db.recordOutcomeTx(ctx, signalID, outcome)
		return err
	})
	return s, err
}

func (db *DB) recordOutcomeTx(ctx context.Context, signalID string, outcome model.Outcome) (model.Signal, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Signal{}, fmt.Errorf("storage: begin outcome tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var payload []byte
	err = tx.QueryRow(ctx, `SELECT payload FROM signals WHERE id = $1 FOR UPDATE`, signalID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Signal{}, ErrNotFound
	}
	if err != nil {
		return model.Signal{}, fmt.Errorf("storage: lock signal: %w", err)
	}
	var s model.Signal
	if err := json.Unmarshal(payload, &s); err != nil {
		return model.Signal{}, fmt.Errorf("storage: unmarshal signal: %w", err)
	}
	if s.Outcome != nil {
		return model.Signal{}, model.NewValidationError("storage", "outcome", "outcome already recorded")
	}

	s.Outcome = &outcome
	if s.Status.CanTransition(model.StatusActioned) {
		s.Status = model.StatusActioned
	}
	updated, err := json.Marshal(s)
	if err != nil {
		return model.Signal{}, fmt.Errorf("storage: marshal signal: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE signals SET status = $2, payload = $3 WHERE id = $1
	`, s.ID, string(s.Status), updated); err != nil {
		return model.Signal{}, fmt.Errorf("storage: update signal outcome: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO signal_outcome_log (signal_id, signal_type, result, recorded_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, string(s.Type), string(outcome.Result), outcome.RecordedAt, updated); err != nil {
		return model.Signal{}, fmt.Errorf("storage: append outcome: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Signal{}, fmt.Errorf("storage: commit outcome: %w", err)
	}
	return s, nil
}

// OutcomeHistory computes the per-type success rate over recorded outcomes,
// feeding the historical-accuracy scoring factor.
func (db *DB) OutcomeHistory(ctx context.Context) (map[model.SignalType]float64, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT signal_type,
		       count(*) FILTER (WHERE result = 'deal_won')::float / count(*)
		FROM signal_outcome_log GROUP BY signal_type`)
	if err != nil {
		return nil, fmt.Errorf("storage: outcome history: %w", err)
	}
	defer rows.Close()

	out := make(map[model.SignalType]float64)
	for rows.Next() {
		var t string
		var rate float64
		if err := rows.Scan(&t, &rate); err != nil {
			return nil, fmt.Errorf("storage: scan outcome history: %w", err)
		}
		out[model.SignalType(t)] = rate
	}
	return out, rows.Err()
}

// CountSignals returns the total number of signal nodes.
func (db *DB) CountSignals(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM signals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count signals: %w", err)
	}
	return n, nil
}
