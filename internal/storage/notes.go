package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/signalhaus/signalhaus/internal/model"
)

// UpsertMeeting writes a meeting node and its ABOUT edge to the company.
func (db *DB) UpsertMeeting(ctx context.Context, m model.Meeting) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("storage: marshal meeting: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO meetings (id, company_id, occurred_at, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload
	`, m.ID, m.CompanyID, m.OccurredAt, payload, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert meeting %s: %w", m.ID, err)
	}
	return db.UpsertEdge(ctx, m.ID, m.CompanyID, EdgeAbout)
}

// UpsertInsight writes an insight node plus its edges: ABOUT the company and
// GENERATED from the signal, when either is known.
func (db *DB) UpsertInsight(ctx context.Context, in model.Insight) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("storage: marshal insight: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO insights (id, company_id, signal_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload
	`, in.ID, nullable(in.CompanyID), nullable(in.SignalID), in.Kind, payload, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert insight %s: %w", in.ID, err)
	}
	if in.CompanyID != "" {
		if err := db.UpsertEdge(ctx, in.ID, in.CompanyID, EdgeAbout); err != nil {
			return err
		}
	}
	if in.SignalID != "" {
		if err := db.UpsertEdge(ctx, in.SignalID, in.ID, EdgeGenerated); err != nil {
			return err
		}
	}
	return nil
}

// ListInsightsByCompany returns a company's insights, newest first.
func (db *DB) ListInsightsByCompany(ctx context.Context, companyID string) ([]model.Insight, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT payload FROM insights WHERE company_id = $1 ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("storage: list insights: %w", err)
	}
	defer rows.Close()

	var out []model.Insight
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan insight row: %w", err)
		}
		var in model.Insight
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, fmt.Errorf("storage: unmarshal insight row: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
