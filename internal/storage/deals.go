package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/signalhaus/signalhaus/internal/deal"
	"github.com/signalhaus/signalhaus/internal/model"
)

// The methods below implement deal.Store. Lookups that miss return
// deal.ErrNotFound so the deal service can map them to 404 semantics.

func (db *DB) CreateDeal(ctx context.Context, d model.DealIntent) error {
	return db.writeDeal(ctx, d)
}

func (db *DB) UpdateDeal(ctx context.Context, d model.DealIntent) error {
	return db.writeDeal(ctx, d)
}

func (db *DB) writeDeal(ctx context.Context, d model.DealIntent) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("storage: marshal deal: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO deals (id, company_id, stage, commit_ready, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			stage = EXCLUDED.stage,
			commit_ready = EXCLUDED.commit_ready,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, d.ID, nullable(d.CompanyID), string(d.Stage), d.CommitReady, payload,
		d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: write deal %s: %w", d.ID, err)
	}
	return nil
}

func (db *DB) GetDeal(ctx context.Context, id string) (model.DealIntent, error) {
	var payload []byte
	err := db.pool.QueryRow(ctx, `SELECT payload FROM deals WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DealIntent{}, deal.ErrNotFound
	}
	if err != nil {
		return model.DealIntent{}, fmt.Errorf("storage: get deal: %w", err)
	}
	var d model.DealIntent
	if err := json.Unmarshal(payload, &d); err != nil {
		return model.DealIntent{}, fmt.Errorf("storage: unmarshal deal: %w", err)
	}
	return d, nil
}

func (db *DB) UpsertPersona(ctx context.Context, p model.BuyerPersona) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("storage: marshal persona: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO deal_personas (id, deal_id, persona_type, engagement_level, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			persona_type = EXCLUDED.persona_type,
			engagement_level = EXCLUDED.engagement_level,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.DealID, string(p.Type), string(p.Engagement), payload,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert persona %s: %w", p.ID, err)
	}
	return nil
}

func (db *DB) GetPersona(ctx context.Context, id string) (model.BuyerPersona, error) {
	var payload []byte
	err := db.pool.QueryRow(ctx, `SELECT payload FROM deal_personas WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BuyerPersona{}, deal.ErrNotFound
	}
	if err != nil {
		return model.BuyerPersona{}, fmt.Errorf("storage: get persona: %w", err)
	}
	var p model.BuyerPersona
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.BuyerPersona{}, fmt.Errorf("storage: unmarshal persona: %w", err)
	}
	return p, nil
}

func (db *DB) ListPersonas(ctx context.Context, dealID string) ([]model.BuyerPersona, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT payload FROM deal_personas WHERE deal_id = $1 ORDER BY created_at`, dealID)
	if err != nil {
		return nil, fmt.Errorf("storage: list personas: %w", err)
	}
	defer rows.Close()

	var out []model.BuyerPersona
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan persona row: %w", err)
		}
		var p model.BuyerPersona
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("storage: unmarshal persona row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) UpsertRisk(ctx context.Context, r model.DealRisk) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("storage: marshal risk: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO deal_risks (id, deal_id, category, severity, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			severity = EXCLUDED.severity,
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, r.ID, r.DealID, string(r.Category), string(r.Severity), string(r.Status),
		payload, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert risk %s: %w", r.ID, err)
	}
	return nil
}

func (db *DB) ListRisks(ctx context.Context, dealID string) ([]model.DealRisk, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT payload FROM deal_risks WHERE deal_id = $1 ORDER BY created_at`, dealID)
	if err != nil {
		return nil, fmt.Errorf("storage: list risks: %w", err)
	}
	defer rows.Close()

	var out []model.DealRisk
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan risk row: %w", err)
		}
		var r model.DealRisk
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("storage: unmarshal risk row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
