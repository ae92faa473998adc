package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/signalhaus/signalhaus/internal/model"
)

// UpsertCompany writes a canonical company record. IDs are deterministic, so
// re-ingesting the same row overwrites in place.
func (db *DB) UpsertCompany(ctx context.Context, c model.Company) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("storage: marshal company: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO companies (id, name, domain, industry, industry_tier, country, city, client_tier, source, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = EXCLUDED.domain,
			industry = EXCLUDED.industry,
			industry_tier = EXCLUDED.industry_tier,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			client_tier = EXCLUDED.client_tier,
			source = EXCLUDED.source,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Name, nullable(c.Domain), nullable(c.Industry), string(c.IndustryTier),
		nullable(c.Country), nullable(c.City), c.ClientTier, c.Source, payload,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert company %s: %w", c.ID, err)
	}
	return nil
}

// GetCompany loads a company by canonical ID.
func (db *DB) GetCompany(ctx context.Context, id string) (model.Company, error) {
	return db.scanCompany(db.pool.QueryRow(ctx,
		`SELECT payload FROM companies WHERE id = $1`, id))
}

// GetCompanyByDomain loads a company by normalized domain.
func (db *DB) GetCompanyByDomain(ctx context.Context, domain string) (model.Company, error) {
	return db.scanCompany(db.pool.QueryRow(ctx,
		`SELECT payload FROM companies WHERE domain = $1 ORDER BY updated_at DESC LIMIT 1`,
		strings.ToLower(domain)))
}

func (db *DB) scanCompany(row pgx.Row) (model.Company, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Company{}, ErrNotFound
		}
		return model.Company{}, fmt.Errorf("storage: scan company: %w", err)
	}
	var c model.Company
	if err := json.Unmarshal(payload, &c); err != nil {
		return model.Company{}, fmt.Errorf("storage: unmarshal company: %w", err)
	}
	return c, nil
}

// ListCompaniesByIndustry returns companies whose industry text matches the
// query, case-insensitively.
func (db *DB) ListCompaniesByIndustry(ctx context.Context, industry string, limit int) ([]model.Company, error) {
	return db.queryCompanies(ctx, `
		SELECT payload FROM companies
		WHERE industry ILIKE '%' || $1 || '%'
		ORDER BY name LIMIT $2`, industry, clampLimit(limit))
}

// ListCompaniesByLocation matches city or country.
func (db *DB) ListCompaniesByLocation(ctx context.Context, location string, limit int) ([]model.Company, error) {
	return db.queryCompanies(ctx, `
		SELECT payload FROM companies
		WHERE city ILIKE '%' || $1 || '%' OR country ILIKE $1
		ORDER BY name LIMIT $2`, location, clampLimit(limit))
}

// SearchCompaniesByName is a substring match over names, for the keyword
// search fallback.
func (db *DB) SearchCompaniesByName(ctx context.Context, q string, limit int) ([]model.Company, error) {
	return db.queryCompanies(ctx, `
		SELECT payload FROM companies
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name LIMIT $2`, q, clampLimit(limit))
}

func (db *DB) queryCompanies(ctx context.Context, sql string, args ...any) ([]model.Company, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query companies: %w", err)
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan company row: %w", err)
		}
		var c model.Company
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("storage: unmarshal company row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountCompanies returns the total number of company nodes.
func (db *DB) CountCompanies(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM companies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count companies: %w", err)
	}
	return n, nil
}

// IndustryCounts aggregates companies per industry for the analytics surface.
func (db *DB) IndustryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT COALESCE(industry, 'unknown'), count(*)
		FROM companies GROUP BY 1 ORDER BY 2 DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: industry counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var industry string
		var n int
		if err := rows.Scan(&industry, &n); err != nil {
			return nil, fmt.Errorf("storage: scan industry count: %w", err)
		}
		out[industry] = n
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
