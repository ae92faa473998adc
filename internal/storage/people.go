package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/signalhaus/signalhaus/internal/model"
)

// UpsertPerson writes a canonical person record.
func (db *DB) UpsertPerson(ctx context.Context, p model.Person) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("storage: marshal person: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO people (id, company_id, full_name, email, department, title, source, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			department = EXCLUDED.department,
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, p.ID, nullable(p.CompanyID), p.FullName, nullable(p.Email),
		nullable(p.Department), nullable(p.Title), p.Source, payload,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert person %s: %w", p.ID, err)
	}
	return nil
}

// GetPerson loads a person by canonical ID.
func (db *DB) GetPerson(ctx context.Context, id string) (model.Person, error) {
	var payload []byte
	err := db.pool.QueryRow(ctx, `SELECT payload FROM people WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Person{}, ErrNotFound
	}
	if err != nil {
		return model.Person{}, fmt.Errorf("storage: get person: %w", err)
	}
	var p model.Person
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.Person{}, fmt.Errorf("storage: unmarshal person: %w", err)
	}
	return p, nil
}

// ListPeopleByCompany returns a company's contacts.
func (db *DB) ListPeopleByCompany(ctx context.Context, companyID string) ([]model.Person, error) {
	return db.queryPeople(ctx, `
		SELECT payload FROM people WHERE company_id = $1 ORDER BY full_name`, companyID)
}

// SearchPeopleByName is a substring match over full names.
func (db *DB) SearchPeopleByName(ctx context.Context, q string, limit int) ([]model.Person, error) {
	return db.queryPeople(ctx, `
		SELECT payload FROM people
		WHERE full_name ILIKE '%' || $1 || '%'
		ORDER BY full_name LIMIT $2`, q, clampLimit(limit))
}

// ListPeopleByDepartment filters on the normalized department field.
func (db *DB) ListPeopleByDepartment(ctx context.Context, department string, limit int) ([]model.Person, error) {
	return db.queryPeople(ctx, `
		SELECT payload FROM people
		WHERE department ILIKE '%' || $1 || '%'
		ORDER BY full_name LIMIT $2`, department, clampLimit(limit))
}

func (db *DB) queryPeople(ctx context.Context, sql string, args ...any) ([]model.Person, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query people: %w", err)
	}
	defer rows.Close()

	var out []model.Person
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan person row: %w", err)
		}
		var p model.Person
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("storage: unmarshal person row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DepartmentCounts aggregates people per department for the analytics surface.
func (db *DB) DepartmentCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT COALESCE(department, 'unknown'), count(*)
		FROM people GROUP BY 1 ORDER BY 2 DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: department counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var dept string
		var n int
		if err := rows.Scan(&dept, &n); err != nil {
			return nil, fmt.Errorf("storage: scan department count: %w", err)
		}
		out[dept] = n
	}
	return out, rows.Err()
}
