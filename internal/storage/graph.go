package storage

import (
	"context"
	"fmt"
	"time"
)

// Edge types connecting the graph's node labels.
const (
	EdgeWorksAt     = "WORKS_AT"     // person -> company
	EdgeDetectedFor = "DETECTED_FOR" // signal -> company
	EdgeAbout       = "ABOUT"        // meeting/insight -> company or person
	EdgeGenerated   = "GENERATED"    // signal -> insight
)

// maxNeighborhoodDepth bounds graph traversal.
const maxNeighborhoodDepth = 3

// Neighbor is one node reached during traversal, with the edge that reached
// it and its distance from the origin.
type Neighbor struct {
	ID       string `json:"id"`
	EdgeType string `json:"edge_type"`
	Depth    int    `json:"depth"`
}

// UpsertEdge links two nodes. Edges are identified by (src, dst, type), so
// re-ingestion converges.
func (db *DB) UpsertEdge(ctx context.Context, srcID, dstID, edgeType string) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO edges (src_id, dst_id, edge_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (src_id, dst_id, edge_type) DO NOTHING
	`, srcID, dstID, edgeType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: upsert edge %s-[%s]->%s: %w", srcID, edgeType, dstID, err)
	}
	return nil
}

// Neighborhood walks edges in both directions up to depth hops from the
// origin node and returns each reached node once, at its shortest distance.
func (db *DB) Neighborhood(ctx context.Context, originID string, depth int) ([]Neighbor, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > maxNeighborhoodDepth {
		depth = maxNeighborhoodDepth
	}

	rows, err := db.pool.Query(ctx, `
		WITH RECURSIVE walk(id, edge_type, depth) AS (
			SELECT CASE WHEN src_id = $1 THEN dst_id ELSE src_id END, edge_type, 1
			FROM edges WHERE src_id = $1 OR dst_id = $1
			UNION
			SELECT CASE WHEN e.src_id = w.id THEN e.dst_id ELSE e.src_id END, e.edge_type, w.depth + 1
			FROM edges e JOIN walk w ON (e.src_id = w.id OR e.dst_id = w.id)
			WHERE w.depth < $2
		)
		SELECT id, edge_type, min(depth)
		FROM walk WHERE id <> $1
		GROUP BY id, edge_type
		ORDER BY min(depth), id
	`, originID, depth)
	if err != nil {
		return nil, fmt.Errorf("storage: neighborhood of %s: %w", originID, err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.EdgeType, &n.Depth); err != nil {
			return nil, fmt.Errorf("storage: scan neighbor: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ClearAll wipes every table. Development only; the /clear endpoint is the
// sole caller.
func (db *DB) ClearAll(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		TRUNCATE companies, people, signals, signal_outcome_log, edges,
		         deals, deal_personas, deal_risks, meetings, insights
	`)
	if err != nil {
		return fmt.Errorf("storage: clear all: %w", err)
	}
	db.logger.Warn("all graph tables truncated")
	return nil
}
