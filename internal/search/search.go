// Package search owns the vector side of the system: the qdrant index over
// the signal collections and the semantic query surface with its keyword
// fallback.
package search

import (
	"context"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/rag"
	"github.com/signalhaus/signalhaus/internal/storage"
)

// Point is one signal ready for indexing: the payload plus its embedding.
// For outcome points the signal carries a non-nil Outcome.
type Point struct {
	Signal    model.Signal
	Embedding []float32
}

// Index is the vector store surface the ingest pipeline and the query
// service depend on. QdrantIndex is the production implementation.
// Implementations must be safe for concurrent use.
type Index interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Query(ctx context.Context, collection string, embedding []float32, filter rag.Filter, limit int) ([]rag.Context, error)
	// FetchVector returns the stored embedding for a signal, or nil when the
	// point does not exist in the collection.
	FetchVector(ctx context.Context, collection, signalID string) ([]float32, error)
	DeleteCollections(ctx context.Context) error
	Healthy(ctx context.Context) error
}

// Hit is one search result resolved back to an entity. Kind is company,
// person, or signal; for company and person hits the ID names that entity
// and SignalID names the signal that surfaced it, when one did.
type Hit struct {
	Kind       string           `json:"kind"`
	ID         string           `json:"id"`
	Name       string           `json:"name,omitempty"`
	SignalID   string           `json:"signal_id,omitempty"`
	SignalType model.SignalType `json:"signal_type,omitempty"`
	Title      string           `json:"title,omitempty"`
	Score      float64          `json:"score"`
}

// HybridHit pairs a hit with the graph context around it.
type HybridHit struct {
	Hit       Hit                `json:"hit"`
	Neighbors []storage.Neighbor `json:"neighbors,omitempty"`
}
