// Package rag is the learning loop: it embeds signals, retrieves similar past
// signals together with their recorded outcomes, and turns those outcomes into
// bounded confidence and deal-potential adjustments.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/signalhaus/signalhaus/internal/model"
)

// Vector collection names. Signals are indexed at creation; outcomes are
// copied into their own collection when recorded and never touched again.
const (
	CollectionSignals  = "signals"
	CollectionOutcomes = "signal_outcomes"
)

// DefaultK is the retrieval depth when the caller does not set one.
const DefaultK = 8

// boostLimit bounds each adjustment; history can nudge a score, not decide it.
const boostLimit = 15

// maxEvidenceQuotes caps how many quotes go into the embedding text.
const maxEvidenceQuotes = 3

// Embedder produces a dense vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a cosine similarity query against one vector collection.
type Searcher interface {
	Query(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]Context, error)
}

// Filter narrows retrieval to a signal type, a category, or both.
type Filter struct {
	SignalType model.SignalType
	Category   model.Category
}

// Context is one retrieved historical signal with its similarity and, when it
// came from the outcomes collection, its recorded result.
type Context struct {
	SignalID    string               `json:"signal_id"`
	CompanyName string               `json:"company_name,omitempty"`
	SignalType  model.SignalType     `json:"signal_type"`
	Title       string               `json:"title"`
	Similarity  float64              `json:"similarity"`
	Outcome     *model.OutcomeResult `json:"outcome,omitempty"`
}

// Boost is the pair of score adjustments derived from retrieved outcomes.
type Boost struct {
	Confidence    float64 `json:"confidence"`
	DealPotential float64 `json:"deal_potential"`
}

// Loop wires an embedder and a searcher into the retrieval pipeline.
type Loop struct {
	embed  Embedder
	search Searcher
	log    *slog.Logger
	k      int
}

func New(embed Embedder, search Searcher, log *slog.Logger) *Loop {
	return &Loop{embed: embed, search: search, log: log, k: DefaultK}
}

// WithK overrides the retrieval depth.
func (l *Loop) WithK(k int) *Loop {
	if k > 0 {
		l.k = k
	}
	return l
}

// EmbedText builds the canonical embedding input for a signal.
func EmbedText(sig model.Signal) string {
	parts := []string{sig.CompanyName, sig.Title, sig.Summary, string(sig.Type)}
	for _, c := range sig.Categories {
		parts = append(parts, string(c))
	}
	parts = append(parts, sig.SourceType)
	quotes := sig.Evidence.Quotes
	if len(quotes) > maxEvidenceQuotes {
		quotes = quotes[:maxEvidenceQuotes]
	}
	parts = append(parts, quotes...)

	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// Retrieve embeds the signal and searches both collections. Hits are merged
// by signal ID with the first occurrence winning, sorted by similarity, and
// cut to K.
func (l *Loop) Retrieve(ctx context.Context, sig model.Signal, filter Filter) ([]Context, error) {
	vector, err := l.embed.Embed(ctx, EmbedText(sig))
	if err != nil {
		return nil, fmt.Errorf("rag: embed signal: %w", err)
	}

	var merged []Context
	seen := make(map[string]bool)
	for _, collection := range []string{CollectionOutcomes, CollectionSignals} {
		hits, err := l.search.Query(ctx, collection, vector, filter, l.k)
		if err != nil {
			return nil, fmt.Errorf("rag: query %s: %w", collection, err)
		}
		for _, h := range hits {
			if h.SignalID == sig.ID || seen[h.SignalID] {
				continue
			}
			seen[h.SignalID] = true
			merged = append(merged, h)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > l.k {
		merged = merged[:l.k]
	}
	return merged, nil
}

// Adjust retrieves similar history and computes the score boost. Retrieval
// failure degrades to a zero boost so scoring still completes.
func (l *Loop) Adjust(ctx context.Context, sig model.Signal, filter Filter) (Boost, []Context) {
	contexts, err := l.Retrieve(ctx, sig, filter)
	if err != nil {
		l.log.Warn("learning loop unavailable, scoring without history",
			"signal_id", sig.ID, "error", err)
		return Boost{}, nil
	}
	return ComputeBoost(contexts), contexts
}

// ComputeBoost folds retrieved outcomes into the two adjustments. Wins pull
// both scores up by similarity x 5; losses pull confidence down by
// similarity x 2 and deal potential by similarity x 3.
func ComputeBoost(contexts []Context) Boost {
	var b Boost
	for _, c := range contexts {
		if c.Outcome == nil {
			continue
		}
		switch *c.Outcome {
		case model.OutcomeDealWon:
			b.Confidence += c.Similarity * 5
			b.DealPotential += c.Similarity * 5
		case model.OutcomeDealLost:
			b.Confidence -= c.Similarity * 2
			b.DealPotential -= c.Similarity * 3
		}
	}
	b.Confidence = clampBoost(b.Confidence)
	b.DealPotential = clampBoost(b.DealPotential)
	return b
}

func clampBoost(v float64) float64 {
	if v > boostLimit {
		return boostLimit
	}
	if v < -boostLimit {
		return -boostLimit
	}
	return v
}
