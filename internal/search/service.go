package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/rag"
	"github.com/signalhaus/signalhaus/internal/storage"
)

// Kinds a query can be typed to. Empty means signal.
const (
	KindCompany = "company"
	KindPerson  = "person"
	KindSignal  = "signal"
)

// fallbackMinRatio is the fuzzy-match floor for keyword fallback hits.
const fallbackMinRatio = 55

// GraphReader is the slice of the graph store the query service needs.
type GraphReader interface {
	SearchCompaniesByName(ctx context.Context, q string, limit int) ([]model.Company, error)
	SearchPeopleByName(ctx context.Context, q string, limit int) ([]model.Person, error)
	GetSignal(ctx context.Context, id string) (model.Signal, error)
	ListOpenSignals(ctx context.Context, now time.Time, limit int) ([]model.Signal, error)
	Neighborhood(ctx context.Context, originID string, depth int) ([]storage.Neighbor, error)
}

// Service answers semantic and hybrid queries. It embeds the query text,
// searches the signal index, and resolves hits back to graph entities. When
// the embedder or the index is unavailable it degrades to keyword matching
// over the graph store, so queries keep working without any model running.
type Service struct {
	embed rag.Embedder
	index Index
	graph GraphReader
	log   *slog.Logger
}

func NewService(embed rag.Embedder, index Index, graph GraphReader, log *slog.Logger) *Service {
	return &Service{embed: embed, index: index, graph: graph, log: log}
}

// Semantic runs a typed query. kind is one of the Kind constants or empty
// for signals.
func (s *Service) Semantic(ctx context.Context, query, kind string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, model.NewValidationError("search", "q", "query must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}
	switch kind {
	case "", KindSignal, KindCompany, KindPerson:
	default:
		return nil, model.NewValidationError("search", "kind", fmt.Sprintf("unknown kind %q", kind))
	}

	// People are not indexed as vectors; they are reached by name or through
	// the hybrid graph expansion.
	if kind == KindPerson {
		return s.keywordPeople(ctx, query, limit)
	}

	contexts, err := s.vectorQuery(ctx, query, limit)
	if err != nil {
		s.log.Warn("vector search degraded to keyword matching", "error", err)
		return s.keywordFallback(ctx, query, kind, limit)
	}

	if kind == KindCompany {
		return s.companiesFromContexts(ctx, contexts, limit), nil
	}
	hits := make([]Hit, 0, len(contexts))
	for _, c := range contexts {
		hits = append(hits, Hit{
			Kind:       KindSignal,
			ID:         c.SignalID,
			Name:       c.CompanyName,
			SignalID:   c.SignalID,
			SignalType: c.SignalType,
			Title:      c.Title,
			Score:      c.Similarity,
		})
	}
	return hits, nil
}

// Hybrid runs a company-typed semantic query and expands each hit with its
// graph neighborhood, so one call returns the company, its people, its other
// signals, and anything else within reach.
func (s *Service) Hybrid(ctx context.Context, query string, limit, depth int) ([]HybridHit, error) {
	hits, err := s.Semantic(ctx, query, KindCompany, limit)
	if err != nil {
		return nil, err
	}

	out := make([]HybridHit, 0, len(hits))
	for _, hit := range hits {
		neighbors, err := s.graph.Neighborhood(ctx, hit.ID, depth)
		if err != nil {
			return nil, fmt.Errorf("search: expand %s: %w", hit.ID, err)
		}
		out = append(out, HybridHit{Hit: hit, Neighbors: neighbors})
	}
	return out, nil
}

func (s *Service) vectorQuery(ctx context.Context, query string, limit int) ([]rag.Context, error) {
	embedding, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	// Over-fetch so company grouping still fills the page.
	return s.index.Query(ctx, rag.CollectionSignals, embedding, rag.Filter{}, limit*3)
}

// companiesFromContexts groups signal hits by company, keeping each
// company's best score.
func (s *Service) companiesFromContexts(ctx context.Context, contexts []rag.Context, limit int) []Hit {
	best := make(map[string]Hit)
	var order []string
	for _, c := range contexts {
		companyID := s.companyIDFor(ctx, c)
		if companyID == "" {
			continue
		}
		if prev, ok := best[companyID]; ok {
			if c.Similarity > prev.Score {
				prev.Score = c.Similarity
				prev.SignalID = c.SignalID
				prev.SignalType = c.SignalType
				prev.Title = c.Title
				best[companyID] = prev
			}
			continue
		}
		best[companyID] = Hit{
			Kind:       KindCompany,
			ID:         companyID,
			Name:       c.CompanyName,
			SignalID:   c.SignalID,
			SignalType: c.SignalType,
			Title:      c.Title,
			Score:      c.Similarity,
		}
		order = append(order, companyID)
	}

	hits := make([]Hit, 0, len(order))
	for _, id := range order {
		hits = append(hits, best[id])
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// companyIDFor recovers the company ID behind a vector hit. The payload
// carries the name; the graph store resolves it when the ID is needed.
func (s *Service) companyIDFor(ctx context.Context, c rag.Context) string {
	sig, err := s.graph.GetSignal(ctx, c.SignalID)
	if err != nil {
		return ""
	}
	return sig.CompanyID
}

// keywordFallback serves company and signal queries without vectors.
func (s *Service) keywordFallback(ctx context.Context, query, kind string, limit int) ([]Hit, error) {
	if kind == KindCompany {
		return s.keywordCompanies(ctx, query, limit)
	}
	return s.keywordSignals(ctx, query, limit)
}

func (s *Service) keywordCompanies(ctx context.Context, query string, limit int) ([]Hit, error) {
	companies, err := s.graph.SearchCompaniesByName(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: keyword companies: %w", err)
	}
	hits := make([]Hit, 0, len(companies))
	for _, c := range companies {
		hits = append(hits, Hit{
			Kind:  KindCompany,
			ID:    c.ID,
			Name:  c.Name,
			Score: fuzzyScore(query, c.Name),
		})
	}
	sortHits(hits)
	return hits, nil
}

func (s *Service) keywordPeople(ctx context.Context, query string, limit int) ([]Hit, error) {
	people, err := s.graph.SearchPeopleByName(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: keyword people: %w", err)
	}
	hits := make([]Hit, 0, len(people))
	for _, p := range people {
		hits = append(hits, Hit{
			Kind:  KindPerson,
			ID:    p.ID,
			Name:  p.FullName,
			Score: fuzzyScore(query, p.FullName),
		})
	}
	sortHits(hits)
	return hits, nil
}

// keywordSignals fuzzy-matches the query against open signal titles.
func (s *Service) keywordSignals(ctx context.Context, query string, limit int) ([]Hit, error) {
	signals, err := s.graph.ListOpenSignals(ctx, time.Now().UTC(), 500)
	if err != nil {
		return nil, fmt.Errorf("search: keyword signals: %w", err)
	}
	var hits []Hit
	for _, sig := range signals {
		ratio := fuzzy.TokenSetRatio(query, sig.Title+" "+sig.Summary)
		if ratio < fallbackMinRatio {
			continue
		}
		hits = append(hits, Hit{
			Kind:       KindSignal,
			ID:         sig.ID,
			Name:       sig.CompanyName,
			SignalID:   sig.ID,
			SignalType: sig.Type,
			Title:      sig.Title,
			Score:      float64(ratio) / 100,
		})
	}
	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func fuzzyScore(query, name string) float64 {
	return float64(fuzzy.TokenSetRatio(query, name)) / 100
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}
