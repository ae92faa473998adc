// Package ingest orchestrates the synchronous acquisition pipeline: connector
// fan-out, canonicalization and dedupe, then the fixed write order graph,
// vector, cache invalidation. Graph failures abort the run, vector failures
// degrade to warnings, cache failures are ignored.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/signalhaus/signalhaus/internal/canonical"
	"github.com/signalhaus/signalhaus/internal/connector"
	"github.com/signalhaus/signalhaus/internal/detect"
	"github.com/signalhaus/signalhaus/internal/importer"
	"github.com/signalhaus/signalhaus/internal/llm"
	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/rag"
	"github.com/signalhaus/signalhaus/internal/score"
	"github.com/signalhaus/signalhaus/internal/search"
	"github.com/signalhaus/signalhaus/internal/storage"
)

const (
	defaultSearchLimit = 10
	defaultPeopleLimit = 25

	// Connectors that only run when the request opts in.
	nameGooglePlaces = "google_places"
	nameHunter       = "hunter"
)

// Cache is the slice of the query cache the pipeline needs: blanket
// invalidation after writes.
type Cache interface {
	Invalidate(ctx context.Context)
}

// GraphStore is the slice of the graph store the pipeline writes to and
// reads scoring history from.
type GraphStore interface {
	GetCompany(ctx context.Context, id string) (model.Company, error)
	UpsertCompany(ctx context.Context, c model.Company) error
	UpsertPerson(ctx context.Context, p model.Person) error
	UpsertEdge(ctx context.Context, srcID, dstID, edgeType string) error
	UpsertSignal(ctx context.Context, sig model.Signal) error
	UpsertInsight(ctx context.Context, in model.Insight) error
	UpsertMeeting(ctx context.Context, m model.Meeting) error
	RecordOutcome(ctx context.Context, signalID string, outcome model.Outcome) (model.Signal, error)
	OutcomeHistory(ctx context.Context) (map[model.SignalType]float64, error)
}

// Service runs ingestion and detection against a set of connectors and the
// three stores. index and embed may be nil, in which case vector stages are
// skipped with a warning.
type Service struct {
	connectors []connector.Connector
	store      GraphStore
	index      search.Index
	embed      rag.Embedder
	loop       *rag.Loop
	detector   *detect.Detector
	analyzer   llm.Analyzer
	fallback   llm.Analyzer
	cache      Cache
	log        *slog.Logger
	now        func() time.Time
}

func New(connectors []connector.Connector, store GraphStore, index search.Index, embed rag.Embedder, loop *rag.Loop, analyzer llm.Analyzer, cache Cache, log *slog.Logger) *Service {
	if analyzer == nil {
		analyzer = llm.NewRuleAnalyzer()
	}
	return &Service{
		connectors: connectors,
		store:      store,
		index:      index,
		embed:      embed,
		loop:       loop,
		detector:   detect.New(log),
		analyzer:   analyzer,
		fallback:   llm.NewRuleAnalyzer(),
		cache:      cache,
		log:        log,
		now:        time.Now,
	}
}

// Ingest runs one synchronous acquisition: company search across connectors,
// enrichment, people discovery, then the graph and vector loads. The run
// fails only when every search connector fails or a graph write does.
func (s *Service) Ingest(ctx context.Context, req model.IngestRequest) (model.IngestResponse, error) {
	if req.Query == "" {
		return model.IngestResponse{}, model.NewValidationError("ingest", "query", "query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	batchID := uuid.NewString()
	res := model.IngestResponse{BatchID: batchID, Counts: map[string]int{}}

	companies, warnings, err := s.searchAll(ctx, req, limit)
	if err != nil {
		return model.IngestResponse{}, err
	}
	res.Warnings = append(res.Warnings, warnings...)

	companies = canonical.DedupeCompanies(companies)
	companies = s.enrichAll(ctx, companies, &res)
	people := s.findPeople(ctx, req, companies, &res)

	res.Counts["companies"] = len(companies)
	res.Counts["people"] = len(people)

	if req.LoadToGraph {
		if err := s.loadGraph(ctx, companies, people); err != nil {
			return model.IngestResponse{}, err
		}
	}
	if req.LoadToVector {
		s.detectFromProfiles(ctx, companies, &res)
	}

	s.cache.Invalidate(ctx)

	s.log.Info("ingest complete",
		"batch_id", batchID,
		"query", req.Query,
		"companies", res.Counts["companies"],
		"people", res.Counts["people"],
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// LoadImport lifts parsed file rows into the canonical model and writes them
// to the graph. People link to companies from the same file through the
// company name key.
func (s *Service) LoadImport(ctx context.Context, parsed importer.Result, batchID string) (model.IngestResponse, error) {
	now := s.now()

	companies := make([]model.Company, 0, len(parsed.Companies))
	for _, raw := range parsed.Companies {
		companies = append(companies, canonical.Company(raw, now))
	}
	companies = canonical.DedupeCompanies(companies)

	people := make([]model.Person, 0, len(parsed.People))
	for _, raw := range parsed.People {
		people = append(people, canonical.Person(raw, now))
	}
	people = canonical.MergePeople(people)

	if err := s.loadGraph(ctx, companies, people); err != nil {
		return model.IngestResponse{}, err
	}
	s.cache.Invalidate(ctx)

	res := model.IngestResponse{
		BatchID: batchID,
		Counts: map[string]int{
			"companies": len(companies),
			"people":    len(people),
			"skipped":   parsed.Skipped,
		},
		Warnings: parsed.Warnings,
	}
	s.log.Info("import complete",
		"batch_id", batchID,
		"companies", len(companies),
		"people", len(people),
		"skipped", parsed.Skipped,
	)
	return res, nil
}

// searchAll fans the query out to every search-capable connector. Individual
// failures become warnings; the run errors only when nothing succeeded.
func (s *Service) searchAll(ctx context.Context, req model.IngestRequest, limit int) ([]model.Company, []string, error) {
	var (
		mu        sync.Mutex
		companies []model.Company
		warnings  []string
		succeeded int
		lastErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	attempted := 0
	for _, c := range s.connectors {
		if !c.Capabilities().SupportsSearch {
			continue
		}
		if c.Name() == nameGooglePlaces && !req.UseGoogle {
			continue
		}
		attempted++
		searcher, ok := c.(connector.Searcher)
		if !ok {
			continue
		}
		name := c.Name()
		g.Go(func() error {
			found, err := searcher.Search(gctx, req.Query, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("connector %s: %v", name, err))
				lastErr = err
				return nil
			}
			succeeded++
			companies = append(companies, found...)
			return nil
		})
	}
	_ = g.Wait()

	if attempted == 0 {
		return nil, nil, model.NewValidationError("ingest", "connectors", "no search-capable connector configured")
	}
	if succeeded == 0 {
		return nil, nil, &model.UpstreamError{Connector: "all", Err: lastErr}
	}
	return companies, warnings, nil
}

// enrichAll passes every company through every enrich-capable connector.
// Enrichment failures keep the unenriched record and add a warning.
func (s *Service) enrichAll(ctx context.Context, companies []model.Company, res *model.IngestResponse) []model.Company {
	for _, c := range s.connectors {
		if !c.Capabilities().SupportsEnrich {
			continue
		}
		enricher, ok := c.(connector.Enricher)
		if !ok {
			continue
		}
		for i, company := range companies {
			enriched, err := enricher.Enrich(ctx, company)
			if err != nil {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("enrich %s via %s: %v", company.Name, c.Name(), err))
				continue
			}
			companies[i] = enriched
		}
	}
	return companies
}

// findPeople looks up contacts by company domain across people-capable
// connectors, merges the lists, and binds each person to their company.
func (s *Service) findPeople(ctx context.Context, req model.IngestRequest, companies []model.Company, res *model.IngestResponse) []model.Person {
	domainToCompany := make(map[string]string)
	for _, c := range companies {
		if c.Domain != "" {
			domainToCompany[c.Domain] = c.ID
		}
	}
	if len(domainToCompany) == 0 {
		return nil
	}

	var lists [][]model.Person
	for _, c := range s.connectors {
		if !c.Capabilities().SupportsPeople {
			continue
		}
		if c.Name() == nameHunter && !req.UseHunter {
			continue
		}
		finder, ok := c.(connector.PeopleFinder)
		if !ok {
			continue
		}
		for domain, companyID := range domainToCompany {
			found, err := finder.FindPeopleByDomain(ctx, domain, defaultPeopleLimit)
			if err != nil {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("people for %s via %s: %v", domain, c.Name(), err))
				continue
			}
			for i := range found {
				found[i].CompanyID = companyID
			}
			lists = append(lists, found)
		}
	}
	return canonical.MergePeople(lists...)
}

// loadGraph writes companies, people, and employment edges. Any failure
// aborts the run; the graph is the system of record.
func (s *Service) loadGraph(ctx context.Context, companies []model.Company, people []model.Person) error {
	for _, c := range companies {
		if err := s.store.UpsertCompany(ctx, c); err != nil {
			return err
		}
	}
	for _, p := range people {
		if err := s.store.UpsertPerson(ctx, p); err != nil {
			return err
		}
		if p.CompanyID != "" {
			if err := s.store.UpsertEdge(ctx, p.ID, p.CompanyID, storage.EdgeWorksAt); err != nil {
				return err
			}
		}
	}
	return nil
}

// detectFromProfiles runs signal detection over connector-provided company
// descriptions so a fresh ingest can seed the vector store. Most profiles
// yield nothing; that is expected.
func (s *Service) detectFromProfiles(ctx context.Context, companies []model.Company, res *model.IngestResponse) {
	now := s.now()
	total := 0
	for _, c := range companies {
		if c.Description == "" {
			continue
		}
		out, err := s.DetectAndStore(ctx, model.DetectRequest{
			CompanyID:   c.ID,
			CompanyName: c.Name,
			Text:        c.Description,
			SourceType:  "connector_profile",
			SourceDate:  now,
		})
		if err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("profile detection for %s: %v", c.Name, err))
			continue
		}
		total += len(out.Signals)
		res.Warnings = append(res.Warnings, out.Warnings...)
	}
	res.Counts["signals"] = total
}

// DetectAndStore runs the detect, score, boost, persist pipeline for one
// piece of text. Signals and their edges go to the graph first; the vector
// index and the narrative insight degrade to warnings.
func (s *Service) DetectAndStore(ctx context.Context, req model.DetectRequest) (model.DetectResponse, error) {
	var fields []model.FieldError
	if req.CompanyID == "" {
		fields = append(fields, model.FieldError{Field: "company_id", Message: "company_id is required"})
	}
	if req.Text == "" {
		fields = append(fields, model.FieldError{Field: "text", Message: "text is required"})
	}
	if len(fields) > 0 {
		return model.DetectResponse{}, &model.ValidationError{Component: "ingest", Fields: fields}
	}

	now := s.now()
	src := detect.Source{URL: req.SourceURL, Type: req.SourceType, Date: req.SourceDate}
	candidates := s.detector.Detect(req.CompanyID, req.CompanyName, req.Text, src, now)
	if len(candidates) == 0 {
		return model.DetectResponse{}, nil
	}

	var res model.DetectResponse
	history, err := s.store.OutcomeHistory(ctx)
	if err != nil {
		s.log.Warn("outcome history unavailable, scoring with defaults", "error", err)
		res.Warnings = append(res.Warnings, "outcome history unavailable, scored with defaults")
		history = nil
	}
	state := s.companyState(ctx, req.CompanyID)

	for _, sig := range candidates {
		confidence, _ := score.Confidence(sig, score.Inputs{History: history, Now: now})
		potential := score.DealPotential(sig.Priority, state)

		var contexts []rag.Context
		if s.loop != nil {
			var boost rag.Boost
			boost, contexts = s.loop.Adjust(ctx, sig, rag.Filter{SignalType: sig.Type})
			confidence += boost.Confidence
			potential += boost.DealPotential
		}
		sig.Confidence = model.Clamp100(confidence)
		sig.DealPotential = model.Clamp100(potential)

		if err := s.store.UpsertSignal(ctx, sig); err != nil {
			return model.DetectResponse{}, err
		}
		if err := s.store.UpsertEdge(ctx, sig.ID, sig.CompanyID, storage.EdgeDetectedFor); err != nil {
			return model.DetectResponse{}, err
		}

		if warning := s.indexSignal(ctx, sig); warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		s.writeInsight(ctx, sig, contexts, now, &res)

		res.Signals = append(res.Signals, sig)
	}

	s.cache.Invalidate(ctx)
	return res, nil
}

// companyState loads the relationship modifiers for deal-potential scoring.
// An unknown company scores with the neutral state.
func (s *Service) companyState(ctx context.Context, companyID string) score.CompanyState {
	c, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("company lookup failed, scoring with neutral state", "company_id", companyID, "error", err)
		}
		return score.CompanyState{}
	}
	if c.Relationship == nil {
		return score.CompanyState{}
	}
	return score.CompanyState{
		ActiveSupplier: c.Relationship.ActiveSupplier,
		PastGMVEUR:     c.Relationship.PastGMVEUR,
		Competition:    score.Competition(c.Relationship.Competition),
	}
}

// indexSignal embeds and upserts one signal into the vector store. Returns a
// warning string on degradation, empty on success.
func (s *Service) indexSignal(ctx context.Context, sig model.Signal) string {
	if s.index == nil || s.embed == nil {
		return fmt.Sprintf("signal %s not vectorized: no vector store configured", sig.ID)
	}
	embedding, err := s.embed.Embed(ctx, rag.EmbedText(sig))
	if err != nil {
		s.log.Warn("embedding failed, signal not vectorized", "signal_id", sig.ID, "error", err)
		return fmt.Sprintf("signal %s not vectorized: %v", sig.ID, err)
	}
	err = s.index.Upsert(ctx, rag.CollectionSignals, []search.Point{{Signal: sig, Embedding: embedding}})
	if err != nil {
		s.log.Warn("vector upsert failed, signal not vectorized", "signal_id", sig.ID, "error", err)
		return fmt.Sprintf("signal %s not vectorized: %v", sig.ID, err)
	}
	return ""
}

// writeInsight generates the narrative and stores it linked to the signal.
// The chat analyzer falls back to the rule template; store failures warn.
func (s *Service) writeInsight(ctx context.Context, sig model.Signal, contexts []rag.Context, now time.Time, res *model.DetectResponse) {
	narrative, err := s.analyzer.Narrative(ctx, sig, contexts)
	if err != nil {
		s.log.Warn("analyzer unavailable, using rule narrative", "signal_id", sig.ID, "error", err)
		narrative, _ = s.fallback.Narrative(ctx, sig, contexts)
	}
	if narrative == "" {
		return
	}

	insight := model.Insight{
		ID:        model.CanonicalID("in", sig.ID),
		CompanyID: sig.CompanyID,
		SignalID:  sig.ID,
		Kind:      "analysis",
		Content:   narrative,
		CreatedAt: now,
	}
	if err := s.store.UpsertInsight(ctx, insight); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("insight for %s not stored: %v", sig.ID, err))
		return
	}
	if err := s.store.UpsertEdge(ctx, sig.ID, insight.ID, storage.EdgeGenerated); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("insight edge for %s not stored: %v", sig.ID, err))
	}
}

// RecordOutcome stores the outcome in the graph, then copies the signal into
// the outcomes vector collection so future retrieval sees the result. Vector
// failures degrade to a warning list.
func (s *Service) RecordOutcome(ctx context.Context, signalID string, req model.OutcomeRequest) (model.Signal, []string, error) {
	outcome := model.Outcome{
		Result:         req.Result,
		ActualDiscount: req.ActualDiscount,
		DealValue:      req.DealValue,
		Notes:          req.Notes,
		RecordedAt:     s.now(),
	}
	sig, err := s.store.RecordOutcome(ctx, signalID, outcome)
	if err != nil {
		return model.Signal{}, nil, err
	}

	var warnings []string
	if s.index == nil || s.embed == nil {
		warnings = append(warnings, "outcome not vectorized: no vector store configured")
	} else if embedding, err := s.outcomeVector(ctx, sig); err != nil {
		s.log.Warn("embedding failed, outcome not vectorized", "signal_id", sig.ID, "error", err)
		warnings = append(warnings, fmt.Sprintf("outcome not vectorized: %v", err))
	} else if err := s.index.Upsert(ctx, rag.CollectionOutcomes, []search.Point{{Signal: sig, Embedding: embedding}}); err != nil {
		s.log.Warn("vector upsert failed, outcome not vectorized", "signal_id", sig.ID, "error", err)
		warnings = append(warnings, fmt.Sprintf("outcome not vectorized: %v", err))
	}

	s.cache.Invalidate(ctx)
	return sig, warnings, nil
}

// outcomeVector reuses the signal's stored embedding so the outcome point
// stays geometrically identical to its source. A signal that was never
// indexed is embedded fresh.
func (s *Service) outcomeVector(ctx context.Context, sig model.Signal) ([]float32, error) {
	stored, err := s.index.FetchVector(ctx, rag.CollectionSignals, sig.ID)
	if err != nil {
		s.log.Warn("stored vector unavailable, re-embedding outcome", "signal_id", sig.ID, "error", err)
	}
	if len(stored) > 0 {
		return stored, nil
	}
	return s.embed.Embed(ctx, rag.EmbedText(sig))
}

// RecordMeeting stores a meeting note against an existing company and links
// any named attendees through ABOUT edges.
func (s *Service) RecordMeeting(ctx context.Context, req model.MeetingRequest) (model.Meeting, error) {
	var fields []model.FieldError
	if req.CompanyID == "" {
		fields = append(fields, model.FieldError{Field: "company_id", Message: "company_id is required"})
	}
	if req.Subject == "" {
		fields = append(fields, model.FieldError{Field: "subject", Message: "subject is required"})
	}
	if len(fields) > 0 {
		return model.Meeting{}, &model.ValidationError{Component: "ingest", Fields: fields}
	}
	if _, err := s.store.GetCompany(ctx, req.CompanyID); err != nil {
		return model.Meeting{}, err
	}

	now := s.now()
	occurred := req.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	m := model.Meeting{
		ID:         model.CanonicalID("mt", req.CompanyID+"|"+req.Subject+"|"+occurred.UTC().Format(time.RFC3339)),
		CompanyID:  req.CompanyID,
		PersonIDs:  req.PersonIDs,
		Subject:    req.Subject,
		Notes:      req.Notes,
		OccurredAt: occurred,
		CreatedAt:  now,
	}
	if err := s.store.UpsertMeeting(ctx, m); err != nil {
		return model.Meeting{}, err
	}
	for _, pid := range m.PersonIDs {
		if err := s.store.UpsertEdge(ctx, m.ID, pid, storage.EdgeAbout); err != nil {
			return model.Meeting{}, err
		}
	}

	s.cache.Invalidate(ctx)
	s.log.Info("meeting recorded", "meeting_id", m.ID, "company_id", m.CompanyID, "attendees", len(m.PersonIDs))
	return m, nil
}

// TestConnections probes every configured connector and reports per-name
// results. Used by the health surface.
func (s *Service) TestConnections(ctx context.Context) map[string]error {
	out := make(map[string]error, len(s.connectors))
	for _, c := range s.connectors {
		out[c.Name()] = c.TestConnection(ctx)
	}
	return out
}
