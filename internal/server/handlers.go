package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signalhaus/signalhaus/internal/deal"
	"github.com/signalhaus/signalhaus/internal/importer"
	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/search"
	"github.com/signalhaus/signalhaus/internal/storage"
)

const (
	defaultQueryLimit  = 20
	defaultSearchK     = 8
	defaultHybridDepth = 2
)

// Store is the graph-store surface the read handlers use. *storage.DB
// implements it.
type Store interface {
	GetCompany(ctx context.Context, id string) (model.Company, error)
	GetCompanyByDomain(ctx context.Context, domain string) (model.Company, error)
	ListCompaniesByIndustry(ctx context.Context, industry string, limit int) ([]model.Company, error)
	ListCompaniesByLocation(ctx context.Context, location string, limit int) ([]model.Company, error)
	GetPerson(ctx context.Context, id string) (model.Person, error)
	SearchPeopleByName(ctx context.Context, q string, limit int) ([]model.Person, error)
	ListPeopleByCompany(ctx context.Context, companyID string) ([]model.Person, error)
	ListPeopleByDepartment(ctx context.Context, department string, limit int) ([]model.Person, error)
	GetSignal(ctx context.Context, id string) (model.Signal, error)
	ListSignalsByCompany(ctx context.Context, companyID string) ([]model.Signal, error)
	ListOpenSignals(ctx context.Context, now time.Time, limit int) ([]model.Signal, error)
	IndustryCounts(ctx context.Context) (map[string]int, error)
	DepartmentCounts(ctx context.Context) (map[string]int, error)
	ClearAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Ingestor is the acquisition pipeline surface.
type Ingestor interface {
	Ingest(ctx context.Context, req model.IngestRequest) (model.IngestResponse, error)
	DetectAndStore(ctx context.Context, req model.DetectRequest) (model.DetectResponse, error)
	RecordOutcome(ctx context.Context, signalID string, req model.OutcomeRequest) (model.Signal, []string, error)
	RecordMeeting(ctx context.Context, req model.MeetingRequest) (model.Meeting, error)
	LoadImport(ctx context.Context, parsed importer.Result, batchID string) (model.IngestResponse, error)
}

// SearchService is the semantic query surface.
type SearchService interface {
	Semantic(ctx context.Context, query, kind string, limit int) ([]search.Hit, error)
	Hybrid(ctx context.Context, query string, limit, depth int) ([]search.HybridHit, error)
}

// DealService is the qualification surface.
type DealService interface {
	CreateDeal(ctx context.Context, name, companyID string, value float64, closeDate *time.Time) (model.DealIntent, error)
	UpdateFacts(ctx context.Context, id string, facts model.DealFacts) (model.DealIntent, error)
	Analysis(ctx context.Context, dealID string) (deal.CompleteAnalysis, error)
	AddPersona(ctx context.Context, dealID string, p model.BuyerPersona) (model.BuyerPersona, error)
	RecordEngagement(ctx context.Context, personaID string, ev deal.EngagementEvent) (model.BuyerPersona, error)
	ScoreBANT(ctx context.Context, dealID string) (model.BANT, error)
	AnalyzeSPIN(ctx context.Context, dealID string, situation, problem, implication, needPayoff deal.SPINInput) (model.SPIN, error)
	RunParanoid(ctx context.Context, dealID string) (deal.ParanoidAnalysis, error)
	CheckGate(ctx context.Context, dealID string) (deal.GateResult, error)
	SetStage(ctx context.Context, dealID string, stage model.DealStage) (model.DealIntent, error)
	AddRisk(ctx context.Context, dealID string, r model.DealRisk) (model.DealRisk, error)
	AddMitigation(ctx context.Context, dealID, riskID string, action model.MitigationAction, newStatus model.RiskStatus) (model.DealRisk, error)
}

// QueryCache is the read-through cache surface. Nil disables caching.
type QueryCache interface {
	Get(ctx context.Context, parts ...string) ([]byte, bool)
	Set(ctx context.Context, value []byte, parts ...string)
	Invalidate(ctx context.Context)
	Healthy(ctx context.Context) error
}

// VectorAdmin is the vector-store maintenance surface. Nil disables it.
type VectorAdmin interface {
	DeleteCollections(ctx context.Context) error
	Healthy(ctx context.Context) error
}

type handlers struct {
	store   Store
	ingest  Ingestor
	search  SearchService
	deals   DealService
	cache   QueryCache
	index   VectorAdmin
	logger  *slog.Logger
	version string
	maxBody int64
	clear   bool
	started time.Time
}

func newHandlers(cfg Config) *handlers {
	maxBody := cfg.MaxRequestBodyBytes
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	return &handlers{
		store:   cfg.Store,
		ingest:  cfg.Ingest,
		search:  cfg.Search,
		deals:   cfg.Deals,
		cache:   cfg.Cache,
		index:   cfg.Index,
		logger:  cfg.Logger,
		version: cfg.Version,
		maxBody: maxBody,
		clear:   cfg.AllowClear,
		started: time.Now(),
	}
}

// cachedJSON serves a GET query through the read-through cache. The payload
// under the envelope is cached, never the envelope itself.
func (h *handlers) cachedJSON(w http.ResponseWriter, r *http.Request, fetch func() (any, error), keyParts ...string) {
	if h.cache != nil {
		if b, ok := h.cache.Get(r.Context(), keyParts...); ok {
			writeJSON(w, r, http.StatusOK, json.RawMessage(b), nil)
			return
		}
	}
	data, err := fetch()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), payload, keyParts...)
	}
	writeJSON(w, r, http.StatusOK, json.RawMessage(payload), nil)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func (h *handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	res, err := h.ingest.Ingest(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res, res.Warnings)
}

// handleImport accepts a multipart upload: the file under "file", the record
// kind under "kind", and an optional JSON column mapping under "mapping".
func (h *handlers) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "file field is required")
		return
	}
	defer file.Close()

	kind := importer.Kind(r.FormValue("kind"))
	if kind == "" {
		kind = importer.KindCompanies
	}
	var mapping importer.Mapping
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid mapping: "+err.Error())
			return
		}
	}

	batchID := uuid.NewString()
	var parsed importer.Result
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		parsed, err = importer.ImportXLSX(file, kind, mapping, batchID)
	default:
		parsed, err = importer.ImportCSV(file, kind, mapping, batchID)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.ingest.LoadImport(r.Context(), parsed, batchID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res, res.Warnings)
}

// handleCompanies resolves a domain to the canonical company plus its known
// contacts, so one lookup answers "who do we talk to there".
func (h *handlers) handleCompanies(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "domain parameter is required")
		return
	}
	h.cachedJSON(w, r, func() (any, error) {
		c, err := h.store.GetCompanyByDomain(r.Context(), domain)
		if err != nil {
			return nil, err
		}
		people, err := h.store.ListPeopleByCompany(r.Context(), c.ID)
		if err != nil {
			return nil, err
		}
		return model.CompanyProfile{Company: c, People: people}, nil
	}, "companies", "domain", domain)
}

func (h *handlers) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.cachedJSON(w, r, func() (any, error) {
		return h.store.GetCompany(r.Context(), id)
	}, "companies", "id", id)
}

func (h *handlers) handleCompaniesByIndustry(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	if industry == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "industry parameter is required")
		return
	}
	limit := queryInt(r, "limit", defaultQueryLimit)
	h.cachedJSON(w, r, func() (any, error) {
		return h.store.ListCompaniesByIndustry(r.Context(), industry, limit)
	}, "companies", "industry", industry, strconv.Itoa(limit))
}

func (h *handlers) handleCompaniesByLocation(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "location parameter is required")
		return
	}
	limit := queryInt(r, "limit", defaultQueryLimit)
	h.cachedJSON(w, r, func() (any, error) {
		return h.store.ListCompaniesByLocation(r.Context(), location, limit)
	}, "companies", "location", location, strconv.Itoa(limit))
}

func (h *handlers) handlePeople(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "q parameter is required")
		return
	}
	limit := queryInt(r, "limit", defaultQueryLimit)
	h.cachedJSON(w, r, func() (any, error) {
		return h.store.SearchPeopleByName(r.Context(), q, limit)
	}, "people", "q", q, strconv.Itoa(limit))
}

func (h *handlers) handlePeopleByDepartment(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")
	if department == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "department parameter is required")
		return
	}
	limit := queryInt(r, "limit", defaultQueryLimit)
	h.cachedJSON(w, r, func() (any, error) {
		return h.store.ListPeopleByDepartment(r.Context(), department, limit)
	}, "people", "department", department, strconv.Itoa(limit))
}

func (h *handlers) handleIndustryAnalytics(w http.ResponseWriter, r *http.Request) {
	h.cachedJSON(w, r, func() (any, error) {
		return h.store.IndustryCounts(r.Context())
	}, "analytics", "industries")
}

func (h *handlers) handleDepartmentAnalytics(w http.ResponseWriter, r *http.Request) {
	h.cachedJSON(w, r, func() (any, error) {
		return h.store.DepartmentCounts(r.Context())
	}, "analytics", "departments")
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	k := queryInt(r, "k", defaultSearchK)
	kinds := []string{search.KindSignal}
	if raw := r.URL.Query().Get("types"); raw != "" {
		kinds = strings.Split(raw, ",")
	}

	var out []model.SearchHit
	for _, kind := range kinds {
		hits, err := h.search.Semantic(r.Context(), q, strings.TrimSpace(kind), k)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		for _, hit := range hits {
			out = append(out, h.resolveHit(r.Context(), hit, nil))
		}
	}
	writeJSON(w, r, http.StatusOK, out, nil)
}

func (h *handlers) handleHybridSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	k := queryInt(r, "k", defaultSearchK)
	depth := queryInt(r, "depth", defaultHybridDepth)

	hits, err := h.search.Hybrid(r.Context(), q, k, depth)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]model.SearchHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, h.resolveHit(r.Context(), hit.Hit, hit.Neighbors))
	}
	writeJSON(w, r, http.StatusOK, out, nil)
}

// resolveHit attaches the full entity behind a search hit. A missing entity
// leaves the hit with just its ID; search results never fail on a stale
// reference.
func (h *handlers) resolveHit(ctx context.Context, hit search.Hit, neighbors []storage.Neighbor) model.SearchHit {
	out := model.SearchHit{ID: hit.ID, Type: hit.Kind, Score: float32(hit.Score)}
	switch hit.Kind {
	case search.KindCompany:
		if c, err := h.store.GetCompany(ctx, hit.ID); err == nil {
			out.Company = &c
		}
	case search.KindPerson:
		if p, err := h.store.GetPerson(ctx, hit.ID); err == nil {
			out.Person = &p
		}
	case search.KindSignal:
		if sig, err := h.store.GetSignal(ctx, hit.ID); err == nil {
			out.Signal = &sig
		}
	}
	for _, n := range neighbors {
		out.Neighbors = append(out.Neighbors, model.GraphNeighbor{
			ID:       n.ID,
			Label:    nodeLabel(n.ID),
			EdgeType: n.EdgeType,
			Depth:    n.Depth,
		})
	}
	return out
}

// nodeLabel derives the graph label from the canonical ID prefix.
func nodeLabel(id string) string {
	switch {
	case strings.HasPrefix(id, "co-"):
		return "company"
	case strings.HasPrefix(id, "pe-"):
		return "person"
	case strings.HasPrefix(id, "sig:"):
		return "signal"
	case strings.HasPrefix(id, "in:"):
		return "insight"
	case strings.HasPrefix(id, "mt:"):
		return "meeting"
	case strings.HasPrefix(id, "deal:"):
		return "deal"
	default:
		return "node"
	}
}

func (h *handlers) handleAddMeeting(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.MeetingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	req.CompanyID = r.PathValue("id")
	m, err := h.ingest.RecordMeeting(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m, nil)
}

func (h *handlers) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.DetectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	res, err := h.ingest.DetectAndStore(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res, res.Warnings)
}

func (h *handlers) handleOutcome(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req model.OutcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body: "+err.Error())
		return
	}
	switch req.Result {
	case model.OutcomeDealWon, model.OutcomeDealLost, model.OutcomeExpired, model.OutcomeDismissed:
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation,
			fmt.Sprintf("unknown outcome result %q", req.Result))
		return
	}
	sig, warnings, err := h.ingest.RecordOutcome(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sig, warnings)
}

func (h *handlers) handleListSignals(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 50)

	h.cachedJSON(w, r, func() (any, error) {
		var (
			signals []model.Signal
			err     error
		)
		if companyID != "" {
			signals, err = h.store.ListSignalsByCompany(r.Context(), companyID)
		} else {
			signals, err = h.store.ListOpenSignals(r.Context(), time.Now().UTC(), limit)
		}
		if err != nil {
			return nil, err
		}
		if status == "" {
			return signals, nil
		}
		filtered := make([]model.Signal, 0, len(signals))
		for _, sig := range signals {
			if string(sig.Status) == status {
				filtered = append(filtered, sig)
			}
		}
		return filtered, nil
	}, "signals", companyID, status, strconv.Itoa(limit))
}

// handleClear wipes all three stores. Guarded by configuration; production
// deployments never enable it.
func (h *handlers) handleClear(w http.ResponseWriter, r *http.Request) {
	if !h.clear {
		writeError(w, r, http.StatusForbidden, model.ErrCodePolicy, "clear endpoint is disabled")
		return
	}
	if err := h.store.ClearAll(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	var warnings []string
	if h.index != nil {
		if err := h.index.DeleteCollections(r.Context()); err != nil {
			warnings = append(warnings, "vector collections not cleared: "+err.Error())
		}
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context())
	}
	h.logger.Warn("all stores cleared", "request_id", RequestIDFromContext(r.Context()))
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"}, warnings)
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	res := model.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Graph:   "ok",
		Uptime:  int64(time.Since(h.started).Seconds()),
	}
	if err := h.store.Ping(r.Context()); err != nil {
		res.Status = "degraded"
		res.Graph = err.Error()
	}
	if h.index != nil {
		res.Vector = "ok"
		if err := h.index.Healthy(r.Context()); err != nil {
			res.Status = "degraded"
			res.Vector = err.Error()
		}
	}
	if h.cache != nil {
		res.Cache = "ok"
		if err := h.cache.Healthy(r.Context()); err != nil {
			// The cache is optional; a dead cache does not degrade health.
			res.Cache = err.Error()
		}
	}
	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, res, nil)
}
