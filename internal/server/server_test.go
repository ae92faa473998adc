package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhaus/signalhaus/internal/deal"
	"github.com/signalhaus/signalhaus/internal/importer"
	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/search"
	"github.com/signalhaus/signalhaus/internal/storage"
)

func testLog() *slog.Logger { return slog.New(slog.DiscardHandler) }

type fakeStore struct {
	companies    map[string]model.Company
	people       map[string]model.Person
	signals      map[string]model.Signal
	domainCalls  int
	pingErr      error
	clearCalled  bool
	industryHist map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies:    map[string]model.Company{},
		people:       map[string]model.Person{},
		signals:      map[string]model.Signal{},
		industryHist: map[string]int{},
	}
}

func (f *fakeStore) GetCompany(_ context.Context, id string) (model.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return model.Company{}, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) GetCompanyByDomain(_ context.Context, domain string) (model.Company, error) {
	f.domainCalls++
	for _, c := range f.companies {
		if c.Domain == domain {
			return c, nil
		}
	}
	return model.Company{}, storage.ErrNotFound
}

func (f *fakeStore) ListCompaniesByIndustry(_ context.Context, industry string, _ int) ([]model.Company, error) {
	var out []model.Company
	for _, c := range f.companies {
		if c.Industry == industry {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCompaniesByLocation(context.Context, string, int) ([]model.Company, error) {
	return nil, nil
}

func (f *fakeStore) GetPerson(_ context.Context, id string) (model.Person, error) {
	p, ok := f.people[id]
	if !ok {
		return model.Person{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SearchPeopleByName(context.Context, string, int) ([]model.Person, error) {
	var out []model.Person
	for _, p := range f.people {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) ListPeopleByDepartment(context.Context, string, int) ([]model.Person, error) {
	return nil, nil
}

func (f *fakeStore) ListPeopleByCompany(_ context.Context, companyID string) ([]model.Person, error) {
	var out []model.Person
	for _, p := range f.people {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSignal(_ context.Context, id string) (model.Signal, error) {
	sig, ok := f.signals[id]
	if !ok {
		return model.Signal{}, storage.ErrNotFound
	}
	return sig, nil
}

func (f *fakeStore) ListSignalsByCompany(_ context.Context, companyID string) ([]model.Signal, error) {
	var out []model.Signal
	for _, sig := range f.signals {
		if sig.CompanyID == companyID {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (f *fakeStore) ListOpenSignals(context.Context, time.Time, int) ([]model.Signal, error) {
	var out []model.Signal
	for _, sig := range f.signals {
		out = append(out, sig)
	}
	return out, nil
}

func (f *fakeStore) IndustryCounts(context.Context) (map[string]int, error) {
	return f.industryHist, nil
}

func (f *fakeStore) DepartmentCounts(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (f *fakeStore) ClearAll(context.Context) error {
	f.clearCalled = true
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

type fakeIngestor struct {
	ingestRes model.IngestResponse
	ingestErr error
	detectRes model.DetectResponse
	outcome   model.Signal
	importRes model.IngestResponse
}

func (f *fakeIngestor) Ingest(context.Context, model.IngestRequest) (model.IngestResponse, error) {
	return f.ingestRes, f.ingestErr
}

func (f *fakeIngestor) DetectAndStore(_ context.Context, req model.DetectRequest) (model.DetectResponse, error) {
	if req.CompanyID == "" || req.Text == "" {
		return model.DetectResponse{}, model.NewValidationError("ingest", "text", "text is required")
	}
	return f.detectRes, nil
}

func (f *fakeIngestor) RecordOutcome(_ context.Context, signalID string, _ model.OutcomeRequest) (model.Signal, []string, error) {
	if f.outcome.ID != signalID {
		return model.Signal{}, nil, storage.ErrNotFound
	}
	return f.outcome, nil, nil
}

func (f *fakeIngestor) RecordMeeting(_ context.Context, req model.MeetingRequest) (model.Meeting, error) {
	if req.Subject == "" {
		return model.Meeting{}, model.NewValidationError("ingest", "subject", "subject is required")
	}
	if req.CompanyID == "co-missing" {
		return model.Meeting{}, storage.ErrNotFound
	}
	return model.Meeting{ID: "mt:1", CompanyID: req.CompanyID, Subject: req.Subject, PersonIDs: req.PersonIDs}, nil
}

func (f *fakeIngestor) LoadImport(context.Context, importer.Result, string) (model.IngestResponse, error) {
	return f.importRes, nil
}

type fakeSearch struct {
	hits   []search.Hit
	hybrid []search.HybridHit
	err    error
}

func (f *fakeSearch) Semantic(_ context.Context, query, kind string, _ int) ([]search.Hit, error) {
	if query == "" {
		return nil, model.NewValidationError("search", "q", "query is required")
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []search.Hit
	for _, h := range f.hits {
		if h.Kind == kind || kind == "" && h.Kind == search.KindSignal {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeSearch) Hybrid(_ context.Context, query string, _, _ int) ([]search.HybridHit, error) {
	if query == "" {
		return nil, model.NewValidationError("search", "q", "query is required")
	}
	return f.hybrid, f.err
}

type fakeDeals struct {
	deal     model.DealIntent
	stageErr error
	analysis deal.CompleteAnalysis
}

func (f *fakeDeals) CreateDeal(_ context.Context, name, companyID string, value float64, _ *time.Time) (model.DealIntent, error) {
	f.deal = model.DealIntent{ID: "deal:1", Name: name, CompanyID: companyID, Value: value, Stage: model.StageDiscovery}
	return f.deal, nil
}

func (f *fakeDeals) UpdateFacts(_ context.Context, _ string, facts model.DealFacts) (model.DealIntent, error) {
	f.deal.Facts = facts
	return f.deal, nil
}

func (f *fakeDeals) Analysis(_ context.Context, dealID string) (deal.CompleteAnalysis, error) {
	if dealID != f.deal.ID {
		return deal.CompleteAnalysis{}, &model.QualificationError{Kind: "deal", ID: dealID}
	}
	return f.analysis, nil
}

func (f *fakeDeals) AddPersona(_ context.Context, dealID string, p model.BuyerPersona) (model.BuyerPersona, error) {
	p.ID = "persona:1"
	p.DealID = dealID
	return p, nil
}

func (f *fakeDeals) RecordEngagement(_ context.Context, personaID string, _ deal.EngagementEvent) (model.BuyerPersona, error) {
	return model.BuyerPersona{ID: personaID, Engagement: model.EngagementEngaged}, nil
}

func (f *fakeDeals) ScoreBANT(context.Context, string) (model.BANT, error) {
	return model.BANT{Total: 78}, nil
}

func (f *fakeDeals) AnalyzeSPIN(_ context.Context, _ string, s, p, i, n deal.SPINInput) (model.SPIN, error) {
	return model.SPIN{Situation: model.SPINEntry{Content: s.Content, Confidence: s.Confidence}}, nil
}

func (f *fakeDeals) RunParanoid(context.Context, string) (deal.ParanoidAnalysis, error) {
	return deal.ParanoidAnalysis{Verdict: model.VerdictReady}, nil
}

func (f *fakeDeals) CheckGate(context.Context, string) (deal.GateResult, error) {
	return deal.GateResult{Passed: true}, nil
}

func (f *fakeDeals) SetStage(_ context.Context, dealID string, stage model.DealStage) (model.DealIntent, error) {
	if f.stageErr != nil {
		return model.DealIntent{}, f.stageErr
	}
	f.deal.Stage = stage
	return f.deal, nil
}

func (f *fakeDeals) AddRisk(_ context.Context, dealID string, r model.DealRisk) (model.DealRisk, error) {
	r.ID = "risk:1"
	r.DealID = dealID
	r.Status = model.RiskOpen
	return r, nil
}

func (f *fakeDeals) AddMitigation(_ context.Context, _, riskID string, action model.MitigationAction, newStatus model.RiskStatus) (model.DealRisk, error) {
	status := model.RiskMitigating
	if newStatus != "" {
		status = newStatus
	}
	return model.DealRisk{ID: riskID, Status: status, MitigationActions: []model.MitigationAction{action}}, nil
}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) key(parts []string) string { return strings.Join(parts, "|") }

func (m *memCache) Get(_ context.Context, parts ...string) ([]byte, bool) {
	b, ok := m.data[m.key(parts)]
	return b, ok
}

func (m *memCache) Set(_ context.Context, value []byte, parts ...string) {
	m.data[m.key(parts)] = value
}

func (m *memCache) Invalidate(context.Context) { m.data = map[string][]byte{} }

func (m *memCache) Healthy(context.Context) error { return nil }

type testEnv struct {
	store  *fakeStore
	ingest *fakeIngestor
	search *fakeSearch
	deals  *fakeDeals
	cache  *memCache
	srv    *Server
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  newFakeStore(),
		ingest: &fakeIngestor{},
		search: &fakeSearch{},
		deals:  &fakeDeals{},
		cache:  &memCache{data: map[string][]byte{}},
	}
	cfg := Config{
		Store:   env.store,
		Ingest:  env.ingest,
		Search:  env.search,
		Deals:   env.deals,
		Cache:   env.cache,
		Logger:  testLog(),
		Version: "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	env.srv = New(cfg)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()
	var env model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) model.APIError {
	t.Helper()
	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	env.store.pingErr = errors.New("pool closed")
	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.ingest.ingestRes = model.IngestResponse{
		BatchID:  "b1",
		Counts:   map[string]int{"companies": 2},
		Warnings: []string{"connector kvk: quota exhausted"},
	}

	rec := env.do(t, http.MethodPost, "/ingest", `{"query":"philips","load_to_graph":true,"load_to_vector":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	envl := decodeEnvelope(t, rec)
	require.Len(t, envl.Warnings, 1)
	assert.Contains(t, envl.Warnings[0], "kvk")
}

func TestIngestUpstreamFailureMapsTo502(t *testing.T) {
	env := newTestEnv(t)
	env.ingest.ingestErr = &model.UpstreamError{Connector: "all", Err: errors.New("down")}

	rec := env.do(t, http.MethodPost, "/ingest", `{"query":"philips"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, model.ErrCodeUpstream, decodeAPIError(t, rec).Error.Code)
}

func TestDetectValidationMapsTo400(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/signals/detect", `{"company_name":"Philips"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeValidation, decodeAPIError(t, rec).Error.Code)
}

func TestOutcomeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.ingest.outcome = model.Signal{ID: "sig:abc", Status: model.StatusActioned}

	rec := env.do(t, http.MethodPost, "/signals/sig:abc/outcome", `{"result":"deal_won"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/signals/sig:abc/outcome", `{"result":"maybe_won"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/signals/sig:missing/outcome", `{"result":"deal_won"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompanyByDomainReturnsProfile(t *testing.T) {
	env := newTestEnv(t)
	env.store.companies["co-apollo:1"] = model.Company{ID: "co-apollo:1", Name: "Philips", Domain: "philips.com"}
	env.store.people["pe-apollo:1"] = model.Person{
		ID: "pe-apollo:1", FullName: "Jan de Vries", CompanyID: "co-apollo:1",
		Email: "jan@philips.com", EmailStatus: model.EmailVerified,
	}
	env.store.people["pe-apollo:2"] = model.Person{
		ID: "pe-apollo:2", FullName: "Maria Santos", CompanyID: "co-other",
	}

	rec := env.do(t, http.MethodGet, "/companies?domain=philips.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.store.domainCalls)

	rec = env.do(t, http.MethodGet, "/companies?domain=philips.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.store.domainCalls, "second read must come from the cache")

	var profile model.CompanyProfile
	envl := decodeEnvelope(t, rec)
	raw, err := json.Marshal(envl.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &profile))
	assert.Equal(t, "Philips", profile.Company.Name)
	require.Len(t, profile.People, 1, "only the company's own contacts ride along")
	assert.Equal(t, "jan@philips.com", profile.People[0].Email)
	assert.Equal(t, model.EmailVerified, profile.People[0].EmailStatus)
}

func TestMeetingEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/companies/co-apollo:1/meetings",
		`{"subject":"Q3 surplus intro call","person_ids":["pe-apollo:1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var m model.Meeting
	envl := decodeEnvelope(t, rec)
	raw, err := json.Marshal(envl.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "co-apollo:1", m.CompanyID, "company comes from the URL path")

	rec = env.do(t, http.MethodPost, "/companies/co-apollo:1/meetings", `{"notes":"no subject"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/companies/co-missing/meetings", `{"subject":"Intro"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompanyNotFoundMapsTo404(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/companies/co-missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEndpointResolvesEntities(t *testing.T) {
	env := newTestEnv(t)
	env.store.companies["co-apollo:1"] = model.Company{ID: "co-apollo:1", Name: "Philips"}
	env.search.hits = []search.Hit{
		{Kind: search.KindCompany, ID: "co-apollo:1", Name: "Philips", Score: 0.91},
	}

	rec := env.do(t, http.MethodGet, "/search?q=surplus+electronics&types=company&k=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hits []model.SearchHit
	envl := decodeEnvelope(t, rec)
	raw, err := json.Marshal(envl.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &hits))

	require.Len(t, hits, 1)
	assert.Equal(t, "company", hits[0].Type)
	require.NotNil(t, hits[0].Company)
	assert.Equal(t, "Philips", hits[0].Company.Name)
}

func TestSearchMissingQueryMapsTo400(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHybridSearchAttachesNeighbors(t *testing.T) {
	env := newTestEnv(t)
	env.search.hybrid = []search.HybridHit{
		{
			Hit: search.Hit{Kind: search.KindCompany, ID: "co-apollo:1", Score: 0.8},
			Neighbors: []storage.Neighbor{
				{ID: "pe-apollo:9", EdgeType: storage.EdgeWorksAt, Depth: 1},
				{ID: "deal:8e6f", EdgeType: storage.EdgeAbout, Depth: 2},
			},
		},
	}

	rec := env.do(t, http.MethodGet, "/search/hybrid?q=philips&k=3&depth=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hits []model.SearchHit
	envl := decodeEnvelope(t, rec)
	raw, err := json.Marshal(envl.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &hits))

	require.Len(t, hits, 1)
	require.Len(t, hits[0].Neighbors, 2)
	assert.Equal(t, "person", hits[0].Neighbors[0].Label)
	assert.Equal(t, "deal", hits[0].Neighbors[1].Label)
}

func TestDealLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/deals",
		`{"deal_name":"Philips surplus Q3","company_id":"co-apollo:1","value":250000,"facts":{"budget_confirmed":true}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/deals/deal:1/personas",
		`{"name":"Jan de Vries","persona_type":"economic_buyer","influence_score":80,"can_approve":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/deals/deal:1/bant", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/deals/deal:1/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/deals/deal:404/analysis", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.ErrCodeQualification, decodeAPIError(t, rec).Error.Code)
}

func TestStagePolicyErrorMapsTo409(t *testing.T) {
	env := newTestEnv(t)
	env.deals.stageErr = &model.PolicyError{DealID: "deal:1", Blocking: []string{"no signed paperwork"}}

	rec := env.do(t, http.MethodPost, "/deals/deal:1/stage", `{"stage":"commit"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.ErrCodePolicy, decodeAPIError(t, rec).Error.Code)
}

func TestClearGuard(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/clear", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.store.clearCalled)

	env = newTestEnv(t, func(cfg *Config) { cfg.AllowClear = true })
	rec = env.do(t, http.MethodPost, "/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.store.clearCalled)
	assert.Empty(t, env.cache.data)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
