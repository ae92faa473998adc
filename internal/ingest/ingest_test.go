package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhaus/signalhaus/internal/canonical"
	"github.com/signalhaus/signalhaus/internal/connector"
	"github.com/signalhaus/signalhaus/internal/importer"
	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/rag"
	"github.com/signalhaus/signalhaus/internal/search"
	"github.com/signalhaus/signalhaus/internal/storage"
)

func testLog() *slog.Logger { return slog.New(slog.DiscardHandler) }

type fakeStore struct {
	mu        sync.Mutex
	companies map[string]model.Company
	people    map[string]model.Person
	signals   map[string]model.Signal
	insights  []model.Insight
	meetings  []model.Meeting
	edges     []string

	history    map[model.SignalType]float64
	historyErr error
	writeErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies: map[string]model.Company{},
		people:    map[string]model.Person{},
		signals:   map[string]model.Signal{},
	}
}

func (f *fakeStore) GetCompany(_ context.Context, id string) (model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[id]
	if !ok {
		return model.Company{}, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) UpsertCompany(_ context.Context, c model.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.companies[c.ID] = c
	return nil
}

func (f *fakeStore) UpsertPerson(_ context.Context, p model.Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.people[p.ID] = p
	return nil
}

func (f *fakeStore) UpsertEdge(_ context.Context, src, dst, edgeType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.edges = append(f.edges, src+"|"+dst+"|"+edgeType)
	return nil
}

func (f *fakeStore) UpsertSignal(_ context.Context, sig model.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.signals[sig.ID] = sig
	return nil
}

func (f *fakeStore) UpsertInsight(_ context.Context, in model.Insight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insights = append(f.insights, in)
	return nil
}

func (f *fakeStore) UpsertMeeting(_ context.Context, m model.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.meetings = append(f.meetings, m)
	return nil
}

func (f *fakeStore) RecordOutcome(_ context.Context, signalID string, outcome model.Outcome) (model.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sig, ok := f.signals[signalID]
	if !ok {
		return model.Signal{}, storage.ErrNotFound
	}
	sig.Outcome = &outcome
	f.signals[signalID] = sig
	return sig, nil
}

func (f *fakeStore) OutcomeHistory(context.Context) (map[model.SignalType]float64, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	upserts map[string][]search.Point
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: map[string][]search.Point{}}
}

func (f *fakeIndex) Upsert(_ context.Context, collection string, points []search.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts[collection] = append(f.upserts[collection], points...)
	return nil
}

func (f *fakeIndex) Query(context.Context, string, []float32, rag.Filter, int) ([]rag.Context, error) {
	return nil, nil
}

func (f *fakeIndex) FetchVector(_ context.Context, collection, signalID string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.upserts[collection] {
		if p.Signal.ID == signalID {
			return p.Embedding, nil
		}
	}
	return nil, nil
}

func (f *fakeIndex) DeleteCollections(context.Context) error { return f.err }
func (f *fakeIndex) Healthy(context.Context) error           { return f.err }

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0, 0}, nil
}

type fakeCache struct{ invalidations int }

func (f *fakeCache) Invalidate(context.Context) { f.invalidations++ }

func newTestService(store *fakeStore, index *fakeIndex, cache *fakeCache, conns ...connector.Connector) *Service {
	embed := &fakeEmbedder{}
	loop := rag.New(embed, index, testLog())
	svc := New(conns, store, index, embed, loop, nil, cache, testLog())
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestIngestFansOutAndLoadsGraph(t *testing.T) {
	apollo := &connector.Fake{
		ConnectorName: "apollo",
		Caps:          connector.Capabilities{SupportsSearch: true, SupportsPeople: true},
		Companies: []model.Company{
			{ID: "co-apollo:1", Name: "Philips", Domain: "philips.com", Source: "apollo"},
		},
		People: []model.Person{
			{ID: "pe-apollo:1", FullName: "Jan de Vries", Email: "jan@philips.com", Source: "apollo"},
		},
	}
	kvk := &connector.Fake{
		ConnectorName: "kvk",
		Caps:          connector.Capabilities{SupportsSearch: true},
		Companies: []model.Company{
			{ID: "co-kvk:1", Name: "Bol.com B.V.", Source: "kvk"},
		},
	}

	store := newFakeStore()
	cache := &fakeCache{}
	svc := newTestService(store, newFakeIndex(), cache, apollo, kvk)

	res, err := svc.Ingest(context.Background(), model.IngestRequest{
		Query:       "electronics",
		LoadToGraph: true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 2, res.Counts["companies"])
	assert.Equal(t, 1, res.Counts["people"])
	assert.Equal(t, []string{"electronics"}, apollo.SearchQueries)
	assert.Equal(t, []string{"electronics"}, kvk.SearchQueries)

	require.Len(t, store.companies, 2)
	require.Len(t, store.people, 1)
	require.Len(t, store.edges, 1)
	assert.Contains(t, store.edges[0], storage.EdgeWorksAt)
	assert.Contains(t, store.edges[0], "co-apollo:1", "people bind to the company that owns their domain")

	assert.Equal(t, 1, cache.invalidations)
}

func TestIngestRequiresQuery(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{})

	var verr *model.ValidationError
	_, err := svc.Ingest(context.Background(), model.IngestRequest{})
	require.ErrorAs(t, err, &verr)
}

func TestIngestPartialConnectorFailureWarns(t *testing.T) {
	healthy := &connector.Fake{
		ConnectorName: "apollo",
		Caps:          connector.Capabilities{SupportsSearch: true},
		Companies:     []model.Company{{ID: "co-apollo:1", Name: "Philips", Source: "apollo"}},
	}
	broken := &connector.Fake{
		ConnectorName: "kvk",
		Caps:          connector.Capabilities{SupportsSearch: true},
		Err:           errors.New("quota exhausted"),
	}

	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{}, healthy, broken)
	res, err := svc.Ingest(context.Background(), model.IngestRequest{Query: "philips"})
	require.NoError(t, err, "one healthy connector is enough")

	assert.Equal(t, 1, res.Counts["companies"])
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "kvk")
}

func TestIngestAllConnectorsFailing(t *testing.T) {
	broken := &connector.Fake{
		ConnectorName: "apollo",
		Caps:          connector.Capabilities{SupportsSearch: true},
		Err:           errors.New("down"),
	}

	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{}, broken)

	var uerr *model.UpstreamError
	_, err := svc.Ingest(context.Background(), model.IngestRequest{Query: "philips"})
	require.ErrorAs(t, err, &uerr)
}

func TestIngestOptionalConnectorsNeedOptIn(t *testing.T) {
	google := &connector.Fake{
		ConnectorName: "google_places",
		Caps:          connector.Capabilities{SupportsSearch: true},
		Companies:     []model.Company{{ID: "co-google_places:1", Name: "Schubert", Source: "google_places"}},
	}
	apollo := &connector.Fake{
		ConnectorName: "apollo",
		Caps:          connector.Capabilities{SupportsSearch: true},
		Companies:     []model.Company{{ID: "co-apollo:1", Name: "Philips", Source: "apollo"}},
	}

	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{}, google, apollo)

	_, err := svc.Ingest(context.Background(), model.IngestRequest{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, google.SearchQueries, "google only runs on request")

	_, err = svc.Ingest(context.Background(), model.IngestRequest{Query: "q", UseGoogle: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, google.SearchQueries)
}

func TestIngestGraphFailureAborts(t *testing.T) {
	conn := &connector.Fake{
		ConnectorName: "apollo",
		Caps:          connector.Capabilities{SupportsSearch: true},
		Companies:     []model.Company{{ID: "co-apollo:1", Name: "Philips", Source: "apollo"}},
	}

	store := newFakeStore()
	store.writeErr = errors.New("connection reset")
	svc := newTestService(store, newFakeIndex(), &fakeCache{}, conn)

	_, err := svc.Ingest(context.Background(), model.IngestRequest{Query: "q", LoadToGraph: true})
	require.Error(t, err)
}

const surplusText = "Philips reported excess inventory across consumer lines. " +
	"Management said elevated inventory levels will persist into Q3. " +
	"An inventory correction program has started."

func TestDetectAndStorePersistsScoredSignals(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	svc := newTestService(store, index, &fakeCache{})

	res, err := svc.DetectAndStore(context.Background(), model.DetectRequest{
		CompanyID:   "co-apollo:1",
		CompanyName: "Philips",
		Text:        surplusText,
		SourceType:  "press_release",
		SourceDate:  time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Signals)

	sig := res.Signals[0]
	assert.Equal(t, model.SignalInventorySurplus, sig.Type)
	assert.Greater(t, sig.Confidence, 0.0)
	assert.Greater(t, sig.DealPotential, 0.0)

	assert.Contains(t, store.signals, sig.ID)
	require.NotEmpty(t, store.edges)
	assert.Contains(t, store.edges[0], storage.EdgeDetectedFor)

	require.Len(t, index.upserts[rag.CollectionSignals], len(res.Signals))

	require.NotEmpty(t, store.insights, "every stored signal gets a narrative insight")
	assert.Equal(t, sig.ID, store.insights[0].SignalID)
	assert.Contains(t, store.insights[0].Content, "Philips")
}

func TestDetectAndStoreAppliesRelationshipModifiers(t *testing.T) {
	store := newFakeStore()
	store.companies["co-apollo:1"] = model.Company{ID: "co-apollo:1", Name: "Philips"}
	store.companies["co-apollo:2"] = model.Company{
		ID:           "co-apollo:2",
		Name:         "Philips",
		Relationship: &model.Relationship{ActiveSupplier: true},
	}
	svc := newTestService(store, newFakeIndex(), &fakeCache{})

	req := model.DetectRequest{
		CompanyID:   "co-apollo:1",
		CompanyName: "Philips",
		Text:        surplusText,
		SourceType:  "press_release",
		SourceDate:  time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	neutral, err := svc.DetectAndStore(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, neutral.Signals)

	req.CompanyID = "co-apollo:2"
	supplier, err := svc.DetectAndStore(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, supplier.Signals)

	assert.Equal(t, neutral.Signals[0].DealPotential+15, supplier.Signals[0].DealPotential,
		"an active supplier relationship raises deal potential")
}

func TestDetectAndStoreIdempotentIDs(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeIndex(), &fakeCache{})

	req := model.DetectRequest{
		CompanyID:   "co-apollo:1",
		CompanyName: "Philips",
		Text:        surplusText,
		SourceType:  "press_release",
		SourceURL:   "https://example.com/q3",
		SourceDate:  time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	first, err := svc.DetectAndStore(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.DetectAndStore(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Signals[0].ID, second.Signals[0].ID)
	assert.Len(t, store.signals, len(first.Signals), "re-detection converges instead of duplicating")
}

func TestDetectAndStoreVectorDegrades(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	index.err = errors.New("qdrant unreachable")
	svc := newTestService(store, index, &fakeCache{})

	res, err := svc.DetectAndStore(context.Background(), model.DetectRequest{
		CompanyID:   "co-apollo:1",
		CompanyName: "Philips",
		Text:        surplusText,
		SourceType:  "press_release",
	})
	require.NoError(t, err, "vector failure must not abort")
	require.NotEmpty(t, res.Signals)
	assert.NotEmpty(t, store.signals, "graph write happens before the vector stage")

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "not vectorized") {
			found = true
		}
	}
	assert.True(t, found, "degradation is reported, warnings: %v", res.Warnings)
}

func TestDetectAndStoreValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{})

	var verr *model.ValidationError
	_, err := svc.DetectAndStore(context.Background(), model.DetectRequest{})
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestDetectAndStoreNoMatchesIsEmpty(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeIndex(), &fakeCache{})

	res, err := svc.DetectAndStore(context.Background(), model.DetectRequest{
		CompanyID:   "co-apollo:1",
		CompanyName: "Philips",
		Text:        "The weather in Eindhoven was pleasant today.",
		SourceType:  "press_release",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
	assert.Empty(t, store.signals)
}

func TestRecordOutcomeCopiesIntoOutcomeCollection(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	cache := &fakeCache{}
	svc := newTestService(store, index, cache)

	store.signals["sig:abc"] = model.Signal{
		ID:          "sig:abc",
		CompanyID:   "co-apollo:1",
		CompanyName: "Philips",
		Type:        model.SignalInventorySurplus,
		Title:       "Philips: Inventory surplus",
		Status:      model.StatusNew,
	}

	value := 250000.0
	sig, warnings, err := svc.RecordOutcome(context.Background(), "sig:abc", model.OutcomeRequest{
		Result:    model.OutcomeDealWon,
		DealValue: &value,
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.NotNil(t, sig.Outcome)
	assert.Equal(t, model.OutcomeDealWon, sig.Outcome.Result)

	points := index.upserts[rag.CollectionOutcomes]
	require.Len(t, points, 1)
	require.NotNil(t, points[0].Signal.Outcome)
	assert.Equal(t, 1, cache.invalidations)
}

func TestRecordOutcomeReusesStoredVector(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	svc := newTestService(store, index, &fakeCache{})

	store.signals["sig:abc"] = model.Signal{
		ID:        "sig:abc",
		CompanyID: "co-apollo:1",
		Type:      model.SignalInventorySurplus,
		Status:    model.StatusNew,
	}
	// The signal was indexed with this vector; the embedder would now
	// produce a different one.
	index.upserts[rag.CollectionSignals] = []search.Point{
		{Signal: model.Signal{ID: "sig:abc"}, Embedding: []float32{0.25, 0.5, 0, 0}},
	}

	_, warnings, err := svc.RecordOutcome(context.Background(), "sig:abc", model.OutcomeRequest{
		Result: model.OutcomeDealWon,
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	points := index.upserts[rag.CollectionOutcomes]
	require.Len(t, points, 1)
	assert.Equal(t, []float32{0.25, 0.5, 0, 0}, points[0].Embedding,
		"outcome point carries the signal's stored vector, not a fresh embedding")
}

func TestRecordOutcomeUnknownSignal(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{})

	_, _, err := svc.RecordOutcome(context.Background(), "sig:missing", model.OutcomeRequest{
		Result: model.OutcomeDealWon,
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordOutcomeVectorDegrades(t *testing.T) {
	store := newFakeStore()
	store.signals["sig:abc"] = model.Signal{ID: "sig:abc", Type: model.SignalInventorySurplus}
	index := newFakeIndex()
	index.err = errors.New("qdrant unreachable")
	svc := newTestService(store, index, &fakeCache{})

	sig, warnings, err := svc.RecordOutcome(context.Background(), "sig:abc", model.OutcomeRequest{
		Result: model.OutcomeDealLost,
	})
	require.NoError(t, err)
	require.NotNil(t, sig.Outcome)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "not vectorized")
}

func TestRecordMeetingWritesNodeAndEdges(t *testing.T) {
	store := newFakeStore()
	store.companies["co-apollo:1"] = model.Company{ID: "co-apollo:1", Name: "Philips"}
	cache := &fakeCache{}
	svc := newTestService(store, newFakeIndex(), cache)

	req := model.MeetingRequest{
		CompanyID: "co-apollo:1",
		Subject:   "Q3 surplus intro call",
		Notes:     "Walked through the consumer-lines overstock.",
		PersonIDs: []string{"pe-apollo:1"},
	}
	m, err := svc.RecordMeeting(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.ID, "mt:"), "meeting IDs are canonical, got %q", m.ID)
	assert.False(t, m.OccurredAt.IsZero(), "unset occurred_at defaults to the clock")

	require.Len(t, store.meetings, 1)
	assert.Equal(t, "co-apollo:1", store.meetings[0].CompanyID)
	require.Len(t, store.edges, 1, "one ABOUT edge per attendee")
	assert.Equal(t, m.ID+"|pe-apollo:1|"+storage.EdgeAbout, store.edges[0])
	assert.Equal(t, 1, cache.invalidations)

	// Re-recording the same meeting converges on the same node.
	again, err := svc.RecordMeeting(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID)
}

func TestRecordMeetingUnknownCompany(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{})

	_, err := svc.RecordMeeting(context.Background(), model.MeetingRequest{
		CompanyID: "co-missing",
		Subject:   "Intro call",
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordMeetingValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{})

	var verr *model.ValidationError
	_, err := svc.RecordMeeting(context.Background(), model.MeetingRequest{})
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestLoadImport(t *testing.T) {
	store := newFakeStore()
	cache := &fakeCache{}
	svc := newTestService(store, newFakeIndex(), cache)

	parsed := importer.Result{
		Companies: []canonical.RawCompany{
			{Name: "Gerhard Schubert GmbH", City: "Crailsheim", Country: "Deutschland", Source: "import:b1"},
			{Name: "Henkel AG & Co. KGaA", City: "Düsseldorf", Source: "import:b1"},
		},
		People: []canonical.RawPerson{
			{FullName: "Maria Santos", Department: "Einkauf", CompanyKey: "Gerhard Schubert GmbH", Source: "import:b1"},
		},
		Skipped:  1,
		Warnings: []string{"row 4: no company name, skipped"},
	}

	res, err := svc.LoadImport(context.Background(), parsed, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", res.BatchID)
	assert.Equal(t, 2, res.Counts["companies"])
	assert.Equal(t, 1, res.Counts["people"])
	assert.Equal(t, 1, res.Counts["skipped"])

	require.Len(t, store.edges, 1)
	schubertID := model.CompanyID("import:b1", "Gerhard Schubert GmbH")
	assert.Equal(t, fmt.Sprintf("%s|%s|%s",
		model.PersonID("import:b1", "Maria Santos|"), schubertID, storage.EdgeWorksAt), store.edges[0])
	assert.Equal(t, 1, cache.invalidations)
}

func TestTestConnections(t *testing.T) {
	ok := &connector.Fake{ConnectorName: "apollo"}
	bad := &connector.Fake{ConnectorName: "kvk", Err: errors.New("bad key")}
	svc := newTestService(newFakeStore(), newFakeIndex(), &fakeCache{}, ok, bad)

	out := svc.TestConnections(context.Background())
	assert.NoError(t, out["apollo"])
	assert.Error(t, out["kvk"])
}
