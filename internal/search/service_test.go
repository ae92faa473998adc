package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/rag"
	"github.com/signalhaus/signalhaus/internal/storage"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeIndex struct {
	contexts []rag.Context
	err      error
}

func (f fakeIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	return nil
}

func (f fakeIndex) Query(ctx context.Context, collection string, embedding []float32, filter rag.Filter, limit int) ([]rag.Context, error) {
	return f.contexts, f.err
}

func (f fakeIndex) FetchVector(ctx context.Context, collection, signalID string) ([]float32, error) {
	return nil, nil
}

func (f fakeIndex) DeleteCollections(ctx context.Context) error { return nil }
func (f fakeIndex) Healthy(ctx context.Context) error           { return nil }

type fakeGraph struct {
	companies map[string]model.Company
	people    []model.Person
	signals   map[string]model.Signal
	open      []model.Signal
	neighbors map[string][]storage.Neighbor
}

func (f fakeGraph) SearchCompaniesByName(ctx context.Context, q string, limit int) ([]model.Company, error) {
	var out []model.Company
	for _, c := range f.companies {
		out = append(out, c)
	}
	return out, nil
}

func (f fakeGraph) SearchPeopleByName(ctx context.Context, q string, limit int) ([]model.Person, error) {
	return f.people, nil
}

func (f fakeGraph) GetSignal(ctx context.Context, id string) (model.Signal, error) {
	sig, ok := f.signals[id]
	if !ok {
		return model.Signal{}, storage.ErrNotFound
	}
	return sig, nil
}

func (f fakeGraph) ListOpenSignals(ctx context.Context, now time.Time, limit int) ([]model.Signal, error) {
	return f.open, nil
}

func (f fakeGraph) Neighborhood(ctx context.Context, originID string, depth int) ([]storage.Neighbor, error) {
	return f.neighbors[originID], nil
}

func testService(embed rag.Embedder, index Index, graph GraphReader) *Service {
	return NewService(embed, index, graph, slog.New(slog.DiscardHandler))
}

func TestSemanticSignals(t *testing.T) {
	index := fakeIndex{contexts: []rag.Context{
		{SignalID: "sig:a", CompanyName: "Philips", SignalType: model.SignalInventorySurplus, Title: "Philips: Inventory Surplus", Similarity: 0.9},
		{SignalID: "sig:b", CompanyName: "Henkel", SignalType: model.SignalRestructuring, Title: "Henkel: Restructuring", Similarity: 0.7},
	}}
	svc := testService(fakeEmbedder{vec: []float32{0.1}}, index, fakeGraph{})

	hits, err := svc.Semantic(context.Background(), "surplus inventory", KindSignal, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, KindSignal, hits[0].Kind)
	assert.Equal(t, "sig:a", hits[0].SignalID)
	assert.Equal(t, 0.9, hits[0].Score)
}

func TestSemanticCompaniesGroupsByCompany(t *testing.T) {
	// Two signals for the same company must collapse into one company hit
	// carrying the best score.
	index := fakeIndex{contexts: []rag.Context{
		{SignalID: "sig:a", CompanyName: "Philips", SignalType: model.SignalInventorySurplus, Title: "surplus", Similarity: 0.9},
		{SignalID: "sig:b", CompanyName: "Philips", SignalType: model.SignalEarningsMiss, Title: "miss", Similarity: 0.95},
		{SignalID: "sig:c", CompanyName: "Henkel", SignalType: model.SignalRestructuring, Title: "restructuring", Similarity: 0.6},
	}}
	graph := fakeGraph{signals: map[string]model.Signal{
		"sig:a": {ID: "sig:a", CompanyID: "co:philips"},
		"sig:b": {ID: "sig:b", CompanyID: "co:philips"},
		"sig:c": {ID: "sig:c", CompanyID: "co:henkel"},
	}}
	svc := testService(fakeEmbedder{vec: []float32{0.1}}, index, graph)

	hits, err := svc.Semantic(context.Background(), "struggling electronics makers", KindCompany, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "co:philips", hits[0].ID)
	assert.Equal(t, 0.95, hits[0].Score)
	assert.Equal(t, "sig:b", hits[0].SignalID, "best-scoring signal is surfaced")
	assert.Equal(t, "co:henkel", hits[1].ID)
}

func TestSemanticPersonUsesNameSearch(t *testing.T) {
	graph := fakeGraph{people: []model.Person{
		{ID: "p:1", FullName: "Maria Santos"},
	}}
	svc := testService(fakeEmbedder{err: errors.New("down")}, fakeIndex{}, graph)

	hits, err := svc.Semantic(context.Background(), "maria santos", KindPerson, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, KindPerson, hits[0].Kind)
	assert.Equal(t, "p:1", hits[0].ID)
	assert.Greater(t, hits[0].Score, 0.9)
}

func TestSemanticFallsBackWhenEmbedderDown(t *testing.T) {
	graph := fakeGraph{open: []model.Signal{
		{ID: "sig:a", CompanyName: "Philips", Type: model.SignalInventorySurplus, Title: "Philips: Inventory Surplus", Summary: "excess stock across consumer lines"},
		{ID: "sig:b", CompanyName: "Henkel", Type: model.SignalRestructuring, Title: "Henkel: Restructuring", Summary: "site consolidation"},
	}}
	svc := testService(fakeEmbedder{err: errors.New("no model")}, fakeIndex{}, graph)

	hits, err := svc.Semantic(context.Background(), "philips inventory surplus", KindSignal, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "sig:a", hits[0].ID)
}

func TestSemanticFallsBackWhenIndexDown(t *testing.T) {
	graph := fakeGraph{companies: map[string]model.Company{
		"co:philips": {ID: "co:philips", Name: "Philips"},
	}}
	svc := testService(fakeEmbedder{vec: []float32{0.1}}, fakeIndex{err: errors.New("unreachable")}, graph)

	hits, err := svc.Semantic(context.Background(), "philips", KindCompany, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "co:philips", hits[0].ID)
}

func TestSemanticValidation(t *testing.T) {
	svc := testService(fakeEmbedder{}, fakeIndex{}, fakeGraph{})

	_, err := svc.Semantic(context.Background(), "", KindSignal, 10)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.Semantic(context.Background(), "q", "deal", 10)
	require.ErrorAs(t, err, &verr)
}

func TestHybridAttachesNeighborhood(t *testing.T) {
	index := fakeIndex{contexts: []rag.Context{
		{SignalID: "sig:a", CompanyName: "Philips", SignalType: model.SignalInventorySurplus, Title: "surplus", Similarity: 0.9},
	}}
	graph := fakeGraph{
		signals: map[string]model.Signal{"sig:a": {ID: "sig:a", CompanyID: "co:philips"}},
		neighbors: map[string][]storage.Neighbor{
			"co:philips": {
				{ID: "p:1", EdgeType: storage.EdgeWorksAt, Depth: 1},
				{ID: "sig:a", EdgeType: storage.EdgeDetectedFor, Depth: 1},
			},
		},
	}
	svc := testService(fakeEmbedder{vec: []float32{0.1}}, index, graph)

	hits, err := svc.Hybrid(context.Background(), "philips", 10, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "co:philips", hits[0].Hit.ID)
	require.Len(t, hits[0].Neighbors, 2)
	assert.Equal(t, "p:1", hits[0].Neighbors[0].ID)
}
