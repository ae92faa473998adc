package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhaus/signalhaus/internal/model"
)

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubSearcher struct {
	byCollection map[string][]Context
	err          error
}

func (s stubSearcher) Query(_ context.Context, collection string, _ []float32, _ Filter, _ int) ([]Context, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byCollection[collection], nil
}

func outcomep(r model.OutcomeResult) *model.OutcomeResult { return &r }

func TestComputeBoostThreeWins(t *testing.T) {
	contexts := []Context{
		{SignalID: "sig:1", Similarity: 0.9, Outcome: outcomep(model.OutcomeDealWon)},
		{SignalID: "sig:2", Similarity: 0.8, Outcome: outcomep(model.OutcomeDealWon)},
		{SignalID: "sig:3", Similarity: 0.75, Outcome: outcomep(model.OutcomeDealWon)},
	}
	b := ComputeBoost(contexts)
	assert.InDelta(t, 12.25, b.Confidence, 0.001)
	assert.InDelta(t, 12.25, b.DealPotential, 0.001)
}

func TestComputeBoostClamped(t *testing.T) {
	var contexts []Context
	for i := 0; i < 10; i++ {
		contexts = append(contexts, Context{Similarity: 0.95, Outcome: outcomep(model.OutcomeDealWon)})
	}
	b := ComputeBoost(contexts)
	assert.Equal(t, 15.0, b.Confidence)
	assert.Equal(t, 15.0, b.DealPotential)
}

func TestComputeBoostLossAsymmetry(t *testing.T) {
	contexts := []Context{
		{Similarity: 1.0, Outcome: outcomep(model.OutcomeDealLost)},
	}
	b := ComputeBoost(contexts)
	assert.Equal(t, -2.0, b.Confidence)
	assert.Equal(t, -3.0, b.DealPotential)
}

func TestComputeBoostIgnoresNeutralOutcomes(t *testing.T) {
	contexts := []Context{
		{Similarity: 0.9},
		{Similarity: 0.9, Outcome: outcomep(model.OutcomeExpired)},
		{Similarity: 0.9, Outcome: outcomep(model.OutcomeDismissed)},
	}
	b := ComputeBoost(contexts)
	assert.Zero(t, b.Confidence)
	assert.Zero(t, b.DealPotential)
}

func TestRetrieveMergesCollections(t *testing.T) {
	search := stubSearcher{byCollection: map[string][]Context{
		CollectionOutcomes: {
			{SignalID: "sig:a", Similarity: 0.9, Outcome: outcomep(model.OutcomeDealWon)},
			{SignalID: "sig:b", Similarity: 0.7, Outcome: outcomep(model.OutcomeDealLost)},
		},
		CollectionSignals: {
			{SignalID: "sig:a", Similarity: 0.9}, // duplicate, outcome copy wins
			{SignalID: "sig:c", Similarity: 0.8},
			{SignalID: "sig:self", Similarity: 1.0},
		},
	}}

	loop := New(stubEmbedder{}, search, slog.New(slog.DiscardHandler))
	got, err := loop.Retrieve(context.Background(), model.Signal{ID: "sig:self"}, Filter{})
	require.NoError(t, err)

	require.Len(t, got, 3, "self hit excluded, duplicate merged")
	assert.Equal(t, "sig:a", got[0].SignalID)
	assert.NotNil(t, got[0].Outcome, "first occurrence wins; outcomes collection is queried first")
	assert.Equal(t, "sig:c", got[1].SignalID)
	assert.Equal(t, "sig:b", got[2].SignalID)
}

func TestRetrieveCutsToK(t *testing.T) {
	hits := make([]Context, 12)
	for i := range hits {
		hits[i] = Context{SignalID: string(rune('a' + i)), Similarity: float64(12-i) / 12}
	}
	search := stubSearcher{byCollection: map[string][]Context{CollectionSignals: hits}}

	loop := New(stubEmbedder{}, search, slog.New(slog.DiscardHandler)).WithK(5)
	got, err := loop.Retrieve(context.Background(), model.Signal{ID: "x"}, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestAdjustDegradesToZeroBoost(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	loop := New(stubEmbedder{err: errors.New("embedder down")}, stubSearcher{}, log)
	b, contexts := loop.Adjust(context.Background(), model.Signal{ID: "x"}, Filter{})
	assert.Zero(t, b)
	assert.Nil(t, contexts)

	loop = New(stubEmbedder{}, stubSearcher{err: errors.New("vector store down")}, log)
	b, _ = loop.Adjust(context.Background(), model.Signal{ID: "x"}, Filter{})
	assert.Zero(t, b)
}

func TestEmbedText(t *testing.T) {
	sig := model.Signal{
		CompanyName: "Philips",
		Title:       "Philips: Inventory surplus",
		Summary:     "Elevated inventory levels in Personal Health.",
		Type:        model.SignalInventorySurplus,
		Categories:  []model.Category{model.CategoryPersonalCare},
		SourceType:  "earnings_call_transcript",
		Evidence: model.Evidence{Quotes: []string{
			"quote one", "quote two", "quote three", "quote four",
		}},
	}

	text := EmbedText(sig)
	assert.Contains(t, text, "Philips")
	assert.Contains(t, text, "inventory_surplus")
	assert.Contains(t, text, "personal_care")
	assert.Contains(t, text, "quote three")
	assert.NotContains(t, text, "quote four", "quotes capped at three")
	assert.False(t, strings.Contains(text, "\n\n"), "empty fields are dropped")
}
