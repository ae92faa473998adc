package detect

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhaus/signalhaus/internal/model"
)

func newTestDetector() *Detector {
	return New(slog.New(slog.DiscardHandler))
}

func TestDetectInventorySurplus(t *testing.T) {
	text := "Royal Philips reported third-quarter results today. " +
		"We continue to work through elevated inventory levels in our Personal Health division, " +
		"with approximately EUR 120 million in excess stock across shavers and grooming lines. " +
		"Management expects the destocking to continue into the next quarter."

	now := time.Now().UTC().Truncate(24 * time.Hour)
	src := Source{
		URL:  "https://example.com/philips-q3",
		Type: "press_release",
		Date: now,
	}

	signals := newTestDetector().Detect("co-apollo:abc123", "Philips", text, src, now)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, model.SignalInventorySurplus, sig.Type)
	assert.Equal(t, model.PriorityHot, sig.Priority)
	assert.Equal(t, "Philips: Inventory surplus", sig.Title)
	assert.Equal(t, model.StatusNew, sig.Status)
	assert.GreaterOrEqual(t, sig.Evidence.KeywordMatchCount, 2)
	require.Len(t, sig.Evidence.Quotes, 1)
	assert.Contains(t, sig.Evidence.Quotes[0], "excess stock")
	assert.Equal(t, now.AddDate(0, 0, 14), sig.ExpiresAt, "inventory surplus expires after 14 days")
	assert.Contains(t, sig.Summary, "elevated inventory")
}

func TestDetectSingleMatchIsNoise(t *testing.T) {
	text := "The company mentioned restructuring once, in passing."
	signals := newTestDetector().Detect("co-x:1", "Acme", text, Source{}, time.Now())
	assert.Empty(t, signals)
}

func TestDetectMultipleTypes(t *testing.T) {
	text := "The new CEO announced a restructuring program. " +
		"Following the leadership change, the reorganization will include job cuts " +
		"and a broader restructuring of the European business."

	signals := newTestDetector().Detect("co-x:1", "Acme", text, Source{}, time.Now())
	require.Len(t, signals, 2)

	types := []model.SignalType{signals[0].Type, signals[1].Type}
	assert.Contains(t, types, model.SignalLeadershipChange)
	assert.Contains(t, types, model.SignalRestructuring)
}

func TestDetectGermanKeywords(t *testing.T) {
	text := "Das Unternehmen kündigte ein Sparprogramm an. " +
		"Die Kostensenkung soll 50 Millionen Euro bringen, weitere Einsparungen sind geplant."

	signals := newTestDetector().Detect("co-x:1", "Muster GmbH", text, Source{}, time.Now())
	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalCostCuttingProgram, signals[0].Type)
}

func TestDetectCategories(t *testing.T) {
	lowered := strings.ToLower(
		"Surplus washing machine and dishwasher stock will be cleared. " +
			"A single mention of toys should not attach that category.")

	cats := detectCategories(lowered)
	assert.Contains(t, cats, model.CategoryHomeAppliance)
	assert.NotContains(t, cats, model.CategoryToys)
}

func TestDetectIdempotentIDs(t *testing.T) {
	text := "Excess stock and elevated inventory levels persist."
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	src := Source{URL: "https://example.com/a", Date: now}

	d := newTestDetector()
	first := d.Detect("co-x:1", "Acme", text, src, now)
	second := d.Detect("co-x:1", "Acme", text, src, now.Add(2*time.Hour))
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "same company, type, URL, and date re-detect the same signal")
}

func TestDetectMissingSourceDateDefaultsToNow(t *testing.T) {
	text := "Clearance sale announced: the liquidation covers all remaining stock."
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	signals := newTestDetector().Detect("co-x:1", "Acme", text, Source{}, now)
	require.Len(t, signals, 1)
	assert.Equal(t, now, signals[0].SourceDate)
	assert.Equal(t, now.AddDate(0, 0, 14), signals[0].ExpiresAt)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("inventory ", 40)
	got := truncate(long, maxQuoteLen)
	assert.LessOrEqual(t, len([]rune(got)), maxQuoteLen)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestDefinitionsCoverAllSignalTypes(t *testing.T) {
	seen := make(map[model.SignalType]bool)
	for _, def := range Definitions() {
		assert.True(t, def.Type.Valid(), "type %q", def.Type)
		assert.False(t, seen[def.Type], "duplicate rule for %q", def.Type)
		assert.NotEmpty(t, def.Keywords)
		assert.NotEmpty(t, def.WhyMatters)
		seen[def.Type] = true
	}
	assert.Len(t, seen, len(model.AllSignalTypes()))
}
