package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/signalhaus/signalhaus/internal/model"
)

func baseSignal(t model.SignalType, sourceType string, sourceDate time.Time) model.Signal {
	return model.Signal{
		Type:       t,
		Priority:   t.Priority(),
		SourceType: sourceType,
		SourceDate: sourceDate,
	}
}

func TestConfidenceEarningsCallToday(t *testing.T) {
	now := time.Now()
	sig := baseSignal(model.SignalInventorySurplus, "earnings_call_transcript", now)

	got, b := Confidence(sig, Inputs{Now: now})
	// 0.25*100 + 0.25*90 + 0.20*100 + 0.15*40 + 0.15*80 = 85.5
	assert.InDelta(t, 85.5, got, 0.01)
	assert.Equal(t, 100.0, b.SourceReliability)
	assert.Equal(t, 90.0, b.SignalStrength, "hot base 85 plus investor-material bonus")
	assert.Equal(t, 100.0, b.Recency)
	assert.Equal(t, 40.0, b.Corroboration)
	assert.Equal(t, 80.0, b.HistoricalAccuracy)
	assert.GreaterOrEqual(t, got, 85.0)
}

func TestConfidenceRumorOldSignal(t *testing.T) {
	now := time.Now()
	sig := baseSignal(model.SignalTradeShowPresence, "rumor", now.AddDate(0, 0, -120))

	got, b := Confidence(sig, Inputs{Now: now})
	assert.Equal(t, 25.0, b.SourceReliability)
	assert.Equal(t, 60.0, b.SignalStrength)
	assert.Equal(t, 20.0, b.Recency)
	assert.Less(t, got, 60.0)
}

func TestConfidenceHistoryOverridesDefault(t *testing.T) {
	now := time.Now()
	sig := baseSignal(model.SignalEarningsMiss, "press_release", now)

	_, withDefault := Confidence(sig, Inputs{Now: now})
	assert.Equal(t, 80.0, withDefault.HistoricalAccuracy)

	_, withHistory := Confidence(sig, Inputs{
		Now:     now,
		History: map[model.SignalType]float64{model.SignalEarningsMiss: 0.45},
	})
	assert.Equal(t, 45.0, withHistory.HistoricalAccuracy)
}

func TestConfidenceStrengthOverride(t *testing.T) {
	now := time.Now()
	sig := baseSignal(model.SignalInventorySurplus, "press_release", now)
	override := 40.0

	_, b := Confidence(sig, Inputs{Now: now, StrengthOverride: &override})
	assert.Equal(t, 40.0, b.SignalStrength)
}

func TestRecencyBands(t *testing.T) {
	now := time.Now()
	tests := []struct {
		ageDays int
		want    float64
	}{
		{0, 100}, {2, 95}, {5, 85}, {10, 75}, {20, 65}, {45, 50}, {80, 35}, {200, 20},
	}
	for _, tt := range tests {
		got := recency(now.AddDate(0, 0, -tt.ageDays), now)
		assert.Equal(t, tt.want, got, "age %d days", tt.ageDays)
	}

	assert.Equal(t, 100.0, recency(now.AddDate(0, 0, 3), now), "future dates score fresh")
	assert.Equal(t, 50.0, recency(time.Time{}, now), "missing date scores neutral")
}

func TestCorroborationBands(t *testing.T) {
	tests := []struct {
		sources int
		want    float64
	}{
		{0, 40}, {1, 65}, {2, 80}, {3, 90}, {4, 90}, {5, 100}, {9, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, corroboration(tt.sources), "%d sources", tt.sources)
	}
}

func TestDealPotential(t *testing.T) {
	tests := []struct {
		name     string
		priority model.Priority
		state    CompanyState
		want     float64
	}{
		{"hot signal no relationship", model.PriorityHot, CompanyState{}, 75},
		{"relationship signal", model.PriorityRelationship, CompanyState{}, 55},
		{"active supplier with big gmv", model.PriorityHot,
			CompanyState{ActiveSupplier: true, PastGMVEUR: 2_000_000}, 100},
		{"mid gmv only counts once", model.PriorityMarket,
			CompanyState{PastGMVEUR: 500_000}, 65},
		{"high competition", model.PriorityHot,
			CompanyState{Competition: CompetitionHigh}, 65},
		{"low competition", model.PriorityStrategic,
			CompanyState{Competition: CompetitionLow}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DealPotential(tt.priority, tt.state))
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Very High: act now", Label(92))
	assert.Equal(t, "High: prioritize", Label(75))
	assert.Equal(t, "Medium: investigate", Label(64.9))
	assert.Equal(t, "Low: monitor only", Label(30))
}
