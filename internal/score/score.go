// Package score computes signal confidence and deal potential. Confidence is
// a weighted sum of five factors; deal potential is an independent rubric over
// priority and relationship state. Both are clamped to [0,100] and may be
// nudged afterwards by the learning-loop boost.
package score

import (
	"strings"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// Factor weights. They sum to 1 so each factor is already on the 0..100 scale.
const (
	weightReliability   = 0.25
	weightStrength      = 0.25
	weightRecency       = 0.20
	weightCorroboration = 0.15
	weightHistorical    = 0.15
)

// sourceReliability ranks source types by how often they turn out to be true.
var sourceReliability = map[string]float64{
	"sec_filing":               100,
	"10-k":                     100,
	"official_filing":          100,
	"annual_report":            100,
	"earnings_call_transcript": 100,
	"bloomberg":                90,
	"reuters":                  90,
	"financial_press":          90,
	"press_release":            72,
	"trade_press":              72,
	"linkedin":                 55,
	"social_media":             45,
	"rumor":                    25,
}

// officialSources get a +10 strength bonus; investorSources +5.
var officialSources = map[string]bool{
	"sec_filing": true, "10-k": true, "official_filing": true, "annual_report": true,
}

var investorSources = map[string]bool{
	"earnings_call_transcript": true, "investor_relations": true, "investor_presentation": true,
}

var strengthBase = map[model.Priority]float64{
	model.PriorityHot:          85,
	model.PriorityStrategic:    75,
	model.PriorityMarket:       65,
	model.PriorityRelationship: 60,
}

var historicalDefault = map[model.Priority]float64{
	model.PriorityHot:          80,
	model.PriorityStrategic:    70,
	model.PriorityMarket:       60,
	model.PriorityRelationship: 55,
}

// Inputs carries the scoring context that lives outside the signal itself.
type Inputs struct {
	// Corroborations is the number of additional sources reporting the
	// same event.
	Corroborations int
	// History maps signal types to their observed success rate in [0,1].
	// Types without history fall back to a per-priority default.
	History map[model.SignalType]float64
	// StrengthOverride replaces the derived signal-strength factor when set.
	StrengthOverride *float64
	Now              time.Time
}

// Breakdown records each factor's value for explainability.
type Breakdown struct {
	SourceReliability  float64 `json:"source_reliability"`
	SignalStrength     float64 `json:"signal_strength"`
	Recency            float64 `json:"recency"`
	Corroboration      float64 `json:"corroboration"`
	HistoricalAccuracy float64 `json:"historical_accuracy"`
}

// Confidence computes the five-factor weighted confidence for a signal.
func Confidence(sig model.Signal, in Inputs) (float64, Breakdown) {
	b := Breakdown{
		SourceReliability:  reliability(sig.SourceType),
		SignalStrength:     strength(sig, in.StrengthOverride),
		Recency:            recency(sig.SourceDate, in.Now),
		Corroboration:      corroboration(in.Corroborations),
		HistoricalAccuracy: historical(sig.Type, in.History),
	}
	total := weightReliability*b.SourceReliability +
		weightStrength*b.SignalStrength +
		weightRecency*b.Recency +
		weightCorroboration*b.Corroboration +
		weightHistorical*b.HistoricalAccuracy
	return model.Clamp100(total), b
}

func reliability(sourceType string) float64 {
	if v, ok := sourceReliability[strings.ToLower(strings.TrimSpace(sourceType))]; ok {
		return v
	}
	return 40
}

func strength(sig model.Signal, override *float64) float64 {
	if override != nil {
		return model.Clamp100(*override)
	}
	v := strengthBase[sig.Priority]
	if v == 0 {
		v = strengthBase[model.PriorityRelationship]
	}
	st := strings.ToLower(strings.TrimSpace(sig.SourceType))
	if officialSources[st] {
		v += 10
	} else if investorSources[st] {
		v += 5
	}
	return model.Clamp100(v)
}

// recency decays with the age of the source material. Future-dated material
// counts as fresh; a missing date is scored neutrally.
func recency(sourceDate, now time.Time) float64 {
	if sourceDate.IsZero() {
		return 50
	}
	age := now.Sub(sourceDate)
	if age < 0 {
		return 100
	}
	days := age.Hours() / 24
	switch {
	case days <= 1:
		return 100
	case days <= 3:
		return 95
	case days <= 7:
		return 85
	case days <= 14:
		return 75
	case days <= 30:
		return 65
	case days <= 60:
		return 50
	case days <= 90:
		return 35
	default:
		return 20
	}
}

func corroboration(sources int) float64 {
	switch {
	case sources >= 5:
		return 100
	case sources >= 3:
		return 90
	case sources >= 2:
		return 80
	case sources == 1:
		return 65
	default:
		return 40
	}
}

func historical(t model.SignalType, history map[model.SignalType]float64) float64 {
	if rate, ok := history[t]; ok {
		return model.Clamp100(rate * 100)
	}
	return historicalDefault[t.Priority()]
}

// Label maps a confidence score to its action band.
func Label(confidence float64) string {
	switch {
	case confidence >= 90:
		return "Very High: act now"
	case confidence >= 75:
		return "High: prioritize"
	case confidence >= 60:
		return "Medium: investigate"
	default:
		return "Low: monitor only"
	}
}
