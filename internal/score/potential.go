package score

import "github.com/signalhaus/signalhaus/internal/model"

// Competition describes how contested a supplier relationship is.
type Competition string

const (
	CompetitionLow     Competition = "low"
	CompetitionHigh    Competition = "high"
	CompetitionUnknown Competition = ""
)

// CompanyState is what we already know about the relationship with the
// company behind a signal.
type CompanyState struct {
	ActiveSupplier bool
	PastGMVEUR     float64
	Competition    Competition
}

const potentialBase = 50

var priorityBonus = map[model.Priority]float64{
	model.PriorityHot:          25,
	model.PriorityStrategic:    15,
	model.PriorityMarket:       10,
	model.PriorityRelationship: 5,
}

// DealPotential scores how likely a signal converts into a transaction,
// independent of confidence.
func DealPotential(priority model.Priority, state CompanyState) float64 {
	v := float64(potentialBase) + priorityBonus[priority]
	if state.ActiveSupplier {
		v += 15
	}
	switch {
	case state.PastGMVEUR > 1_000_000:
		v += 10
	case state.PastGMVEUR > 100_000:
		v += 5
	}
	switch state.Competition {
	case CompetitionLow:
		v += 10
	case CompetitionHigh:
		v -= 10
	}
	return model.Clamp100(v)
}
