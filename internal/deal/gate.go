package deal

import (
	"fmt"

	"github.com/signalhaus/signalhaus/internal/model"
)

// maxCommitRiskScore is the gate's ceiling on the combined risk score.
const maxCommitRiskScore = 30

// GateItem is one finding from the commit gate, tagged with the category
// that produced it.
type GateItem struct {
	Category string `json:"category"` // personas, spin, bant, paranoid_twin
	Message  string `json:"message"`
}

// GateResult is the commit gate decision. Any blocking item alone prevents
// the move to commit; warnings only color the recommendation.
type GateResult struct {
	Passed         bool       `json:"passed"`
	Blocking       []GateItem `json:"blocking,omitempty"`
	Warnings       []GateItem `json:"warnings,omitempty"`
	Recommendation string     `json:"recommendation"`
}

// CheckCommitGate evaluates the four gate categories against the deal's
// current qualification state.
func CheckCommitGate(d model.DealIntent, personas []model.BuyerPersona, risks []model.DealRisk) GateResult {
	var r GateResult

	block := func(category, msg string) {
		r.Blocking = append(r.Blocking, GateItem{Category: category, Message: msg})
	}
	warn := func(category, msg string) {
		r.Warnings = append(r.Warnings, GateItem{Category: category, Message: msg})
	}

	// Personas.
	eb := findOne(personas, model.PersonaEconomicBuyer)
	switch {
	case eb == nil:
		block("personas", "no economic buyer identified")
	case eb.Engagement != model.EngagementEngaged:
		block("personas", "economic buyer identified but not engaged")
	}
	for _, p := range personas {
		if p.Type == model.PersonaBlocker && p.Engagement == model.EngagementBlocking {
			block("personas", "blocker "+p.Name+" is in state blocking")
		}
	}
	if findOne(personas, model.PersonaChampion) == nil {
		warn("personas", "no champion on the deal")
	}

	// SPIN.
	switch {
	case d.SPIN == nil:
		block("spin", "SPIN analysis not run")
	case d.SPIN.Completeness() < 100:
		block("spin", "SPIN quadrants incomplete")
	case d.SPIN.Score() < SPINCommitThreshold:
		block("spin", fmt.Sprintf("SPIN score %.0f below threshold %d", d.SPIN.Score(), SPINCommitThreshold))
	}

	// BANT.
	switch {
	case d.BANT == nil:
		block("bant", "BANT not scored")
	case d.BANT.Total < BANTCommitThreshold:
		block("bant", fmt.Sprintf("BANT total %d below threshold %d", d.BANT.Total, BANTCommitThreshold))
	case d.BANT.Total < BANTStrongThreshold:
		warn("bant", fmt.Sprintf("BANT total %d is above threshold but not a strong commit candidate", d.BANT.Total))
	}

	// Paranoid twin.
	if d.ParanoidReviewedAt == nil {
		block("paranoid_twin", "paranoid analysis never run")
	} else {
		openCriticals := 0
		for _, risk := range risks {
			if risk.Severity == model.SeverityCritical && risk.Active() {
				openCriticals++
			}
		}
		if openCriticals > 0 {
			block("paranoid_twin", fmt.Sprintf("%d open critical risks", openCriticals))
		}
		if d.TotalRiskScore > maxCommitRiskScore {
			block("paranoid_twin", fmt.Sprintf("total risk score %.0f exceeds ceiling %d", d.TotalRiskScore, maxCommitRiskScore))
		}
	}

	r.Passed = len(r.Blocking) == 0
	r.Recommendation = gateRecommendation(r)
	return r
}

// gateRecommendation picks one of three templates by blocking count.
func gateRecommendation(r GateResult) string {
	switch n := len(r.Blocking); {
	case n == 0:
		return "Clear to commit. All four gate categories pass."
	case n <= 2:
		return fmt.Sprintf("Close %d gap(s) before committing: %s.", n, itemSummary(r.Blocking))
	default:
		return fmt.Sprintf("Not ready for commit: %d blocking items across the gate. Rework qualification before advancing.", n)
	}
}

func itemSummary(items []GateItem) string {
	out := items[0].Message
	for _, it := range items[1:] {
		out += "; " + it.Message
	}
	return out
}
