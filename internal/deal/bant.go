package deal

import (
	"fmt"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// BANT thresholds on the 0..100 total.
const (
	BANTCommitThreshold = 70
	BANTStrongThreshold = 90
)

// ScoreBANT evaluates the four-factor qualification rubric against the
// asserted deal facts and the persona map. Each sub-score lands in [0,25]
// after penalties.
func ScoreBANT(facts model.DealFacts, personas []model.BuyerPersona, now time.Time) model.BANT {
	b := model.BANT{
		Budget:    scoreBudget(facts, personas),
		Authority: scoreAuthority(personas),
		Need:      scoreNeed(facts),
		Timeline:  scoreTimeline(facts),
		ScoredAt:  now,
	}
	b.Total = b.Budget.Score + b.Authority.Score + b.Need.Score + b.Timeline.Score
	return b
}

func scoreBudget(facts model.DealFacts, personas []model.BuyerPersona) model.BANTScore {
	eb := findOne(personas, model.PersonaEconomicBuyer)
	ebEngaged := eb != nil && eb.Engagement == model.EngagementEngaged

	var s model.BANTScore
	switch {
	case facts.BudgetConfirmed && facts.POReady:
		s.Score = 25
		s.Evidence = append(s.Evidence, "budget confirmed", "purchase order ready")
	case facts.BudgetConfirmed && facts.ApprovalProcessClear && ebEngaged:
		s.Score = 20
		s.Evidence = append(s.Evidence, "budget confirmed", "approval process mapped", "economic buyer engaged")
	case facts.BudgetConfirmed:
		s.Score = 15
		s.Evidence = append(s.Evidence, "budget confirmed")
		s.Gaps = append(s.Gaps, "approval process not mapped")
	case facts.BudgetAmount != nil:
		s.Score = 10
		s.Evidence = append(s.Evidence, fmt.Sprintf("budget amount known (%.0f)", *facts.BudgetAmount))
		s.Gaps = append(s.Gaps, "budget not confirmed")
	case eb != nil:
		s.Score = 5
		s.Evidence = append(s.Evidence, "economic buyer identified")
		s.Gaps = append(s.Gaps, "no budget information")
	default:
		s.Gaps = append(s.Gaps, "no budget information", "no economic buyer")
	}
	if !facts.POReady && s.Score >= 15 {
		s.Gaps = append(s.Gaps, "no purchase order yet")
	}
	s.Confidence = rubricConfidence(s)
	return s
}

func scoreAuthority(personas []model.BuyerPersona) model.BANTScore {
	eb := findOne(personas, model.PersonaEconomicBuyer)
	ebEngaged := eb != nil && eb.Engagement == model.EngagementEngaged

	concern := false
	for _, p := range personas {
		if p.Engagement == model.EngagementCautious || p.Engagement == model.EngagementBlocking {
			concern = true
			break
		}
	}

	var s model.BANTScore
	switch {
	case ebEngaged && !concern:
		s.Score = 25
		s.Evidence = append(s.Evidence, "economic buyer engaged", "no stakeholder resistance")
	case ebEngaged:
		s.Score = 20
		s.Evidence = append(s.Evidence, "economic buyer engaged")
		s.Gaps = append(s.Gaps, "resistant stakeholder in the persona map")
	case eb != nil:
		s.Score = 15
		s.Evidence = append(s.Evidence, "economic buyer identified")
		s.Gaps = append(s.Gaps, "economic buyer not engaged")
	case hasEngagedInfluencer(personas):
		s.Score = 10
		s.Evidence = append(s.Evidence, "champion or influencer active")
		s.Gaps = append(s.Gaps, "no economic buyer identified")
	case len(personas) > 0:
		s.Score = 5
		s.Evidence = append(s.Evidence, "stakeholders identified")
		s.Gaps = append(s.Gaps, "no decision maker in the persona map")
	default:
		s.Gaps = append(s.Gaps, "no personas on the deal")
	}

	for _, p := range personas {
		if p.Type == model.PersonaBlocker && p.CanVeto &&
			(p.Engagement == model.EngagementSilent || p.Engagement == model.EngagementBlocking) {
			s.Score -= 5
			s.Gaps = append(s.Gaps, "veto holder "+p.Name+" is "+string(p.Engagement))
		}
	}
	if s.Score < 0 {
		s.Score = 0
	}
	s.Confidence = rubricConfidence(s)
	return s
}

func scoreNeed(facts model.DealFacts) model.BANTScore {
	var s model.BANTScore
	switch {
	case facts.NeedCritical && facts.NeedQuantified && facts.NeedUrgent:
		s.Score = 25
		s.Evidence = append(s.Evidence, "need critical", "need quantified", "need urgent")
	case facts.NeedCritical && (facts.NeedQuantified || facts.NeedUrgent):
		s.Score = 20
		s.Evidence = append(s.Evidence, "need critical")
		if facts.NeedQuantified {
			s.Evidence = append(s.Evidence, "need quantified")
			s.Gaps = append(s.Gaps, "urgency not established")
		} else {
			s.Evidence = append(s.Evidence, "need urgent")
			s.Gaps = append(s.Gaps, "impact not quantified")
		}
	case facts.NeedCritical || facts.NeedQuantified:
		s.Score = 15
		s.Evidence = append(s.Evidence, "partial need evidence")
		s.Gaps = append(s.Gaps, "need only partially established")
	case facts.NeedDescribed:
		s.Score = 10
		s.Evidence = append(s.Evidence, "need described")
		s.Gaps = append(s.Gaps, "no urgency", "no quantification")
	default:
		s.Score = 5
		s.Gaps = append(s.Gaps, "no articulated need")
	}
	s.Confidence = rubricConfidence(s)
	return s
}

func scoreTimeline(facts model.DealFacts) model.BANTScore {
	var s model.BANTScore
	switch {
	case facts.DeadlineHard && facts.DeadlineEventDriven:
		s.Score = 25
		s.Evidence = append(s.Evidence, "hard, event-driven deadline")
	case facts.DeadlineHard || facts.DeadlineEventDriven:
		s.Score = 20
		if facts.DeadlineHard {
			s.Evidence = append(s.Evidence, "hard deadline")
		} else {
			s.Evidence = append(s.Evidence, "event-driven deadline")
		}
		// A firm date the buyer calls flexible is softer than it looks.
		if facts.TimelineFlexible {
			s.Score -= 2
			s.Gaps = append(s.Gaps, "buyer calls the date flexible")
		}
	case facts.TimelineFlexible:
		s.Score = 15
		s.Evidence = append(s.Evidence, "target date with flexibility")
	case facts.TimelineVague:
		s.Score = 10
		s.Gaps = append(s.Gaps, "timeline is vague")
	default:
		s.Score = 5
		s.Gaps = append(s.Gaps, "no timeline pressure")
	}
	if facts.TimelineSlipped {
		s.Score -= 5
		s.Gaps = append(s.Gaps, "timeline has slipped before")
	}
	if s.Score < 0 {
		s.Score = 0
	}
	s.Confidence = rubricConfidence(s)
	return s
}

func hasEngagedInfluencer(personas []model.BuyerPersona) bool {
	for _, p := range personas {
		switch p.Type {
		case model.PersonaChampion, model.PersonaTechnicalBuyer, model.PersonaUserBuyer:
			if p.Engagement == model.EngagementEngaged {
				return true
			}
		}
	}
	return false
}

// rubricConfidence derives evaluator certainty from how much evidence backs
// the sub-score versus how much is missing.
func rubricConfidence(s model.BANTScore) float64 {
	v := 50 + 10*float64(len(s.Evidence)) - 10*float64(len(s.Gaps))
	if v < 20 {
		return 20
	}
	if v > 95 {
		return 95
	}
	return v
}
