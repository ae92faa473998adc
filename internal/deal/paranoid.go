package deal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalhaus/signalhaus/internal/model"
)

// Failure probability bounds. Even a clean deal is never below 10 and even a
// doomed one never above 85; the analysis informs, it does not decide.
const (
	failureFloor   = 10
	failureCeiling = 85
)

// closePressureWindowDays is how close to the close date unresolved critical
// risks escalate.
const closePressureWindowDays = 7

// responseDecayThresholdHrs flags a critical persona as decaying when their
// average response time exceeds it.
const responseDecayThresholdHrs = 72

// ParanoidAnalysis is the outcome of one adversarial review. The working
// assumption is that the deal fails unless evidence says otherwise.
type ParanoidAnalysis struct {
	DealID             string           `json:"deal_id"`
	CriticalRisks      []model.DealRisk `json:"critical_risks"`
	SignificantRisks   []model.DealRisk `json:"significant_risks"`
	MitigatedCarried   []model.DealRisk `json:"mitigated_carried,omitempty"`
	FailureProbability float64          `json:"failure_probability"`
	TotalRiskScore     float64          `json:"total_risk_score"`
	Verdict            model.Verdict    `json:"verdict"`
	Recommendation     string           `json:"recommendation"`
	AnalyzedAt         time.Time        `json:"analyzed_at"`
}

// RunParanoid executes the fixed check battery against a deal. Risks from
// earlier runs that are mitigated or accepted are carried forward for the
// record but excluded from the probability combining; open human-authored
// risks still count.
func RunParanoid(d model.DealIntent, personas []model.BuyerPersona, existing []model.DealRisk, now time.Time) ParanoidAnalysis {
	a := ParanoidAnalysis{DealID: d.ID, AnalyzedAt: now}

	var produced []model.DealRisk
	produced = append(produced, checkAuthority(d, personas, now)...)
	produced = append(produced, checkBlockers(d, personas, now)...)
	produced = append(produced, checkTimeline(d, now)...)
	produced = append(produced, checkCompetition(d, now)...)
	produced = append(produced, checkChampionSPOC(d, personas, now)...)
	produced = append(produced, checkEngagementDecay(d, personas, now)...)
	produced = append(produced, checkQualification(d, now)...)

	// Fold in pre-existing register entries. Duplicate categories from the
	// previous paranoid run are superseded by this run's findings.
	seen := make(map[model.RiskCategory]bool)
	for _, r := range produced {
		seen[r.Category] = true
	}
	for _, r := range existing {
		if !r.Active() {
			a.MitigatedCarried = append(a.MitigatedCarried, r)
			continue
		}
		if r.Source == model.RiskSourceParanoidTwin && seen[r.Category] {
			continue
		}
		produced = append(produced, r)
	}

	for _, r := range produced {
		if r.Severity == model.SeverityCritical {
			a.CriticalRisks = append(a.CriticalRisks, r)
		} else {
			a.SignificantRisks = append(a.SignificantRisks, r)
		}
	}

	// Close pressure goes on top once the rest of the picture is known.
	if top := checkClosePressure(d, a.CriticalRisks, now); top != nil {
		a.CriticalRisks = append([]model.DealRisk{*top}, a.CriticalRisks...)
	}

	a.FailureProbability = combineFailureProbability(a.CriticalRisks, a.SignificantRisks)
	a.TotalRiskScore = totalRiskScore(a.CriticalRisks, a.SignificantRisks)
	a.Verdict = verdict(a)
	a.Recommendation = recommendation(a)
	return a
}

func newRisk(dealID string, cat model.RiskCategory, sev model.Severity, prob float64, title, desc string, counter []string, now time.Time) model.DealRisk {
	return model.DealRisk{
		ID:                    uuid.NewString(),
		DealID:                dealID,
		Title:                 title,
		Description:           desc,
		Category:              cat,
		Severity:              sev,
		Probability:           prob,
		Status:                model.RiskOpen,
		Source:                model.RiskSourceParanoidTwin,
		CounterEvidenceNeeded: counter,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func checkAuthority(d model.DealIntent, personas []model.BuyerPersona, now time.Time) []model.DealRisk {
	eb := findOne(personas, model.PersonaEconomicBuyer)
	if eb == nil {
		return []model.DealRisk{newRisk(d.ID, model.RiskAuthorityGaps, model.SeverityCritical, 70,
			"No economic buyer identified",
			"Nobody on the persona map owns the budget; the deal has no one to say yes.",
			[]string{"org chart naming the budget owner", "meeting booked with the economic buyer"},
			now)}
	}
	if days := SilenceDays(*eb, now); days < 0 || days >= economicBuyerCriticalSilenceDays {
		return []model.DealRisk{newRisk(d.ID, model.RiskAuthorityGaps, model.SeverityCritical, 35,
			"Economic buyer has gone silent",
			fmt.Sprintf("%s has not engaged for %d days; silence from the budget owner usually means the deal lost internal priority.", eb.Name, max(days, 0)),
			[]string{"reply or meeting from " + eb.Name, "champion confirms internal status"},
			now)}
	}
	return nil
}

func checkBlockers(d model.DealIntent, personas []model.BuyerPersona, now time.Time) []model.DealRisk {
	var risks []model.DealRisk
	for _, p := range personas {
		if p.Type != model.PersonaBlocker {
			continue
		}
		switch {
		case p.Engagement == model.EngagementBlocking:
			prob := 40.0
			if p.CanVeto {
				prob = 60
			}
			risks = append(risks, newRisk(d.ID, model.RiskBlockerPower, model.SeverityCritical, prob,
				"Active blocker: "+p.Name,
				p.Name+" is actively working against the deal.",
				[]string{"direct conversation with " + p.Name, "economic buyer overrules the objection"},
				now))
		case p.Engagement == model.EngagementSilent || IsSilent(p, now):
			risks = append(risks, newRisk(d.ID, model.RiskBlockerPower, model.SeverityMedium, 30,
				"Silent blocker: "+p.Name,
				"A known blocker who says nothing may be organizing resistance offline.",
				[]string{"read-out from " + p.Name + " on their position"},
				now))
		}
	}
	return risks
}

func checkTimeline(d model.DealIntent, now time.Time) []model.DealRisk {
	if !d.Facts.TimelineSlipped {
		return nil
	}
	return []model.DealRisk{newRisk(d.ID, model.RiskTimelineSlippage, model.SeverityMedium, 40,
		"Timeline has slipped before",
		"Dates that moved once move again; the stated close date is not load-bearing.",
		[]string{"written confirmation of the new date from the economic buyer"},
		now)}
}

func checkCompetition(d model.DealIntent, now time.Time) []model.DealRisk {
	if !d.Facts.CompetitorNamed || d.Facts.PreferenceConfirmed {
		return nil
	}
	return []model.DealRisk{newRisk(d.ID, model.RiskCompetitiveThreat, model.SeverityMedium, 25,
		"Named competitor, no confirmed preference",
		"The buyer mentioned a competitor and has not confirmed a preference for us.",
		[]string{"buyer states preference in writing", "competitor eliminated from the shortlist"},
		now)}
}

func checkChampionSPOC(d model.DealIntent, personas []model.BuyerPersona, now time.Time) []model.DealRisk {
	var engaged []model.BuyerPersona
	for _, p := range personas {
		if p.Engagement == model.EngagementEngaged {
			engaged = append(engaged, p)
		}
	}
	if len(engaged) != 1 || engaged[0].Type != model.PersonaChampion {
		return nil
	}
	return []model.DealRisk{newRisk(d.ID, model.RiskChampionWeakness, model.SeverityMedium, 25,
		"Champion is the single point of contact",
		"Only the champion is engaged; if they leave or lose influence the deal has no anchor.",
		[]string{"second engaged stakeholder", "economic buyer meets directly"},
		now)}
}

func checkEngagementDecay(d model.DealIntent, personas []model.BuyerPersona, now time.Time) []model.DealRisk {
	var risks []model.DealRisk
	for _, p := range personas {
		if p.Type != model.PersonaEconomicBuyer && p.Type != model.PersonaChampion {
			continue
		}
		if p.AvgResponseTimeHrs == nil || *p.AvgResponseTimeHrs <= responseDecayThresholdHrs {
			continue
		}
		cat := model.RiskChampionWeakness
		if p.Type == model.PersonaEconomicBuyer {
			cat = model.RiskAuthorityGaps
		}
		risks = append(risks, newRisk(d.ID, cat, model.SeverityMedium, 20,
			"Engagement decay: "+p.Name,
			fmt.Sprintf("Average response time is %.0f hours; interest is cooling.", *p.AvgResponseTimeHrs),
			[]string{"faster response on the next touchpoint"},
			now))
	}
	return risks
}

func checkQualification(d model.DealIntent, now time.Time) []model.DealRisk {
	if d.Stage != model.StageCommit && d.Stage != model.StageNegotiation {
		return nil
	}
	if d.BANT != nil && d.BANT.Total >= BANTCommitThreshold {
		return nil
	}
	desc := "The deal sits in late stage without a qualification score."
	if d.BANT != nil {
		desc = fmt.Sprintf("The deal sits in late stage with BANT %d, below the commit threshold.", d.BANT.Total)
	}
	return []model.DealRisk{newRisk(d.ID, model.RiskQualificationGap, model.SeverityCritical, 45,
		"Late stage without qualification", desc,
		[]string{"BANT re-scored at or above the commit threshold"},
		now)}
}

// checkClosePressure fires when the close date is inside the pressure window
// and critical risks remain unresolved. It returns the new top risk.
func checkClosePressure(d model.DealIntent, criticals []model.DealRisk, now time.Time) *model.DealRisk {
	if d.CloseDate == nil || len(criticals) == 0 {
		return nil
	}
	days := int(d.CloseDate.Sub(now).Hours() / 24)
	if days > closePressureWindowDays {
		return nil
	}
	r := newRisk(d.ID, model.RiskTimelineSlippage, model.SeverityCritical, 50,
		"Close date imminent with unresolved critical risks",
		fmt.Sprintf("%d days to close with %d unresolved critical risks; there is no runway left to fix them.", max(days, 0), len(criticals)),
		[]string{"every critical risk resolved or formally accepted", "close date moved"},
		now)
	return &r
}

// combineFailureProbability folds the two risk pools with the noisy-OR rule.
// Criticals combine at full weight, significants at half, then the pools
// combine once more the same way.
func combineFailureProbability(criticals, significants []model.DealRisk) float64 {
	pc := noisyOR(criticals, 1.0)
	ps := noisyOR(significants, 0.5)
	out := pc + ps*(1-pc/100)
	if out < failureFloor {
		return failureFloor
	}
	if out > failureCeiling {
		return failureCeiling
	}
	return out
}

func noisyOR(risks []model.DealRisk, weight float64) float64 {
	var out float64
	for _, r := range risks {
		out = out + r.Probability*weight*(1-out/100)
	}
	return out
}

// totalRiskScore is the unclamped-floor variant used by the commit gate: a
// deal with no open risks scores zero.
func totalRiskScore(criticals, significants []model.DealRisk) float64 {
	pc := noisyOR(criticals, 1.0)
	ps := noisyOR(significants, 0.5)
	return model.Clamp100(pc + ps*(1-pc/100))
}

func verdict(a ParanoidAnalysis) model.Verdict {
	switch {
	case len(a.CriticalRisks) >= 2:
		return model.VerdictBlock
	case len(a.CriticalRisks) == 1, a.FailureProbability > 40, len(a.SignificantRisks) >= 3:
		return model.VerdictHold
	default:
		return model.VerdictReady
	}
}

func recommendation(a ParanoidAnalysis) string {
	var top *model.DealRisk
	if len(a.CriticalRisks) > 0 {
		top = &a.CriticalRisks[0]
	}
	switch a.Verdict {
	case model.VerdictBlock:
		return fmt.Sprintf("Do not commit. %d critical risks stand. Start with %q; counter-evidence needed: %s.",
			len(a.CriticalRisks), top.Title, joinList(top.CounterEvidenceNeeded))
	case model.VerdictHold:
		if top != nil {
			return fmt.Sprintf("Hold. Resolve %q first; counter-evidence needed: %s.",
				top.Title, joinList(top.CounterEvidenceNeeded))
		}
		return fmt.Sprintf("Hold. Failure probability is %.0f%%; work the significant risks down before advancing.",
			a.FailureProbability)
	default:
		return "No fatal flaws found. Proceed with standard diligence."
	}
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "none recorded"
	}
	out := items[0]
	for _, s := range items[1:] {
		out += "; " + s
	}
	return out
}
