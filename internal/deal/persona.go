// Package deal implements deal qualification: the persona model, the BANT and
// SPIN rubrics, the paranoid analysis, and the commit gate.
package deal

import (
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// Silence windows in days. The economic buyer gets the tightest window
// because a quiet budget owner is the single strongest failure predictor.
const (
	economicBuyerNotableSilenceDays  = 4
	economicBuyerCriticalSilenceDays = 5
	defaultSilenceDays               = 7
)

// Sentiment classifies an engagement event.
type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentConcerning Sentiment = "concerning"
	SentimentNeutral    Sentiment = "neutral"
)

// EngagementEvent is one recorded interaction with a persona.
type EngagementEvent struct {
	Sentiment       Sentiment `json:"sentiment"`
	Note            string    `json:"note,omitempty"`
	ResponseTimeHrs *float64  `json:"response_time_hours,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ApplyEngagement folds an event into a persona. Positive events advance the
// level to engaged, concerning events drop it to cautious, neutral events only
// refresh the last-contact date. A persona in state blocking stays blocking
// until explicitly changed; one good meeting does not unblock anyone.
func ApplyEngagement(p model.BuyerPersona, ev EngagementEvent) model.BuyerPersona {
	occurred := ev.OccurredAt
	p.LastEngagementDate = &occurred

	if p.Engagement != model.EngagementBlocking {
		switch ev.Sentiment {
		case SentimentPositive:
			p.Engagement = model.EngagementEngaged
		case SentimentConcerning:
			p.Engagement = model.EngagementCautious
		}
	}

	if ev.ResponseTimeHrs != nil {
		if p.AvgResponseTimeHrs == nil {
			p.AvgResponseTimeHrs = ev.ResponseTimeHrs
		} else {
			avg := (*p.AvgResponseTimeHrs + *ev.ResponseTimeHrs) / 2
			p.AvgResponseTimeHrs = &avg
		}
	}
	p.UpdatedAt = ev.OccurredAt
	return p
}

// SilenceDays returns full days since the persona was last heard from, or -1
// when there is no engagement on record.
func SilenceDays(p model.BuyerPersona, now time.Time) int {
	if p.LastEngagementDate == nil {
		return -1
	}
	d := now.Sub(*p.LastEngagementDate)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// IsSilent reports whether the persona has crossed its type-dependent
// silence window. Personas never contacted count as silent.
func IsSilent(p model.BuyerPersona, now time.Time) bool {
	days := SilenceDays(p, now)
	if days < 0 {
		return true
	}
	if p.Type == model.PersonaEconomicBuyer {
		return days >= economicBuyerNotableSilenceDays
	}
	return days >= defaultSilenceDays
}

// GapSeverity grades a coverage gap.
type GapSeverity string

const (
	GapCritical GapSeverity = "critical"
	GapWarning  GapSeverity = "warning"
)

// CoverageGap is one flagged hole in the persona map.
type CoverageGap struct {
	Severity GapSeverity `json:"severity"`
	Message  string      `json:"message"`
}

// CoverageEntry summarizes one persona type slot.
type CoverageEntry struct {
	Type       model.PersonaType `json:"persona_type"`
	Identified bool              `json:"identified"`
	Engaged    bool              `json:"engaged"`
	Cautious   bool              `json:"cautious"`
	Blocking   bool              `json:"blocking"`
	Missing    bool              `json:"missing"`
	Names      []string          `json:"names,omitempty"`
}

// CoverageReport is the result of coverage analysis over a deal's personas.
type CoverageReport struct {
	Entries []CoverageEntry `json:"entries"`
	Gaps    []CoverageGap   `json:"gaps,omitempty"`
}

// Coverage reports, per persona type, who is identified and how they are
// behaving, and flags the gaps that matter for qualification.
func Coverage(personas []model.BuyerPersona) CoverageReport {
	byType := make(map[model.PersonaType][]model.BuyerPersona)
	for _, p := range personas {
		byType[p.Type] = append(byType[p.Type], p)
	}

	var report CoverageReport
	for _, t := range model.AllPersonaTypes() {
		entry := CoverageEntry{Type: t, Missing: len(byType[t]) == 0}
		for _, p := range byType[t] {
			entry.Identified = true
			entry.Names = append(entry.Names, p.Name)
			switch p.Engagement {
			case model.EngagementEngaged:
				entry.Engaged = true
			case model.EngagementCautious:
				entry.Cautious = true
			case model.EngagementBlocking:
				entry.Blocking = true
			}
		}
		report.Entries = append(report.Entries, entry)
	}

	if len(byType[model.PersonaEconomicBuyer]) == 0 {
		report.Gaps = append(report.Gaps, CoverageGap{
			Severity: GapCritical,
			Message:  "no economic buyer identified",
		})
	}
	if len(byType[model.PersonaChampion]) == 0 {
		report.Gaps = append(report.Gaps, CoverageGap{
			Severity: GapWarning,
			Message:  "no champion identified",
		})
	}
	for _, p := range byType[model.PersonaBlocker] {
		if p.Engagement == model.EngagementBlocking {
			report.Gaps = append(report.Gaps, CoverageGap{
				Severity: GapCritical,
				Message:  "blocker " + p.Name + " is actively blocking",
			})
		}
	}
	return report
}

// findOne returns the first persona of the given type, if any.
func findOne(personas []model.BuyerPersona, t model.PersonaType) *model.BuyerPersona {
	for i := range personas {
		if personas[i].Type == t {
			return &personas[i]
		}
	}
	return nil
}
