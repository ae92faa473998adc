package model

import "time"

// RiskCategory is the closed 8-member set of deal risk categories.
type RiskCategory string

const (
	RiskAuthorityGaps     RiskCategory = "authority_gaps"
	RiskBlockerPower      RiskCategory = "blocker_power"
	RiskTimelineSlippage  RiskCategory = "timeline_slippage"
	RiskCompetitiveThreat RiskCategory = "competitive_threat"
	RiskChampionWeakness  RiskCategory = "champion_weakness"
	RiskHiddenAgenda      RiskCategory = "hidden_agenda"
	RiskNeedInflation     RiskCategory = "need_inflation"
	RiskQualificationGap  RiskCategory = "qualification_gap"
)

// Valid reports whether c is a defined risk category.
func (c RiskCategory) Valid() bool {
	switch c {
	case RiskAuthorityGaps, RiskBlockerPower, RiskTimelineSlippage,
		RiskCompetitiveThreat, RiskChampionWeakness, RiskHiddenAgenda,
		RiskNeedInflation, RiskQualificationGap:
		return true
	}
	return false
}

// Severity grades a risk.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// RiskStatus is the mitigation lifecycle of a risk. Risks at mitigated or
// accepted no longer contribute to the deal's total risk score.
type RiskStatus string

const (
	RiskOpen       RiskStatus = "open"
	RiskMitigating RiskStatus = "mitigating"
	RiskMitigated  RiskStatus = "mitigated"
	RiskAccepted   RiskStatus = "accepted"
	RiskRealized   RiskStatus = "realized"
)

// RiskSource records who raised the risk.
type RiskSource string

const (
	RiskSourceParanoidTwin RiskSource = "paranoid_twin"
	RiskSourceManual       RiskSource = "manual"
)

// MitigationAction is one step planned against a risk.
type MitigationAction struct {
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	Status      string     `json:"status,omitempty"` // open, done
}

// DealRisk is one entry in a deal's risk register.
type DealRisk struct {
	ID                    string             `json:"id"`
	DealID                string             `json:"deal_id"`
	Title                 string             `json:"title"`
	Description           string             `json:"description,omitempty"`
	Category              RiskCategory       `json:"category"`
	Severity              Severity           `json:"severity"`
	Probability           float64            `json:"probability"` // 0..100
	Impact                string             `json:"impact,omitempty"`
	Status                RiskStatus         `json:"status"`
	Source                RiskSource         `json:"source"`
	MitigationActions     []MitigationAction `json:"mitigation_actions,omitempty"`
	CounterEvidenceNeeded []string           `json:"counter_evidence_needed,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Active reports whether the risk still counts against the deal.
func (r DealRisk) Active() bool {
	return r.Status != RiskMitigated && r.Status != RiskAccepted
}
