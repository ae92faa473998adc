package model

import "time"

// PersonaType is the six-slot buyer persona taxonomy.
type PersonaType string

const (
	PersonaEconomicBuyer  PersonaType = "economic_buyer"
	PersonaTechnicalBuyer PersonaType = "technical_buyer"
	PersonaUserBuyer      PersonaType = "user_buyer"
	PersonaChampion       PersonaType = "champion"
	PersonaBlocker        PersonaType = "blocker"
	PersonaGatekeeper     PersonaType = "gatekeeper"
)

// AllPersonaTypes returns the persona taxonomy in coverage-report order.
func AllPersonaTypes() []PersonaType {
	return []PersonaType{
		PersonaEconomicBuyer, PersonaChampion, PersonaTechnicalBuyer,
		PersonaUserBuyer, PersonaBlocker, PersonaGatekeeper,
	}
}

// Valid reports whether t is a defined persona type.
func (t PersonaType) Valid() bool {
	switch t {
	case PersonaEconomicBuyer, PersonaTechnicalBuyer, PersonaUserBuyer,
		PersonaChampion, PersonaBlocker, PersonaGatekeeper:
		return true
	}
	return false
}

// EngagementLevel describes how a persona is currently behaving.
type EngagementLevel string

const (
	EngagementEngaged  EngagementLevel = "engaged"
	EngagementCautious EngagementLevel = "cautious"
	EngagementSilent   EngagementLevel = "silent"
	EngagementBlocking EngagementLevel = "blocking"
	EngagementUnknown  EngagementLevel = "unknown"
)

// BuyerPersona tracks one stakeholder on a deal.
// At most one economic buyer and at most one champion may exist per deal.
type BuyerPersona struct {
	ID                  string          `json:"id"`
	DealID              string          `json:"deal_id"`
	ContactID           string          `json:"contact_id,omitempty"`
	Name                string          `json:"name"`
	Type                PersonaType     `json:"persona_type"`
	Engagement          EngagementLevel `json:"engagement_level"`
	InfluenceScore      float64         `json:"influence_score"` // 0..100
	CanVeto             bool            `json:"can_veto"`
	CanApprove          bool            `json:"can_approve"`
	Motivations         []string        `json:"motivations,omitempty"`
	Concerns            []string        `json:"concerns,omitempty"`
	LastEngagementDate  *time.Time      `json:"last_engagement_date,omitempty"`
	AvgResponseTimeHrs  *float64        `json:"average_response_time_hours,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DealStage is the sales pipeline stage. Stage commit is gated: it is
// reachable only while CommitReady is true.
type DealStage string

const (
	StageDiscovery     DealStage = "discovery"
	StageQualification DealStage = "qualification"
	StageProposal      DealStage = "proposal"
	StageNegotiation   DealStage = "negotiation"
	StageCommit        DealStage = "commit"
)

// Valid reports whether s is a defined deal stage.
func (s DealStage) Valid() bool {
	switch s {
	case StageDiscovery, StageQualification, StageProposal, StageNegotiation, StageCommit:
		return true
	}
	return false
}

// BANTScore is one of the four qualification sub-scores. Score is clamped
// to [0, 25] after all penalties. Evidence records which rules fired; Gaps
// records missing proof.
type BANTScore struct {
	Score      int      `json:"score"` // 0..25
	Evidence   []string `json:"evidence,omitempty"`
	Gaps       []string `json:"gaps,omitempty"`
	Confidence float64  `json:"confidence"` // evaluator certainty, 0..100
}

// BANT holds the four sub-scores. Total is always their sum.
type BANT struct {
	Budget    BANTScore `json:"budget"`
	Authority BANTScore `json:"authority"`
	Need      BANTScore `json:"need"`
	Timeline  BANTScore `json:"timeline"`
	Total     int       `json:"total"` // 0..100
	ScoredAt  time.Time `json:"scored_at"`
}

// SPINEntry is one quadrant of the SPIN account.
type SPINEntry struct {
	Content    string   `json:"content,omitempty"`
	Confidence float64  `json:"confidence"` // 0..100
	Sources    []string `json:"sources,omitempty"`
}

// Filled reports whether the quadrant has content.
func (e SPINEntry) Filled() bool { return e.Content != "" }

// SPIN is the four-quadrant structured account of the buyer's context.
type SPIN struct {
	Situation   SPINEntry `json:"situation"`
	Problem     SPINEntry `json:"problem"`
	Implication SPINEntry `json:"implication"`
	NeedPayoff  SPINEntry `json:"need_payoff"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

// Quadrants returns the four entries in canonical order.
func (s SPIN) Quadrants() []SPINEntry {
	return []SPINEntry{s.Situation, s.Problem, s.Implication, s.NeedPayoff}
}

// Score is the average confidence of filled quadrants, 0 when none are filled.
func (s SPIN) Score() float64 {
	var sum float64
	var n int
	for _, q := range s.Quadrants() {
		if q.Filled() {
			sum += q.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Completeness is the fraction of filled quadrants times 100.
func (s SPIN) Completeness() float64 {
	var n int
	for _, q := range s.Quadrants() {
		if q.Filled() {
			n++
		}
	}
	return float64(n) / 4 * 100
}

// Verdict is the paranoid twin's judgment on a deal.
type Verdict string

const (
	VerdictReady Verdict = "READY"
	VerdictHold  Verdict = "HOLD"
	VerdictBlock Verdict = "BLOCK"
)

// DealFacts are the caller-asserted facts about a deal that the BANT and
// paranoid analyses evaluate alongside personas.
type DealFacts struct {
	BudgetConfirmed      bool     `json:"budget_confirmed"`
	BudgetAmount         *float64 `json:"budget_amount,omitempty"`
	POReady              bool     `json:"po_ready"`
	ApprovalProcessClear bool     `json:"approval_process_clear"`
	NeedCritical         bool     `json:"need_critical"`
	NeedQuantified       bool     `json:"need_quantified"`
	NeedUrgent           bool     `json:"need_urgent"`
	NeedDescribed        bool     `json:"need_described"`
	DeadlineHard         bool     `json:"deadline_hard"`
	DeadlineEventDriven  bool     `json:"deadline_event_driven"`
	TimelineFlexible     bool     `json:"timeline_flexible"`
	TimelineVague        bool     `json:"timeline_vague"`
	TimelineSlipped      bool     `json:"timeline_slipped"`
	CompetitorNamed      bool     `json:"competitor_named"`
	PreferenceConfirmed  bool     `json:"preference_confirmed"`
}

// DealIntent is the qualification state of one deal.
type DealIntent struct {
	ID                 string     `json:"id"`
	Name               string     `json:"deal_name"`
	CompanyID          string     `json:"company_id,omitempty"`
	Value              float64    `json:"value"`
	Stage              DealStage  `json:"stage"`
	CloseDate          *time.Time `json:"close_date,omitempty"`
	Facts              DealFacts  `json:"facts"`
	BANT               *BANT      `json:"bant,omitempty"`
	SPIN               *SPIN      `json:"spin,omitempty"`
	ParanoidVerdict    Verdict    `json:"paranoid_verdict,omitempty"`
	FailureProbability float64    `json:"failure_probability"` // 10..85 once reviewed
	TotalRiskScore     float64    `json:"total_risk_score"`    // 0..100
	ParanoidReviewedAt *time.Time `json:"paranoid_reviewed_at,omitempty"`
	CommitReady        bool       `json:"commit_ready"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
