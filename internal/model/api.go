package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data     any          `json:"data,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}

// IngestRequest is the request body for POST /ingest.
type IngestRequest struct {
	Query        string `json:"query"`
	Limit        int    `json:"limit,omitempty"`
	UseGoogle    bool   `json:"use_google,omitempty"`
	UseHunter    bool   `json:"use_hunter,omitempty"`
	LoadToGraph  bool   `json:"load_to_graph"`
	LoadToVector bool   `json:"load_to_vector"`
}

// IngestResponse reports what one synchronous ingestion run produced.
type IngestResponse struct {
	BatchID  string         `json:"batch_id"`
	Counts   map[string]int `json:"counts"`
	Warnings []string       `json:"warnings,omitempty"`
}

// DetectRequest is the request body for POST /signals/detect.
type DetectRequest struct {
	CompanyID   string    `json:"company_id"`
	CompanyName string    `json:"company_name"`
	Text        string    `json:"text"`
	SourceType  string    `json:"source_type"`
	SourceURL   string    `json:"source_url,omitempty"`
	SourceDate  time.Time `json:"source_date"`
}

// DetectResponse carries the scored candidate signals for one text.
type DetectResponse struct {
	Signals  []Signal `json:"signals"`
	Warnings []string `json:"warnings,omitempty"`
}

// OutcomeRequest is the request body for POST /signals/{id}/outcome.
type OutcomeRequest struct {
	Result         OutcomeResult `json:"result"`
	ActualDiscount *float64      `json:"actual_discount,omitempty"`
	DealValue      *float64      `json:"deal_value,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

// CompanyProfile is the composite payload for company lookups: the canonical
// record plus its known contacts.
type CompanyProfile struct {
	Company Company  `json:"company"`
	People  []Person `json:"people"`
}

// MeetingRequest is the request body for POST /companies/{id}/meetings. The
// company ID comes from the URL path.
type MeetingRequest struct {
	CompanyID  string    `json:"-"`
	Subject    string    `json:"subject"`
	Notes      string    `json:"notes,omitempty"`
	PersonIDs  []string  `json:"person_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SearchHit is one semantic search result.
type SearchHit struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // company, person, signal
	Score     float32         `json:"score"`
	Company   *Company        `json:"company,omitempty"`
	Person    *Person         `json:"person,omitempty"`
	Signal    *Signal         `json:"signal,omitempty"`
	Neighbors []GraphNeighbor `json:"neighbors,omitempty"`
}

// GraphNeighbor is one adjacent node in a hybrid expansion.
type GraphNeighbor struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Name     string `json:"name,omitempty"`
	EdgeType string `json:"edge_type"`
	Depth    int    `json:"depth"`
}

// CreateDealRequest is the request body for POST /deals.
type CreateDealRequest struct {
	Name      string     `json:"deal_name"`
	CompanyID string     `json:"company_id,omitempty"`
	Value     float64    `json:"value"`
	CloseDate *time.Time `json:"close_date,omitempty"`
	Facts     DealFacts  `json:"facts"`
}

// AddPersonaRequest is the request body for POST /deals/{id}/personas.
type AddPersonaRequest struct {
	ContactID          string          `json:"contact_id,omitempty"`
	Name               string          `json:"name"`
	Type               PersonaType     `json:"persona_type"`
	Engagement         EngagementLevel `json:"engagement_level,omitempty"`
	InfluenceScore     float64         `json:"influence_score"`
	CanVeto            bool            `json:"can_veto"`
	CanApprove         bool            `json:"can_approve"`
	Motivations        []string        `json:"motivations,omitempty"`
	Concerns           []string        `json:"concerns,omitempty"`
	AvgResponseTimeHrs *float64        `json:"average_response_time_hours,omitempty"`
}

// EngagementEventRequest records a persona engagement event.
type EngagementEventRequest struct {
	Kind       string    `json:"kind"` // positive, concerning
	OccurredAt time.Time `json:"occurred_at"`
	Notes      string    `json:"notes,omitempty"`
}

// SPINRequest is the request body for POST /deals/{id}/spin.
type SPINRequest struct {
	Situation   SPINEntry `json:"situation"`
	Problem     SPINEntry `json:"problem"`
	Implication SPINEntry `json:"implication"`
	NeedPayoff  SPINEntry `json:"need_payoff"`
}

// StageRequest is the request body for POST /deals/{id}/stage.
type StageRequest struct {
	Stage DealStage `json:"stage"`
}

// AddRiskRequest is the request body for POST /deals/{id}/risks.
type AddRiskRequest struct {
	Title                 string       `json:"title"`
	Description           string       `json:"description,omitempty"`
	Category              RiskCategory `json:"category"`
	Severity              Severity     `json:"severity"`
	Probability           float64      `json:"probability"`
	Impact                string       `json:"impact,omitempty"`
	CounterEvidenceNeeded []string     `json:"counter_evidence_needed,omitempty"`
}

// AddMitigationRequest appends a mitigation action to a risk.
type AddMitigationRequest struct {
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	MarkStatus  RiskStatus `json:"mark_status,omitempty"` // optional new risk status
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Graph   string `json:"graph"`
	Vector  string `json:"vector,omitempty"`
	Cache   string `json:"cache,omitempty"`
	Uptime  int64  `json:"uptime_seconds"`
}
