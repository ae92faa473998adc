package model

import "time"

// Meeting is a recorded interaction with a company's stakeholders. Meetings
// hang off companies in the graph via ABOUT edges.
type Meeting struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	PersonIDs  []string  `json:"person_ids,omitempty"`
	Subject    string    `json:"subject"`
	Notes      string    `json:"notes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Insight is a derived observation, typically generated from a signal's
// narrative analysis. Insights link back to their signal via GENERATED edges.
type Insight struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id,omitempty"`
	SignalID  string    `json:"signal_id,omitempty"`
	Kind      string    `json:"kind"` // analysis, note
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
