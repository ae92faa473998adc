// Package model defines the canonical record types shared across all stores
// and the API surface: companies, people, signals, deals, and the typed
// error kinds every component propagates.
package model

import "time"

// IndustryTier classifies a company's industry against the closed
// tier vocabularies.
type IndustryTier string

const (
	IndustryTier1       IndustryTier = "tier1"
	IndustryTier2       IndustryTier = "tier2"
	IndustryTierAvoid   IndustryTier = "avoid"
	IndustryTierUnknown IndustryTier = "unknown"
)

// Company is the canonical company record. Exactly one canonical record
// exists per (normalized name, city) equivalence class; merged source rows
// are referenced through MergedFrom.
type Company struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Domain           string        `json:"domain,omitempty"`
	Website          string        `json:"website,omitempty"`
	Country          string        `json:"country,omitempty"` // ISO 3166-1 alpha-2
	City             string        `json:"city,omitempty"`
	Region           string        `json:"region,omitempty"`
	PostalCode       string        `json:"postal_code,omitempty"`
	Industry         string        `json:"industry,omitempty"`
	IndustryTier     IndustryTier  `json:"industry_tier"`
	EmployeeCount    *int          `json:"employee_count,omitempty"`
	RevenueEUR       *float64      `json:"revenue_eur,omitempty"`
	ClientTier       *int          `json:"client_tier,omitempty"` // 1 (largest) .. 5, nil below thresholds
	Description      string        `json:"description,omitempty"`
	Relationship     *Relationship `json:"relationship,omitempty"`
	Source           string        `json:"_source"`
	MergedFrom       []string      `json:"merged_from,omitempty"`
	DataCompleteness float64       `json:"data_completeness"` // 0..100
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Relationship is the commercial history with a company. It feeds the
// deal-potential modifiers when signals are scored; nil means no history
// is known and scoring runs with the neutral state.
type Relationship struct {
	ActiveSupplier bool    `json:"active_supplier,omitempty"`
	PastGMVEUR     float64 `json:"past_gmv_eur,omitempty"`
	Competition    string  `json:"competition,omitempty"` // low, high, or empty when unknown
}

// EmailStatus records the validation state of an email string at the time
// it was checked. It is a property of the address, not of the person.
type EmailStatus string

const (
	EmailVerified    EmailStatus = "verified"
	EmailGuessed     EmailStatus = "guessed"
	EmailUnavailable EmailStatus = "unavailable"
)

// Person is the canonical contact record.
type Person struct {
	ID          string      `json:"id"`
	FullName    string      `json:"full_name"`
	FirstName   string      `json:"first_name,omitempty"`
	LastName    string      `json:"last_name,omitempty"`
	Title       string      `json:"title,omitempty"`
	Department  string      `json:"department,omitempty"`
	Email       string      `json:"email,omitempty"`
	EmailStatus EmailStatus `json:"email_status,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	LinkedInURL string      `json:"linkedin_url,omitempty"`
	CompanyID   string      `json:"company_id,omitempty"`
	Source      string      `json:"_source"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// knownCountries is the closed set of normalized country codes.
var knownCountries = map[string]bool{
	"DE": true, "AT": true, "CH": true, "NL": true, "BE": true,
	"FR": true, "IT": true, "PL": true, "CZ": true, "DK": true,
	"GB": true, "US": true,
}

// KnownCountry reports whether code is in the normalized country set.
func KnownCountry(code string) bool { return knownCountries[code] }
