// Package connector integrates external data providers behind one fixed
// contract. Every connector reports its health, capabilities, and rate
// budget; the optional capability interfaces (Searcher, Enricher,
// PeopleFinder, PersonEnricher) are implemented only where the upstream API
// supports them. Records leave a connector already tagged with provenance
// and carrying deterministic canonical IDs, so re-running a search converges
// in every store.
package connector

import (
	"context"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// Capabilities declares what a connector can do. The ingest pipeline
// consults this instead of type-asserting blindly.
type Capabilities struct {
	SupportsSearch  bool `json:"supports_search"`
	SupportsEnrich  bool `json:"supports_enrich"`
	SupportsPeople  bool `json:"supports_people"`
	SupportsWebhook bool `json:"supports_webhook"`
}

// RateLimitStatus reports a connector's remaining call budget.
type RateLimitStatus struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	Window    time.Duration `json:"window"`
}

// Connector is the contract every provider implements.
type Connector interface {
	Name() string
	Capabilities() Capabilities
	RateLimitStatus() RateLimitStatus

	// TestConnection verifies credentials and reachability with a cheap call.
	TestConnection(ctx context.Context) error
}

// Searcher finds companies matching a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.Company, error)
}

// Enricher fills in missing fields on an already-identified company.
type Enricher interface {
	Enrich(ctx context.Context, company model.Company) (model.Company, error)
}

// PeopleFinder discovers contacts at a company by its domain.
type PeopleFinder interface {
	FindPeopleByDomain(ctx context.Context, domain string, limit int) ([]model.Person, error)
}

// PersonEnricher fills in missing fields on a known person.
type PersonEnricher interface {
	EnrichPerson(ctx context.Context, person model.Person) (model.Person, error)
}
