package connector

import (
	"context"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// Fake is a canned connector for tests and local development. It serves
// fixed results and records what was asked of it.
type Fake struct {
	ConnectorName string
	Caps          Capabilities
	Companies     []model.Company
	People        []model.Person
	Err           error

	SearchQueries []string
	PeopleDomains []string
}

func (f *Fake) Name() string {
	if f.ConnectorName == "" {
		return "fake"
	}
	return f.ConnectorName
}

func (f *Fake) Capabilities() Capabilities { return f.Caps }

func (f *Fake) RateLimitStatus() RateLimitStatus {
	return RateLimitStatus{Limit: 1000, Remaining: 1000, Window: time.Minute}
}

func (f *Fake) TestConnection(ctx context.Context) error { return f.Err }

func (f *Fake) Search(ctx context.Context, query string, limit int) ([]model.Company, error) {
	f.SearchQueries = append(f.SearchQueries, query)
	if f.Err != nil {
		return nil, f.Err
	}
	if limit > 0 && len(f.Companies) > limit {
		return f.Companies[:limit], nil
	}
	return f.Companies, nil
}

func (f *Fake) FindPeopleByDomain(ctx context.Context, domain string, limit int) ([]model.Person, error) {
	f.PeopleDomains = append(f.PeopleDomains, domain)
	if f.Err != nil {
		return nil, f.Err
	}
	if limit > 0 && len(f.People) > limit {
		return f.People[:limit], nil
	}
	return f.People, nil
}

func (f *Fake) Enrich(ctx context.Context, company model.Company) (model.Company, error) {
	if f.Err != nil {
		return company, f.Err
	}
	if company.Industry == "" {
		company.Industry = "wholesale"
	}
	return company, nil
}
