package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/ratelimit"
)

const sourceApollo = "apollo"

// Apollo searches and enriches companies and finds contacts through the
// Apollo.io REST API.
type Apollo struct {
	httpBase
	apiKey  string
	baseURL string
}

// NewApollo builds the Apollo connector. baseURL is overridable for tests;
// empty selects the production endpoint.
func NewApollo(apiKey, baseURL string, budget *ratelimit.Budget, log *slog.Logger) *Apollo {
	if baseURL == "" {
		baseURL = "https://api.apollo.io"
	}
	return &Apollo{
		httpBase: newHTTPBase(sourceApollo, budget, log),
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

func (a *Apollo) Name() string { return sourceApollo }

func (a *Apollo) Capabilities() Capabilities {
	return Capabilities{SupportsSearch: true, SupportsEnrich: true, SupportsPeople: true}
}

func (a *Apollo) RateLimitStatus() RateLimitStatus { return a.rateLimitStatus() }

func (a *Apollo) headers() map[string]string {
	return map[string]string{"X-Api-Key": a.apiKey}
}

// TestConnection verifies the API key against the auth health endpoint.
func (a *Apollo) TestConnection(ctx context.Context) error {
	var resp struct {
		IsLoggedIn bool `json:"is_logged_in"`
	}
	if err := a.doJSON(ctx, http.MethodGet, a.baseURL+"/v1/auth/health", a.headers(), nil, &resp); err != nil {
		return err
	}
	if !resp.IsLoggedIn {
		return &model.UpstreamError{Connector: sourceApollo, Err: fmt.Errorf("api key rejected")}
	}
	return nil
}

type apolloOrg struct {
	Name             string `json:"name"`
	PrimaryDomain    string `json:"primary_domain"`
	WebsiteURL       string `json:"website_url"`
	City             string `json:"city"`
	Country          string `json:"country"`
	Industry         string `json:"industry"`
	EstimatedNumEmps int    `json:"estimated_num_employees"`
	ShortDescription string `json:"short_description"`
}

func (o apolloOrg) toCompany(now time.Time) model.Company {
	key := o.PrimaryDomain
	if key == "" {
		key = o.Name
	}
	c := model.Company{
		ID:           model.CompanyID(sourceApollo, key),
		Name:         o.Name,
		Domain:       strings.ToLower(o.PrimaryDomain),
		Website:      o.WebsiteURL,
		City:         o.City,
		Industry:     o.Industry,
		IndustryTier: model.IndustryTierUnknown,
		Description:  o.ShortDescription,
		Source:       sourceApollo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if o.EstimatedNumEmps > 0 {
		n := o.EstimatedNumEmps
		c.EmployeeCount = &n
	}
	return c
}

// Search finds companies by name.
func (a *Apollo) Search(ctx context.Context, query string, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 10
	}
	var resp struct {
		Organizations []apolloOrg `json:"organizations"`
	}
	body := map[string]any{"q_organization_name": query, "page": 1, "per_page": limit}
	if err := a.doJSON(ctx, http.MethodPost, a.baseURL+"/v1/mixed_companies/search", a.headers(), body, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Company, 0, len(resp.Organizations))
	for _, org := range resp.Organizations {
		if org.Name == "" {
			continue
		}
		out = append(out, org.toCompany(now))
	}
	return out, nil
}

// Enrich fills in company fields by domain lookup. Companies without a
// domain are returned unchanged.
func (a *Apollo) Enrich(ctx context.Context, company model.Company) (model.Company, error) {
	if company.Domain == "" {
		return company, nil
	}
	var resp struct {
		Organization *apolloOrg `json:"organization"`
	}
	url := a.baseURL + "/v1/organizations/enrich?domain=" + company.Domain
	if err := a.doJSON(ctx, http.MethodGet, url, a.headers(), nil, &resp); err != nil {
		return company, err
	}
	if resp.Organization == nil {
		return company, nil
	}

	org := resp.Organization
	if company.Industry == "" {
		company.Industry = org.Industry
	}
	if company.Website == "" {
		company.Website = org.WebsiteURL
	}
	if company.City == "" {
		company.City = org.City
	}
	if company.Description == "" {
		company.Description = org.ShortDescription
	}
	if company.EmployeeCount == nil && org.EstimatedNumEmps > 0 {
		n := org.EstimatedNumEmps
		company.EmployeeCount = &n
	}
	company.UpdatedAt = time.Now().UTC()
	return company, nil
}

// FindPeopleByDomain finds contacts working at the given domain.
func (a *Apollo) FindPeopleByDomain(ctx context.Context, domain string, limit int) ([]model.Person, error) {
	if limit <= 0 {
		limit = 10
	}
	var resp struct {
		People []struct {
			Name        string   `json:"name"`
			FirstName   string   `json:"first_name"`
			LastName    string   `json:"last_name"`
			Title       string   `json:"title"`
			Email       string   `json:"email"`
			LinkedInURL string   `json:"linkedin_url"`
			Departments []string `json:"departments"`
		} `json:"people"`
	}
	body := map[string]any{"q_organization_domains": domain, "page": 1, "per_page": limit}
	if err := a.doJSON(ctx, http.MethodPost, a.baseURL+"/v1/mixed_people/search", a.headers(), body, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Person, 0, len(resp.People))
	for _, p := range resp.People {
		if p.Name == "" {
			continue
		}
		person := model.Person{
			ID:          model.PersonID(sourceApollo, p.Name+"@"+domain),
			FullName:    p.Name,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Title:       p.Title,
			Email:       p.Email,
			LinkedInURL: p.LinkedInURL,
			Source:      sourceApollo,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if len(p.Departments) > 0 {
			person.Department = p.Departments[0]
		}
		if p.Email != "" {
			person.EmailStatus = model.EmailVerified
		}
		out = append(out, person)
	}
	return out, nil
}
