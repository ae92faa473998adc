package connector

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/ratelimit"
)

const sourceGooglePlaces = "google_places"

// GooglePlaces searches companies through the Places text search API. It
// yields name, address, and website; everything else is left for enrichers.
type GooglePlaces struct {
	httpBase
	apiKey  string
	baseURL string
}

func NewGooglePlaces(apiKey, baseURL string, budget *ratelimit.Budget, log *slog.Logger) *GooglePlaces {
	if baseURL == "" {
		baseURL = "https://places.googleapis.com"
	}
	return &GooglePlaces{
		httpBase: newHTTPBase(sourceGooglePlaces, budget, log),
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

func (g *GooglePlaces) Name() string { return sourceGooglePlaces }

func (g *GooglePlaces) Capabilities() Capabilities {
	return Capabilities{SupportsSearch: true}
}

func (g *GooglePlaces) RateLimitStatus() RateLimitStatus { return g.rateLimitStatus() }

func (g *GooglePlaces) headers() map[string]string {
	return map[string]string{
		"X-Goog-Api-Key":   g.apiKey,
		"X-Goog-FieldMask": "places.id,places.displayName,places.formattedAddress,places.websiteUri",
	}
}

// TestConnection issues a minimal one-result search.
func (g *GooglePlaces) TestConnection(ctx context.Context) error {
	body := map[string]any{"textQuery": "test", "maxResultCount": 1}
	return g.doJSON(ctx, http.MethodPost, g.baseURL+"/v1/places:searchText", g.headers(), body, nil)
}

// Search runs a text search and maps places to company records.
func (g *GooglePlaces) Search(ctx context.Context, query string, limit int) ([]model.Company, error) {
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	var resp struct {
		Places []struct {
			ID          string `json:"id"`
			DisplayName struct {
				Text string `json:"text"`
			} `json:"displayName"`
			FormattedAddress string `json:"formattedAddress"`
			WebsiteURI       string `json:"websiteUri"`
		} `json:"places"`
	}
	body := map[string]any{"textQuery": query, "maxResultCount": limit}
	if err := g.doJSON(ctx, http.MethodPost, g.baseURL+"/v1/places:searchText", g.headers(), body, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Company, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.DisplayName.Text == "" {
			continue
		}
		out = append(out, model.Company{
			ID:           model.CompanyID(sourceGooglePlaces, p.ID),
			Name:         p.DisplayName.Text,
			Domain:       domainFromURL(p.WebsiteURI),
			Website:      p.WebsiteURI,
			City:         cityFromAddress(p.FormattedAddress),
			IndustryTier: model.IndustryTierUnknown,
			Source:       sourceGooglePlaces,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return out, nil
}

func domainFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

// cityFromAddress pulls the city out of a formatted address, which Places
// renders as "street, postal city, country". Best effort only.
func cityFromAddress(addr string) string {
	parts := strings.Split(addr, ",")
	if len(parts) < 2 {
		return ""
	}
	middle := strings.TrimSpace(parts[len(parts)-2])
	fields := strings.Fields(middle)
	// Drop a leading postal code.
	if len(fields) > 1 && strings.IndexFunc(fields[0], func(r rune) bool { return r < '0' || r > '9' }) == -1 {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}
