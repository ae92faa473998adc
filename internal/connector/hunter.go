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

const sourceHunter = "hunter"

// hunterVerifiedConfidence is the score above which Hunter emails count as
// verified rather than guessed.
const hunterVerifiedConfidence = 80

// Hunter finds email contacts by company domain through the Hunter.io API.
type Hunter struct {
	httpBase
	apiKey  string
	baseURL string
}

func NewHunter(apiKey, baseURL string, budget *ratelimit.Budget, log *slog.Logger) *Hunter {
	if baseURL == "" {
		baseURL = "https://api.hunter.io"
	}
	return &Hunter{
		httpBase: newHTTPBase(sourceHunter, budget, log),
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

func (h *Hunter) Name() string { return sourceHunter }

func (h *Hunter) Capabilities() Capabilities {
	return Capabilities{SupportsPeople: true}
}

func (h *Hunter) RateLimitStatus() RateLimitStatus { return h.rateLimitStatus() }

// TestConnection checks the account endpoint, which costs no search credits.
func (h *Hunter) TestConnection(ctx context.Context) error {
	u := h.baseURL + "/v2/account?api_key=" + url.QueryEscape(h.apiKey)
	return h.doJSON(ctx, http.MethodGet, u, nil, nil, nil)
}

// FindPeopleByDomain runs a Hunter domain search and maps each found email
// to a person record.
func (h *Hunter) FindPeopleByDomain(ctx context.Context, domain string, limit int) ([]model.Person, error) {
	if limit <= 0 {
		limit = 10
	}
	var resp struct {
		Data struct {
			Domain string `json:"domain"`
			Emails []struct {
				Value      string `json:"value"`
				FirstName  string `json:"first_name"`
				LastName   string `json:"last_name"`
				Position   string `json:"position"`
				Department string `json:"department"`
				LinkedIn   string `json:"linkedin"`
				Phone      string `json:"phone_number"`
				Confidence int    `json:"confidence"`
			} `json:"emails"`
		} `json:"data"`
	}

	q := url.Values{}
	q.Set("domain", domain)
	q.Set("limit", "25")
	q.Set("api_key", h.apiKey)
	if err := h.doJSON(ctx, http.MethodGet, h.baseURL+"/v2/domain-search?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Person, 0, len(resp.Data.Emails))
	for _, e := range resp.Data.Emails {
		if e.Value == "" {
			continue
		}
		fullName := strings.TrimSpace(e.FirstName + " " + e.LastName)
		if fullName == "" {
			fullName = e.Value
		}
		status := model.EmailGuessed
		if e.Confidence >= hunterVerifiedConfidence {
			status = model.EmailVerified
		}
		out = append(out, model.Person{
			ID:          model.PersonID(sourceHunter, e.Value),
			FullName:    fullName,
			FirstName:   e.FirstName,
			LastName:    e.LastName,
			Title:       e.Position,
			Department:  e.Department,
			Email:       e.Value,
			EmailStatus: status,
			Phone:       e.Phone,
			LinkedInURL: e.LinkedIn,
			Source:      sourceHunter,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
