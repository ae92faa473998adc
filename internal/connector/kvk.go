package connector

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/ratelimit"
)

const sourceKVK = "kvk"

// KVK searches the Dutch chamber of commerce business register. All results
// are Dutch companies keyed by their KvK number, which makes the canonical
// IDs exceptionally stable.
type KVK struct {
	httpBase
	apiKey  string
	baseURL string
}

func NewKVK(apiKey, baseURL string, budget *ratelimit.Budget, log *slog.Logger) *KVK {
	if baseURL == "" {
		baseURL = "https://api.kvk.nl"
	}
	return &KVK{
		httpBase: newHTTPBase(sourceKVK, budget, log),
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

func (k *KVK) Name() string { return sourceKVK }

func (k *KVK) Capabilities() Capabilities {
	return Capabilities{SupportsSearch: true, SupportsEnrich: true}
}

func (k *KVK) RateLimitStatus() RateLimitStatus { return k.rateLimitStatus() }

func (k *KVK) headers() map[string]string {
	return map[string]string{"apikey": k.apiKey}
}

// TestConnection runs a minimal register query.
func (k *KVK) TestConnection(ctx context.Context) error {
	u := k.baseURL + "/api/v1/zoeken?naam=test&resultatenPerPagina=1"
	return k.doJSON(ctx, http.MethodGet, u, k.headers(), nil, nil)
}

type kvkResult struct {
	KvkNummer string `json:"kvkNummer"`
	Naam      string `json:"naam"`
	Plaats    string `json:"plaats"`
}

func (k *KVK) zoeken(ctx context.Context, naam string, limit int) ([]kvkResult, error) {
	var resp struct {
		Resultaten []kvkResult `json:"resultaten"`
	}
	q := url.Values{}
	q.Set("naam", naam)
	q.Set("resultatenPerPagina", strconv.Itoa(limit))
	if err := k.doJSON(ctx, http.MethodGet, k.baseURL+"/api/v1/zoeken?"+q.Encode(), k.headers(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Resultaten, nil
}

// Search queries the register by trade name.
func (k *KVK) Search(ctx context.Context, query string, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := k.zoeken(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Company, 0, len(results))
	for _, r := range results {
		if r.Naam == "" || r.KvkNummer == "" {
			continue
		}
		out = append(out, model.Company{
			ID:           model.CompanyID(sourceKVK, r.KvkNummer),
			Name:         r.Naam,
			Country:      "NL",
			City:         r.Plaats,
			IndustryTier: model.IndustryTierUnknown,
			Source:       sourceKVK,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return out, nil
}

// Enrich loads the register base profile. The KvK number is recovered by
// re-querying the name and matching the canonical ID; companies from other
// sources are returned unchanged.
func (k *KVK) Enrich(ctx context.Context, company model.Company) (model.Company, error) {
	if company.Source != sourceKVK {
		return company, nil
	}
	results, err := k.zoeken(ctx, company.Name, 10)
	if err != nil {
		return company, err
	}
	var nummer string
	for _, r := range results {
		if model.CompanyID(sourceKVK, r.KvkNummer) == company.ID {
			nummer = r.KvkNummer
			break
		}
	}
	if nummer == "" {
		return company, nil
	}

	var resp struct {
		TotaalWerkzamePersonen int `json:"totaalWerkzamePersonen"`
		SBIActiviteiten        []struct {
			Omschrijving string `json:"sbiOmschrijving"`
		} `json:"sbiActiviteiten"`
	}
	u := k.baseURL + "/api/v1/basisprofielen/" + url.PathEscape(nummer)
	if err := k.doJSON(ctx, http.MethodGet, u, k.headers(), nil, &resp); err != nil {
		return company, err
	}

	if company.Industry == "" && len(resp.SBIActiviteiten) > 0 {
		company.Industry = resp.SBIActiviteiten[0].Omschrijving
	}
	if company.EmployeeCount == nil && resp.TotaalWerkzamePersonen > 0 {
		n := resp.TotaalWerkzamePersonen
		company.EmployeeCount = &n
	}
	company.UpdatedAt = time.Now().UTC()
	return company, nil
}
