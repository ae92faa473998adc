package canonical

import (
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/signalhaus/signalhaus/internal/model"
)

// mergeRatioThreshold is the token-sort ratio at or above which two
// same-city companies with differently spelled names are merged.
const mergeRatioThreshold = 85

// sourcePriorities rank connectors for field resolution on merge; the
// higher-priority source wins single-valued fields. Unlisted sources
// default to 10; file imports ("import:<batch>") rank between vendor APIs
// and scrapers.
var sourcePriorities = map[string]int{
	"apollo":        90,
	"kvk":           85,
	"hunter":        80,
	"google_places": 70,
	"linkedin":      60,
	"scraper":       40,
}

// SourcePriority returns the merge priority for a provenance tag.
func SourcePriority(source string) int {
	s := strings.ToLower(source)
	if strings.HasPrefix(s, "import:") {
		return 50
	}
	if p, ok := sourcePriorities[s]; ok {
		return p
	}
	return 10
}

// groupKey is the exact-match dedup key.
func groupKey(c model.Company) string {
	return NormalizeCompanyName(c.Name) + "|" + strings.ToLower(strings.TrimSpace(c.City))
}

// DedupeCompanies collapses a batch to one canonical record per
// (normalized name, city) equivalence class. Exact-key groups collapse
// first; groups in the same city whose normalized names reach the fuzzy
// merge threshold collapse afterwards. Within a merge the higher-priority
// source wins each single-valued field; all absorbed IDs land in
// MergedFrom.
func DedupeCompanies(companies []model.Company) []model.Company {
	if len(companies) <= 1 {
		return companies
	}

	// Pass 1: exact grouping.
	groups := make(map[string]model.Company)
	var order []string
	for _, c := range companies {
		key := groupKey(c)
		if existing, ok := groups[key]; ok {
			groups[key] = mergeCompany(existing, c)
		} else {
			groups[key] = c
			order = append(order, key)
		}
	}

	// Pass 2: fuzzy merge across groups sharing a city.
	merged := make(map[string]bool)
	var result []model.Company
	for i, key := range order {
		if merged[key] {
			continue
		}
		canon := groups[key]
		canonName := NormalizeCompanyName(canon.Name)
		canonCity := strings.ToLower(strings.TrimSpace(canon.City))

		for _, other := range order[i+1:] {
			if merged[other] {
				continue
			}
			candidate := groups[other]
			if strings.ToLower(strings.TrimSpace(candidate.City)) != canonCity {
				continue
			}
			if fuzzy.TokenSortRatio(canonName, NormalizeCompanyName(candidate.Name)) >= mergeRatioThreshold {
				canon = mergeCompany(canon, candidate)
				merged[other] = true
			}
		}
		result = append(result, canon)
	}
	return result
}

// mergeCompany resolves two records for the same company. The record from
// the higher-priority source becomes the base; empty fields are filled
// from the other record regardless of priority.
func mergeCompany(a, b model.Company) model.Company {
	winner, loser := a, b
	if SourcePriority(b.Source) > SourcePriority(a.Source) {
		winner, loser = b, a
	}

	out := winner
	if out.Domain == "" {
		out.Domain = loser.Domain
	}
	if out.Website == "" {
		out.Website = loser.Website
	}
	if out.Country == "" {
		out.Country = loser.Country
	}
	if out.Region == "" {
		out.Region = loser.Region
	}
	if out.PostalCode == "" {
		out.PostalCode = loser.PostalCode
	}
	if out.Industry == "" {
		out.Industry = loser.Industry
		out.IndustryTier = loser.IndustryTier
	}
	if out.EmployeeCount == nil {
		out.EmployeeCount = loser.EmployeeCount
	}
	if out.RevenueEUR == nil {
		out.RevenueEUR = loser.RevenueEUR
	}
	if out.Description == "" {
		out.Description = loser.Description
	}
	out.ClientTier = ClientTier(out.EmployeeCount, out.RevenueEUR)

	out.MergedFrom = unionStrings(winner.MergedFrom, loser.MergedFrom, loser.ID)
	out.DataCompleteness = completeness(out)
	return out
}

// MergePeople unions two contact lists, deduplicating by normalized full
// name. Earlier entries (higher-priority source, by caller convention) win.
func MergePeople(lists ...[]model.Person) []model.Person {
	seen := make(map[string]bool)
	var out []model.Person
	for _, list := range lists {
		for _, p := range list {
			key := strings.ToLower(strings.Join(strings.Fields(p.FullName), " "))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

func unionStrings(existing []string, more []string, extra string) []string {
	set := make(map[string]bool, len(existing)+len(more)+1)
	var out []string
	add := func(s string) {
		if s != "" && !set[s] {
			set[s] = true
			out = append(out, s)
		}
	}
	for _, s := range existing {
		add(s)
	}
	for _, s := range more {
		add(s)
	}
	add(extra)
	sort.Strings(out)
	return out
}
