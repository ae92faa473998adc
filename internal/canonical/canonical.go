// Package canonical normalizes raw connector and import records into the
// canonical company/person model: name and country normalization, revenue
// and employee parsing, industry tier classification, client tier
// assignment, and fuzzy deduplication.
//
// Malformed input is never rejected. Unparseable numbers become nil,
// unmatched industries become tier unknown, and the record keeps its
// _source tag so provenance survives the degradation.
package canonical

import (
	"strings"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// RawCompany is a company record as a connector or file import delivers it:
// all fields free-form strings, any of them possibly empty.
type RawCompany struct {
	Name        string
	Domain      string
	Website     string
	Country     string
	City        string
	Region      string
	PostalCode  string
	Industry    string
	Employees   string
	Revenue     string
	Description string
	Source      string // provenance tag, e.g. "apollo", "import:batch-7"
	SourceKey   string // stable key within the source; defaults to Name
}

// RawPerson is a contact record as delivered by a connector.
type RawPerson struct {
	FullName    string
	FirstName   string
	LastName    string
	Title       string
	Department  string
	Email       string
	EmailStatus string
	Phone       string
	LinkedInURL string
	CompanyKey  string
	Source      string
	SourceKey   string
}

// revenueInMillionsSources lists sources whose revenue figures are already
// denominated in millions EUR. The multiplier is applied before the bare
// number ambiguity rule runs.
var revenueInMillionsSources = map[string]bool{
	"familienunternehmen_v6": true,
}

// Company lifts a raw record to the canonical model. It never fails;
// the worst outcome is a record full of nulls with tier unknown.
func Company(raw RawCompany, now time.Time) model.Company {
	sourceKey := raw.SourceKey
	if sourceKey == "" {
		sourceKey = raw.Name
	}

	inMillions := revenueInMillionsSources[strings.ToLower(raw.Source)]
	revenue := ParseRevenue(raw.Revenue, inMillions)
	employees := ParseEmployees(raw.Employees)
	industry, tier := ClassifyIndustry(raw.Industry)

	c := model.Company{
		ID:           model.CompanyID(raw.Source, sourceKey),
		Name:         strings.TrimSpace(raw.Name),
		Domain:       NormalizeDomain(raw.Domain),
		Website:      strings.TrimSpace(raw.Website),
		Country:      NormalizeCountry(raw.Country),
		City:         strings.TrimSpace(raw.City),
		Region:       strings.TrimSpace(raw.Region),
		PostalCode:   strings.TrimSpace(raw.PostalCode),
		Industry:     industry,
		IndustryTier: tier,
		EmployeeCount: employees,
		RevenueEUR:   revenue,
		ClientTier:   ClientTier(employees, revenue),
		Description:  strings.TrimSpace(raw.Description),
		Source:       raw.Source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.DataCompleteness = completeness(c)
	return c
}

// Person lifts a raw contact to the canonical model.
func Person(raw RawPerson, now time.Time) model.Person {
	first, last := raw.FirstName, raw.LastName
	full := strings.TrimSpace(raw.FullName)
	if full == "" {
		full = strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	}
	if first == "" && last == "" {
		first, last = SplitFullName(full)
	}

	sourceKey := raw.SourceKey
	if sourceKey == "" {
		sourceKey = full + "|" + raw.Email
	}

	status := model.EmailStatus(strings.ToLower(raw.EmailStatus))
	switch status {
	case model.EmailVerified, model.EmailGuessed, model.EmailUnavailable:
	default:
		if raw.Email == "" {
			status = model.EmailUnavailable
		} else {
			status = model.EmailGuessed
		}
	}

	var companyID string
	if raw.CompanyKey != "" {
		companyID = model.CompanyID(raw.Source, raw.CompanyKey)
	}

	return model.Person{
		ID:          model.PersonID(raw.Source, sourceKey),
		FullName:    full,
		FirstName:   strings.TrimSpace(first),
		LastName:    strings.TrimSpace(last),
		Title:       strings.TrimSpace(raw.Title),
		Department:  strings.TrimSpace(raw.Department),
		Email:       strings.ToLower(strings.TrimSpace(raw.Email)),
		EmailStatus: status,
		Phone:       NormalizePhone(raw.Phone),
		LinkedInURL: strings.TrimSpace(raw.LinkedInURL),
		CompanyID:   companyID,
		Source:      raw.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// completeness scores how much of the canonical schema a record fills, 0..100.
func completeness(c model.Company) float64 {
	total := 10.0
	var filled float64
	for _, present := range []bool{
		c.Name != "", c.Domain != "", c.Country != "", c.City != "",
		c.Industry != "", c.IndustryTier != model.IndustryTierUnknown,
		c.EmployeeCount != nil, c.RevenueEUR != nil,
		c.Description != "", c.PostalCode != "",
	} {
		if present {
			filled++
		}
	}
	return filled / total * 100
}
