// Package importer reads company and contact lists from CSV and XLSX files
// into raw records for canonicalization. Callers may pass an explicit column
// mapping; otherwise headers are auto-detected against English and German
// aliases. Rows missing required fields are skipped with a warning, never
// rejected wholesale.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/signalhaus/signalhaus/internal/canonical"
	"github.com/signalhaus/signalhaus/internal/model"
)

// Kind selects what a file contains.
type Kind string

const (
	KindCompanies Kind = "companies"
	KindPeople    Kind = "people"
)

// Mapping binds canonical field names to column headers, overriding
// auto-detection. Keys are the canonical field names below.
type Mapping map[string]string

// Canonical company fields and their header aliases (lowercased).
var companyAliases = map[string][]string{
	"name":        {"name", "company", "company_name", "company name", "firma", "firmenname", "unternehmen"},
	"domain":      {"domain", "domäne"},
	"website":     {"website", "url", "webseite", "homepage"},
	"country":     {"country", "land"},
	"city":        {"city", "stadt", "ort"},
	"region":      {"region", "state", "bundesland"},
	"postal_code": {"postal_code", "zip", "zip_code", "plz", "postleitzahl"},
	"industry":    {"industry", "sector", "branche"},
	"employees":   {"employees", "employee_count", "headcount", "mitarbeiter", "mitarbeiterzahl"},
	"revenue":     {"revenue", "turnover", "umsatz"},
	"description": {"description", "beschreibung"},
}

// Canonical person fields and their header aliases.
var personAliases = map[string][]string{
	"full_name":  {"full_name", "full name", "name", "kontakt"},
	"first_name": {"first_name", "first name", "vorname"},
	"last_name":  {"last_name", "last name", "surname", "nachname", "familienname"},
	"title":      {"title", "position", "role", "titel", "funktion"},
	"department": {"department", "abteilung"},
	"email":      {"email", "e-mail", "mail", "e_mail"},
	"phone":      {"phone", "telephone", "telefon", "telefonnummer"},
	"linkedin":   {"linkedin", "linkedin_url"},
	"company":    {"company", "company_name", "firma", "unternehmen"},
}

// Result collects the raw records lifted from one file.
type Result struct {
	Companies []canonical.RawCompany
	People    []canonical.RawPerson
	Skipped   int
	Warnings  []string
}

// ImportCSV parses a CSV stream. The first row must be the header.
func ImportCSV(r io.Reader, kind Kind, mapping Mapping, batchID string) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return Result{}, model.NewValidationError("importer", "file", fmt.Sprintf("malformed csv: %v", err))
	}
	return importRows(rows, kind, mapping, batchID)
}

// ImportXLSX parses the first sheet of an XLSX stream. The first row must
// be the header.
func ImportXLSX(r io.Reader, kind Kind, mapping Mapping, batchID string) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, model.NewValidationError("importer", "file", fmt.Sprintf("malformed xlsx: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, model.NewValidationError("importer", "file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("importer: read sheet %s: %w", sheets[0], err)
	}
	return importRows(rows, kind, mapping, batchID)
}

func importRows(rows [][]string, kind Kind, mapping Mapping, batchID string) (Result, error) {
	if len(rows) == 0 {
		return Result{}, model.NewValidationError("importer", "file", "file is empty")
	}

	aliases := companyAliases
	if kind == KindPeople {
		aliases = personAliases
	}
	columns, err := resolveColumns(rows[0], aliases, mapping)
	if err != nil {
		return Result{}, err
	}
	if err := checkRequired(kind, columns); err != nil {
		return Result{}, err
	}

	source := "import:" + batchID
	var res Result
	for i, row := range rows[1:] {
		cell := func(field string) string {
			idx, ok := columns[field]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		switch kind {
		case KindPeople:
			full := cell("full_name")
			first, last := cell("first_name"), cell("last_name")
			if full == "" && (first == "" || last == "") {
				res.Skipped++
				res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: no usable name, skipped", i+2))
				continue
			}
			res.People = append(res.People, canonical.RawPerson{
				FullName:    full,
				FirstName:   first,
				LastName:    last,
				Title:       cell("title"),
				Department:  cell("department"),
				Email:       cell("email"),
				Phone:       cell("phone"),
				LinkedInURL: cell("linkedin"),
				CompanyKey:  cell("company"),
				Source:      source,
			})
		default:
			name := cell("name")
			if name == "" {
				res.Skipped++
				res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: no company name, skipped", i+2))
				continue
			}
			res.Companies = append(res.Companies, canonical.RawCompany{
				Name:        name,
				Domain:      cell("domain"),
				Website:     cell("website"),
				Country:     cell("country"),
				City:        cell("city"),
				Region:      cell("region"),
				PostalCode:  cell("postal_code"),
				Industry:    cell("industry"),
				Employees:   cell("employees"),
				Revenue:     cell("revenue"),
				Description: cell("description"),
				Source:      source,
			})
		}
	}
	return res, nil
}

// resolveColumns maps canonical field names to column indexes. Explicit
// mappings win over alias auto-detection.
func resolveColumns(header []string, aliases map[string][]string, mapping Mapping) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	columns := make(map[string]int)
	for field, column := range mapping {
		if _, known := aliases[field]; !known {
			return nil, model.NewValidationError("importer", "mapping", fmt.Sprintf("unknown field %q", field))
		}
		idx, ok := index[strings.ToLower(strings.TrimSpace(column))]
		if !ok {
			return nil, model.NewValidationError("importer", "mapping", fmt.Sprintf("column %q not in header", column))
		}
		columns[field] = idx
	}

	for field, names := range aliases {
		if _, done := columns[field]; done {
			continue
		}
		for _, name := range names {
			if idx, ok := index[name]; ok {
				columns[field] = idx
				break
			}
		}
	}
	return columns, nil
}

func checkRequired(kind Kind, columns map[string]int) error {
	if kind == KindPeople {
		_, hasFull := columns["full_name"]
		_, hasFirst := columns["first_name"]
		_, hasLast := columns["last_name"]
		if !hasFull && !(hasFirst && hasLast) {
			return model.NewValidationError("importer", "header",
				"people files need a full_name column or first_name and last_name columns")
		}
		return nil
	}
	if _, ok := columns["name"]; !ok {
		return model.NewValidationError("importer", "header", "company files need a name column")
	}
	return nil
}
