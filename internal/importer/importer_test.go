package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/signalhaus/signalhaus/internal/model"
)

func TestImportCSVCompanies(t *testing.T) {
	csv := strings.Join([]string{
		"Firma,Stadt,Land,Branche,Mitarbeiter,Umsatz",
		"Gerhard Schubert GmbH,Crailsheim,Deutschland,Verpackungsmaschinen,1400,\"ca. 300 Mio.\"",
		"Henkel AG & Co. KGaA,Düsseldorf,Germany,Consumer Goods,52000,21.7 Mrd.",
		",Berlin,DE,,,",
	}, "\n")

	res, err := ImportCSV(strings.NewReader(csv), KindCompanies, nil, "batch-7")
	require.NoError(t, err)
	require.Len(t, res.Companies, 2)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "row 4")

	c := res.Companies[0]
	assert.Equal(t, "Gerhard Schubert GmbH", c.Name)
	assert.Equal(t, "Crailsheim", c.City)
	assert.Equal(t, "Deutschland", c.Country)
	assert.Equal(t, "1400", c.Employees)
	assert.Equal(t, "ca. 300 Mio.", c.Revenue)
	assert.Equal(t, "import:batch-7", c.Source)
}

func TestImportCSVPeople(t *testing.T) {
	csv := strings.Join([]string{
		"Vorname,Nachname,Position,Abteilung,E-Mail,Firma",
		"Maria,Santos,Einkaufsleiterin,Einkauf,maria.santos@example.de,Example GmbH",
		"Jan,,Manager,,jan@example.de,Example GmbH",
	}, "\n")

	res, err := ImportCSV(strings.NewReader(csv), KindPeople, nil, "batch-7")
	require.NoError(t, err)
	require.Len(t, res.People, 1, "rows without a complete name are skipped")
	assert.Equal(t, 1, res.Skipped)

	p := res.People[0]
	assert.Equal(t, "Maria", p.FirstName)
	assert.Equal(t, "Santos", p.LastName)
	assert.Equal(t, "Einkaufsleiterin", p.Title)
	assert.Equal(t, "Einkauf", p.Department)
	assert.Equal(t, "Example GmbH", p.CompanyKey)
	assert.Equal(t, "import:batch-7", p.Source)
}

func TestImportCSVExplicitMapping(t *testing.T) {
	csv := strings.Join([]string{
		"col_a,col_b",
		"Acme Corp,Amsterdam",
	}, "\n")

	mapping := Mapping{"name": "col_a", "city": "col_b"}
	res, err := ImportCSV(strings.NewReader(csv), KindCompanies, mapping, "b1")
	require.NoError(t, err)
	require.Len(t, res.Companies, 1)
	assert.Equal(t, "Acme Corp", res.Companies[0].Name)
	assert.Equal(t, "Amsterdam", res.Companies[0].City)
}

func TestImportCSVMappingErrors(t *testing.T) {
	csv := "col_a\nAcme"

	var verr *model.ValidationError

	_, err := ImportCSV(strings.NewReader(csv), KindCompanies, Mapping{"name": "missing"}, "b")
	require.ErrorAs(t, err, &verr)

	_, err = ImportCSV(strings.NewReader(csv), KindCompanies, Mapping{"bogus_field": "col_a"}, "b")
	require.ErrorAs(t, err, &verr)
}

func TestImportCSVMissingRequiredHeader(t *testing.T) {
	var verr *model.ValidationError

	_, err := ImportCSV(strings.NewReader("city\nBerlin"), KindCompanies, nil, "b")
	require.ErrorAs(t, err, &verr)

	_, err = ImportCSV(strings.NewReader("first_name\nMaria"), KindPeople, nil, "b")
	require.ErrorAs(t, err, &verr, "first_name alone is not enough")

	_, err = ImportCSV(strings.NewReader("full_name\nMaria Santos"), KindPeople, nil, "b")
	require.NoError(t, err, "full_name alone is enough")
}

func TestImportCSVEmptyAndMalformed(t *testing.T) {
	var verr *model.ValidationError

	_, err := ImportCSV(strings.NewReader(""), KindCompanies, nil, "b")
	require.ErrorAs(t, err, &verr)

	_, err = ImportCSV(strings.NewReader("a,\"b\nbroken"), KindCompanies, nil, "b")
	require.ErrorAs(t, err, &verr)
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"Company Name", "City", "Employees"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"Philips", "Amsterdam", "70000"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]string{"Bol.com", "Utrecht", "2500"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res, err := ImportXLSX(&buf, KindCompanies, nil, "xlsx-1")
	require.NoError(t, err)
	require.Len(t, res.Companies, 2)
	assert.Equal(t, "Philips", res.Companies[0].Name)
	assert.Equal(t, "70000", res.Companies[0].Employees)
	assert.Equal(t, "import:xlsx-1", res.Companies[1].Source)
}

func TestImportXLSXMalformed(t *testing.T) {
	var verr *model.ValidationError
	_, err := ImportXLSX(strings.NewReader("not a zip"), KindCompanies, nil, "b")
	require.ErrorAs(t, err, &verr)
}
