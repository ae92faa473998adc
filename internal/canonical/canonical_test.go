package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhaus/signalhaus/internal/model"
)

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Gerhard Schubert GmbH", "gerhard schubert"},
		{"Miele & Cie. KG", "miele & cie."},
		{"Beiersdorf AG", "beiersdorf"},
		{"Vorwerk SE & Co. KG", "vorwerk"},
		{"Acme Ltd.", "acme"},
		{"Philips N.V.", "philips"},
		{"  Henkel AG & Co. KGaA ", "henkel"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCompanyName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeCountry(t *testing.T) {
	for _, in := range []string{"Germany", "Deutschland", "DE", "de"} {
		assert.Equal(t, "DE", NormalizeCountry(in), "input %q", in)
	}
	assert.Equal(t, "NL", NormalizeCountry("Niederlande"))
	assert.Equal(t, "CH", NormalizeCountry("Schweiz"))
	assert.Equal(t, "", NormalizeCountry(""))
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "schubert.com", NormalizeDomain("https://www.Schubert.com/en/home"))
	assert.Equal(t, "miele.de", NormalizeDomain("WWW.MIELE.DE"))
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Ralf Schubert", "Ralf", "Schubert"},
		{"Ludwig van Beethoven", "Ludwig", "van Beethoven"},
		{"Ursula von der Leyen", "Ursula", "von der Leyen"},
		{"Jan de Vries", "Jan", "de Vries"},
		{"Cher", "Cher", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := SplitFullName(tt.in)
		assert.Equal(t, tt.first, first, "input %q", tt.in)
		assert.Equal(t, tt.last, last, "input %q", tt.in)
	}
}

func TestParseRevenue(t *testing.T) {
	tests := []struct {
		in         string
		inMillions bool
		want       float64
	}{
		{"50 Mio. €", false, 50e6},
		{"10-50 Mio.", false, 30e6},
		{"1.3B", false, 1.3e9},
		{"479M", false, 479e6},
		{"2500000", false, 2500000},
		{"500", false, 500e6}, // bare small number reads as millions
		{"120", true, 120e6},  // source tagged millions
		{"2 Mrd", false, 2e9},
		{"1.234.567", false, 1234567},
	}
	for _, tt := range tests {
		got := ParseRevenue(tt.in, tt.inMillions)
		require.NotNil(t, got, "input %q", tt.in)
		assert.InDelta(t, tt.want, *got, 0.5, "input %q", tt.in)
	}

	for _, in := range []string{"", "n/a", "unbekannt", "-"} {
		assert.Nil(t, ParseRevenue(in, false), "input %q", in)
	}
}

func TestParseRevenueRawBoundary(t *testing.T) {
	got := ParseRevenue("1200", false)
	require.NotNil(t, got)
	assert.Equal(t, 1200.0, *got, "bare numbers above 1000 are raw EUR")
}

func TestParseEmployees(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"250", 250},
		{"200-500", 350},
		{"B 5000-10000", 7500},
		{"1.200 Mitarbeiter", 1200},
		{"ca. 300", 300},
	}
	for _, tt := range tests {
		got := ParseEmployees(tt.in)
		require.NotNil(t, got, "input %q", tt.in)
		assert.Equal(t, tt.want, *got, "input %q", tt.in)
	}

	assert.Nil(t, ParseEmployees("19"), "below floor of 20")
	assert.Nil(t, ParseEmployees(""))
	assert.Nil(t, ParseEmployees("unknown"))
}

func TestClassifyIndustry(t *testing.T) {
	_, tier := ClassifyIndustry("Consumer Electronics")
	assert.Equal(t, model.IndustryTier1, tier)

	_, tier = ClassifyIndustry("Haushaltsgeräte und Küchentechnik")
	assert.Equal(t, model.IndustryTier1, tier)

	_, tier = ClassifyIndustry("Einzelhandel")
	assert.Equal(t, model.IndustryTier2, tier)

	_, tier = ClassifyIndustry("Tabakwaren")
	assert.Equal(t, model.IndustryTierAvoid, tier)

	_, tier = ClassifyIndustry("Quantum Basket Weaving")
	assert.Equal(t, model.IndustryTierUnknown, tier)
}

func TestClientTier(t *testing.T) {
	intp := func(v int) *int { return &v }
	floatp := func(v float64) *float64 { return &v }

	tests := []struct {
		emp  *int
		rev  *float64
		want *int
	}{
		{intp(2500), floatp(600e6), intp(1)},
		{intp(2500), floatp(30e6), intp(1)}, // min rule: better dimension wins
		{intp(50), nil, intp(5)},
		{intp(49), nil, nil},
		{nil, floatp(10e6), intp(5)},
		{nil, floatp(9e6), nil},
		{nil, nil, nil},
		{intp(300), floatp(60e6), intp(3)},
	}
	for i, tt := range tests {
		got := ClientTier(tt.emp, tt.rev)
		if tt.want == nil {
			assert.Nil(t, got, "case %d", i)
		} else {
			require.NotNil(t, got, "case %d", i)
			assert.Equal(t, *tt.want, *got, "case %d", i)
		}
	}
}

func TestCompanyCanonicalization(t *testing.T) {
	now := time.Now()
	c := Company(RawCompany{
		Name:      "Gerhard Schubert GmbH",
		Domain:    "https://www.gerhard-schubert.de",
		Country:   "Deutschland",
		City:      "Crailsheim",
		Industry:  "Verpackungsmaschinen Maschinenbau",
		Employees: "1.400",
		Revenue:   "250 Mio. €",
		Source:    "apollo",
	}, now)

	assert.Equal(t, "gerhard-schubert.de", c.Domain)
	assert.Equal(t, "DE", c.Country)
	assert.Equal(t, model.IndustryTier2, c.IndustryTier)
	require.NotNil(t, c.EmployeeCount)
	assert.Equal(t, 1400, *c.EmployeeCount)
	require.NotNil(t, c.RevenueEUR)
	assert.Equal(t, 250e6, *c.RevenueEUR)
	require.NotNil(t, c.ClientTier)
	assert.Equal(t, 2, *c.ClientTier)
	assert.Greater(t, c.DataCompleteness, 50.0)

	// Malformed input degrades, never rejects.
	bad := Company(RawCompany{Name: "Mystery Corp", Employees: "???", Revenue: "call us", Source: "scraper"}, now)
	assert.Equal(t, model.IndustryTierUnknown, bad.IndustryTier)
	assert.Nil(t, bad.EmployeeCount)
	assert.Nil(t, bad.RevenueEUR)
	assert.Equal(t, "scraper", bad.Source)
}

func TestDedupeCompaniesFuzzyMerge(t *testing.T) {
	now := time.Now()
	a := Company(RawCompany{
		Name: "Gerhard Schubert GmbH", City: "Crailsheim",
		Domain: "gerhard-schubert.de", Source: "apollo",
	}, now)
	b := Company(RawCompany{
		Name: "Gerhard Schubert GmbH Verpackungsmaschinen", City: "Crailsheim",
		Revenue: "250 Mio.", Source: "scraper",
	}, now)

	out := DedupeCompanies([]model.Company{a, b})
	require.Len(t, out, 1)

	merged := out[0]
	assert.Equal(t, a.ID, merged.ID, "higher-priority source keeps its ID")
	assert.Equal(t, "gerhard-schubert.de", merged.Domain, "domain filled from whichever source carries it")
	require.NotNil(t, merged.RevenueEUR, "revenue filled from the absorbed record")
	assert.Contains(t, merged.MergedFrom, b.ID)
}

func TestDedupeCompaniesDifferentCityKeptApart(t *testing.T) {
	now := time.Now()
	a := Company(RawCompany{Name: "Müller GmbH", City: "Hamburg", Source: "apollo"}, now)
	b := Company(RawCompany{Name: "Müller GmbH", City: "München", Source: "apollo", SourceKey: "mueller-muc"}, now)

	out := DedupeCompanies([]model.Company{a, b})
	assert.Len(t, out, 2)
}

func TestMergePeople(t *testing.T) {
	p1 := model.Person{FullName: "Ralf Schubert", Email: "r.schubert@schubert.com"}
	p2 := model.Person{FullName: "ralf  schubert"}
	p3 := model.Person{FullName: "Marta Keller"}

	out := MergePeople([]model.Person{p1}, []model.Person{p2, p3})
	require.Len(t, out, 2)
	assert.Equal(t, "r.schubert@schubert.com", out[0].Email, "first occurrence wins")
}
