package canonical

import (
	"strings"
)

// legalSuffixes are stripped from company names for matching. Longer forms
// first so "GmbH & Co. KG" wins over "KG".
var legalSuffixes = []string{
	"gmbh & co. kg", "gmbh & co kg", "se & co. kg", "se & co kg",
	"ag & co. kg", "ag & co kg", "gmbh & co. kgaa", "ag & co. kgaa",
	"gmbh", "mbh", "ag",
	"kgaa", "kg", "se", "ug", "ohg", "e.k.", "ek", "eg", "ltd.", "ltd",
	"inc.", "inc", "llc", "plc", "b.v.", "bv", "n.v.", "nv", "s.a.", "sa",
	"s.r.l.", "srl", "corp.", "corp", "co.", "co",
}

// NormalizeCompanyName lowercases a name and strips legal suffixes and
// punctuation for matching purposes. The display name is never altered.
func NormalizeCompanyName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, ",", " ")
	for changed := true; changed; {
		changed = false
		for _, suffix := range legalSuffixes {
			trimmed := strings.TrimSpace(strings.TrimSuffix(n, suffix))
			if trimmed != n && strings.HasSuffix(n, suffix) {
				n = trimmed
				changed = true
			}
		}
	}
	n = strings.TrimSuffix(strings.TrimSpace(n), "&")
	return strings.Join(strings.Fields(n), " ")
}

// countrySynonyms maps free-form country spellings (English and German)
// to ISO codes.
var countrySynonyms = map[string]string{
	"germany": "DE", "deutschland": "DE", "de": "DE", "bundesrepublik deutschland": "DE",
	"austria": "AT", "österreich": "AT", "oesterreich": "AT", "at": "AT",
	"switzerland": "CH", "schweiz": "CH", "suisse": "CH", "ch": "CH",
	"netherlands": "NL", "niederlande": "NL", "nederland": "NL", "holland": "NL", "nl": "NL",
	"belgium": "BE", "belgien": "BE", "be": "BE",
	"france": "FR", "frankreich": "FR", "fr": "FR",
	"italy": "IT", "italien": "IT", "italia": "IT", "it": "IT",
	"poland": "PL", "polen": "PL", "polska": "PL", "pl": "PL",
	"czech republic": "CZ", "czechia": "CZ", "tschechien": "CZ", "cz": "CZ",
	"denmark": "DK", "dänemark": "DK", "daenemark": "DK", "dk": "DK",
	"united kingdom": "GB", "uk": "GB", "great britain": "GB", "gb": "GB",
	"united states": "US", "usa": "US", "us": "US",
}

// NormalizeCountry maps a country synonym to its ISO code. Unknown values
// are uppercased and returned as-is when they look like a code, otherwise
// returned trimmed.
func NormalizeCountry(country string) string {
	c := strings.ToLower(strings.TrimSpace(country))
	if c == "" {
		return ""
	}
	if code, ok := countrySynonyms[c]; ok {
		return code
	}
	if len(c) == 2 {
		return strings.ToUpper(c)
	}
	return strings.TrimSpace(country)
}

// NormalizeDomain lowercases a domain, strips scheme, www, and any path.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// NormalizePhone strips formatting characters, keeping digits and a
// leading plus.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nobilityParticles begin a compound last name: "Ludwig van Beethoven"
// splits as ("Ludwig", "van Beethoven").
var nobilityParticles = map[string]bool{
	"von": true, "van": true, "de": true, "zu": true, "vom": true,
	"der": true, "den": true, "ten": true, "ter": true,
}

// SplitFullName splits a full name into first and last, keeping nobility
// particles with the last name.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}

	// Scan for the earliest particle after the first token; everything from
	// there on is the last name.
	for i := 1; i < len(parts); i++ {
		if nobilityParticles[strings.ToLower(parts[i])] {
			return strings.Join(parts[:i], " "), strings.Join(parts[i:], " ")
		}
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
