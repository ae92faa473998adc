package canonical

import (
	"strings"

	"github.com/signalhaus/signalhaus/internal/model"
)

// Industry tier vocabularies, English and German variants mixed. Matching
// is exact-substring against the lowercased input; tier1 wins over tier2
// wins over avoid.
var (
	tier1Industries = []string{
		"consumer electronics", "unterhaltungselektronik", "elektronik",
		"home appliances", "haushaltsgeräte", "haushaltsgerate", "weisse ware",
		"personal care", "körperpflege", "koerperpflege", "kosmetik", "cosmetics",
		"fmcg", "consumer goods", "konsumgüter", "konsumgueter",
		"food and beverage", "lebensmittel", "getränke", "getraenke",
		"toys", "spielwaren", "sporting goods", "sportartikel",
	}
	tier2Industries = []string{
		"fashion", "mode", "bekleidung", "apparel", "textil",
		"furniture", "möbel", "moebel", "diy", "baumarkt", "garden", "garten",
		"retail", "einzelhandel", "handel", "wholesale", "großhandel", "grosshandel",
		"packaging", "verpackung", "logistics", "logistik",
		"manufacturing", "maschinenbau", "fertigung", "automotive supplier", "automobilzulieferer",
	}
	avoidIndustries = []string{
		"weapons", "waffen", "defense", "rüstung", "ruestung",
		"tobacco", "tabak", "gambling", "glücksspiel", "gluecksspiel",
		"adult", "crypto", "kryptowährung", "kryptowaehrung",
		"pharmaceutical", "pharma", "medical devices", "medizintechnik",
	}
)

// ClassifyIndustry matches the free-text industry against the three closed
// vocabularies, first match winning in tier1 → tier2 → avoid order. No
// match yields tier unknown; the original text is preserved either way.
func ClassifyIndustry(industry string) (string, model.IndustryTier) {
	text := strings.TrimSpace(industry)
	lowered := strings.ToLower(text)
	if lowered == "" {
		return "", model.IndustryTierUnknown
	}

	for _, vocab := range []struct {
		terms []string
		tier  model.IndustryTier
	}{
		{tier1Industries, model.IndustryTier1},
		{tier2Industries, model.IndustryTier2},
		{avoidIndustries, model.IndustryTierAvoid},
	} {
		for _, term := range vocab.terms {
			if strings.Contains(lowered, term) {
				return text, vocab.tier
			}
		}
	}
	return text, model.IndustryTierUnknown
}
