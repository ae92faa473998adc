package detect

import (
	"log/slog"
	"strings"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// minKeywordMatches is how many keyword occurrences a rule needs before it
// emits a candidate. One hit is noise; two is a pattern.
const minKeywordMatches = 2

// maxQuoteLen bounds the evidence quote pulled from the source text.
const maxQuoteLen = 200

// Source describes where a piece of text came from.
type Source struct {
	URL  string
	Type string
	Date time.Time
}

// Detector scans free text against the signal rule table.
type Detector struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Detector {
	return &Detector{log: log}
}

// Detect runs every rule over the text and returns one candidate signal per
// matching type. Scores are left at zero; the scorer fills them in.
func (d *Detector) Detect(companyID, companyName, text string, src Source, now time.Time) []model.Signal {
	lowered := strings.ToLower(text)
	sentences := splitSentences(text)
	categories := detectCategories(lowered)

	sourceDate := src.Date
	if sourceDate.IsZero() {
		sourceDate = now
	}

	var signals []model.Signal
	for _, def := range definitions {
		matched, count := matchKeywords(lowered, def.Keywords)
		if count < minKeywordMatches {
			continue
		}

		sig := model.Signal{
			ID:          model.SignalID(companyID, def.Type, src.URL, sourceDate.Format("2006-01-02")),
			CompanyID:   companyID,
			CompanyName: companyName,
			Type:        def.Type,
			Priority:    def.Type.Priority(),
			Title:       companyName + ": " + def.Label,
			Summary:     buildSummary(sentences, matched, def.WhyMatters),
			Categories:  categories,
			SourceURL:   src.URL,
			SourceType:  src.Type,
			SourceDate:  sourceDate,
			DetectedAt:  now,
			ExpiresAt:   sourceDate.AddDate(0, 0, def.Type.UrgencyDays()),
			Status:      model.StatusNew,
			Evidence: model.Evidence{
				Quotes:            []string{bestQuote(sentences, matched)},
				KeywordMatchCount: count,
			},
		}
		signals = append(signals, sig)

		d.log.Debug("signal detected",
			"company_id", companyID,
			"signal_type", string(def.Type),
			"keyword_matches", count,
		)
	}
	return signals
}

// matchKeywords counts total keyword occurrences in lowered text and returns
// the keywords that hit at least once.
func matchKeywords(lowered string, keywords []string) ([]string, int) {
	var matched []string
	total := 0
	for _, kw := range keywords {
		if n := strings.Count(lowered, kw); n > 0 {
			matched = append(matched, kw)
			total += n
		}
	}
	return matched, total
}

// buildSummary joins the first two keyword-bearing sentences. When the text
// yields nothing quotable the rule's rationale stands in.
func buildSummary(sentences, matched []string, fallback string) string {
	var picked []string
	for _, s := range sentences {
		if containsAny(strings.ToLower(s), matched) {
			picked = append(picked, s)
			if len(picked) == 2 {
				break
			}
		}
	}
	if len(picked) == 0 {
		return fallback
	}
	return strings.Join(picked, " ")
}

// bestQuote returns the sentence with the most keyword hits, truncated to
// the quote budget.
func bestQuote(sentences, matched []string) string {
	best := ""
	bestHits := 0
	for _, s := range sentences {
		lowered := strings.ToLower(s)
		hits := 0
		for _, kw := range matched {
			hits += strings.Count(lowered, kw)
		}
		if hits > bestHits {
			best, bestHits = s, hits
		}
	}
	return truncate(best, maxQuoteLen)
}

// detectCategories scans the taxonomy keyword lists; a category attaches at
// two or more total occurrences.
func detectCategories(lowered string) []model.Category {
	var out []model.Category
	for _, cat := range model.AllCategories() {
		total := 0
		for _, kw := range categoryKeywords[cat] {
			total += strings.Count(lowered, kw)
		}
		if total >= minKeywordMatches {
			out = append(out, cat)
		}
	}
	return out
}

func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// splitSentences breaks text on sentence terminators and newlines. Crude but
// adequate for press releases and filings.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			flush()
		case '\n', '\r':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return sentences
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}
