package deal

import (
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
)

// SPINCommitThreshold is the minimum SPIN score for commit.
const SPINCommitThreshold = 70

// SPINInput is one quadrant as supplied by the caller.
type SPINInput struct {
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}

// AnalyzeSPIN assembles the four-quadrant account, clamping quadrant
// confidences to [0,100].
func AnalyzeSPIN(situation, problem, implication, needPayoff SPINInput, now time.Time) model.SPIN {
	return model.SPIN{
		Situation:   spinEntry(situation),
		Problem:     spinEntry(problem),
		Implication: spinEntry(implication),
		NeedPayoff:  spinEntry(needPayoff),
		AnalyzedAt:  now,
	}
}

func spinEntry(in SPINInput) model.SPINEntry {
	return model.SPINEntry{
		Content:    in.Content,
		Confidence: model.Clamp100(in.Confidence),
		Sources:    in.Sources,
	}
}
