package placement

import (
	"math"

	"github.com/abhisek/gauge/internal/level"
)

const (
	// MinEvidence is the number of responses a level needs before it can
	// be detected.
	MinEvidence = 2

	// PassRate is the accuracy a level needs before it can be detected.
	PassRate = 0.6

	// DefaultConfidence is reported when no level has enough evidence.
	DefaultConfidence = 50.0
)

// Tally is the correct/total pair for one level.
type Tally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Accuracy returns the percentage of correct answers, 0 when empty.
func (t Tally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return round2(100 * float64(t.Correct) / float64(t.Total))
}

// Estimation is the detected level for a response history.
type Estimation struct {
	Level      level.Level           `json:"detected_level"`
	Confidence float64               `json:"confidence"`
	Breakdown  map[level.Level]Tally `json:"breakdown"`
	Correct    int                   `json:"correct"`
	Total      int                   `json:"total"`
	Accuracy   float64               `json:"accuracy"`
}

// Estimate returns the hardest level with at least MinEvidence responses
// answered at PassRate or better, with confidence equal to that level's
// accuracy. With no such level it returns the easiest level at
// DefaultConfidence. Every level appears in Breakdown.
func Estimate(responses []Response) Estimation {
	est := Estimation{Breakdown: make(map[level.Level]Tally, level.Count)}
	for _, l := range level.All() {
		est.Breakdown[l] = Tally{}
	}
	for _, r := range responses {
		t := est.Breakdown[r.AskLevel]
		t.Total++
		est.Total++
		if r.Correct {
			t.Correct++
			est.Correct++
		}
		est.Breakdown[r.AskLevel] = t
	}
	if est.Total > 0 {
		est.Accuracy = round2(100 * float64(est.Correct) / float64(est.Total))
	}

	all := level.All()
	for i := len(all) - 1; i >= 0; i-- {
		t := est.Breakdown[all[i]]
		if t.Total >= MinEvidence && float64(t.Correct)/float64(t.Total) >= PassRate {
			est.Level = all[i]
			est.Confidence = t.Accuracy()
			return est
		}
	}
	est.Level = level.Easiest()
	est.Confidence = DefaultConfidence
	return est
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
