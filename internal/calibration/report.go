package calibration

import (
	"fmt"
	"sort"
	"time"

	"github.com/abhisek/gauge/internal/level"
)

// Report is an immutable snapshot of bank health.
type Report struct {
	ID          int64
	TotalItems  int
	NeedsReview int

	// Flagged holds the metrics of every flagged item, least trustworthy
	// (lowest confidence) first.
	Flagged []ItemMetrics

	// WellCalibrated maps each level that has items to the percentage of
	// its items that are not flagged.
	WellCalibrated map[level.Level]float64

	Recommendations []string

	// Cutoff is the latest response timestamp the report considered.
	Cutoff      time.Time
	GeneratedAt time.Time
}

// ReportConfig holds the report recommendation rules.
type ReportConfig struct {
	// WellCalibratedBar is the percentage below which a level is named
	// for expert review.
	WellCalibratedBar float64
	// HighPriorityShare is the flagged share of the bank above which the
	// report leads with a high-priority warning.
	HighPriorityShare float64
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{WellCalibratedBar: 70, HighPriorityShare: 0.2}
}

// HighPriority reports whether the flagged share of the bank exceeds the
// configured share.
func (r *Report) HighPriority(cfg ReportConfig) bool {
	return r.TotalItems > 0 && float64(r.NeedsReview) > float64(r.TotalItems)*cfg.HighPriorityShare
}

type counts struct{ total, ok int }

func (c counts) pct() float64 { return 100 * float64(c.ok) / float64(c.total) }

// BuildReport aggregates per-item metrics into a report. It does no I/O.
func BuildReport(metrics []ItemMetrics, cfg ReportConfig, cutoff, now time.Time) *Report {
	r := &Report{
		TotalItems:     len(metrics),
		WellCalibrated: make(map[level.Level]float64),
		Cutoff:         cutoff,
		GeneratedAt:    now,
	}

	perLevel := make(map[level.Level]*counts)
	for _, m := range metrics {
		c := perLevel[m.ItemLevel]
		if c == nil {
			c = &counts{}
			perLevel[m.ItemLevel] = c
		}
		c.total++
		if m.NeedsReview {
			r.NeedsReview++
			r.Flagged = append(r.Flagged, m)
		} else {
			c.ok++
		}
	}
	sort.SliceStable(r.Flagged, func(i, j int) bool {
		if r.Flagged[i].Confidence != r.Flagged[j].Confidence {
			return r.Flagged[i].Confidence < r.Flagged[j].Confidence
		}
		return r.Flagged[i].ItemID < r.Flagged[j].ItemID
	})
	for l, c := range perLevel {
		r.WellCalibrated[l] = round2(c.pct())
	}

	if r.HighPriority(cfg) {
		share := 100 * float64(r.NeedsReview) / float64(r.TotalItems)
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("HIGH PRIORITY: %d items (%.1f%%) need review", r.NeedsReview, share))
	}
	for _, l := range level.All() {
		c, ok := perLevel[l]
		if ok && c.pct() < cfg.WellCalibratedBar {
			r.Recommendations = append(r.Recommendations,
				fmt.Sprintf("Level %s has only %s%% well-calibrated items - needs expert review", l, trimFloat(r.WellCalibrated[l])))
		}
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = append(r.Recommendations, "Item bank is well-calibrated")
	}
	return r
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
