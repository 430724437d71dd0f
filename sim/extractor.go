package sim

import (
	"fmt"
	"sort"
)

// WinnerStats describes the historical distribution of winning bid-to-base
// ratios for one agency-rate group.
type WinnerStats struct {
	AgencyRate           float64   `json:"agency_rate"`
	Total                int       `json:"total"`
	Winners              int       `json:"winners"`
	Disqualified         int       `json:"disqualified"`
	DisqualifiedFraction float64   `json:"disqualified_fraction"`
	Ratio                Summary   `json:"ratio"`
	Condition            Condition `json:"condition,omitempty"`

	sortedRatios []float64
}

// Err returns ErrInsufficientData when no winner was found.
func (w *WinnerStats) Err() error { return w.Condition.Err() }

// PercentileOf returns the share of historical winning ratios at or below x.
// It is a reference value describing the past, not a forward win probability.
func (w *WinnerStats) PercentileOf(x float64) float64 {
	return ShareAtOrBelow(w.sortedRatios, x)
}

// SortedRatios returns the winner ratios ascending. Callers must not modify it.
func (w *WinnerStats) SortedRatios() []float64 { return w.sortedRatios }

// ExtractWinnerStats aggregates rank-1 ratios of a single agency-rate group.
// Records spanning several agency rates fail with ErrGroupMismatch; a group
// with no winner returns a result flagged ConditionInsufficientData.
func ExtractWinnerStats(records []BidRecord) (*WinnerStats, error) {
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	stats := &WinnerStats{Total: len(records)}
	if len(records) == 0 {
		stats.Condition = ConditionInsufficientData
		return stats, nil
	}

	stats.AgencyRate = NormalizeRate(records[0].AgencyRate)
	var winners []float64
	for i, r := range records {
		if !sameRate(r.AgencyRate, stats.AgencyRate) {
			return nil, fmt.Errorf("%w: record[%d] has agency rate %v, group is %v",
				ErrGroupMismatch, i, NormalizeRate(r.AgencyRate), stats.AgencyRate)
		}
		if r.IsDisqualified() {
			stats.Disqualified++
		}
		if r.IsWinner() {
			winners = append(winners, r.Ratio())
		}
	}

	stats.Winners = len(winners)
	stats.DisqualifiedFraction = float64(stats.Disqualified) / float64(stats.Total)
	if len(winners) == 0 {
		stats.Condition = ConditionInsufficientData
		return stats, nil
	}

	sort.Float64s(winners)
	stats.sortedRatios = winners
	stats.Ratio = Summarize(winners)
	return stats, nil
}
