package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MinWindowSamples is the fewest records a decay window needs to contribute.
	MinWindowSamples = 10
	// TrendThreshold separates a rising or falling trend from a stable one (0.05%p).
	TrendThreshold = 0.0005
	// TrendClamp bounds the weighted rate around the reference rate (±1%p).
	TrendClamp = 0.01
)

// TrendDirection classifies the movement of the optimal rate over time.
type TrendDirection string

const (
	TrendRising       TrendDirection = "rising"
	TrendFalling      TrendDirection = "falling"
	TrendStable       TrendDirection = "stable"
	TrendInsufficient TrendDirection = "insufficient"
)

// TrendConfig parameterizes AnalyzeTrend.
type TrendConfig struct {
	Schedule   DecaySchedule
	BinWidth   float64
	MinSamples int       // 0 means MinWindowSamples
	Reference  *float64  // clamp the weighted rate to Reference±TrendClamp when set
	AsOf       time.Time // zero means the latest submission date
}

// TrendWindow is the density optimum of one decay window.
type TrendWindow struct {
	WithinDays  int     `json:"within_days"`
	Weight      float64 `json:"weight"`
	Samples     int     `json:"samples"`
	OptimalRate float64 `json:"optimal_rate"`
	MinDensity  int     `json:"min_density"`
	HasWinner   bool    `json:"has_winner"`
}

// Trend summarizes how the least-contested winning zone moves across windows.
type Trend struct {
	Windows      []TrendWindow  `json:"windows"`
	WeightedRate float64        `json:"weighted_rate"`
	Clamped      bool           `json:"clamped,omitempty"`
	Delta        float64        `json:"delta"` // newest optimum - oldest optimum
	Direction    TrendDirection `json:"direction"`
	Condition    Condition      `json:"condition,omitempty"`
}

// Err returns ErrInsufficientData when fewer than two windows qualified.
func (t *Trend) Err() error { return t.Condition.Err() }

// AnalyzeTrend computes, for every window of the schedule, the midpoint of the
// least crowded bin that held a historical winner, then combines the window
// optima by tier weight. Undated records are ignored.
func AnalyzeTrend(records []BidRecord, cfg TrendConfig) (*Trend, error) {
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.BinWidth > 0) || math.IsInf(cfg.BinWidth, 0) {
		return nil, fmt.Errorf("%w: trend bin width must be positive, got %v", ErrInvalidParameter, cfg.BinWidth)
	}
	if cfg.MinSamples < 0 {
		return nil, fmt.Errorf("%w: trend min samples must be non-negative, got %d", ErrInvalidParameter, cfg.MinSamples)
	}
	minSamples := cfg.MinSamples
	if minSamples == 0 {
		minSamples = MinWindowSamples
	}
	asOf := cfg.AsOf
	if asOf.IsZero() {
		asOf = LatestSubmission(records)
	}

	tr := &Trend{Windows: []TrendWindow{}, Direction: TrendInsufficient}
	weighted, totalWeight := 0.0, 0.0
	for _, tier := range cfg.Schedule.Tiers {
		cutoff := asOf.AddDate(0, 0, -tier.WithinDays)
		var window []BidRecord
		for _, r := range records {
			if !r.SubmittedAt.IsZero() && !r.SubmittedAt.Before(cutoff) {
				window = append(window, r)
			}
		}
		if len(window) < minSamples {
			logrus.Debugf("trend: %dd window has %d records, need %d", tier.WithinDays, len(window), minSamples)
			continue
		}

		w, err := windowOptimum(window, cfg.BinWidth)
		if err != nil {
			return nil, err
		}
		w.WithinDays = tier.WithinDays
		w.Weight = tier.Weight
		tr.Windows = append(tr.Windows, w)
		weighted += w.OptimalRate * tier.Weight
		totalWeight += tier.Weight
	}

	switch {
	case totalWeight > 0:
		tr.WeightedRate = weighted / totalWeight
	case cfg.Reference != nil:
		tr.WeightedRate = NormalizeRate(*cfg.Reference)
	}
	if cfg.Reference != nil {
		ref := NormalizeRate(*cfg.Reference)
		lo, hi := ref-TrendClamp, ref+TrendClamp
		if tr.WeightedRate < lo {
			tr.WeightedRate, tr.Clamped = lo, true
		} else if tr.WeightedRate > hi {
			tr.WeightedRate, tr.Clamped = hi, true
		}
	}

	if len(tr.Windows) < 2 {
		tr.Condition = ConditionInsufficientData
		return tr, nil
	}
	// tiers widen, so the first window is the newest view
	tr.Delta = tr.Windows[0].OptimalRate - tr.Windows[len(tr.Windows)-1].OptimalRate
	switch {
	case tr.Delta > TrendThreshold:
		tr.Direction = TrendRising
	case tr.Delta < -TrendThreshold:
		tr.Direction = TrendFalling
	default:
		tr.Direction = TrendStable
	}
	return tr, nil
}

// windowOptimum finds the least crowded non-empty bin holding a winner, or the
// least crowded non-empty bin when no winner falls in the window.
func windowOptimum(window []BidRecord, binWidth float64) (TrendWindow, error) {
	m, err := EstimateDensity(window, binWidth, nil)
	if err != nil {
		return TrendWindow{}, err
	}
	withWinner := make([]bool, len(m.Bins))
	for _, r := range window {
		if r.IsWinner() {
			withWinner[binIndex(r.Ratio(), binWidth)-m.firstIndex] = true
		}
	}

	out := TrendWindow{Samples: len(window)}
	best, fallback := -1, -1
	for i, b := range m.Bins {
		if b.Count == 0 {
			continue
		}
		if fallback < 0 || b.Count < m.Bins[fallback].Count {
			fallback = i
		}
		if withWinner[i] && (best < 0 || b.Count < m.Bins[best].Count) {
			best = i
		}
	}
	if best >= 0 {
		out.HasWinner = true
	} else {
		best = fallback
	}
	out.OptimalRate = m.Bins[best].Midpoint()
	out.MinDensity = m.Bins[best].Count
	return out, nil
}
