package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bidsim/bidsim/sim/trace"
)

const (
	// DefaultDensityCeiling is the weighted competitor count at which a
	// candidate stops being viable.
	DefaultDensityCeiling = 200.0
	// DefaultTopK is the number of ranked candidates returned.
	DefaultTopK = 10
	// DefaultSearchWidth is the default width of the search range above its start.
	DefaultSearchWidth = 0.03
	// DefaultSearchStep is the default candidate spacing (0.001%p).
	DefaultSearchStep = 0.00001
	// MaxCandidates bounds the number of rates evaluated by one Score call.
	MaxCandidates = 2_000_000
)

// CandidateScore is one ranked candidate bid rate.
type CandidateScore struct {
	Rank                 int             `json:"rank"`
	Rate                 float64         `json:"rate"`
	BidAmount            decimal.Decimal `json:"bid_amount"`
	ExpectedUtility      float64         `json:"expected_utility"`
	ClearProbability     float64         `json:"clear_probability"`
	Competitors          float64         `json:"competitors"`
	RawCompetitors       int             `json:"raw_competitors"`
	Unobserved           bool            `json:"unobserved,omitempty"`
	Stale                bool            `json:"stale,omitempty"` // every record in the bin decayed to weight 0
	HistoricalPercentile float64         `json:"historical_percentile"` // reference only
}

// Recommendation is the ranked output of a Scorer.
type Recommendation struct {
	Candidates     []CandidateScore `json:"candidates"`
	Evaluated      int              `json:"evaluated"`
	Excluded       int              `json:"excluded"`
	SearchStart    float64          `json:"search_start"`
	SearchEnd      float64          `json:"search_end"`
	Step           float64          `json:"step"`
	DensityCeiling float64          `json:"density_ceiling"`
	Condition      Condition        `json:"condition,omitempty"`
}

// Err returns ErrNoViableCandidate when the ceiling excluded every candidate.
func (r *Recommendation) Err() error { return r.Condition.Err() }

// Best returns the top-ranked candidate.
func (r *Recommendation) Best() (CandidateScore, bool) {
	if len(r.Candidates) == 0 {
		return CandidateScore{}, false
	}
	return r.Candidates[0], true
}

// Scorer ranks candidate bid rates by clear probability discounted by
// competitor density and margin.
type Scorer struct {
	start, end, step float64
	rangeSet         bool
	ceiling          float64
	topK             int
	baseAmount       float64
	trace            *trace.ScoringTrace
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer) error

// WithSearchRange sets an explicit inclusive candidate range.
func WithSearchRange(start, end, step float64) ScorerOption {
	return func(s *Scorer) error {
		if !(step > 0) || math.IsInf(step, 0) {
			return fmt.Errorf("%w: search step must be positive, got %v", ErrInvalidParameter, step)
		}
		if math.IsNaN(start) || math.IsNaN(end) || end < start {
			return fmt.Errorf("%w: search range end %v is before start %v", ErrInvalidParameter, end, start)
		}
		s.start, s.end, s.step = start, end, step
		s.rangeSet = true
		return nil
	}
}

// WithDensityCeiling sets the exclusive weighted-competitor bound for viability.
func WithDensityCeiling(c float64) ScorerOption {
	return func(s *Scorer) error {
		if c < 0 || math.IsNaN(c) {
			return fmt.Errorf("%w: density ceiling must be non-negative, got %v", ErrInvalidParameter, c)
		}
		s.ceiling = c
		return nil
	}
}

// WithTopK sets how many ranked candidates to return.
func WithTopK(k int) ScorerOption {
	return func(s *Scorer) error {
		if k < 1 {
			return fmt.Errorf("%w: top-k must be >= 1, got %d", ErrInvalidParameter, k)
		}
		s.topK = k
		return nil
	}
}

// WithBaseAmount overrides the base amount used to price candidates.
func WithBaseAmount(b float64) ScorerOption {
	return func(s *Scorer) error {
		if !(b > 0) || math.IsInf(b, 0) {
			return fmt.Errorf("%w: base amount must be positive, got %v", ErrInvalidParameter, b)
		}
		s.baseAmount = b
		return nil
	}
}

// WithTrace records candidate decisions into st.
func WithTrace(st *trace.ScoringTrace) ScorerOption {
	return func(s *Scorer) error {
		s.trace = st
		return nil
	}
}

// NewScorer creates a Scorer with the default ceiling and top-k.
func NewScorer(opts ...ScorerOption) (*Scorer, error) {
	s := &Scorer{
		ceiling: DefaultDensityCeiling,
		topK:    DefaultTopK,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// searchRange resolves the candidate range. Without an explicit range it
// starts at the lowest observed ratio, or the lowest simulated minimum when
// there is no history.
func (s *Scorer) searchRange(dist *ReserveDistribution, density *DensityMap) (start, end, step float64) {
	if s.rangeSet {
		return s.start, s.end, s.step
	}
	start = dist.MinWinningRate.Min
	if len(density.Bins) > 0 {
		start = density.MinRatio
	}
	return start, start + DefaultSearchWidth, DefaultSearchStep
}

// Score evaluates every candidate in the search range. winners may be nil,
// in which case historical percentiles are reported as 0.
func (s *Scorer) Score(dist *ReserveDistribution, density *DensityMap, winners *WinnerStats) (*Recommendation, error) {
	if dist == nil || len(dist.sortedRates) == 0 {
		return nil, fmt.Errorf("%w: scoring needs a simulated reserve distribution", ErrInvalidParameter)
	}
	if density == nil {
		return nil, fmt.Errorf("%w: scoring needs a density map", ErrInvalidParameter)
	}

	start, end, step := s.searchRange(dist, density)
	n := int(math.Floor((end-start)/step+binGuard)) + 1
	if n > MaxCandidates {
		return nil, fmt.Errorf("%w: search range yields %d candidates, limit is %d", ErrInvalidParameter, n, MaxCandidates)
	}
	base := s.baseAmount
	if base == 0 {
		base = dist.BaseAmount
	}

	rec := &Recommendation{
		Evaluated:      n,
		SearchStart:    start,
		SearchEnd:      end,
		Step:           step,
		DensityCeiling: s.ceiling,
	}

	viable := make([]CandidateScore, 0, n)
	var viableUtility, maxUtility float64
	for i := 0; i < n; i++ {
		x := start + float64(i)*step
		mass := dist.QualifyingMass(x)
		bin, inRange := density.Lookup(x)
		c := bin.WeightedCount
		raw := float64(bin.Count)
		stale := bin.Count > 0 && c == 0
		if stale {
			c = raw
		}
		utility := mass * (1 / (c + 1)) * (1 - x)

		reason := ""
		switch {
		case !(c < s.ceiling):
			reason = trace.ReasonDensityCeiling
		case !(raw < s.ceiling):
			reason = trace.ReasonRawDensityCeiling
		}
		excluded := reason != ""
		if s.trace.WantsCandidate(excluded) {
			s.trace.RecordCandidate(trace.CandidateRecord{
				Rate: x, ClearProbability: mass, Competitors: c, RawCompetitors: bin.Count,
				Utility: utility, Excluded: excluded, Reason: reason,
			})
		}
		if excluded {
			rec.Excluded++
			continue
		}
		viableUtility += utility
		maxUtility = math.Max(maxUtility, utility)
		viable = append(viable, CandidateScore{
			Rate:             x,
			ExpectedUtility:  utility,
			ClearProbability: mass,
			Competitors:      c,
			RawCompetitors:   bin.Count,
			Unobserved:       !inRange || bin.Unobserved,
			Stale:            stale,
		})
	}
	if s.trace.Enabled() {
		s.trace.RecordTotals(trace.ScoringTotals{
			Evaluated:  n,
			Excluded:   rec.Excluded,
			UtilitySum: viableUtility,
			MaxUtility: maxUtility,
		})
	}

	if len(viable) == 0 {
		rec.Condition = ConditionNoViableCandidate
		rec.Candidates = []CandidateScore{}
		logrus.Warnf("scorer: all %d candidates in [%.5f, %.5f] reach the density ceiling %v", n, start, end, s.ceiling)
		return rec, nil
	}

	sort.SliceStable(viable, func(i, j int) bool {
		if viable[i].ExpectedUtility != viable[j].ExpectedUtility {
			return viable[i].ExpectedUtility > viable[j].ExpectedUtility
		}
		return viable[i].Rate < viable[j].Rate
	})
	if len(viable) > s.topK {
		viable = viable[:s.topK]
	}

	baseDec := decimal.NewFromFloat(base)
	best := viable[0].ExpectedUtility
	for i := range viable {
		c := &viable[i]
		c.Rank = i + 1
		c.BidAmount = baseDec.Mul(decimal.NewFromFloat(c.Rate)).Floor()
		if winners != nil {
			c.HistoricalPercentile = winners.PercentileOf(c.Rate)
		}
		if s.trace.Enabled() {
			s.trace.RecordSelection(trace.SelectionRecord{
				Rank:    c.Rank,
				Rate:    c.Rate,
				Utility: c.ExpectedUtility,
				Regret:  best - c.ExpectedUtility,
			})
		}
	}
	rec.Candidates = viable

	logrus.Debugf("scorer: %d candidates, %d excluded, best rate=%.5f utility=%.6f",
		n, rec.Excluded, viable[0].Rate, best)
	return rec, nil
}
