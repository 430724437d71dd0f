package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bidsim/bidsim/sim/trace"
)

// DensityReport is the report view of a DensityMap. Bins are only included
// when requested.
type DensityReport struct {
	BinWidth        float64      `json:"bin_width"`
	BinCount        int          `json:"bin_count"`
	UnobservedBins  int          `json:"unobserved_bins"`
	ExpectedDensity float64      `json:"expected_density"`
	TotalCount      int          `json:"total_count"`
	TotalWeight     float64      `json:"total_weight"`
	MinRatio        float64      `json:"min_ratio"`
	MaxRatio        float64      `json:"max_ratio"`
	Peaks           []float64    `json:"peaks"` // midpoints of local maxima
	Weighted        bool         `json:"weighted"`
	Bins            []DensityBin `json:"bins,omitempty"`
	Condition       Condition    `json:"condition,omitempty"`
}

// DigitAdjustment is the best candidate moved onto the least used third digit.
type DigitAdjustment struct {
	Digit     int             `json:"digit"`
	Rate      float64         `json:"rate"`
	BidAmount decimal.Decimal `json:"bid_amount"`
}

// Report is the complete outcome of one Analyze call.
type Report struct {
	RunID          string               `json:"run_id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	BaseAmount     float64              `json:"base_amount"`
	AgencyRate     float64              `json:"agency_rate"`
	TotalRecords   int                  `json:"total_records"`
	Simulation     *ReserveDistribution `json:"simulation"`
	Winners        *WinnerStats         `json:"winners"`
	Density        DensityReport        `json:"density"`
	Recommendation *Recommendation      `json:"recommendation"`
	DigitAdjusted  *DigitAdjustment     `json:"digit_adjusted,omitempty"`
	Patterns       *PatternReport       `json:"patterns"`
	Floor          Floor                `json:"floor"`
	Trend          *Trend               `json:"trend,omitempty"`
	Trace          *trace.TraceSummary  `json:"trace,omitempty"`
	Conditions     []Condition          `json:"conditions"`
}

// Err joins the errors of every data-adequacy condition raised in the report.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		errs = append(errs, c.Err())
	}
	return errors.Join(errs...)
}

// groupRate returns the agency rate shared by records, checked against the
// configured rate when one is given.
func groupRate(records []BidRecord, configured float64) (float64, error) {
	if len(records) == 0 {
		if configured == 0 {
			return 0, fmt.Errorf("%w: agency rate is required when there are no records", ErrInvalidParameter)
		}
		return NormalizeRate(configured), nil
	}
	rate := NormalizeRate(records[0].AgencyRate)
	for i, r := range records {
		if !sameRate(r.AgencyRate, rate) {
			return 0, fmt.Errorf("%w: record[%d] has agency rate %v, group is %v", ErrGroupMismatch, i, NormalizeRate(r.AgencyRate), rate)
		}
	}
	if configured != 0 && !sameRate(configured, rate) {
		return 0, fmt.Errorf("%w: configured agency rate %v, records are %v", ErrGroupMismatch, NormalizeRate(configured), rate)
	}
	return rate, nil
}

// Analyze runs the full pipeline over the records of one agency-rate group:
// simulation, winner extraction, density, scoring and the supplementary
// pattern, floor and trend analyses. Structural problems abort with an error;
// data-adequacy problems are listed in Report.Conditions.
func Analyze(records []BidRecord, cfg AnalysisConfig) (*Report, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	agency, err := groupRate(records, cfg.AgencyRate)
	if err != nil {
		return nil, err
	}

	dist, err := SimulateReserve(cfg.reserveConfig(agency))
	if err != nil {
		return nil, err
	}
	winners, err := ExtractWinnerStats(records)
	if err != nil {
		return nil, err
	}

	var weights []float64
	if cfg.Density.Decay != nil {
		weights = cfg.Density.Decay.Weights(records, cfg.Density.AsOf)
	}
	density, err := EstimateDensity(records, cfg.Density.BinWidth, weights)
	if err != nil {
		return nil, err
	}

	var st *trace.ScoringTrace
	if cfg.Scoring.TraceLevel != "" && cfg.Scoring.TraceLevel != trace.TraceLevelNone {
		st = trace.NewScoringTrace(trace.TraceConfig{Level: cfg.Scoring.TraceLevel})
	}
	scorer, err := NewScorer(cfg.scorerOptions(st)...)
	if err != nil {
		return nil, err
	}
	rec, err := scorer.Score(dist, density, winners)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:          uuid.NewString(),
		GeneratedAt:    time.Now().UTC(),
		BaseAmount:     cfg.BaseAmount,
		AgencyRate:     agency,
		TotalRecords:   len(records),
		Simulation:     dist,
		Winners:        winners,
		Density:        densityReport(density, cfg.Density.IncludeBins, weights != nil),
		Recommendation: rec,
		Patterns:       AnalyzePatterns(records),
		Floor:          PsychologicalFloor(winners, dist),
	}
	if best, ok := rec.Best(); ok && report.Patterns.Condition == ConditionOK {
		report.DigitAdjusted = digitAdjust(best.Rate, report.Patterns.ThirdDigit.Safe[0], cfg.BaseAmount)
	}

	if cfg.Trend.Enabled {
		schedule := StandardDecay()
		if cfg.Density.Decay != nil {
			schedule = *cfg.Density.Decay
		}
		report.Trend, err = AnalyzeTrend(records, TrendConfig{
			Schedule:   schedule,
			BinWidth:   cfg.Density.BinWidth,
			MinSamples: cfg.Trend.MinSamples,
			Reference:  cfg.Trend.Reference,
			AsOf:       cfg.Density.AsOf,
		})
		if err != nil {
			return nil, err
		}
	}
	if st != nil {
		report.Trace = trace.Summarize(st)
	}

	report.Conditions = collectConditions(report)
	for _, c := range report.Conditions {
		logrus.Warnf("analysis %s: %v", report.RunID, c.Err())
	}
	logrus.Infof("analysis %s: %d records, agency rate %.5f, %d candidates returned",
		report.RunID, len(records), agency, len(rec.Candidates))
	return report, nil
}

func densityReport(m *DensityMap, includeBins, weighted bool) DensityReport {
	out := DensityReport{
		BinWidth:        m.BinWidth,
		BinCount:        len(m.Bins),
		UnobservedBins:  m.UnobservedBins(),
		ExpectedDensity: m.ExpectedDensity,
		TotalCount:      m.TotalCount(),
		TotalWeight:     m.TotalWeight,
		MinRatio:        m.MinRatio,
		MaxRatio:        m.MaxRatio,
		Peaks:           []float64{},
		Weighted:        weighted,
		Condition:       m.Condition,
	}
	for _, i := range m.Peaks() {
		out.Peaks = append(out.Peaks, m.Bins[i].Midpoint())
	}
	if includeBins {
		out.Bins = m.Bins
	}
	return out
}

func digitAdjust(rate float64, digit int, base float64) *DigitAdjustment {
	adjusted := WithThirdDigit(rate, digit)
	return &DigitAdjustment{
		Digit:     digit,
		Rate:      adjusted,
		BidAmount: decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(adjusted)).Floor(),
	}
}

// collectConditions lists each distinct condition raised by a component,
// in pipeline order.
func collectConditions(r *Report) []Condition {
	seen := make(map[Condition]bool)
	out := []Condition{}
	add := func(c Condition) {
		if c == ConditionOK || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}
	add(r.Winners.Condition)
	add(r.Density.Condition)
	add(r.Recommendation.Condition)
	add(r.Patterns.Condition)
	if r.Trend != nil {
		add(r.Trend.Condition)
	}
	return out
}
