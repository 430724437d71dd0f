package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/bidsim/bidsim/sim/trace"
)

// SimulationConfig groups reserve-price simulation parameters.
type SimulationConfig struct {
	Iterations int         // Monte Carlo samples (0 = DefaultIterations)
	Spread     float64     // symmetric band around the base amount (0 = DefaultSpread)
	Layout     PriceLayout // "" = uniform
	Seed       *int64      // nil = fresh seed per run
}

// NewSimulationConfig creates a SimulationConfig.
func NewSimulationConfig(iterations int, spread float64, layout PriceLayout, seed *int64) SimulationConfig {
	return SimulationConfig{Iterations: iterations, Spread: spread, Layout: layout, Seed: seed}
}

// DensityConfig groups competition-density parameters.
type DensityConfig struct {
	BinWidth    float64        // 0 = DefaultBinWidth
	Decay       *DecaySchedule // nil = every record weighs 1
	AsOf        time.Time      // decay reference date; zero = latest submission
	IncludeBins bool           // emit every bin in the report
}

// NewDensityConfig creates a DensityConfig.
func NewDensityConfig(binWidth float64, decay *DecaySchedule, asOf time.Time, includeBins bool) DensityConfig {
	return DensityConfig{BinWidth: binWidth, Decay: decay, AsOf: asOf, IncludeBins: includeBins}
}

// SearchRange is an explicit inclusive candidate range.
type SearchRange struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Step  float64 `yaml:"step"`
}

// ScoringConfig groups scorer parameters.
type ScoringConfig struct {
	DensityCeiling *float64         // nil = DefaultDensityCeiling
	TopK           int              // 0 = DefaultTopK
	Range          *SearchRange     // nil = start at the lowest observed ratio
	TraceLevel     trace.TraceLevel // "" = none
}

// NewScoringConfig creates a ScoringConfig.
func NewScoringConfig(ceiling *float64, topK int, rng *SearchRange, level trace.TraceLevel) ScoringConfig {
	return ScoringConfig{DensityCeiling: ceiling, TopK: topK, Range: rng, TraceLevel: level}
}

// TrendSettings groups temporal trend parameters.
type TrendSettings struct {
	Enabled    bool
	MinSamples int      // 0 = MinWindowSamples
	Reference  *float64 // optional clamp center
}

// AnalysisConfig is the full parameter set of one Analyze call.
type AnalysisConfig struct {
	BaseAmount float64 // announced base amount of the upcoming bid (> 0)
	AgencyRate float64 // 0 = the agency rate shared by the records
	Simulation SimulationConfig
	Density    DensityConfig
	Scoring    ScoringConfig
	Trend      TrendSettings
}

// WithDefaults returns a copy with every unset field filled.
func (c AnalysisConfig) WithDefaults() AnalysisConfig {
	if c.Simulation.Iterations == 0 {
		c.Simulation.Iterations = DefaultIterations
	}
	if c.Simulation.Spread == 0 {
		c.Simulation.Spread = DefaultSpread
	}
	if c.Simulation.Layout == "" {
		c.Simulation.Layout = LayoutUniform
	}
	if c.Density.BinWidth == 0 {
		c.Density.BinWidth = DefaultBinWidth
	}
	if c.Scoring.DensityCeiling == nil {
		ceiling := DefaultDensityCeiling
		c.Scoring.DensityCeiling = &ceiling
	}
	if c.Scoring.TopK == 0 {
		c.Scoring.TopK = DefaultTopK
	}
	if c.Trend.MinSamples == 0 {
		c.Trend.MinSamples = MinWindowSamples
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c AnalysisConfig) Validate() error {
	if !(c.BaseAmount > 0) || math.IsInf(c.BaseAmount, 0) {
		return fmt.Errorf("%w: base amount must be positive, got %v", ErrInvalidParameter, c.BaseAmount)
	}
	if c.AgencyRate < 0 || math.IsNaN(c.AgencyRate) || math.IsInf(c.AgencyRate, 0) {
		return fmt.Errorf("%w: agency rate must be positive, got %v", ErrInvalidParameter, c.AgencyRate)
	}
	if !(c.Density.BinWidth > 0) || math.IsInf(c.Density.BinWidth, 0) {
		return fmt.Errorf("%w: bin width must be positive, got %v", ErrInvalidParameter, c.Density.BinWidth)
	}
	if c.Density.Decay != nil {
		if err := c.Density.Decay.Validate(); err != nil {
			return err
		}
	}
	if c.Scoring.DensityCeiling != nil && (*c.Scoring.DensityCeiling < 0 || math.IsNaN(*c.Scoring.DensityCeiling)) {
		return fmt.Errorf("%w: density ceiling must be non-negative, got %v", ErrInvalidParameter, *c.Scoring.DensityCeiling)
	}
	if c.Scoring.TopK < 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", ErrInvalidParameter, c.Scoring.TopK)
	}
	if !trace.IsValidTraceLevel(string(c.Scoring.TraceLevel)) {
		return fmt.Errorf("%w: unknown trace level %q", ErrInvalidParameter, c.Scoring.TraceLevel)
	}
	if c.Trend.MinSamples < 0 {
		return fmt.Errorf("%w: trend min samples must be non-negative, got %d", ErrInvalidParameter, c.Trend.MinSamples)
	}
	return nil
}

// reserveConfig builds the simulator input for this analysis.
func (c AnalysisConfig) reserveConfig(agency float64) ReserveConfig {
	return ReserveConfig{
		BaseAmount: c.BaseAmount,
		AgencyRate: agency,
		Iterations: c.Simulation.Iterations,
		Spread:     c.Simulation.Spread,
		Seed:       c.Simulation.Seed,
		Layout:     c.Simulation.Layout,
	}
}

// scorerOptions builds the scorer options for this analysis.
func (c AnalysisConfig) scorerOptions(st *trace.ScoringTrace) []ScorerOption {
	opts := []ScorerOption{WithBaseAmount(c.BaseAmount)}
	if c.Scoring.DensityCeiling != nil {
		opts = append(opts, WithDensityCeiling(*c.Scoring.DensityCeiling))
	}
	if c.Scoring.TopK > 0 {
		opts = append(opts, WithTopK(c.Scoring.TopK))
	}
	if r := c.Scoring.Range; r != nil {
		opts = append(opts, WithSearchRange(r.Start, r.End, r.Step))
	}
	if st != nil {
		opts = append(opts, WithTrace(st))
	}
	return opts
}
