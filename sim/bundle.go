package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bidsim/bidsim/sim/trace"
)

// AnalysisBundle holds analysis configuration loadable from a YAML file.
// Nil pointer fields mean "not set in YAML" and do not override AnalysisConfig.
// String fields use empty string for "not set".
type AnalysisBundle struct {
	Simulation SimulationBundle `yaml:"simulation"`
	Density    DensityBundle    `yaml:"density"`
	Scoring    ScoringBundle    `yaml:"scoring"`
	Trend      TrendBundle      `yaml:"trend"`
}

// SimulationBundle holds reserve simulation settings.
type SimulationBundle struct {
	Iterations *int     `yaml:"iterations"`
	Spread     *float64 `yaml:"spread"`
	Layout     string   `yaml:"layout"`
	Seed       *int64   `yaml:"seed"`
}

// DensityBundle holds density settings. Decay and DecayPreset are exclusive.
type DensityBundle struct {
	BinWidth    *float64       `yaml:"bin_width"`
	Decay       *DecaySchedule `yaml:"decay"`
	DecayPreset string         `yaml:"decay_preset"`
	IncludeBins *bool          `yaml:"include_bins"`
}

// ScoringBundle holds scorer settings.
type ScoringBundle struct {
	DensityCeiling *float64     `yaml:"density_ceiling"`
	TopK           *int         `yaml:"top_k"`
	Range          *SearchRange `yaml:"range"`
	Trace          string       `yaml:"trace"`
}

// TrendBundle holds trend settings.
type TrendBundle struct {
	Enabled    *bool    `yaml:"enabled"`
	MinSamples *int     `yaml:"min_samples"`
	Reference  *float64 `yaml:"reference"`
}

// LoadAnalysisBundle reads and strictly parses a YAML analysis file.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadAnalysisBundle(path string) (*AnalysisBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading analysis config: %w", err)
	}
	var bundle AnalysisBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing analysis config: %w", err)
	}
	return &bundle, nil
}

// Validate checks names and parameter ranges in the bundle.
func (b *AnalysisBundle) Validate() error {
	if !validLayouts[PriceLayout(b.Simulation.Layout)] {
		return fmt.Errorf("unknown price layout %q", b.Simulation.Layout)
	}
	if b.Simulation.Iterations != nil && *b.Simulation.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", *b.Simulation.Iterations)
	}
	if b.Simulation.Spread != nil && !(*b.Simulation.Spread > 0 && *b.Simulation.Spread < 1) {
		return fmt.Errorf("spread must be in (0, 1), got %f", *b.Simulation.Spread)
	}
	if b.Density.BinWidth != nil && !(*b.Density.BinWidth > 0) {
		return fmt.Errorf("bin_width must be positive, got %f", *b.Density.BinWidth)
	}
	if b.Density.Decay != nil && b.Density.DecayPreset != "" {
		return fmt.Errorf("decay and decay_preset are mutually exclusive")
	}
	if b.Density.DecayPreset != "" && !validDecayPresets[b.Density.DecayPreset] {
		return fmt.Errorf("unknown decay preset %q", b.Density.DecayPreset)
	}
	if b.Density.Decay != nil {
		if err := b.Density.Decay.Validate(); err != nil {
			return err
		}
	}
	if b.Scoring.DensityCeiling != nil && *b.Scoring.DensityCeiling < 0 {
		return fmt.Errorf("density_ceiling must be non-negative, got %f", *b.Scoring.DensityCeiling)
	}
	if b.Scoring.TopK != nil && *b.Scoring.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", *b.Scoring.TopK)
	}
	if r := b.Scoring.Range; r != nil {
		if !(r.Step > 0) {
			return fmt.Errorf("range step must be positive, got %f", r.Step)
		}
		if n := normalizeRange(*r); n.End < n.Start {
			return fmt.Errorf("range end %f is before start %f", r.End, r.Start)
		}
	}
	if !trace.IsValidTraceLevel(b.Scoring.Trace) {
		return fmt.Errorf("unknown trace level %q", b.Scoring.Trace)
	}
	if b.Trend.MinSamples != nil && *b.Trend.MinSamples < 0 {
		return fmt.Errorf("min_samples must be non-negative, got %d", *b.Trend.MinSamples)
	}
	return nil
}

// Apply copies every field set in the bundle onto cfg. Rates given as
// percentages are normalized to fractions.
func (b *AnalysisBundle) Apply(cfg *AnalysisConfig) error {
	if b.Simulation.Iterations != nil {
		cfg.Simulation.Iterations = *b.Simulation.Iterations
	}
	if b.Simulation.Spread != nil {
		cfg.Simulation.Spread = *b.Simulation.Spread
	}
	if b.Simulation.Layout != "" {
		cfg.Simulation.Layout = PriceLayout(b.Simulation.Layout)
	}
	if b.Simulation.Seed != nil {
		seed := *b.Simulation.Seed
		cfg.Simulation.Seed = &seed
	}

	if b.Density.BinWidth != nil {
		cfg.Density.BinWidth = *b.Density.BinWidth
	}
	if b.Density.Decay != nil {
		decay := *b.Density.Decay
		cfg.Density.Decay = &decay
	}
	if b.Density.DecayPreset != "" {
		decay, err := DecayPreset(b.Density.DecayPreset)
		if err != nil {
			return err
		}
		cfg.Density.Decay = decay
	}
	if b.Density.IncludeBins != nil {
		cfg.Density.IncludeBins = *b.Density.IncludeBins
	}

	if b.Scoring.DensityCeiling != nil {
		ceiling := *b.Scoring.DensityCeiling
		cfg.Scoring.DensityCeiling = &ceiling
	}
	if b.Scoring.TopK != nil {
		cfg.Scoring.TopK = *b.Scoring.TopK
	}
	if r := b.Scoring.Range; r != nil {
		cfg.Scoring.Range = normalizeRange(*r)
	}
	if b.Scoring.Trace != "" {
		cfg.Scoring.TraceLevel = trace.TraceLevel(b.Scoring.Trace)
	}

	if b.Trend.Enabled != nil {
		cfg.Trend.Enabled = *b.Trend.Enabled
	}
	if b.Trend.MinSamples != nil {
		cfg.Trend.MinSamples = *b.Trend.MinSamples
	}
	if b.Trend.Reference != nil {
		ref := NormalizeRate(*b.Trend.Reference)
		cfg.Trend.Reference = &ref
	}
	return nil
}

// normalizeRange converts a range written in percentages (start > 1) to
// fractions, step included.
func normalizeRange(r SearchRange) *SearchRange {
	if r.Start > 1 {
		return &SearchRange{Start: r.Start / 100, End: r.End / 100, Step: r.Step / 100}
	}
	return &SearchRange{Start: r.Start, End: r.End, Step: r.Step}
}
