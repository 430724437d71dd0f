package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsim/bidsim/sim/trace"
)

func float64Ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func TestLoadAnalysisBundle_ValidYAML(t *testing.T) {
	yaml := `
simulation:
  iterations: 20000
  spread: 0.03
  layout: linspace
  seed: 42
density:
  bin_width: 0.001
  decay:
    mode: exclusive
    tiers:
      - within_days: 30
        weight: 1.0
      - within_days: 365
        weight: 0.5
  include_bins: true
scoring:
  density_ceiling: 150
  top_k: 5
  range:
    start: 86.5
    end: 88.5
    step: 0.001
  trace: decisions
trend:
  enabled: true
  min_samples: 20
  reference: 87.745
`
	path := writeTempYAML(t, yaml)
	bundle, err := LoadAnalysisBundle(path)
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())

	cfg := AnalysisConfig{BaseAmount: 39_000_000}
	require.NoError(t, bundle.Apply(&cfg))

	assert.Equal(t, 20000, cfg.Simulation.Iterations)
	assert.Equal(t, 0.03, cfg.Simulation.Spread)
	assert.Equal(t, LayoutLinspace, cfg.Simulation.Layout)
	require.NotNil(t, cfg.Simulation.Seed)
	assert.Equal(t, int64(42), *cfg.Simulation.Seed)
	assert.Equal(t, 0.001, cfg.Density.BinWidth)
	require.NotNil(t, cfg.Density.Decay)
	assert.Equal(t, DecayExclusive, cfg.Density.Decay.Mode)
	assert.Len(t, cfg.Density.Decay.Tiers, 2)
	assert.True(t, cfg.Density.IncludeBins)
	assert.Equal(t, 150.0, *cfg.Scoring.DensityCeiling)
	assert.Equal(t, 5, cfg.Scoring.TopK)
	require.NotNil(t, cfg.Scoring.Range)
	assert.InDelta(t, 0.865, cfg.Scoring.Range.Start, 1e-12)
	assert.InDelta(t, 0.885, cfg.Scoring.Range.End, 1e-12)
	assert.InDelta(t, 0.00001, cfg.Scoring.Range.Step, 1e-15)
	assert.Equal(t, trace.TraceLevelDecisions, cfg.Scoring.TraceLevel)
	assert.True(t, cfg.Trend.Enabled)
	assert.Equal(t, 20, cfg.Trend.MinSamples)
	assert.InDelta(t, 0.87745, *cfg.Trend.Reference, 1e-12)
	assert.NoError(t, cfg.WithDefaults().Validate())
}

func TestLoadAnalysisBundle_ZeroCeilingIsDistinctFromUnset(t *testing.T) {
	path := writeTempYAML(t, "scoring:\n  density_ceiling: 0\n")
	bundle, err := LoadAnalysisBundle(path)
	require.NoError(t, err)

	// density_ceiling: 0 must be explicitly set (non-nil), not treated as unset
	require.NotNil(t, bundle.Scoring.DensityCeiling)
	assert.Equal(t, 0.0, *bundle.Scoring.DensityCeiling)
	assert.Nil(t, bundle.Scoring.TopK)
}

func TestLoadAnalysisBundle_UnsetFieldsKeepConfig(t *testing.T) {
	path := writeTempYAML(t, "density:\n  decay_preset: standard\n")
	bundle, err := LoadAnalysisBundle(path)
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())

	seed := int64(9)
	cfg := AnalysisConfig{BaseAmount: 1, Simulation: SimulationConfig{Iterations: 77, Seed: &seed}}
	require.NoError(t, bundle.Apply(&cfg))

	assert.Equal(t, 77, cfg.Simulation.Iterations)
	assert.Equal(t, int64(9), *cfg.Simulation.Seed)
	require.NotNil(t, cfg.Density.Decay)
	assert.Equal(t, StandardDecay(), *cfg.Density.Decay)
}

func TestLoadAnalysisBundle_UnknownKeyRejected(t *testing.T) {
	path := writeTempYAML(t, "simulation:\n  iteration: 100\n")
	_, err := LoadAnalysisBundle(path)
	assert.Error(t, err)
}

func TestLoadAnalysisBundle_NonexistentFile(t *testing.T) {
	_, err := LoadAnalysisBundle("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadAnalysisBundle_MalformedYAML(t *testing.T) {
	path := writeTempYAML(t, "{{invalid yaml")
	_, err := LoadAnalysisBundle(path)
	assert.Error(t, err)
}

func TestAnalysisBundle_Validate_EmptyIsValid(t *testing.T) {
	bundle := &AnalysisBundle{}
	assert.NoError(t, bundle.Validate())
}

func TestAnalysisBundle_Validate_Invalid(t *testing.T) {
	decay := StandardDecay()
	tests := []struct {
		name   string
		bundle AnalysisBundle
	}{
		{"bad layout", AnalysisBundle{Simulation: SimulationBundle{Layout: "gaussian"}}},
		{"zero iterations", AnalysisBundle{Simulation: SimulationBundle{Iterations: intPtr(0)}}},
		{"spread too wide", AnalysisBundle{Simulation: SimulationBundle{Spread: float64Ptr(1.5)}}},
		{"zero bin width", AnalysisBundle{Density: DensityBundle{BinWidth: float64Ptr(0)}}},
		{"decay and preset", AnalysisBundle{Density: DensityBundle{Decay: &decay, DecayPreset: "standard"}}},
		{"bad preset", AnalysisBundle{Density: DensityBundle{DecayPreset: "weekly"}}},
		{"bad decay", AnalysisBundle{Density: DensityBundle{Decay: &DecaySchedule{}}}},
		{"negative ceiling", AnalysisBundle{Scoring: ScoringBundle{DensityCeiling: float64Ptr(-1)}}},
		{"zero top-k", AnalysisBundle{Scoring: ScoringBundle{TopK: intPtr(0)}}},
		{"zero step", AnalysisBundle{Scoring: ScoringBundle{Range: &SearchRange{Start: 0.86, End: 0.87}}}},
		{"reversed range", AnalysisBundle{Scoring: ScoringBundle{Range: &SearchRange{Start: 87, End: 86, Step: 0.001}}}},
		{"bad trace", AnalysisBundle{Scoring: ScoringBundle{Trace: "verbose"}}},
		{"negative min samples", AnalysisBundle{Trend: TrendBundle{MinSamples: intPtr(-1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.bundle.Validate())
		})
	}
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAnalysisBundle_EmptyFile(t *testing.T) {
	path := writeTempYAML(t, "")
	bundle, err := LoadAnalysisBundle(path)
	require.NoError(t, err)
	assert.Equal(t, &AnalysisBundle{}, bundle)
}
