package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiGroupRecords() []BidRecord {
	var records []BidRecord
	records = append(records, threeClusterRecords(0.88745)...)
	records = append(records, threeClusterRecords(0.86745)...)
	records = append(records, threeClusterRecords(87.745)...)
	return records
}

func TestGroupSeeds_Deterministic(t *testing.T) {
	rates := []float64{0.86745, 0.87745}
	a := GroupSeeds(42, rates)
	b := GroupSeeds(42, rates)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0], a[1])
	assert.NotEqual(t, a, GroupSeeds(43, rates))
}

func TestAnalyzeGroups_OrderedByRate(t *testing.T) {
	// GIVEN records from three agency-rate groups
	cfg := analysisConfig(42)

	// WHEN analyzed concurrently
	reports, err := AnalyzeGroups(context.Background(), multiGroupRecords(), cfg)
	require.NoError(t, err)

	// THEN one report per group, ascending by rate
	require.Len(t, reports, 3)
	assert.InDelta(t, 0.86745, reports[0].AgencyRate, 1e-12)
	assert.InDelta(t, 0.87745, reports[1].AgencyRate, 1e-12)
	assert.InDelta(t, 0.88745, reports[2].AgencyRate, 1e-12)
	for _, r := range reports {
		assert.Equal(t, 48, r.TotalRecords)
	}
}

// TestAnalyzeGroups_MatchesSequentialRuns verifies concurrency does not change
// results: each group equals Analyze with its derived seed.
func TestAnalyzeGroups_MatchesSequentialRuns(t *testing.T) {
	records := multiGroupRecords()
	cfg := analysisConfig(42)

	reports, err := AnalyzeGroups(context.Background(), records, cfg)
	require.NoError(t, err)

	groups := GroupByAgencyRate(records)
	rates := []float64{groups[0].AgencyRate, groups[1].AgencyRate, groups[2].AgencyRate}
	seeds := GroupSeeds(42, rates)
	for i, g := range groups {
		gcfg := cfg
		gcfg.Simulation.Seed = &seeds[i]
		want, err := Analyze(g.Records, gcfg)
		require.NoError(t, err)
		assert.Equal(t, want.Recommendation, reports[i].Recommendation, "group %v", g.AgencyRate)
		assert.Equal(t, seeds[i], reports[i].Simulation.Seed)
	}
}

func TestAnalyzeGroups_IgnoresConfiguredAgencyRate(t *testing.T) {
	cfg := analysisConfig(1)
	cfg.AgencyRate = 0.5
	reports, err := AnalyzeGroups(context.Background(), multiGroupRecords(), cfg)
	require.NoError(t, err)
	assert.Len(t, reports, 3)
}

func TestAnalyzeGroups_Empty(t *testing.T) {
	reports, err := AnalyzeGroups(context.Background(), nil, analysisConfig(1))
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestAnalyzeGroups_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := AnalyzeGroups(ctx, multiGroupRecords(), analysisConfig(1))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestAnalyzeGroups_PropagatesStructuralError(t *testing.T) {
	cfg := analysisConfig(1)
	cfg.BaseAmount = 0
	_, err := AnalyzeGroups(context.Background(), multiGroupRecords(), cfg)
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}
