package sim

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsim/bidsim/sim/trace"
)

func analysisConfig(seed int64) AnalysisConfig {
	return AnalysisConfig{
		BaseAmount: 39_000_000,
		Simulation: SimulationConfig{Iterations: 2000, Spread: 0.02, Seed: &seed},
	}
}

func TestAnalyze_FullPipeline(t *testing.T) {
	// GIVEN the three-cluster history of one agency-rate group
	records := threeClusterRecords(87.745)

	// WHEN analyzed with a fixed seed
	report, err := Analyze(records, analysisConfig(42))
	require.NoError(t, err)

	// THEN every section is filled and no condition is raised
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.InDelta(t, 0.87745, report.AgencyRate, 1e-12)
	assert.Equal(t, len(records), report.TotalRecords)
	assert.Equal(t, 2000, report.Simulation.Iterations)
	assert.Equal(t, 1, report.Winners.Winners)
	assert.Equal(t, len(records), report.Density.TotalCount)
	assert.Len(t, report.Density.Peaks, 3)
	assert.False(t, report.Density.Weighted)
	assert.Empty(t, report.Density.Bins)
	assert.Len(t, report.Recommendation.Candidates, DefaultTopK)
	assert.Equal(t, 1, report.Patterns.Samples)
	require.NotNil(t, report.DigitAdjusted)
	assert.Equal(t, report.Patterns.ThirdDigit.Safe[0], ThirdDigit(report.DigitAdjusted.Rate))
	assert.Nil(t, report.Trend)
	assert.Nil(t, report.Trace)
	assert.Empty(t, report.Conditions)
	assert.NoError(t, report.Err())
}

func TestAnalyze_SameSeedSameRecommendation(t *testing.T) {
	records := threeClusterRecords(0.87745)
	a, err := Analyze(records, analysisConfig(7))
	require.NoError(t, err)
	b, err := Analyze(records, analysisConfig(7))
	require.NoError(t, err)

	assert.Equal(t, a.Recommendation, b.Recommendation)
	assert.Equal(t, a.Simulation.MinWinningRate, b.Simulation.MinWinningRate)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestAnalyze_GroupMismatch(t *testing.T) {
	records := []BidRecord{testRecord(0.875, 1, 0.87745), testRecord(0.865, 1, 0.86745)}
	_, err := Analyze(records, analysisConfig(1))
	assert.True(t, errors.Is(err, ErrGroupMismatch), "got %v", err)

	cfg := analysisConfig(1)
	cfg.AgencyRate = 0.86745
	_, err = Analyze(records[:1], cfg)
	assert.True(t, errors.Is(err, ErrGroupMismatch), "configured rate must match the records")
}

func TestAnalyze_InvalidInput(t *testing.T) {
	cfg := analysisConfig(1)
	cfg.BaseAmount = 0
	_, err := Analyze(threeClusterRecords(0.87745), cfg)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	records := threeClusterRecords(0.87745)
	records[3].BaseAmount = -1
	_, err = Analyze(records, analysisConfig(1))
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

// TestAnalyze_AllDisqualified verifies that a group without winners still
// yields a recommendation while flagging insufficient data.
func TestAnalyze_AllDisqualified(t *testing.T) {
	// GIVEN only below-minimum bids
	records := []BidRecord{
		testRecord(0.850, -1, 0.87745),
		testRecord(0.851, -2, 0.87745),
		testRecord(0.852, -3, 0.87745),
	}

	// WHEN analyzed
	report, err := Analyze(records, analysisConfig(3))

	// THEN the pipeline completes with the condition raised
	require.NoError(t, err)
	assert.Contains(t, report.Conditions, ConditionInsufficientData)
	assert.True(t, errors.Is(report.Err(), ErrInsufficientData))
	assert.Equal(t, 1.0, report.Winners.DisqualifiedFraction)
	assert.Equal(t, 3, report.Density.TotalCount, "disqualified bids still shape the density")
	assert.NotEmpty(t, report.Recommendation.Candidates)
	assert.Equal(t, ConditionInsufficientData, report.Floor.Condition)
	assert.Nil(t, report.DigitAdjusted)
}

func TestAnalyze_ZeroCeiling(t *testing.T) {
	cfg := analysisConfig(5)
	cfg.Scoring.DensityCeiling = float64Ptr(0)
	cfg.Scoring.TraceLevel = trace.TraceLevelDecisions

	report, err := Analyze(threeClusterRecords(0.87745), cfg)
	require.NoError(t, err)
	assert.Equal(t, []Condition{ConditionNoViableCandidate}, report.Conditions)
	assert.True(t, errors.Is(report.Err(), ErrNoViableCandidate))
	assert.Empty(t, report.Recommendation.Candidates)
	assert.Nil(t, report.DigitAdjusted)
	require.NotNil(t, report.Trace)
	assert.Equal(t, report.Recommendation.Evaluated, report.Trace.ExcludedCount)
}

func TestAnalyze_NoRecords(t *testing.T) {
	_, err := Analyze(nil, analysisConfig(1))
	assert.True(t, errors.Is(err, ErrInvalidParameter), "agency rate is needed without records")

	cfg := analysisConfig(1)
	cfg.AgencyRate = 87.745
	report, err := Analyze(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, []Condition{ConditionInsufficientData, ConditionEmptyDataset}, report.Conditions)
	assert.NotEmpty(t, report.Recommendation.Candidates)
	assert.InDelta(t, report.Simulation.MinWinningRate.Min, report.Recommendation.SearchStart, 1e-15)
}

func TestAnalyze_DecayWeightsAndTrend(t *testing.T) {
	// GIVEN dated records spread over a year
	records := append(trendRecords(0.88025, 0.88525, 10), trendRecords(0.87525, 0.87025, 250)...)
	records = append(records, testRecord(0.87825, 5, 0.87745))
	decay := StandardDecay()
	cfg := analysisConfig(11)
	cfg.Density.Decay = &decay
	cfg.Density.IncludeBins = true
	cfg.Trend.Enabled = true

	// WHEN analyzed
	report, err := Analyze(records, cfg)
	require.NoError(t, err)

	// THEN recent bids weigh 1.0, year-old bids 0.1 and the undated bid 0.1
	assert.True(t, report.Density.Weighted)
	assert.InDelta(t, 12*1.0+12*0.1+0.1, report.Density.TotalWeight, 1e-9)
	assert.Equal(t, 25, report.Density.TotalCount)
	assert.Len(t, report.Density.Bins, report.Density.BinCount)

	// AND the trend is computed on the same schedule
	require.NotNil(t, report.Trend)
	assert.Equal(t, TrendRising, report.Trend.Direction)
	assert.Empty(t, report.Conditions)
}

func TestReport_MarshalsToJSON(t *testing.T) {
	report, err := Analyze(threeClusterRecords(0.87745), analysisConfig(42))
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"run_id", "generated_at", "base_amount", "agency_rate", "total_records",
		"simulation", "winners", "density", "recommendation", "patterns", "floor", "conditions"} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "trend")
}
