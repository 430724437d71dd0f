package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// amountRecord builds a record on the 100,000,000 test base, where the
// thousands digit of the amount is the third percentage decimal of the ratio.
func amountRecord(amount float64, rank int) BidRecord {
	return BidRecord{BaseAmount: testBase, AgencyRate: 0.87745, BidAmount: amount, Rank: rank}
}

func TestThirdDigit(t *testing.T) {
	assert.Equal(t, 5, ThirdDigit(0.87745))
	assert.Equal(t, 0, ThirdDigit(0.8801))
	assert.Equal(t, 9, ThirdDigit(0.869991))
	assert.Equal(t, 1, ThirdDigit(87_741_123.0/testBase))
}

func TestWithThirdDigit(t *testing.T) {
	assert.InDelta(t, 0.87742, WithThirdDigit(0.87745, 2), 1e-12)
	assert.InDelta(t, 0.88009, WithThirdDigit(0.88001, 9), 1e-12)
	assert.Equal(t, 7, ThirdDigit(WithThirdDigit(0.86123, 7)))
}

func TestAmountEnding(t *testing.T) {
	assert.Equal(t, 797, AmountEnding(34_129_797.87))
	assert.Equal(t, 0, AmountEnding(34_129_000))
	assert.Equal(t, 5, AmountEnding(1_005))
}

func TestAnalyzePatterns_CountsWinnersOnly(t *testing.T) {
	// GIVEN six winners and one runner-up
	records := []BidRecord{
		amountRecord(87_741_123, 1),
		amountRecord(87_751_123, 1),
		amountRecord(87_761_500, 1),
		amountRecord(87_702_123, 1),
		amountRecord(87_712_900, 1),
		amountRecord(87_703_500, 1),
		amountRecord(87_709_999, 2),
	}

	// WHEN analyzing digit patterns
	rep := AnalyzePatterns(records)

	// THEN only winners are counted
	require.NoError(t, rep.Err())
	assert.Equal(t, 6, rep.Samples)
	assert.Equal(t, [10]int{0, 3, 2, 1, 0, 0, 0, 0, 0, 0}, rep.ThirdDigit.Counts)
	assert.Equal(t, []int{1, 2, 3}, rep.ThirdDigit.Avoid)
	assert.Equal(t, []int{0, 4, 5}, rep.ThirdDigit.Safe)

	// AND endings are ranked both ways
	assert.Equal(t, 3, rep.Endings.Distinct)
	assert.Equal(t, []EndingCount{{123, 3}, {500, 2}, {900, 1}}, rep.Endings.Avoid)
	assert.Equal(t, []EndingCount{{900, 1}, {500, 2}, {123, 3}}, rep.Endings.Safe)
}

func TestAnalyzePatterns_NoWinners(t *testing.T) {
	rep := AnalyzePatterns([]BidRecord{amountRecord(87_709_999, -1)})
	assert.Equal(t, ConditionInsufficientData, rep.Condition)
	assert.ErrorIs(t, rep.Err(), ErrInsufficientData)
	assert.Empty(t, rep.ThirdDigit.Avoid)
}

func TestPsychologicalFloor(t *testing.T) {
	dist := &ReserveDistribution{MinWinningRate: Summary{P5: 0.869}}

	t.Run("historical minimum dominates", func(t *testing.T) {
		winners, err := ExtractWinnerStats([]BidRecord{testRecord(0.875, 1, 0.87745), testRecord(0.880, 1, 0.87745)})
		require.NoError(t, err)

		f := PsychologicalFloor(winners, dist)
		assert.InDelta(t, 0.875, f.MinWinnerRatio, 1e-12)
		assert.InDelta(t, 0.874, f.Floor, 1e-12)
		assert.InDelta(t, 0.8745, f.RecommendedMinimum, 1e-12)
		assert.Equal(t, ConditionOK, f.Condition)
	})

	t.Run("simulated P5 dominates", func(t *testing.T) {
		winners, err := ExtractWinnerStats([]BidRecord{testRecord(0.865, 1, 0.87745)})
		require.NoError(t, err)

		f := PsychologicalFloor(winners, dist)
		assert.InDelta(t, 0.869, f.Floor, 1e-12)
	})

	t.Run("no winners", func(t *testing.T) {
		winners, err := ExtractWinnerStats([]BidRecord{testRecord(0.865, -1, 0.87745)})
		require.NoError(t, err)

		f := PsychologicalFloor(winners, dist)
		assert.InDelta(t, 0.869, f.Floor, 1e-12)
		assert.InDelta(t, 0.8695, f.RecommendedMinimum, 1e-12)
		assert.Equal(t, ConditionInsufficientData, f.Condition)
	})
}
