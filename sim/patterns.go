package sim

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// FloorMargin is subtracted from the lowest winning ratio to form the floor (0.1%p).
	FloorMargin = 0.001
	// FloorHeadroom is added to the floor for the recommended minimum (0.05%p).
	FloorHeadroom = 0.0005

	digitPicks  = 3
	endingPicks = 5
	endingBase  = 1000
)

// digitGuard absorbs float drift when reading a decimal digit of a ratio.
const digitGuard = 1e-6

// ThirdDigit returns the third decimal digit of x expressed as a percentage,
// e.g. 0.87745 (87.745%) yields 5.
func ThirdDigit(x float64) int {
	return int(math.Floor(x*1e5+digitGuard)) % 10
}

// WithThirdDigit keeps x to two percentage decimals and sets the third to d.
func WithThirdDigit(x float64, d int) float64 {
	return math.Floor(x*1e4+digitGuard)/1e4 + float64(d)/1e5
}

// AmountEnding returns the last three won digits of an amount.
func AmountEnding(amount float64) int {
	return int(decimal.NewFromFloat(amount).Floor().Mod(decimal.NewFromInt(endingBase)).IntPart())
}

// DigitPattern is the distribution of the 0.001%p digit of winning ratios.
type DigitPattern struct {
	Counts [10]int `json:"counts"`
	Avoid  []int   `json:"avoid"` // most crowded digits first
	Safe   []int   `json:"safe"`  // least crowded digits first
}

// EndingCount is the frequency of one amount ending.
type EndingCount struct {
	Ending int `json:"ending"`
	Count  int `json:"count"`
}

// EndingPattern is the distribution of winning amounts mod 1000 won.
type EndingPattern struct {
	Distinct int           `json:"distinct"`
	Avoid    []EndingCount `json:"avoid"`
	Safe     []EndingCount `json:"safe"` // among endings that occurred
}

// PatternReport describes digit habits of historical winners.
type PatternReport struct {
	Samples    int           `json:"samples"`
	ThirdDigit DigitPattern  `json:"third_digit"`
	Endings    EndingPattern `json:"endings"`
	Condition  Condition     `json:"condition,omitempty"`
}

// Err returns ErrInsufficientData when there was no winner to analyze.
func (p *PatternReport) Err() error { return p.Condition.Err() }

// AnalyzePatterns counts third-digit and amount-ending frequencies of the
// rank-1 records.
func AnalyzePatterns(records []BidRecord) *PatternReport {
	rep := &PatternReport{}
	endings := make(map[int]int)
	for _, r := range records {
		if !r.IsWinner() {
			continue
		}
		rep.Samples++
		rep.ThirdDigit.Counts[ThirdDigit(r.Ratio())]++
		endings[AmountEnding(r.BidAmount)]++
	}
	if rep.Samples == 0 {
		rep.Condition = ConditionInsufficientData
		return rep
	}

	digits := make([]int, 10)
	for d := range digits {
		digits[d] = d
	}
	counts := rep.ThirdDigit.Counts
	sort.SliceStable(digits, func(i, j int) bool { return counts[digits[i]] > counts[digits[j]] })
	rep.ThirdDigit.Avoid = append([]int(nil), digits[:digitPicks]...)
	sort.SliceStable(digits, func(i, j int) bool {
		if counts[digits[i]] != counts[digits[j]] {
			return counts[digits[i]] < counts[digits[j]]
		}
		return digits[i] < digits[j]
	})
	rep.ThirdDigit.Safe = append([]int(nil), digits[:digitPicks]...)

	ec := make([]EndingCount, 0, len(endings))
	for e, n := range endings {
		ec = append(ec, EndingCount{Ending: e, Count: n})
	}
	sort.Slice(ec, func(i, j int) bool {
		if ec[i].Count != ec[j].Count {
			return ec[i].Count > ec[j].Count
		}
		return ec[i].Ending < ec[j].Ending
	})
	rep.Endings.Distinct = len(ec)
	k := min(endingPicks, len(ec))
	rep.Endings.Avoid = append([]EndingCount(nil), ec[:k]...)
	safe := make([]EndingCount, k)
	for i := 0; i < k; i++ {
		safe[i] = ec[len(ec)-1-i]
	}
	sort.SliceStable(safe, func(i, j int) bool {
		if safe[i].Count != safe[j].Count {
			return safe[i].Count < safe[j].Count
		}
		return safe[i].Ending < safe[j].Ending
	})
	rep.Endings.Safe = safe
	return rep
}

// Floor is the psychological lower bound of a sensible bid.
type Floor struct {
	MinWinnerRatio     float64   `json:"min_winner_ratio"`
	SimulatedP5        float64   `json:"simulated_p5"`
	Floor              float64   `json:"floor"`
	RecommendedMinimum float64   `json:"recommended_minimum"`
	Condition          Condition `json:"condition,omitempty"`
}

// PsychologicalFloor combines the lowest historical winner with the simulated
// 5th percentile: floor = max(min winner - 0.1%p, P5). Without winners the
// floor falls back to P5 and the result is flagged.
func PsychologicalFloor(winners *WinnerStats, dist *ReserveDistribution) Floor {
	f := Floor{SimulatedP5: dist.MinWinningRate.P5}
	if winners == nil || winners.Winners == 0 {
		f.Floor = f.SimulatedP5
		f.Condition = ConditionInsufficientData
	} else {
		f.MinWinnerRatio = winners.Ratio.Min
		f.Floor = math.Max(f.MinWinnerRatio-FloorMargin, f.SimulatedP5)
	}
	f.RecommendedMinimum = f.Floor + FloorHeadroom
	return f
}
