package sim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StandardPercentiles are the percentiles reported by every Summary.
var StandardPercentiles = []float64{5, 25, 50, 75, 95}

// Summary holds descriptive statistics of a sample.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P5     float64 `json:"p5"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

// Median is an alias for the 50th percentile.
func (s Summary) Median() float64 { return s.P50 }

// Summarize computes a Summary. data must be sorted ascending.
// Empty input returns a zero Summary. StdDev is the sample (n-1) deviation
// and is 0 for a single observation.
func Summarize(data []float64) Summary {
	n := len(data)
	if n == 0 {
		return Summary{}
	}
	s := Summary{
		Count: n,
		Min:   floats.Min(data),
		Max:   floats.Max(data),
		P5:    Percentile(data, 5),
		P25:   Percentile(data, 25),
		P50:   Percentile(data, 50),
		P75:   Percentile(data, 75),
		P95:   Percentile(data, 95),
	}
	if n == 1 {
		s.Mean = data[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(data, nil)
	return s
}

// SummarizeUnsorted copies and sorts data before summarizing.
func SummarizeUnsorted(data []float64) Summary {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return Summarize(sorted)
}

// Percentile returns the p-th percentile (0..100) of sorted data using
// linear interpolation between closest ranks. Returns 0 for empty input.
func Percentile(data []float64, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return data[n-1]
	}
	if lowerIdx == upperIdx {
		return data[lowerIdx]
	}
	lowerVal := data[lowerIdx]
	upperVal := data[upperIdx]
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// ShareAtOrBelow returns the fraction of sorted values that are <= x.
func ShareAtOrBelow(sorted []float64, x float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i] > x })
	return float64(idx) / float64(len(sorted))
}
