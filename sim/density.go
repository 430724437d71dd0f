package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// binGuard absorbs float drift so a ratio that is an exact multiple of the
// bin width lands in the bin it starts rather than the one below.
const binGuard = 1e-9

// DefaultBinWidth is the 0.05%p bin width used by the analysis pipeline.
const DefaultBinWidth = 0.0005

// MaxBins bounds the number of bins one density map may span.
const MaxBins = 200_000

// maxBinIndex keeps bin indices exactly representable in a float64 and
// well inside int range.
const maxBinIndex = 1 << 52

// DensityBin is one half-open ratio interval [Lower, Upper).
type DensityBin struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Count           int     `json:"count"`
	WeightedCount   float64 `json:"weighted_count"`
	RelativeDensity float64 `json:"relative_density"`
	Unobserved      bool    `json:"unobserved,omitempty"`
}

// Midpoint returns the center of the bin.
func (b DensityBin) Midpoint() float64 { return (b.Lower + b.Upper) / 2 }

// DensityMap is the binned distribution of bid-to-base ratios over every
// record, disqualified bids included.
type DensityMap struct {
	BinWidth        float64      `json:"bin_width"`
	Bins            []DensityBin `json:"bins,omitempty"`
	ExpectedDensity float64      `json:"expected_density"`
	TotalWeight     float64      `json:"total_weight"`
	MinRatio        float64      `json:"min_ratio"`
	MaxRatio        float64      `json:"max_ratio"`
	Condition       Condition    `json:"condition,omitempty"`

	firstIndex int
}

// Err returns ErrEmptyDataset when the map was built from no records.
func (m *DensityMap) Err() error { return m.Condition.Err() }

// binIndex returns k such that x falls in [k·w, (k+1)·w).
func binIndex(x, w float64) int {
	return int(math.Floor(x/w + binGuard))
}

// Lookup returns the bin containing x. ok is false outside the observed span.
func (m *DensityMap) Lookup(x float64) (DensityBin, bool) {
	if len(m.Bins) == 0 {
		return DensityBin{}, false
	}
	if q := x / m.BinWidth; math.IsNaN(q) || math.Abs(q) > maxBinIndex {
		return DensityBin{}, false
	}
	i := binIndex(x, m.BinWidth) - m.firstIndex
	if i < 0 || i >= len(m.Bins) {
		return DensityBin{}, false
	}
	return m.Bins[i], true
}

// TotalCount returns the raw number of records binned.
func (m *DensityMap) TotalCount() int {
	n := 0
	for _, b := range m.Bins {
		n += b.Count
	}
	return n
}

// UnobservedBins returns how many bins inside the span have no record.
func (m *DensityMap) UnobservedBins() int {
	n := 0
	for _, b := range m.Bins {
		if b.Unobserved {
			n++
		}
	}
	return n
}

// Peaks returns the indices of local maxima of the weighted count. A plateau
// reports its leftmost bin.
func (m *DensityMap) Peaks() []int {
	var peaks []int
	for i, b := range m.Bins {
		if b.Count == 0 {
			continue
		}
		if i > 0 && !(b.WeightedCount > m.Bins[i-1].WeightedCount) {
			continue
		}
		if i < len(m.Bins)-1 && b.WeightedCount < m.Bins[i+1].WeightedCount {
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}

// EstimateDensity bins every record's ratio at the given width. weights may
// be nil (weight 1 per record) or aligned with records by index.
func EstimateDensity(records []BidRecord, binWidth float64, weights []float64) (*DensityMap, error) {
	if !(binWidth > 0) || math.IsInf(binWidth, 0) {
		return nil, fmt.Errorf("%w: bin width must be positive and finite, got %v", ErrInvalidParameter, binWidth)
	}
	if weights != nil && len(weights) != len(records) {
		return nil, fmt.Errorf("%w: %d weights for %d records", ErrInvalidParameter, len(weights), len(records))
	}
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight[%d] must be finite and non-negative, got %v", ErrInvalidParameter, i, w)
		}
	}
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}

	m := &DensityMap{BinWidth: binWidth}
	if len(records) == 0 {
		m.Condition = ConditionEmptyDataset
		return m, nil
	}

	rs := ratios(records)
	m.MinRatio = floats.Min(rs)
	m.MaxRatio = floats.Max(rs)
	lo := math.Floor(m.MinRatio/binWidth + binGuard)
	hi := math.Floor(m.MaxRatio/binWidth + binGuard)
	if math.Abs(lo) > maxBinIndex || math.Abs(hi) > maxBinIndex {
		return nil, fmt.Errorf("%w: ratio span [%v, %v] is out of range at bin width %v", ErrInvalidParameter, m.MinRatio, m.MaxRatio, binWidth)
	}
	if span := hi - lo + 1; span > MaxBins {
		return nil, fmt.Errorf("%w: ratio span [%v, %v] needs %.0f bins at width %v, limit is %d",
			ErrInvalidParameter, m.MinRatio, m.MaxRatio, span, binWidth, MaxBins)
	}
	m.firstIndex = int(lo)
	last := int(hi)

	m.Bins = make([]DensityBin, last-m.firstIndex+1)
	for i := range m.Bins {
		k := m.firstIndex + i
		m.Bins[i].Lower = float64(k) * binWidth
		m.Bins[i].Upper = float64(k+1) * binWidth
	}
	for i, x := range rs {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		b := &m.Bins[binIndex(x, binWidth)-m.firstIndex]
		b.Count++
		b.WeightedCount += w
		m.TotalWeight += w
	}

	nonEmpty := 0
	for i := range m.Bins {
		if m.Bins[i].Count == 0 {
			m.Bins[i].Unobserved = true
			continue
		}
		nonEmpty++
	}
	m.ExpectedDensity = m.TotalWeight / float64(nonEmpty)
	if m.ExpectedDensity > 0 {
		for i := range m.Bins {
			m.Bins[i].RelativeDensity = m.Bins[i].WeightedCount / m.ExpectedDensity
		}
	}

	logrus.Debugf("density: %d records in %d bins (%d unobserved), width=%v expected=%.3f",
		len(records), len(m.Bins), len(m.Bins)-nonEmpty, binWidth, m.ExpectedDensity)
	return m, nil
}
