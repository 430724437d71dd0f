package sim

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// rateTolerance is the absolute tolerance used when comparing normalized agency rates.
const rateTolerance = 1e-9

// BidRecord is one historical bid. Records are read-only once loaded;
// every component receives them by value and never mutates the slice.
type BidRecord struct {
	NoticeID    string    // announcement number (optional)
	BaseAmount  float64   // announced base amount in won (> 0)
	AgencyRate  float64   // agency minimum rate as a fraction of the reserve price
	BidAmount   float64   // submitted amount in won (>= 0)
	Rank        int       // 1..n for ranked finishes, negative for below-minimum; never 0
	SubmittedAt time.Time // zero when the source had no submission date
	Company     string    // normalized participant identifier

	// AssessedRate is the per-announcement reserve/base rate. It is kept apart
	// from the bid-to-base ratio and is never binned together with it.
	AssessedRate float64
}

// NormalizeRate converts a percentage (e.g. 87.745) into a fraction (0.87745).
// Values already in (0, 1] are returned unchanged.
func NormalizeRate(r float64) float64 {
	if r > 1 {
		return r / 100
	}
	return r
}

// Ratio returns the bid-to-base ratio as a fraction.
func (r BidRecord) Ratio() float64 {
	return r.BidAmount / r.BaseAmount
}

// IsWinner reports whether the record finished first.
func (r BidRecord) IsWinner() bool { return r.Rank == 1 }

// IsDisqualified reports whether the bid fell below the realized minimum.
func (r BidRecord) IsDisqualified() bool { return r.Rank < 0 }

// Validate checks the record invariants.
func (r BidRecord) Validate() error {
	if !(r.BaseAmount > 0) || math.IsInf(r.BaseAmount, 0) {
		return fmt.Errorf("%w: base amount must be positive, got %v", ErrInvalidParameter, r.BaseAmount)
	}
	if r.BidAmount < 0 || math.IsNaN(r.BidAmount) || math.IsInf(r.BidAmount, 0) {
		return fmt.Errorf("%w: bid amount must be non-negative, got %v", ErrInvalidParameter, r.BidAmount)
	}
	if r.Rank == 0 {
		return fmt.Errorf("%w: rank must be non-zero", ErrInvalidParameter)
	}
	if !(r.AgencyRate > 0) || math.IsInf(r.AgencyRate, 0) {
		return fmt.Errorf("%w: agency rate must be positive, got %v", ErrInvalidParameter, r.AgencyRate)
	}
	return nil
}

// ValidateRecords validates every record and reports the first failing index.
func ValidateRecords(records []BidRecord) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record[%d]: %w", i, err)
		}
	}
	return nil
}

// sameRate compares two agency rates after normalization.
func sameRate(a, b float64) bool {
	return math.Abs(NormalizeRate(a)-NormalizeRate(b)) <= rateTolerance
}

// RecordGroup is the subset of records sharing one agency rate.
type RecordGroup struct {
	AgencyRate float64
	Records    []BidRecord
}

// GroupByAgencyRate splits records by normalized agency rate, ordered by rate.
// Record order inside a group follows the input order.
func GroupByAgencyRate(records []BidRecord) []RecordGroup {
	var groups []RecordGroup
	for _, r := range records {
		rate := NormalizeRate(r.AgencyRate)
		idx := -1
		for i := range groups {
			if sameRate(groups[i].AgencyRate, rate) {
				idx = i
				break
			}
		}
		if idx < 0 {
			groups = append(groups, RecordGroup{AgencyRate: rate})
			idx = len(groups) - 1
		}
		groups[idx].Records = append(groups[idx].Records, r)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].AgencyRate < groups[j].AgencyRate
	})
	return groups
}

// ratios extracts the bid-to-base ratio of each record.
func ratios(records []BidRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Ratio()
	}
	return out
}
