package sim

import (
	"math"
	"time"
)

// testBase is the base amount used by record builders. Bid amounts are
// derived from it so ratios stay exact enough for bin arithmetic.
const testBase = 100_000_000

// testRecord builds a dated record at the given ratio and rank.
func testRecord(ratio float64, rank int, agency float64) BidRecord {
	return BidRecord{
		BaseAmount: testBase,
		AgencyRate: agency,
		BidAmount:  math.Round(ratio * testBase),
		Rank:       rank,
	}
}

// testRecordsAt returns n records at the same ratio with ranks 2..n+1,
// so none of them is a winner.
func testRecordsAt(ratio float64, n int, agency float64) []BidRecord {
	out := make([]BidRecord, n)
	for i := range out {
		out[i] = testRecord(ratio, i+2, agency)
	}
	return out
}

// testDated stamps a record with a submission date daysAgo before asOf.
func testDated(r BidRecord, asOf time.Time, daysAgo int) BidRecord {
	r.SubmittedAt = asOf.AddDate(0, 0, -daysAgo)
	return r
}

// testAsOf is a fixed reference date for decay tests.
var testAsOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

// threeClusterRecords builds the three-cluster fixture: clusters centred on
// bins 1720, 1730 and 1740 at a 0.0005 width, each with a tall middle bin and
// shorter shoulders, separated by empty bins.
func threeClusterRecords(agency float64) []BidRecord {
	var out []BidRecord
	rank := 1
	for _, k := range []int{1720, 1730, 1740} {
		mid := (float64(k) + 0.5) * DefaultBinWidth
		for _, band := range []struct {
			offset float64
			n      int
		}{{-DefaultBinWidth, 3}, {0, 10}, {DefaultBinWidth, 3}} {
			for i := 0; i < band.n; i++ {
				out = append(out, testRecord(mid+band.offset, rank, agency))
				rank++
			}
		}
	}
	return out
}
