package sim

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Automation indicator names.
const (
	IndicatorDigitStrategy    = "digit-strategy"
	IndicatorDensityAvoidance = "density-avoidance"
	IndicatorLearning         = "learning"
	IndicatorPrecision        = "precision"
	IndicatorDifferentiation  = "agency-differentiation"
)

// Automation verdicts, from the highest score band down.
const (
	AutomationVeryLikely   = "very-likely"
	AutomationLikely       = "likely"
	AutomationPossible     = "possible"
	AutomationUnlikely     = "unlikely"
	AutomationVeryUnlikely = "very-unlikely"
)

const (
	indicatorMax = 10

	digitMinSamples    = 10
	digitSignificance  = 0.05
	avoidMinCompany    = 5
	avoidMinGroup      = 100
	avoidBinWidth      = 0.001 // 0.1%p
	avoidHighQuantile  = 0.8
	avoidMaxHighShare  = 0.3
	learningMinSamples = 30
)

// Indicator is one scored sign of tool-assisted bidding.
type Indicator struct {
	Name   string `json:"name"`
	Score  int    `json:"score"` // 0..10
	Detail string `json:"detail"`
}

// AutomationAssessment combines five indicators of whether a company picks
// its bid rates with an analysis tool rather than by hand.
type AutomationAssessment struct {
	Score      int         `json:"score"`
	MaxScore   int         `json:"max_score"`
	Percent    float64     `json:"percent"`
	Verdict    string      `json:"verdict"`
	Indicators []Indicator `json:"indicators"`
}

// AssessAutomation scores company's records against the whole market.
// market holds every record (all companies, all agency-rate groups) and is
// used for the density-avoidance indicator.
func AssessAutomation(company, market []BidRecord) AutomationAssessment {
	indicators := []Indicator{
		digitStrategy(company),
		densityAvoidance(company, market),
		learningPattern(company),
		ratePrecision(company),
		agencyDifferentiation(company),
	}
	a := AutomationAssessment{MaxScore: len(indicators) * indicatorMax, Indicators: indicators}
	for _, ind := range indicators {
		a.Score += ind.Score
	}
	a.Percent = math.Round(float64(a.Score)/float64(a.MaxScore)*1000) / 10
	a.Verdict = automationVerdict(float64(a.Score) / float64(a.MaxScore) * 100)
	return a
}

func automationVerdict(pct float64) string {
	switch {
	case pct >= 70:
		return AutomationVeryLikely
	case pct >= 50:
		return AutomationLikely
	case pct >= 30:
		return AutomationPossible
	case pct >= 10:
		return AutomationUnlikely
	default:
		return AutomationVeryUnlikely
	}
}

// digitStrategy tests the 0.001%p digit for uniformity. A skewed digit
// distribution means some digits are avoided on purpose.
func digitStrategy(rs []BidRecord) Indicator {
	ind := Indicator{Name: IndicatorDigitStrategy}
	if len(rs) < digitMinSamples {
		ind.Detail = "insufficient data"
		return ind
	}
	var counts [10]int
	for _, r := range rs {
		counts[ThirdDigit(r.Ratio())]++
	}
	observed := make([]float64, 10)
	expected := make([]float64, 10)
	for d := range counts {
		observed[d] = float64(counts[d])
		expected[d] = float64(len(rs)) / 10
	}
	chi2 := stat.ChiSquare(observed, expected)
	p := distuv.ChiSquared{K: 9}.Survival(chi2)

	if !(p < digitSignificance) {
		ind.Detail = fmt.Sprintf("uniform digits (p=%.4f)", p)
		return ind
	}
	ind.Score = min(indicatorMax, int((1-p)*indicatorMax))
	ind.Detail = fmt.Sprintf("digits %v avoided (p=%.4f)", leastUsedDigits(counts, 3), p)
	return ind
}

func leastUsedDigits(counts [10]int, n int) []int {
	digits := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	sort.SliceStable(digits, func(i, j int) bool { return counts[digits[i]] < counts[digits[j]] })
	return digits[:n]
}

// densityAvoidance counts the agency-rate groups in which the company keeps
// under 30% of its bids in the market's busiest 0.1%p bins.
func densityAvoidance(company, market []BidRecord) Indicator {
	ind := Indicator{Name: IndicatorDensityAvoidance}
	marketGroups := GroupByAgencyRate(market)
	avoided, total := 0, 0
	for _, own := range GroupByAgencyRate(company) {
		var all []BidRecord
		for _, g := range marketGroups {
			if sameRate(g.AgencyRate, own.AgencyRate) {
				all = g.Records
				break
			}
		}
		if len(own.Records) < avoidMinCompany || len(all) < avoidMinGroup {
			continue
		}
		total++
		if highDensityShare(own.Records, all) < avoidMaxHighShare {
			avoided++
		}
	}
	if total == 0 {
		ind.Detail = "insufficient data"
		return ind
	}

	rate := float64(avoided) / float64(total)
	switch {
	case rate >= 0.7:
		ind.Score = 10
	case rate >= 0.5:
		ind.Score = 7
	case rate >= 0.3:
		ind.Score = 4
	}
	ind.Detail = fmt.Sprintf("avoids busy bins in %d/%d groups", avoided, total)
	return ind
}

// highDensityShare returns the fraction of own's bids that fall in bins whose
// market count is at or above the 80th percentile.
func highDensityShare(own, all []BidRecord) float64 {
	xs := ratios(all)
	lo := floats.Min(xs)
	n := int(math.Floor((floats.Max(xs)-lo)/avoidBinWidth+binGuard)) + 1
	hist := make([]float64, n)
	index := func(x float64) int {
		return int(math.Floor((x-lo)/avoidBinWidth + binGuard))
	}
	for _, x := range xs {
		hist[index(x)]++
	}
	sorted := append([]float64(nil), hist...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(avoidHighQuantile, stat.LinInterp, sorted, nil)

	inHigh := 0
	for _, r := range own {
		i := index(r.Ratio())
		if i >= 0 && i < n && hist[i] >= threshold {
			inHigh++
		}
	}
	return float64(inHigh) / float64(len(own))
}

// learningPattern compares the first and second half of the company's dated
// bids: a rising win rate and a tightening spread suggest a tuned model.
func learningPattern(rs []BidRecord) Indicator {
	ind := Indicator{Name: IndicatorLearning}
	dated := make([]BidRecord, 0, len(rs))
	for _, r := range rs {
		if !r.SubmittedAt.IsZero() {
			dated = append(dated, r)
		}
	}
	if len(dated) < learningMinSamples {
		ind.Detail = "insufficient dated data"
		return ind
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].SubmittedAt.Before(dated[j].SubmittedAt) })
	mid := len(dated) / 2
	first, second := dated[:mid], dated[mid:]

	improvement := (winShare(second) - winShare(first)) * 100
	precisionGain := (stat.StdDev(ratios(first), nil) - stat.StdDev(ratios(second), nil)) * 100

	switch {
	case improvement > 1.5 && precisionGain > 0.3:
		ind.Score = 10
	case improvement > 0.5 || precisionGain > 0.1:
		ind.Score = 6
	case improvement > -0.5:
		ind.Score = 3
	}
	ind.Detail = fmt.Sprintf("win rate %+.1f%%p, spread %+.3f%%p tighter", improvement, precisionGain)
	return ind
}

func winShare(rs []BidRecord) float64 {
	wins := 0
	for _, r := range rs {
		if r.IsWinner() {
			wins++
		}
	}
	return float64(wins) / float64(len(rs))
}

// ratePrecision looks at how many distinct third digits and amount endings
// the company uses.
func ratePrecision(rs []BidRecord) Indicator {
	ind := Indicator{Name: IndicatorPrecision}
	if len(rs) < digitMinSamples {
		ind.Detail = "insufficient data"
		return ind
	}
	digits := make(map[int]bool)
	endings := make(map[int]bool)
	for _, r := range rs {
		digits[ThirdDigit(r.Ratio())] = true
		endings[AmountEnding(r.BidAmount)] = true
	}
	d, e := len(digits), len(endings)
	switch {
	case d >= 8 && e >= 20:
		ind.Score = 10
	case d >= 6 && e >= 10:
		ind.Score = 7
	case d >= 4:
		ind.Score = 4
	}
	ind.Detail = fmt.Sprintf("%d/10 digits, %d endings", d, e)
	return ind
}

// agencyDifferentiation measures how far apart the company's mean ratios are
// across agency-rate groups.
func agencyDifferentiation(rs []BidRecord) Indicator {
	ind := Indicator{Name: IndicatorDifferentiation}
	groups := GroupByAgencyRate(rs)
	if len(groups) < 2 {
		ind.Detail = "single agency rate"
		return ind
	}
	means := make([]float64, len(groups))
	for i, g := range groups {
		means[i] = stat.Mean(ratios(g.Records), nil)
	}
	var sum float64
	pairs := 0
	for i := range means {
		for j := i + 1; j < len(means); j++ {
			sum += math.Abs(means[i] - means[j])
			pairs++
		}
	}
	diff := sum / float64(pairs) * 100

	switch {
	case diff > 1.0:
		ind.Score = 10
	case diff > 0.5:
		ind.Score = 7
	case diff > 0.2:
		ind.Score = 4
	}
	ind.Detail = fmt.Sprintf("mean gap %.3f%%p across %d agency rates", diff, len(groups))
	return ind
}
