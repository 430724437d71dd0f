package sim

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Factors tested against winners' assessed rates.
const (
	FactorIssuer = "issuer"
	FactorMonth  = "month"
	FactorAmount = "amount"
)

const (
	factorMinWinners     = 10
	factorSignificance   = 0.05
	issuerMinSamples     = 5
	monthMinSamples      = 3
	monthMinGroups       = 3
	recentWindowDays     = 180
	sufficientWinners    = 100
	issuerContextRecords = 50
	monthContextRecords  = 30
	outlierZ             = 3
)

// FactorGroup is one level of a tested factor.
type FactorGroup struct {
	Label   string  `json:"label"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Samples int     `json:"samples"`
}

// FactorResult is the outcome of one significance test.
type FactorResult struct {
	Factor      string        `json:"factor"`
	Test        string        `json:"test"`
	Statistic   float64       `json:"statistic"`
	PValue      float64       `json:"p_value"`
	Significant bool          `json:"significant"`
	EffectSize  float64       `json:"effect_size"` // spread of group means in %p
	Correlation float64       `json:"correlation,omitempty"`
	Strength    string        `json:"strength,omitempty"`
	Highest     string        `json:"highest,omitempty"`
	Lowest      string        `json:"lowest,omitempty"`
	Groups      []FactorGroup `json:"groups,omitempty"`
}

// FactorValidation lists the factors that could be tested.
type FactorValidation struct {
	Winners   int            `json:"winners"`
	Factors   []FactorResult `json:"factors"`
	Condition Condition      `json:"condition,omitempty"`
}

// ValidateFactors tests whether issuer, month of submission or base amount
// shift the assessed rate of winning bids. Winners without an assessed rate
// are ignored. A factor without enough data is left out of the result.
func ValidateFactors(records []BidRecord) FactorValidation {
	var winners []BidRecord
	for _, r := range records {
		if r.IsWinner() && r.AssessedRate > 0 {
			winners = append(winners, r)
		}
	}
	v := FactorValidation{Winners: len(winners), Factors: []FactorResult{}}
	if len(winners) < factorMinWinners {
		v.Condition = ConditionInsufficientData
		return v
	}

	byIssuer := make(map[string][]float64)
	byMonth := make(map[string][]float64)
	var amounts, assessed []float64
	for _, r := range winners {
		id := IssuerOf(r.NoticeID)
		byIssuer[id] = append(byIssuer[id], r.AssessedRate)
		if !r.SubmittedAt.IsZero() {
			m := fmt.Sprintf("%02d", int(r.SubmittedAt.Month()))
			byMonth[m] = append(byMonth[m], r.AssessedRate)
		}
		amounts = append(amounts, r.BaseAmount)
		assessed = append(assessed, r.AssessedRate)
	}

	if res, ok := anovaFactor(FactorIssuer, byIssuer, issuerMinSamples); ok {
		v.Factors = append(v.Factors, res)
	}
	if res, ok := kruskalFactor(FactorMonth, byMonth, monthMinSamples, monthMinGroups); ok {
		v.Factors = append(v.Factors, res)
	}
	if res, ok := pearsonFactor(FactorAmount, amounts, assessed); ok {
		v.Factors = append(v.Factors, res)
	}
	return v
}

// factorGroups keeps the levels with at least minSamples, ordered by label.
func factorGroups(levels map[string][]float64, minSamples int) ([]string, [][]float64) {
	var labels []string
	for label, xs := range levels {
		if len(xs) >= minSamples {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	groups := make([][]float64, len(labels))
	for i, label := range labels {
		groups[i] = levels[label]
	}
	return labels, groups
}

// describeGroups fills the per-level statistics, the effect size and the
// highest and lowest levels of res.
func describeGroups(res *FactorResult, labels []string, groups [][]float64) {
	hi, lo := 0, 0
	for i, xs := range groups {
		mean, std := stat.MeanStdDev(xs, nil)
		res.Groups = append(res.Groups, FactorGroup{Label: labels[i], Mean: mean, StdDev: std, Samples: len(xs)})
		if mean > res.Groups[hi].Mean {
			hi = i
		}
		if mean < res.Groups[lo].Mean {
			lo = i
		}
	}
	res.EffectSize = (res.Groups[hi].Mean - res.Groups[lo].Mean) * 100
	res.Significant = res.PValue < factorSignificance
	if res.Significant {
		res.Highest, res.Lowest = labels[hi], labels[lo]
	}
}

// anovaFactor runs a one-way ANOVA across the levels of a factor.
func anovaFactor(name string, levels map[string][]float64, minSamples int) (FactorResult, bool) {
	labels, groups := factorGroups(levels, minSamples)
	if len(groups) < 2 {
		logrus.Debugf("factors: %s has %d levels with %d+ samples, skipped", name, len(groups), minSamples)
		return FactorResult{}, false
	}

	var all []float64
	for _, xs := range groups {
		all = append(all, xs...)
	}
	grand := stat.Mean(all, nil)
	var ssb, ssw float64
	for _, xs := range groups {
		m := stat.Mean(xs, nil)
		ssb += float64(len(xs)) * (m - grand) * (m - grand)
		for _, x := range xs {
			ssw += (x - m) * (x - m)
		}
	}
	df1 := float64(len(groups) - 1)
	df2 := float64(len(all) - len(groups))

	res := FactorResult{Factor: name, Test: "anova"}
	switch {
	case ssw == 0 && ssb == 0:
		res.PValue = 1
	case ssw == 0:
		res.Statistic, res.PValue = math.Inf(1), 0
	default:
		res.Statistic = (ssb / df1) / (ssw / df2)
		res.PValue = distuv.F{D1: df1, D2: df2}.Survival(res.Statistic)
	}
	describeGroups(&res, labels, groups)
	return res, true
}

// kruskalFactor runs a Kruskal-Wallis H test with tie correction.
func kruskalFactor(name string, levels map[string][]float64, minSamples, minGroups int) (FactorResult, bool) {
	labels, groups := factorGroups(levels, minSamples)
	if len(groups) < minGroups {
		logrus.Debugf("factors: %s has %d levels with %d+ samples, skipped", name, len(groups), minSamples)
		return FactorResult{}, false
	}

	type obs struct {
		x     float64
		group int
	}
	var pooled []obs
	for g, xs := range groups {
		for _, x := range xs {
			pooled = append(pooled, obs{x, g})
		}
	}
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].x < pooled[j].x })

	n := float64(len(pooled))
	rankSums := make([]float64, len(groups))
	ties := 0.0
	for i := 0; i < len(pooled); {
		j := i
		for j < len(pooled) && pooled[j].x == pooled[i].x {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks i+1..j
		for k := i; k < j; k++ {
			rankSums[pooled[k].group] += avg
		}
		t := float64(j - i)
		ties += t*t*t - t
		i = j
	}

	res := FactorResult{Factor: name, Test: "kruskal-wallis"}
	correction := 1 - ties/(n*n*n-n)
	if correction == 0 {
		res.PValue = 1
	} else {
		h := 0.0
		for g, xs := range groups {
			h += rankSums[g] * rankSums[g] / float64(len(xs))
		}
		h = (12/(n*(n+1))*h - 3*(n+1)) / correction
		res.Statistic = h
		res.PValue = distuv.ChiSquared{K: float64(len(groups) - 1)}.Survival(h)
	}
	describeGroups(&res, labels, groups)
	return res, true
}

// pearsonFactor correlates x with y and tests r against zero.
func pearsonFactor(name string, x, y []float64) (FactorResult, bool) {
	if len(x) < factorMinWinners {
		return FactorResult{}, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		logrus.Debugf("factors: %s has no variance, skipped", name)
		return FactorResult{}, false
	}
	res := FactorResult{Factor: name, Test: "pearson", Correlation: r, Strength: correlationStrength(r)}
	dof := float64(len(x) - 2)
	if math.Abs(r) >= 1 {
		res.Statistic, res.PValue = math.Inf(1), 0
	} else {
		res.Statistic = r * math.Sqrt(dof/(1-r*r))
		res.PValue = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}.Survival(math.Abs(res.Statistic))
	}
	res.Significant = res.PValue < factorSignificance
	return res, true
}

func correlationStrength(r float64) string {
	switch a := math.Abs(r); {
	case a < 0.1:
		return "negligible"
	case a < 0.3:
		return "weak"
	case a < 0.5:
		return "moderate"
	case a < 0.7:
		return "strong"
	default:
		return "very-strong"
	}
}

// ConfidenceContext describes the upcoming notice the history is applied to.
// Zero fields are not matched.
type ConfidenceContext struct {
	BaseAmount float64
	Issuer     string
	Month      time.Month
	AsOf       time.Time // zero uses the latest submission
}

// Confidence rates how far past patterns can be trusted for the context.
type Confidence struct {
	Overall            float64  `json:"overall"`
	Level              string   `json:"level"` // high, medium, low
	DataSufficiency    float64  `json:"data_sufficiency"`
	ContextMatch       float64  `json:"context_match"`
	TemporalValidity   float64  `json:"temporal_validity"`
	Outlier            bool     `json:"outlier"`
	SignificantFactors []string `json:"significant_factors"`
}

// AssessConfidence weighs data sufficiency (0.3), context match (0.4) and
// temporal validity (0.3). An outlying base amount cuts the result by 30%.
func AssessConfidence(records []BidRecord, factors []FactorResult, ctx ConfidenceContext) Confidence {
	c := Confidence{SignificantFactors: []string{}}
	winners := 0
	for _, r := range records {
		if r.IsWinner() {
			winners++
		}
	}
	c.DataSufficiency = math.Min(float64(winners)/sufficientWinners, 1)
	c.ContextMatch = contextMatch(records, ctx)
	c.TemporalValidity = temporalValidity(records, ctx.AsOf)
	c.Outlier = ctx.BaseAmount > 0 && baseAmountZ(records, ctx.BaseAmount) > outlierZ

	c.Overall = 0.3*c.DataSufficiency + 0.4*c.ContextMatch + 0.3*c.TemporalValidity
	if c.Outlier {
		c.Overall *= 0.7
	}
	switch {
	case c.Overall >= 0.7:
		c.Level = "high"
	case c.Overall >= 0.5:
		c.Level = "medium"
	default:
		c.Level = "low"
	}
	for _, f := range factors {
		if f.Significant {
			c.SignificantFactors = append(c.SignificantFactors, f.Factor)
		}
	}
	return c
}

func contextMatch(records []BidRecord, ctx ConfidenceContext) float64 {
	score, matched := 0.0, 0
	if ctx.Issuer != "" {
		n := 0
		for _, r := range records {
			if IssuerOf(r.NoticeID) == ctx.Issuer {
				n++
			}
		}
		score += math.Min(float64(n)/issuerContextRecords, 1)
		matched++
	}
	if ctx.BaseAmount > 0 {
		score += math.Max(1-baseAmountZ(records, ctx.BaseAmount)/outlierZ, 0)
		matched++
	}
	if ctx.Month != 0 {
		n := 0
		for _, r := range records {
			if !r.SubmittedAt.IsZero() && r.SubmittedAt.Month() == ctx.Month {
				n++
			}
		}
		score += math.Min(float64(n)/monthContextRecords, 1)
		matched++
	}
	if matched == 0 {
		return 0.5
	}
	return score / float64(matched)
}

// baseAmountZ is the z-score of amount against the records' base amounts.
func baseAmountZ(records []BidRecord, amount float64) float64 {
	if len(records) < 2 {
		return 0
	}
	bases := make([]float64, len(records))
	for i, r := range records {
		bases[i] = r.BaseAmount
	}
	mean, std := stat.MeanStdDev(bases, nil)
	if std == 0 {
		return 0
	}
	return math.Abs(amount-mean) / std
}

// temporalValidity is the share of dated records submitted within 180 days
// of asOf, or 0.5 when nothing is dated.
func temporalValidity(records []BidRecord, asOf time.Time) float64 {
	if asOf.IsZero() {
		asOf = LatestSubmission(records)
	}
	cutoff := asOf.AddDate(0, 0, -recentWindowDays)
	dated, recent := 0, 0
	for _, r := range records {
		if r.SubmittedAt.IsZero() {
			continue
		}
		dated++
		if !r.SubmittedAt.Before(cutoff) {
			recent++
		}
	}
	if dated == 0 {
		return 0.5
	}
	return float64(recent) / float64(dated)
}

// HistoryReview is the cross-group review of a bid history: issuer
// comparison, factor tests and a confidence rating for the next notice.
type HistoryReview struct {
	Records    int              `json:"records"`
	Issuers    []IssuerProfile  `json:"issuers"`
	Factors    FactorValidation `json:"factors"`
	Confidence Confidence       `json:"confidence"`
}

// ReviewHistory runs the issuer, factor and confidence analyses over records.
func ReviewHistory(records []BidRecord, ctx ConfidenceContext) (*HistoryReview, error) {
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	review := &HistoryReview{
		Records: len(records),
		Issuers: AnalyzeIssuers(records),
		Factors: ValidateFactors(records),
	}
	review.Confidence = AssessConfidence(records, review.Factors.Factors, ctx)
	logrus.Infof("review: %d records, %d issuers, %d factors tested, confidence %.2f (%s)",
		len(records), len(review.Issuers), len(review.Factors.Factors), review.Confidence.Overall, review.Confidence.Level)
	return review, nil
}
