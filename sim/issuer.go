package sim

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Issuers derived from the notice number prefix.
const (
	IssuerProcurement = "procurement-service" // R...
	IssuerHeritage    = "heritage-service"    // 202x... with a long serial
	IssuerOtherE      = "other-e"             // E...
	IssuerOther       = "other"
	IssuerUnknown     = "unknown"
)

// Assessed-rate window scanned for issuer density, as fractions of the base.
const (
	issuerDensityLow   = 0.98
	issuerDensityHigh  = 1.025
	issuerDensityWidth = 0.0005
)

// IssuerOf classifies a notice number by its prefix.
func IssuerOf(noticeID string) string {
	id := strings.TrimSpace(noticeID)
	switch {
	case id == "":
		return IssuerUnknown
	case strings.HasPrefix(id, "R"):
		return IssuerProcurement
	case strings.HasPrefix(id, "202") && len(id) > 10:
		return IssuerHeritage
	case strings.HasPrefix(id, "E"):
		return IssuerOtherE
	default:
		return IssuerOther
	}
}

// IssuerProfile compares the competition under one issuing organization.
type IssuerProfile struct {
	Issuer         string   `json:"issuer"`
	Records        int      `json:"records"`
	Wins           int      `json:"wins"`
	WinnerAssessed *Summary `json:"winner_assessed,omitempty"` // assessed rates of winners
	MeanDensity    float64  `json:"mean_density"`
	MaxDensity     int      `json:"max_density"`
	SparsestLower  float64  `json:"sparsest_lower"`
	SparsestUpper  float64  `json:"sparsest_upper"`
	DensityLevel   string   `json:"density_level"` // low, medium, high
}

// AnalyzeIssuers groups records by issuer and bins their assessed rates at
// 0.05%p over 98%..102.5%. Records without an assessed rate count toward
// Records and Wins only. Profiles are ordered by issuer name.
func AnalyzeIssuers(records []BidRecord) []IssuerProfile {
	byIssuer := make(map[string][]BidRecord)
	for _, r := range records {
		id := IssuerOf(r.NoticeID)
		byIssuer[id] = append(byIssuer[id], r)
	}

	out := make([]IssuerProfile, 0, len(byIssuer))
	for name, rs := range byIssuer {
		out = append(out, issuerProfile(name, rs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Issuer < out[j].Issuer })
	return out
}

func issuerProfile(name string, rs []BidRecord) IssuerProfile {
	p := IssuerProfile{Issuer: name, Records: len(rs)}
	nbins := int(math.Round((issuerDensityHigh - issuerDensityLow) / issuerDensityWidth))
	counts := make([]float64, nbins)
	var winners []float64
	for _, r := range rs {
		if r.IsWinner() {
			p.Wins++
			if r.AssessedRate > 0 {
				winners = append(winners, r.AssessedRate)
			}
		}
		if r.AssessedRate >= issuerDensityLow && r.AssessedRate < issuerDensityHigh {
			i := binIndex(r.AssessedRate-issuerDensityLow, issuerDensityWidth)
			if i >= 0 && i < nbins {
				counts[i]++
			}
		}
	}
	if len(winners) > 0 {
		s := SummarizeUnsorted(winners)
		p.WinnerAssessed = &s
	}

	p.MeanDensity = stat.Mean(counts, nil)
	sparsest := 0
	for i, c := range counts {
		if int(c) > p.MaxDensity {
			p.MaxDensity = int(c)
		}
		if c < counts[sparsest] {
			sparsest = i
		}
	}
	p.SparsestLower = issuerDensityLow + float64(sparsest)*issuerDensityWidth
	p.SparsestUpper = p.SparsestLower + issuerDensityWidth
	switch {
	case p.MeanDensity < 10:
		p.DensityLevel = "low"
	case p.MeanDensity < 20:
		p.DensityLevel = "medium"
	default:
		p.DensityLevel = "high"
	}
	return p
}
