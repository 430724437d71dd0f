package sim

import (
	"sort"
)

// CompetitorProfile summarizes one company's bidding history.
type CompetitorProfile struct {
	Company             string  `json:"company"`
	Participations      int     `json:"participations"`
	Wins                int     `json:"wins"`
	BelowMinimum        int     `json:"below_minimum"`
	WinShare            float64 `json:"win_share"`
	Ratio               Summary `json:"ratio"`
	WinningRatio        Summary `json:"winning_ratio"`
	DistinctThirdDigits int     `json:"distinct_third_digits"`
	DistinctEndings     int     `json:"distinct_endings"`

	Automation AutomationAssessment `json:"automation"`
}

// ProfileCompetitors groups records by company and returns one profile per
// company, most active first (ties by name). Records without a company are skipped.
// Each profile's automation assessment is measured against all records.
func ProfileCompetitors(records []BidRecord) []CompetitorProfile {
	byCompany := make(map[string][]BidRecord)
	for _, r := range records {
		if r.Company == "" {
			continue
		}
		byCompany[r.Company] = append(byCompany[r.Company], r)
	}

	profiles := make([]CompetitorProfile, 0, len(byCompany))
	for name, rs := range byCompany {
		p := profileOf(name, rs)
		p.Automation = AssessAutomation(rs, records)
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Participations != profiles[j].Participations {
			return profiles[i].Participations > profiles[j].Participations
		}
		return profiles[i].Company < profiles[j].Company
	})
	return profiles
}

// FindCompetitor returns the profile for company (already normalized).
func FindCompetitor(profiles []CompetitorProfile, company string) (CompetitorProfile, bool) {
	for _, p := range profiles {
		if p.Company == company {
			return p, true
		}
	}
	return CompetitorProfile{}, false
}

func profileOf(name string, rs []BidRecord) CompetitorProfile {
	p := CompetitorProfile{Company: name, Participations: len(rs)}
	var all, won []float64
	digits := make(map[int]bool)
	endings := make(map[int]bool)
	for _, r := range rs {
		x := r.Ratio()
		all = append(all, x)
		digits[ThirdDigit(x)] = true
		endings[AmountEnding(r.BidAmount)] = true
		if r.IsWinner() {
			p.Wins++
			won = append(won, x)
		}
		if r.IsDisqualified() {
			p.BelowMinimum++
		}
	}
	p.WinShare = float64(p.Wins) / float64(p.Participations)
	p.Ratio = SummarizeUnsorted(all)
	p.WinningRatio = SummarizeUnsorted(won)
	p.DistinctThirdDigits = len(digits)
	p.DistinctEndings = len(endings)
	return p
}
