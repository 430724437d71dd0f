// Package trace provides decision-trace recording for candidate scoring.
// This package has no dependencies on sim/ and stores pure data types.
package trace

// Exclusion reasons.
const (
	ReasonDensityCeiling    = "density-ceiling"
	ReasonRawDensityCeiling = "raw-density-ceiling"
)

// CandidateRecord captures the evaluation of a single candidate rate.
type CandidateRecord struct {
	Rate             float64 `json:"rate"`
	ClearProbability float64 `json:"clear_probability"`
	Competitors      float64 `json:"competitors"`
	RawCompetitors   int     `json:"raw_competitors"`
	Utility          float64 `json:"utility"`
	Excluded         bool    `json:"excluded,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// SelectionRecord captures one entry of the final ranking.
type SelectionRecord struct {
	Rank    int     `json:"rank"`
	Rate    float64 `json:"rate"`
	Utility float64 `json:"utility"`
	Regret  float64 `json:"regret"` // best utility - this utility; 0 for the top pick
}

// ScoringTotals are the counts of a whole scoring pass, recorded at every
// trace level so summaries do not depend on which candidates were kept.
type ScoringTotals struct {
	Evaluated  int     `json:"evaluated"`
	Excluded   int     `json:"excluded"`
	UtilitySum float64 `json:"utility_sum"` // over viable candidates
	MaxUtility float64 `json:"max_utility"`
}
