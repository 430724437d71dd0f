package trace

// TraceSummary aggregates statistics from a ScoringTrace.
type TraceSummary struct {
	TotalCandidates  int            `json:"total_candidates"`
	ViableCount      int            `json:"viable_count"`
	ExcludedCount    int            `json:"excluded_count"`
	ExclusionReasons map[string]int `json:"exclusion_reasons,omitempty"`
	MeanUtility      float64        `json:"mean_utility"`
	MaxUtility       float64        `json:"max_utility"`
	Selected         int            `json:"selected"`
	MeanRegret       float64        `json:"mean_regret"`
	MaxRegret        float64        `json:"max_regret"`
}

// Summarize computes aggregate statistics from a ScoringTrace.
// Safe for nil or empty traces (returns zero-value fields).
// When the trace carries Totals, the candidate counts and utilities come from
// them; otherwise they cover only the recorded candidates.
func Summarize(st *ScoringTrace) *TraceSummary {
	summary := &TraceSummary{
		ExclusionReasons: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalCandidates = len(st.Candidates)
	totalUtility := 0.0
	for _, c := range st.Candidates {
		if c.Excluded {
			summary.ExcludedCount++
			summary.ExclusionReasons[c.Reason]++
			continue
		}
		summary.ViableCount++
		totalUtility += c.Utility
		if c.Utility > summary.MaxUtility {
			summary.MaxUtility = c.Utility
		}
	}
	if t := st.Totals; t != nil {
		summary.TotalCandidates = t.Evaluated
		summary.ExcludedCount = t.Excluded
		summary.ViableCount = t.Evaluated - t.Excluded
		totalUtility = t.UtilitySum
		summary.MaxUtility = t.MaxUtility
	}
	if summary.ViableCount > 0 {
		summary.MeanUtility = totalUtility / float64(summary.ViableCount)
	}

	summary.Selected = len(st.Selections)
	if summary.Selected > 0 {
		totalRegret := 0.0
		for _, s := range st.Selections {
			totalRegret += s.Regret
			if s.Regret > summary.MaxRegret {
				summary.MaxRegret = s.Regret
			}
		}
		summary.MeanRegret = totalRegret / float64(summary.Selected)
	}

	return summary
}
