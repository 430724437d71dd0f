package trace

import (
	"testing"
)

func TestScoringTrace_RecordCandidate_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewScoringTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN an excluded candidate is recorded
	st.RecordCandidate(CandidateRecord{
		Rate:        0.87512,
		Competitors: 240,
		Excluded:    true,
		Reason:      ReasonDensityCeiling,
	})

	// THEN the trace contains one candidate record with correct data
	if len(st.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(st.Candidates))
	}
	if st.Candidates[0].Reason != ReasonDensityCeiling {
		t.Errorf("expected reason %s, got %s", ReasonDensityCeiling, st.Candidates[0].Reason)
	}
	if !st.Candidates[0].Excluded {
		t.Error("expected excluded=true")
	}
}

func TestScoringTrace_RecordSelection_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	st := NewScoringTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN selections are recorded in rank order
	st.RecordSelection(SelectionRecord{Rank: 1, Rate: 0.8751, Utility: 0.02})
	st.RecordSelection(SelectionRecord{Rank: 2, Rate: 0.8762, Utility: 0.015, Regret: 0.005})

	// THEN order is preserved
	if len(st.Selections) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(st.Selections))
	}
	if st.Selections[0].Rank != 1 || st.Selections[1].Rank != 2 {
		t.Error("selection order not preserved")
	}
}

func TestScoringTrace_WantsCandidate_ByLevel(t *testing.T) {
	tests := []struct {
		name     string
		trace    *ScoringTrace
		excluded bool
		want     bool
	}{
		{"nil trace", nil, true, false},
		{"none level", NewScoringTrace(TraceConfig{Level: TraceLevelNone}), true, false},
		{"empty level", NewScoringTrace(TraceConfig{}), true, false},
		{"decisions keeps excluded", NewScoringTrace(TraceConfig{Level: TraceLevelDecisions}), true, true},
		{"decisions skips viable", NewScoringTrace(TraceConfig{Level: TraceLevelDecisions}), false, false},
		{"candidates keeps viable", NewScoringTrace(TraceConfig{Level: TraceLevelCandidates}), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trace.WantsCandidate(tt.excluded); got != tt.want {
				t.Errorf("WantsCandidate(%v) = %v, want %v", tt.excluded, got, tt.want)
			}
		})
	}
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"decisions", true},
		{"candidates", true},
		{"", true}, // empty defaults to none
		{"detailed", false},
		{"foobar", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}
