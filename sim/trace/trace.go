package trace

// TraceLevel controls the verbosity of scoring traces.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures excluded candidates and the final selections.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelCandidates additionally captures every viable candidate evaluated.
	TraceLevelCandidates TraceLevel = "candidates"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:       true,
	TraceLevelDecisions:  true,
	TraceLevelCandidates: true,
	"":                   true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// ScoringTrace collects per-candidate decisions made while scoring a search range.
type ScoringTrace struct {
	Config     TraceConfig
	Candidates []CandidateRecord
	Selections []SelectionRecord
	Totals     *ScoringTotals
}

// NewScoringTrace creates a ScoringTrace ready for recording.
func NewScoringTrace(config TraceConfig) *ScoringTrace {
	return &ScoringTrace{
		Config:     config,
		Candidates: make([]CandidateRecord, 0),
		Selections: make([]SelectionRecord, 0),
	}
}

// Enabled reports whether the trace records anything. Safe on nil.
func (st *ScoringTrace) Enabled() bool {
	return st != nil && st.Config.Level != TraceLevelNone && st.Config.Level != ""
}

// WantsCandidate reports whether a candidate with the given exclusion state
// should be recorded at the configured level.
func (st *ScoringTrace) WantsCandidate(excluded bool) bool {
	if !st.Enabled() {
		return false
	}
	return excluded || st.Config.Level == TraceLevelCandidates
}

// RecordCandidate appends a candidate evaluation record.
func (st *ScoringTrace) RecordCandidate(record CandidateRecord) {
	st.Candidates = append(st.Candidates, record)
}

// RecordSelection appends a selected-candidate record.
func (st *ScoringTrace) RecordSelection(record SelectionRecord) {
	st.Selections = append(st.Selections, record)
}

// RecordTotals stores the pass-wide counts.
func (st *ScoringTrace) RecordTotals(totals ScoringTotals) {
	st.Totals = &totals
}
