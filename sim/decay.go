package sim

import (
	"fmt"
	"math"
	"time"
)

// DecayMode controls how overlapping windows combine.
type DecayMode string

const (
	// DecayCumulative adds the weight of every window that contains the record.
	DecayCumulative DecayMode = "cumulative"
	// DecayExclusive uses only the narrowest window that contains the record.
	DecayExclusive DecayMode = "exclusive"
)

// validDecayModes maps accepted decay mode names.
var validDecayModes = map[DecayMode]bool{
	DecayCumulative: true,
	DecayExclusive:  true,
	"":              true, // empty defaults to cumulative
}

// DecayTier is one row of the decay table: records submitted within
// WithinDays of the reference date receive Weight.
type DecayTier struct {
	WithinDays int     `yaml:"within_days" json:"within_days"`
	Weight     float64 `yaml:"weight" json:"weight"`
}

// DecaySchedule is an explicit, tunable time-decay table.
type DecaySchedule struct {
	Mode  DecayMode   `yaml:"mode" json:"mode"`
	Tiers []DecayTier `yaml:"tiers" json:"tiers"`
}

// StandardDecay returns the 1/3/6/12-month schedule (0.4/0.3/0.2/0.1), cumulative.
func StandardDecay() DecaySchedule {
	return DecaySchedule{
		Mode: DecayCumulative,
		Tiers: []DecayTier{
			{WithinDays: 30, Weight: 0.4},
			{WithinDays: 90, Weight: 0.3},
			{WithinDays: 180, Weight: 0.2},
			{WithinDays: 365, Weight: 0.1},
		},
	}
}

// Validate checks that tiers are strictly widening and weights non-negative.
func (s DecaySchedule) Validate() error {
	if !validDecayModes[s.Mode] {
		return fmt.Errorf("%w: unknown decay mode %q; valid: cumulative, exclusive", ErrInvalidParameter, s.Mode)
	}
	if len(s.Tiers) == 0 {
		return fmt.Errorf("%w: decay schedule needs at least one tier", ErrInvalidParameter)
	}
	prev := 0
	for i, t := range s.Tiers {
		if t.WithinDays <= prev {
			return fmt.Errorf("%w: decay tier[%d] within_days must exceed %d, got %d", ErrInvalidParameter, i, prev, t.WithinDays)
		}
		if t.Weight < 0 || math.IsNaN(t.Weight) || math.IsInf(t.Weight, 0) {
			return fmt.Errorf("%w: decay tier[%d] weight must be a finite non-negative number, got %v", ErrInvalidParameter, i, t.Weight)
		}
		prev = t.WithinDays
	}
	return nil
}

// Weight returns the weight of a record of the given age.
// Records older than the widest tier weigh 0.
func (s DecaySchedule) Weight(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	total := 0.0
	for _, t := range s.Tiers {
		if days > float64(t.WithinDays) {
			continue
		}
		if s.Mode == DecayExclusive {
			return t.Weight
		}
		total += t.Weight
	}
	return total
}

// UndatedWeight is the weight given to records without a submission date:
// the widest tier's weight on its own.
func (s DecaySchedule) UndatedWeight() float64 {
	if len(s.Tiers) == 0 {
		return 0
	}
	return s.Tiers[len(s.Tiers)-1].Weight
}

// Weights returns one weight per record, aligned by index. A zero asOf uses
// the latest submission date among the records.
func (s DecaySchedule) Weights(records []BidRecord, asOf time.Time) []float64 {
	if asOf.IsZero() {
		asOf = LatestSubmission(records)
	}
	out := make([]float64, len(records))
	for i, r := range records {
		if r.SubmittedAt.IsZero() {
			out[i] = s.UndatedWeight()
			continue
		}
		out[i] = s.Weight(asOf.Sub(r.SubmittedAt))
	}
	return out
}

// LatestSubmission returns the most recent non-zero submission date.
func LatestSubmission(records []BidRecord) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.SubmittedAt.After(latest) {
			latest = r.SubmittedAt
		}
	}
	return latest
}

// Decay preset names accepted by configuration surfaces.
const (
	DecayPresetStandard = "standard"
	DecayPresetNone     = "none"
)

// validDecayPresets maps accepted decay preset names.
var validDecayPresets = map[string]bool{
	DecayPresetStandard: true,
	DecayPresetNone:     true,
}

// DecayPreset resolves a preset name. "none" yields nil (unweighted density).
func DecayPreset(name string) (*DecaySchedule, error) {
	if !validDecayPresets[name] {
		return nil, fmt.Errorf("%w: unknown decay preset %q; valid: standard, none", ErrInvalidParameter, name)
	}
	if name == DecayPresetNone {
		return nil, nil
	}
	s := StandardDecay()
	return &s, nil
}
