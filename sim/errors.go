package sim

import "errors"

// Structural errors abort the current analysis and are always returned to the caller.
var (
	// ErrInvalidParameter marks malformed or out-of-range input to any component.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrGroupMismatch marks historical data that spans more than one agency-rate group.
	ErrGroupMismatch = errors.New("agency rate group mismatch")
)

// Data-adequacy errors. Components never return these directly; they set a
// Condition on their result and expose the error through Err().
var (
	ErrInsufficientData  = errors.New("insufficient historical data")
	ErrEmptyDataset      = errors.New("empty dataset")
	ErrNoViableCandidate = errors.New("no viable candidate: every candidate rate exceeds the density ceiling")
)

// Condition flags a valid but inadequate input on a component result.
// The zero value means the result is complete.
type Condition string

const (
	ConditionOK                Condition = ""
	ConditionInsufficientData  Condition = "insufficient_data"
	ConditionEmptyDataset      Condition = "empty_dataset"
	ConditionNoViableCandidate Condition = "no_viable_candidate"
)

// Err maps the condition to its sentinel error, or nil for ConditionOK.
func (c Condition) Err() error {
	switch c {
	case ConditionInsufficientData:
		return ErrInsufficientData
	case ConditionEmptyDataset:
		return ErrEmptyDataset
	case ConditionNoViableCandidate:
		return ErrNoViableCandidate
	default:
		return nil
	}
}
