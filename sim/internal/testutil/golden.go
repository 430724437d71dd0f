// Package testutil provides shared test infrastructure for the bidsim engine:
// the reference scenario dataset and float assertion helpers.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// ReferenceDataset represents the structure of testdata/reference_scenarios.json.
type ReferenceDataset struct {
	Scenarios []ReferenceScenario `json:"scenarios"`
}

// ReferenceScenario is one reserve-price simulation with its analytic expectation.
type ReferenceScenario struct {
	Name       string            `json:"name"`
	BaseAmount float64           `json:"base_amount"`
	AgencyRate float64           `json:"agency_rate"`
	Spread     float64           `json:"spread"`
	Iterations int               `json:"iterations"`
	Layout     string            `json:"layout"`
	Seed       int64             `json:"seed"`
	Expected   ReferenceExpected `json:"expected"`
}

// ReferenceExpected holds the analytic moments of the min-winning rate.
type ReferenceExpected struct {
	// Mean and StdDev are compared with relative tolerances.
	Mean      float64 `json:"mean"`
	MeanTol   float64 `json:"mean_rel_tol"`
	StdDev    float64 `json:"std_dev"`
	StdDevTol float64 `json:"std_dev_rel_tol"`

	// Hard bounds: agency rate × (1 ± spread).
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// LoadReferenceDataset loads the reference scenarios from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadReferenceDataset(t *testing.T) *ReferenceDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "reference_scenarios.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read reference dataset: %v", err)
	}

	var dataset ReferenceDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse reference dataset: %v", err)
	}
	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertWithin fails when got lies outside [lo, hi].
func AssertWithin(t *testing.T, name string, lo, hi, got float64) {
	t.Helper()
	if got < lo || got > hi {
		t.Errorf("%s: got %v, want within [%v, %v]", name, got, lo, hi)
	}
}
