package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/combin"
)

const (
	// CandidatePrices is the number of preliminary prices drawn around the base amount.
	CandidatePrices = 15
	// SelectedPrices is the number of preliminary prices averaged into the reserve price.
	SelectedPrices = 4
	// DefaultIterations is the Monte Carlo sample count used when none is configured.
	DefaultIterations = 10000
	// DefaultSpread is the conventional ±2% band. Callers still pass it explicitly.
	DefaultSpread = 0.02
)

// PriceLayout selects how the 15 preliminary prices are placed inside the spread band.
type PriceLayout string

const (
	// LayoutUniform draws fresh uniform prices every iteration.
	LayoutUniform PriceLayout = "uniform"
	// LayoutLinspace uses 15 fixed, evenly spaced prices from base(1-s) to base(1+s).
	LayoutLinspace PriceLayout = "linspace"
)

// validLayouts maps accepted layout names.
var validLayouts = map[PriceLayout]bool{
	LayoutUniform:  true,
	LayoutLinspace: true,
	"":             true, // empty defaults to uniform
}

// IsValidLayout reports whether name is a recognized price layout.
func IsValidLayout(name string) bool {
	return validLayouts[PriceLayout(name)]
}

// ReserveConfig parameterizes one reserve-price simulation.
type ReserveConfig struct {
	BaseAmount float64     // announced base amount (> 0)
	AgencyRate float64     // fraction or percentage, normalized on use
	Iterations int         // Monte Carlo samples (>= 1)
	Spread     float64     // symmetric band as a fraction, e.g. 0.02 for ±2%
	Seed       *int64      // nil draws a fresh seed
	Layout     PriceLayout // "" means LayoutUniform
}

// WithDefaults fills unset Iterations and Layout. Spread has no default.
// SimulateReserve itself does not apply it, so a zero iteration count
// passed straight to the simulator is rejected.
func (c ReserveConfig) WithDefaults() ReserveConfig {
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	if c.Layout == "" {
		c.Layout = LayoutUniform
	}
	return c
}

// Validate checks the simulation parameters.
func (c ReserveConfig) Validate() error {
	if !(c.BaseAmount > 0) || math.IsInf(c.BaseAmount, 0) {
		return fmt.Errorf("%w: base amount must be positive, got %v", ErrInvalidParameter, c.BaseAmount)
	}
	if !(c.AgencyRate > 0) || math.IsInf(c.AgencyRate, 0) {
		return fmt.Errorf("%w: agency rate must be positive, got %v", ErrInvalidParameter, c.AgencyRate)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidParameter, c.Iterations)
	}
	if !(c.Spread > 0 && c.Spread < 1) {
		return fmt.Errorf("%w: spread must be in (0, 1), got %v", ErrInvalidParameter, c.Spread)
	}
	if !validLayouts[c.Layout] {
		return fmt.Errorf("%w: unknown price layout %q; valid: uniform, linspace", ErrInvalidParameter, c.Layout)
	}
	return nil
}

// ReserveRateSample is one simulated reserve-price outcome.
type ReserveRateSample struct {
	ReservePrice    float64 `json:"reserve_price"`
	ReserveRatio    float64 `json:"reserve_ratio"`    // reserve / base
	MinWinningPrice float64 `json:"min_winning_price"` // reserve × agency rate
	MinWinningRate  float64 `json:"min_winning_rate"`  // min-winning price / base
}

// ReserveDistribution is the empirical outcome of SimulateReserve.
type ReserveDistribution struct {
	BaseAmount     float64             `json:"base_amount"`
	AgencyRate     float64             `json:"agency_rate"`
	Spread         float64             `json:"spread"`
	Iterations     int                 `json:"iterations"`
	Layout         PriceLayout         `json:"layout"`
	Seed           int64               `json:"seed"`
	MinWinningRate Summary             `json:"min_winning_rate"`
	ReserveRatio   Summary             `json:"reserve_ratio"`
	Samples        []ReserveRateSample `json:"-"`

	sortedRates []float64
}

// SortedMinWinningRates returns the simulated minimum-winning rates in ascending
// order. The slice is shared; callers must not modify it.
func (d *ReserveDistribution) SortedMinWinningRates() []float64 {
	return d.sortedRates
}

// QualifyingMass returns the probability mass (1/N per sample) of samples whose
// minimum-winning rate y satisfies x >= y.
func (d *ReserveDistribution) QualifyingMass(x float64) float64 {
	return ShareAtOrBelow(d.sortedRates, x)
}

// SimulateReserve Monte-Carlo-samples the multiple reserve-price draw: 15
// preliminary prices inside the spread band, a uniformly random 4-of-15
// combination averaged into the reserve price, times the agency rate.
func SimulateReserve(cfg ReserveConfig) (*ReserveDistribution, error) {
	if cfg.Layout == "" {
		cfg.Layout = LayoutUniform
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := FreshSimulationKey()
	if cfg.Seed != nil {
		key = NewSimulationKey(*cfg.Seed)
	}
	rng := NewPartitionedRNG(key).ForSubsystem(SubsystemReserve)
	return simulateReserve(cfg, int64(key), rng), nil
}

// simulateReserve runs the validated simulation against the given RNG.
func simulateReserve(cfg ReserveConfig, seed int64, rng *rand.Rand) *ReserveDistribution {
	agency := NormalizeRate(cfg.AgencyRate)
	base := cfg.BaseAmount
	low := base * (1 - cfg.Spread)
	width := 2 * cfg.Spread * base

	prices := make([]float64, CandidatePrices)
	if cfg.Layout == LayoutLinspace {
		for j := range prices {
			prices[j] = low + width*float64(j)/float64(CandidatePrices-1)
		}
	}

	numCombinations := combin.Binomial(CandidatePrices, SelectedPrices)
	chosen := make([]int, SelectedPrices)
	samples := make([]ReserveRateSample, cfg.Iterations)
	rates := make([]float64, cfg.Iterations)
	reserveRatios := make([]float64, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		if cfg.Layout != LayoutLinspace {
			for j := range prices {
				prices[j] = low + width*rng.Float64()
			}
		}
		combin.IndexToCombination(chosen, rng.Intn(numCombinations), CandidatePrices, SelectedPrices)

		sum := 0.0
		for _, idx := range chosen {
			sum += prices[idx]
		}
		reserve := sum / SelectedPrices
		minWinning := reserve * agency

		samples[i] = ReserveRateSample{
			ReservePrice:    reserve,
			ReserveRatio:    reserve / base,
			MinWinningPrice: minWinning,
			MinWinningRate:  minWinning / base,
		}
		rates[i] = samples[i].MinWinningRate
		reserveRatios[i] = samples[i].ReserveRatio
	}

	sort.Float64s(rates)
	sort.Float64s(reserveRatios)

	dist := &ReserveDistribution{
		BaseAmount:     base,
		AgencyRate:     agency,
		Spread:         cfg.Spread,
		Iterations:     cfg.Iterations,
		Layout:         cfg.Layout,
		Seed:           seed,
		MinWinningRate: Summarize(rates),
		ReserveRatio:   Summarize(reserveRatios),
		Samples:        samples,
		sortedRates:    rates,
	}
	logrus.Debugf("reserve simulation: n=%d layout=%s seed=%d mean=%.5f p5=%.5f p95=%.5f",
		cfg.Iterations, cfg.Layout, seed, dist.MinWinningRate.Mean, dist.MinWinningRate.P5, dist.MinWinningRate.P95)
	return dist
}
