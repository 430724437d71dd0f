// Package sim provides the core engine for bidsim: a reserve-price Monte Carlo
// simulator and a competition-density scorer for sealed bids whose winning
// floor depends on a randomly drawn reserve price.
//
// # Reading Guide
//
// Start with these files to follow one analysis end to end:
//   - record.go: BidRecord, rate normalization and agency-rate grouping
//   - reserve.go: the 4-of-15 preliminary price draw and the minimum winning rate
//   - density.go: fixed-width histogram of historical bid ratios
//   - scorer.go: candidate search, utility and the density ceiling
//   - analysis.go: the Analyze pipeline that ties the components into a Report
//
// # Architecture
//
// Every component is a pure function of its input plus, for the simulator,
// a seedable RNG (rng.go). Data-adequacy problems (no winners, no records, no
// viable candidate) are reported as a Condition on the result; malformed input
// fails with an error wrapping ErrInvalidParameter or ErrGroupMismatch.
//
// Supporting analyses live beside the core:
//   - decay.go, trend.go: time-decay weights and the movement of the optimum
//   - patterns.go: third-digit and amount-ending frequencies, psychological floor
//   - competitor.go, automation.go: per-company profiles and signs of tool-assisted bidding
//   - issuer.go, factors.go: issuer comparison, factor tests and a confidence rating
//   - groups.go: concurrent analysis of every agency-rate group
//
// Sub-packages:
//   - sim/trace/: scoring decision trace and its summary
//   - sim/dataset/: CSV loading with Korean and English column aliases
//   - sim/store/: SQLite/PostgreSQL persistence through gorm
//
// Rates are fractions throughout (0.87745). Inputs above 1 are treated as
// percentages and divided by 100.
package sim
