package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bidsim/bidsim/sim"
	"github.com/bidsim/bidsim/sim/trace"
)

// Environment variables read after loading .env.
const (
	envDB       = "BIDSIM_DB"       // default --db
	envDefaults = "BIDSIM_DEFAULTS" // default --defaults
)

var (
	// Shared input/output flags
	logLevel     string // Log verbosity level
	dataPath     string // CSV dataset
	dbPath       string // SQLite store (or postgres:// URL)
	outputPath   string // JSON output file; stdout when empty
	configPath   string // YAML analysis bundle
	defaultsPath string // defaults.yaml with named presets
	presetName   string // preset inside defaults.yaml

	// Bid parameters
	baseAmount float64 // Announced base amount in won
	agencyRate float64 // Agency minimum rate (fraction or percent)

	// Reserve simulation
	iterations int     // Monte Carlo samples
	spread     float64 // Symmetric band around the base amount
	seed       int64   // Master seed
	layout     string  // Preliminary price layout

	// Density and scoring
	binWidth    float64 // Density bin width
	ceiling     float64 // Density ceiling (exclusive)
	topK        int     // Candidates returned
	rangeStart  float64 // Search range start
	rangeEnd    float64 // Search range end
	rangeStep   float64 // Search range step
	decayName   string  // Time-decay preset
	asOf        string  // Decay reference date (YYYY-MM-DD)
	includeBins bool    // Emit every density bin
	traceLevel  string  // Scoring trace verbosity
	withTrend   bool    // Run the temporal trend analysis
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "bidsim",
	Short: "Reserve-price Monte Carlo and competition-density bid-rate scorer",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		loadEnv()
	},
}

// loadEnv loads .env when present and fills flags left unset from the environment.
func loadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Ignoring .env: %v", err)
	}
	if dbPath == "" {
		dbPath = os.Getenv(envDB)
	}
	if defaultsPath == "" {
		defaultsPath = os.Getenv(envDefaults)
	}
}

// runCmd executes the full analysis of one agency-rate group
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score candidate bid rates for an upcoming bid",
	Run: func(cmd *cobra.Command, args []string) {
		if !cmd.Flags().Changed("base-amount") {
			logrus.Fatalf("--base-amount is required")
		}
		cfg, err := buildAnalysisConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		records, err := loadRecords(cfg.AgencyRate)
		if err != nil {
			logrus.Fatalf("Failed to load records: %v", err)
		}

		startTime := time.Now()
		report, err := sim.Analyze(records, cfg)
		if err != nil {
			logrus.Fatalf("Analysis failed: %v", err)
		}
		if err := writeJSON(outputPath, report); err != nil {
			logrus.Fatalf("Failed to write report: %v", err)
		}

		if best, ok := report.Recommendation.Best(); ok {
			logrus.Infof("Best rate %.5f%% (bid %s won, utility %.6f)",
				best.Rate*100, best.BidAmount.String(), best.ExpectedUtility)
		}
		logrus.Infof("Analysis complete in %v.", time.Since(startTime))
	},
}

// buildAnalysisConfig layers the configuration: defaults.yaml preset, then
// the --config bundle, then flags the user actually set.
func buildAnalysisConfig(cmd *cobra.Command) (sim.AnalysisConfig, error) {
	cfg := sim.AnalysisConfig{BaseAmount: baseAmount, AgencyRate: agencyRate}

	if presetName != "" {
		if defaultsPath == "" {
			return cfg, fmt.Errorf("--preset needs --defaults or %s", envDefaults)
		}
		bundle, err := loadPreset(defaultsPath, presetName)
		if err != nil {
			return cfg, err
		}
		if err := applyBundle(bundle, &cfg); err != nil {
			return cfg, fmt.Errorf("preset %q: %w", presetName, err)
		}
	}
	if configPath != "" {
		bundle, err := sim.LoadAnalysisBundle(configPath)
		if err != nil {
			return cfg, err
		}
		if err := applyBundle(bundle, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", configPath, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("iterations") {
		cfg.Simulation.Iterations = iterations
	}
	if flags.Changed("spread") {
		cfg.Simulation.Spread = spread
	}
	if flags.Changed("layout") {
		if !sim.IsValidLayout(layout) {
			return cfg, fmt.Errorf("unknown layout %q", layout)
		}
		cfg.Simulation.Layout = sim.PriceLayout(layout)
	}
	if flags.Changed("seed") {
		s := seed
		cfg.Simulation.Seed = &s
	}
	if flags.Changed("bin-width") {
		cfg.Density.BinWidth = binWidth
	}
	if flags.Changed("decay") {
		decay, err := sim.DecayPreset(decayName)
		if err != nil {
			return cfg, err
		}
		cfg.Density.Decay = decay
	}
	if flags.Changed("as-of") {
		t, err := time.Parse(time.DateOnly, asOf)
		if err != nil {
			return cfg, fmt.Errorf("parsing --as-of: %w", err)
		}
		cfg.Density.AsOf = t
	}
	if flags.Changed("include-bins") {
		cfg.Density.IncludeBins = includeBins
	}
	if flags.Changed("ceiling") {
		c := ceiling
		cfg.Scoring.DensityCeiling = &c
	}
	if flags.Changed("top-k") {
		cfg.Scoring.TopK = topK
	}
	if flags.Changed("range-start") || flags.Changed("range-end") || flags.Changed("step") {
		if !flags.Changed("range-start") || !flags.Changed("range-end") {
			return cfg, fmt.Errorf("--range-start and --range-end must be given together")
		}
		r := sim.SearchRange{Start: rangeStart, End: rangeEnd, Step: rangeStep}
		if r.Start > 1 {
			r.Start, r.End = r.Start/100, r.End/100
		}
		cfg.Scoring.Range = &r
	}
	if flags.Changed("trace") {
		if !trace.IsValidTraceLevel(traceLevel) {
			return cfg, fmt.Errorf("unknown trace level %q", traceLevel)
		}
		cfg.Scoring.TraceLevel = trace.TraceLevel(traceLevel)
	}
	if flags.Changed("trend") {
		cfg.Trend.Enabled = withTrend
	}
	return cfg, nil
}

func applyBundle(bundle *sim.AnalysisBundle, cfg *sim.AnalysisConfig) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	return bundle.Apply(cfg)
}

// writeJSON writes v as indented JSON to path, or to stdout when path is empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logrus.Infof("Wrote %s", path)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerSourceFlags adds the record-source flags shared by data commands.
func registerSourceFlags(c *cobra.Command) {
	c.Flags().StringVar(&dataPath, "data", "", "CSV dataset of historical bids")
	c.Flags().StringVar(&dbPath, "db", "", "Record store path or postgres:// URL (default $"+envDB+")")
}

// registerAnalysisFlags adds the analysis flags shared by run and groups.
func registerAnalysisFlags(c *cobra.Command) {
	registerSourceFlags(c)
	c.Flags().StringVar(&outputPath, "output", "", "Write the JSON report here instead of stdout")
	c.Flags().StringVar(&configPath, "config", "", "YAML analysis bundle")
	c.Flags().StringVar(&defaultsPath, "defaults", "", "defaults.yaml with named presets (default $"+envDefaults+")")
	c.Flags().StringVar(&presetName, "preset", "", "Preset name inside the defaults file")

	c.Flags().Float64Var(&baseAmount, "base-amount", 0, "Announced base amount in won")

	c.Flags().IntVar(&iterations, "iterations", sim.DefaultIterations, "Monte Carlo samples")
	c.Flags().Float64Var(&spread, "spread", sim.DefaultSpread, "Preliminary price band as a fraction (0.02 = ±2%)")
	c.Flags().Int64Var(&seed, "seed", 42, "Seed for the reserve simulation")
	c.Flags().StringVar(&layout, "layout", string(sim.LayoutUniform), "Preliminary price layout (uniform, linspace)")

	c.Flags().Float64Var(&binWidth, "bin-width", sim.DefaultBinWidth, "Density bin width as a fraction")
	c.Flags().Float64Var(&ceiling, "ceiling", sim.DefaultDensityCeiling, "Exclude candidates whose bin holds this many competitors or more")
	c.Flags().IntVar(&topK, "top-k", sim.DefaultTopK, "Number of candidates to return")
	c.Flags().Float64Var(&rangeStart, "range-start", 0, "Search range start (fraction or percent)")
	c.Flags().Float64Var(&rangeEnd, "range-end", 0, "Search range end (fraction or percent)")
	c.Flags().Float64Var(&rangeStep, "step", sim.DefaultSearchStep, "Search step as a fraction")
	c.Flags().StringVar(&decayName, "decay", sim.DecayPresetNone, "Time-decay preset (standard, none)")
	c.Flags().StringVar(&asOf, "as-of", "", "Decay reference date YYYY-MM-DD (default: latest submission)")
	c.Flags().BoolVar(&includeBins, "include-bins", false, "Include every density bin in the report")
	c.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Scoring trace level (none, decisions, candidates)")
	c.Flags().BoolVar(&withTrend, "trend", false, "Run the temporal trend analysis")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	registerAnalysisFlags(runCmd)
	runCmd.Flags().Float64Var(&agencyRate, "agency-rate", 0, "Agency minimum rate; selects the group in the store")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
