package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bidsim/bidsim/sim"
)

var (
	reviewBase   float64 // Base amount of the upcoming notice
	reviewNotice string  // Notice number of the upcoming notice
	reviewMonth  int     // Month of the upcoming notice
	reviewAsOf   string  // Reference date for recency (YYYY-MM-DD)
)

// reviewCmd compares issuers, tests factors and rates confidence across the
// whole history
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Compare issuers, test rate factors and rate confidence for the next notice",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, err := reviewContext()
		if err != nil {
			logrus.Fatalf("Invalid context: %v", err)
		}
		records, err := loadRecords(0)
		if err != nil {
			logrus.Fatalf("Failed to load records: %v", err)
		}
		review, err := sim.ReviewHistory(records, ctx)
		if err != nil {
			logrus.Fatalf("Review failed: %v", err)
		}
		if err := writeJSON(outputPath, review); err != nil {
			logrus.Fatalf("Failed to write review: %v", err)
		}
	},
}

// reviewContext builds the confidence context from the review flags.
func reviewContext() (sim.ConfidenceContext, error) {
	ctx := sim.ConfidenceContext{BaseAmount: reviewBase}
	if reviewBase < 0 {
		return ctx, fmt.Errorf("--base-amount must be positive, got %v", reviewBase)
	}
	if reviewNotice != "" {
		ctx.Issuer = sim.IssuerOf(reviewNotice)
	}
	if reviewMonth < 0 || reviewMonth > 12 {
		return ctx, fmt.Errorf("--month must be 1-12, got %d", reviewMonth)
	}
	ctx.Month = time.Month(reviewMonth)
	if reviewAsOf != "" {
		t, err := time.Parse(time.DateOnly, reviewAsOf)
		if err != nil {
			return ctx, fmt.Errorf("--as-of: %w", err)
		}
		ctx.AsOf = t
	}
	return ctx, nil
}

func init() {
	registerSourceFlags(reviewCmd)
	reviewCmd.Flags().Float64Var(&reviewBase, "base-amount", 0, "Base amount of the upcoming notice")
	reviewCmd.Flags().StringVar(&reviewNotice, "notice", "", "Notice number of the upcoming notice (selects its issuer)")
	reviewCmd.Flags().IntVar(&reviewMonth, "month", 0, "Month of the upcoming notice (1-12)")
	reviewCmd.Flags().StringVar(&reviewAsOf, "as-of", "", "Reference date YYYY-MM-DD for recency (default: latest submission)")
	reviewCmd.Flags().StringVar(&outputPath, "output", "", "Write JSON here instead of stdout")
	rootCmd.AddCommand(reviewCmd)
}
