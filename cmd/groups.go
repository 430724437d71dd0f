package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bidsim/bidsim/sim"
)

// groupsCmd analyzes every agency-rate group of the records concurrently
var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Analyze every agency-rate group in the records",
	Run: func(cmd *cobra.Command, args []string) {
		if !cmd.Flags().Changed("base-amount") {
			logrus.Fatalf("--base-amount is required")
		}
		cfg, err := buildAnalysisConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		records, err := loadRecords(0)
		if err != nil {
			logrus.Fatalf("Failed to load records: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		reports, err := sim.AnalyzeGroups(ctx, records, cfg)
		if err != nil {
			logrus.Fatalf("Group analysis failed: %v", err)
		}
		if err := writeJSON(outputPath, reports); err != nil {
			logrus.Fatalf("Failed to write reports: %v", err)
		}
		for _, r := range reports {
			if best, ok := r.Recommendation.Best(); ok {
				logrus.Infof("Agency rate %.3f%%: best rate %.5f%% over %d records",
					r.AgencyRate*100, best.Rate*100, r.TotalRecords)
			}
		}
	},
}

func init() {
	registerAnalysisFlags(groupsCmd)
	rootCmd.AddCommand(groupsCmd)
}
