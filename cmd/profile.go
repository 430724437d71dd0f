package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bidsim/bidsim/sim"
	"github.com/bidsim/bidsim/sim/dataset"
)

var (
	companyName string // Company to profile
	profileTop  int    // Most active companies to list
)

// profileCmd prints competitor profiles
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile competitors by participation, wins and bid ratios",
	Run: func(cmd *cobra.Command, args []string) {
		records, err := loadRecords(agencyRate)
		if err != nil {
			logrus.Fatalf("Failed to load records: %v", err)
		}
		profiles := sim.ProfileCompetitors(records)

		if companyName != "" {
			p, ok := sim.FindCompetitor(profiles, dataset.NormalizeCompany(companyName))
			if !ok {
				logrus.Fatalf("No records for company %q", companyName)
			}
			if err := writeJSON(outputPath, p); err != nil {
				logrus.Fatalf("Failed to write profile: %v", err)
			}
			return
		}
		if profileTop > 0 && len(profiles) > profileTop {
			profiles = profiles[:profileTop]
		}
		if err := writeJSON(outputPath, profiles); err != nil {
			logrus.Fatalf("Failed to write profiles: %v", err)
		}
	},
}

func init() {
	registerSourceFlags(profileCmd)
	profileCmd.Flags().Float64Var(&agencyRate, "agency-rate", 0, "Only records of this agency rate")
	profileCmd.Flags().StringVar(&companyName, "company", "", "Profile a single company")
	profileCmd.Flags().IntVar(&profileTop, "top", 20, "Number of most active companies to list (0 = all)")
	profileCmd.Flags().StringVar(&outputPath, "output", "", "Write JSON here instead of stdout")

	rootCmd.AddCommand(profileCmd)
}
