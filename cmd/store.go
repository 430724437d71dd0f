package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bidsim/bidsim/sim"
	"github.com/bidsim/bidsim/sim/dataset"
	"github.com/bidsim/bidsim/sim/store"
)

// loadRecords reads records from --data or --db. With a store and a non-zero
// agency rate only that group is loaded; a CSV is filtered the same way.
func loadRecords(agency float64) ([]sim.BidRecord, error) {
	switch {
	case dataPath != "":
		records, err := dataset.LoadFile(dataPath)
		if err != nil {
			return nil, err
		}
		if agency == 0 {
			return records, nil
		}
		for _, g := range sim.GroupByAgencyRate(records) {
			if sameGroup(g.AgencyRate, agency) {
				return g.Records, nil
			}
		}
		logrus.Warnf("No records at agency rate %v in %s", sim.NormalizeRate(agency), dataPath)
		return []sim.BidRecord{}, nil
	case dbPath != "":
		s, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = s.Close() }()
		if agency == 0 {
			return s.LoadAll()
		}
		return s.LoadGroup(agency)
	default:
		return nil, fmt.Errorf("no record source: pass --data or --db (or set %s)", envDB)
	}
}

func sameGroup(a, b float64) bool {
	d := sim.NormalizeRate(a) - sim.NormalizeRate(b)
	return d < 1e-9 && d > -1e-9
}

var (
	listStore    bool    // import --list
	exportPath   string  // export --out
	exportAgency float64 // export --agency-rate
)

// importCmd copies a CSV dataset into the record store
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV dataset into the record store",
	Run: func(cmd *cobra.Command, args []string) {
		if listStore {
			if dbPath == "" {
				logrus.Fatalf("--db is required (or set %s)", envDB)
			}
			listing, err := listStoreContents(dbPath)
			if err != nil {
				logrus.Fatalf("Listing store failed: %v", err)
			}
			if err := writeJSON(outputPath, listing); err != nil {
				logrus.Fatalf("%v", err)
			}
			return
		}
		if dataPath == "" {
			logrus.Fatalf("--data is required")
		}
		if dbPath == "" {
			logrus.Fatalf("--db is required (or set %s)", envDB)
		}
		id, count, err := importDataset(dataPath, dbPath)
		if err != nil {
			logrus.Fatalf("Import failed: %v", err)
		}
		fmt.Printf("imported %d records from %s (import %s)\n", count, dataPath, id)
	},
}

// importDataset loads the CSV at path and saves it into the store at dsn.
func importDataset(path, dsn string) (string, int, error) {
	records, err := dataset.LoadFile(path)
	if err != nil {
		return "", 0, err
	}
	s, err := store.Open(dsn)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = s.Close() }()

	id, err := s.SaveRecords(path, records)
	if err != nil {
		return "", 0, err
	}
	return id, len(records), nil
}

// storeListing is what import --list prints.
type storeListing struct {
	Imports []storedImport `json:"imports"`
	Groups  []storedGroup  `json:"groups"`
}

type storedImport struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

type storedGroup struct {
	AgencyRate float64 `json:"agency_rate"`
	Records    int64   `json:"records"`
}

// listStoreContents returns the import batches (newest first) and the
// agency-rate groups of the store at dsn.
func listStoreContents(dsn string) (*storeListing, error) {
	s, err := store.Open(dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()

	imports, err := s.Imports()
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}
	groups, err := s.ListGroups()
	if err != nil {
		return nil, err
	}

	listing := &storeListing{Imports: []storedImport{}, Groups: []storedGroup{}}
	for _, imp := range imports {
		listing.Imports = append(listing.Imports, storedImport{ID: imp.ID, Source: imp.Source, Records: imp.Records, CreatedAt: imp.CreatedAt})
	}
	for _, g := range groups {
		listing.Groups = append(listing.Groups, storedGroup{AgencyRate: g.AgencyRate, Records: g.Records})
	}
	return listing, nil
}

// exportCmd writes stored (or CSV) records back out as a canonical CSV
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write records from the store to a CSV dataset",
	Run: func(cmd *cobra.Command, args []string) {
		if exportPath == "" {
			logrus.Fatalf("--out is required")
		}
		n, err := exportRecords(exportPath, exportAgency)
		if err != nil {
			logrus.Fatalf("Export failed: %v", err)
		}
		fmt.Printf("exported %d records to %s\n", n, exportPath)
	},
}

// exportRecords writes the records of the configured source, optionally one
// agency-rate group, to path.
func exportRecords(path string, agency float64) (int, error) {
	records, err := loadRecords(agency)
	if err != nil {
		return 0, err
	}
	if err := dataset.WriteFile(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func init() {
	registerSourceFlags(importCmd)
	importCmd.Flags().BoolVar(&listStore, "list", false, "List the store's imports and agency-rate groups as JSON instead of importing")
	importCmd.Flags().StringVar(&outputPath, "output", "", "Write the --list JSON here instead of stdout")
	rootCmd.AddCommand(importCmd)

	registerSourceFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportPath, "out", "", "CSV file to write")
	exportCmd.Flags().Float64Var(&exportAgency, "agency-rate", 0, "Export only this agency-rate group")
	rootCmd.AddCommand(exportCmd)
}
