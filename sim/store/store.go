// Package store persists historical bid records in SQLite (or PostgreSQL)
// through gorm, so several CSV exports can be accumulated and analyzed per
// agency-rate group.
package store

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bidsim/bidsim/sim"
)

const insertBatchSize = 500

// Models

// Import is one batch of records saved together.
type Import struct {
	ID        string `gorm:"primaryKey"`
	Source    string
	Records   int
	CreatedAt time.Time
}

// Bid is the stored form of a sim.BidRecord.
type Bid struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"`
	ImportID     string          `gorm:"index"`
	NoticeID     string          `gorm:"index"`
	AgencyRate   float64         `gorm:"index"`
	BaseAmount   decimal.Decimal `gorm:"type:decimal(20,2)"`
	BidAmount    decimal.Decimal `gorm:"type:decimal(20,2)"`
	Rank         int
	Company      string `gorm:"index"`
	SubmittedAt  *time.Time
	AssessedRate float64
	CreatedAt    time.Time
}

// GroupCount is the number of stored records sharing one agency rate.
type GroupCount struct {
	AgencyRate float64
	Records    int64
}

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn: a postgres:// URL, or otherwise a SQLite file path
// whose directory is created when missing. Tables are migrated on open.
func Open(dsn string) (*Store, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var db *gorm.DB
	var err error
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		logrus.Infof("store: connected (PostgreSQL)")
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logrus.Infof("store: opened %s (SQLite)", dsn)
	}

	if err := db.AutoMigrate(&Import{}, &Bid{}); err != nil {
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRecords validates and stores records in one transaction and returns
// the import ID.
func (s *Store) SaveRecords(source string, records []sim.BidRecord) (string, error) {
	if err := sim.ValidateRecords(records); err != nil {
		return "", err
	}
	imp := Import{ID: uuid.NewString(), Source: source, Records: len(records)}
	rows := make([]Bid, len(records))
	for i, r := range records {
		rows[i] = toRow(imp.ID, r)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&imp).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
	if err != nil {
		return "", fmt.Errorf("saving records: %w", err)
	}
	logrus.Infof("store: import %s saved %d records from %s", imp.ID, len(records), source)
	return imp.ID, nil
}

// LoadAll returns every stored record in insertion order.
func (s *Store) LoadAll() ([]sim.BidRecord, error) {
	var rows []Bid
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	return fromRows(rows), nil
}

// LoadGroup returns the records of one agency rate (fraction or percentage).
func (s *Store) LoadGroup(agencyRate float64) ([]sim.BidRecord, error) {
	rate := sim.NormalizeRate(agencyRate)
	var rows []Bid
	err := s.db.Where("agency_rate BETWEEN ? AND ?", rate-groupTolerance, rate+groupTolerance).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading group %v: %w", rate, err)
	}
	return fromRows(rows), nil
}

// ListGroups returns the stored agency rates with their record counts,
// ascending by rate.
func (s *Store) ListGroups() ([]GroupCount, error) {
	var raw []GroupCount
	err := s.db.Model(&Bid{}).
		Select("agency_rate, COUNT(*) AS records").
		Group("agency_rate").
		Order("agency_rate").
		Scan(&raw).Error
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].AgencyRate < raw[j].AgencyRate })

	// rates that differ only by float noise belong to one group
	out := []GroupCount{}
	for _, g := range raw {
		if n := len(out); n > 0 && math.Abs(out[n-1].AgencyRate-g.AgencyRate) <= groupTolerance {
			out[n-1].Records += g.Records
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// Imports returns every import batch, newest first.
func (s *Store) Imports() ([]Import, error) {
	var imports []Import
	err := s.db.Order("created_at DESC").Find(&imports).Error
	return imports, err
}

// groupTolerance matches the agency-rate tolerance used when grouping records.
const groupTolerance = 1e-9

func toRow(importID string, r sim.BidRecord) Bid {
	row := Bid{
		ImportID:     importID,
		NoticeID:     r.NoticeID,
		AgencyRate:   sim.NormalizeRate(r.AgencyRate),
		BaseAmount:   decimal.NewFromFloat(r.BaseAmount),
		BidAmount:    decimal.NewFromFloat(r.BidAmount),
		Rank:         r.Rank,
		Company:      r.Company,
		AssessedRate: r.AssessedRate,
	}
	if !r.SubmittedAt.IsZero() {
		t := r.SubmittedAt.UTC()
		row.SubmittedAt = &t
	}
	return row
}

func fromRows(rows []Bid) []sim.BidRecord {
	out := make([]sim.BidRecord, len(rows))
	for i, row := range rows {
		out[i] = sim.BidRecord{
			NoticeID:     row.NoticeID,
			BaseAmount:   row.BaseAmount.InexactFloat64(),
			AgencyRate:   row.AgencyRate,
			BidAmount:    row.BidAmount.InexactFloat64(),
			Rank:         row.Rank,
			Company:      row.Company,
			AssessedRate: row.AssessedRate,
		}
		if row.SubmittedAt != nil {
			out[i].SubmittedAt = row.SubmittedAt.UTC()
		}
	}
	return out
}
