// Package dataset reads and writes historical bid records as CSV.
//
// Headers are matched against Korean and English aliases, so exports from
// the procurement portal load without renaming columns. Cells left blank in
// the notice-level columns (notice, base amount, agency rate) inherit the
// value of the row above, matching spreadsheet exports that only fill them
// once per notice.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bidsim/bidsim/sim"
)

// Column identifies a canonical record field.
type Column string

const (
	ColNotice    Column = "notice_id"
	ColRank      Column = "rank"
	ColCompany   Column = "company"
	ColSubmitted Column = "submitted_at"
	ColBid       Column = "bid_amount"
	ColRatio     Column = "bid_ratio"
	ColBase      Column = "base_amount"
	ColAgency    Column = "agency_rate"
	ColAssessed  Column = "assessed_rate"
)

// columnAliases lists accepted header spellings per column, canonical first.
var columnAliases = map[Column][]string{
	ColNotice:    {"notice_id", "공고번호", "notice"},
	ColRank:      {"rank", "순위"},
	ColCompany:   {"company", "업체", "업체명", "상호", "회사명"},
	ColSubmitted: {"submitted_at", "투찰일시", "투찰일", "제출일시"},
	ColBid:       {"bid_amount", "투찰금액", "입찰금액", "투찰가"},
	ColRatio:     {"bid_ratio", "기초대비투찰률(%)", "기초대비투찰률", "기초대비"},
	ColBase:      {"base_amount", "기초금액"},
	ColAgency:    {"agency_rate", "발주처투찰률", "낙찰하한율", "투찰률"},
	ColAssessed:  {"assessed_rate", "기초대비사정률", "사정률"},
}

// writeColumns is the header order used by Write.
var writeColumns = []Column{
	ColNotice, ColRank, ColCompany, ColSubmitted, ColBid, ColBase, ColAgency, ColAssessed,
}

// ErrMissingColumn is returned when a required column has no matching header.
var ErrMissingColumn = errors.New("missing required column")

// belowMinimum lists rank cells that mark a disqualified bid.
var belowMinimum = map[string]bool{"미달": true, "below": true, "disqualified": true}

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), ""))
}

// mapHeader resolves header positions. The first header matching any alias
// of a column wins.
func mapHeader(header []string) (map[Column]int, error) {
	lookup := make(map[string]Column)
	for col, aliases := range columnAliases {
		for _, a := range aliases {
			lookup[headerKey(a)] = col
		}
	}
	pos := make(map[Column]int)
	for i, h := range header {
		if col, ok := lookup[headerKey(h)]; ok {
			if _, seen := pos[col]; !seen {
				pos[col] = i
			}
		}
	}
	for _, col := range []Column{ColRank, ColBase, ColAgency} {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	_, hasBid := pos[ColBid]
	_, hasRatio := pos[ColRatio]
	if !hasBid && !hasRatio {
		return nil, fmt.Errorf("%w: %s or %s", ErrMissingColumn, ColBid, ColRatio)
	}
	return pos, nil
}

// LoadFile reads records from a CSV file.
func LoadFile(path string) ([]sim.BidRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer func() { _ = file.Close() }()

	records, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logrus.Infof("loaded %d bid records from %s", len(records), path)
	return records, nil
}

// Read parses CSV records. Blank rows are skipped. Rows are numbered from 1
// for the header in error messages.
func Read(r io.Reader) ([]sim.BidRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []sim.BidRecord{}, nil
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	pos, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	records := []sim.BidRecord{}
	var prev sim.BidRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", line, err)
		}
		if blankRow(row) {
			continue
		}
		rec, err := parseRow(row, pos, prev)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
		prev = rec
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, pos map[Column]int, col Column) string {
	i, ok := pos[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRow(row []string, pos map[Column]int, prev sim.BidRecord) (sim.BidRecord, error) {
	rec := sim.BidRecord{
		NoticeID: cell(row, pos, ColNotice),
		Company:  NormalizeCompany(cell(row, pos, ColCompany)),
	}

	rankCell := cell(row, pos, ColRank)
	if belowMinimum[strings.ToLower(rankCell)] {
		rec.Rank = -1
	} else {
		rank, err := strconv.Atoi(rankCell)
		if err != nil {
			return rec, fmt.Errorf("parsing rank %q: %w", rankCell, err)
		}
		rec.Rank = rank
	}

	inherit := rec.NoticeID == "" || rec.NoticeID == prev.NoticeID
	if rec.NoticeID == "" {
		rec.NoticeID = prev.NoticeID
	}

	if s := cell(row, pos, ColBase); s != "" {
		base, err := ParseMoney(s)
		if err != nil {
			return rec, err
		}
		rec.BaseAmount = base.InexactFloat64()
	} else if inherit {
		rec.BaseAmount = prev.BaseAmount
	}

	if s := cell(row, pos, ColAgency); s != "" {
		rate, err := ParsePercent(s)
		if err != nil {
			return rec, err
		}
		rec.AgencyRate = sim.NormalizeRate(rate)
	} else if inherit {
		rec.AgencyRate = prev.AgencyRate
	}

	if s := cell(row, pos, ColBid); s != "" {
		bid, err := ParseMoney(s)
		if err != nil {
			return rec, err
		}
		rec.BidAmount = bid.InexactFloat64()
	} else if s := cell(row, pos, ColRatio); s != "" {
		ratio, err := ParsePercent(s)
		if err != nil {
			return rec, err
		}
		// ratio cells are already rounded; rebuild the amount to the nearest won
		rec.BidAmount = decimal.NewFromFloat(rec.BaseAmount).
			Mul(decimal.NewFromFloat(sim.NormalizeRate(ratio))).Round(0).InexactFloat64()
	} else {
		return rec, fmt.Errorf("neither %s nor %s is set", ColBid, ColRatio)
	}

	if s := cell(row, pos, ColSubmitted); s != "" {
		t, err := ParseTime(s)
		if err != nil {
			logrus.Warnf("dataset: %v, record left undated", err)
		} else {
			rec.SubmittedAt = t
		}
	}

	if s := cell(row, pos, ColAssessed); s != "" {
		rate, ok, err := ParseAssessedRate(s)
		if err != nil {
			return rec, err
		}
		if !ok {
			logrus.Warnf("dataset: assessed rate %q out of range, ignored", s)
		}
		rec.AssessedRate = rate
	}

	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// WriteFile writes records to a CSV file with canonical English headers.
func WriteFile(path string, records []sim.BidRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dataset file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Write(file, records)
}

// Write writes records as CSV. Rates are written as fractions and amounts in
// whole won.
func Write(w io.Writer, records []sim.BidRecord) error {
	writer := csv.NewWriter(w)

	header := make([]string, len(writeColumns))
	for i, c := range writeColumns {
		header[i] = string(c)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for i, r := range records {
		submitted := ""
		if !r.SubmittedAt.IsZero() {
			submitted = r.SubmittedAt.UTC().Format(time.DateTime)
		}
		assessed := ""
		if r.AssessedRate != 0 {
			assessed = strconv.FormatFloat(r.AssessedRate*100, 'f', -1, 64)
		}
		row := []string{
			r.NoticeID,
			strconv.Itoa(r.Rank),
			r.Company,
			submitted,
			decimal.NewFromFloat(r.BidAmount).String(),
			decimal.NewFromFloat(r.BaseAmount).String(),
			strconv.FormatFloat(sim.NormalizeRate(r.AgencyRate), 'f', -1, 64),
			assessed,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
