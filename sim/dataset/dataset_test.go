package dataset

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsim/bidsim/sim"
)

const koreanCSV = `순위,업체,투찰일시,투찰금액,기초금액,발주처투찰률,기초대비사정률,공고번호
1,(주)한빛건설,2025-06-01 10:00:00,"34,250,000원","39,000,000",87.745%,(-0.123),20250601-00
2,가람 & 누리  주식회사,2025/06/01 10:05:00,"34,260,000",,,,
,,,,,,,
미달,대한(유),2025.06.01 10:06:00,"33,000,000",,,100.5,
`

func TestRead_KoreanHeaders(t *testing.T) {
	// GIVEN a portal export with Korean headers and notice-level cells filled once
	records, err := Read(strings.NewReader(koreanCSV))

	// THEN every non-blank row loads and inherits the notice-level values
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "한빛건설", first.Company)
	assert.Equal(t, 34_250_000.0, first.BidAmount)
	assert.Equal(t, 39_000_000.0, first.BaseAmount)
	assert.InDelta(t, 0.87745, first.AgencyRate, 1e-12)
	assert.InDelta(t, 0.99877, first.AssessedRate, 1e-12)
	assert.Equal(t, "20250601-00", first.NoticeID)
	assert.True(t, first.SubmittedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)))

	second := records[1]
	assert.Equal(t, "가람 and 누리", second.Company)
	assert.Equal(t, first.BaseAmount, second.BaseAmount)
	assert.Equal(t, first.AgencyRate, second.AgencyRate)
	assert.Equal(t, first.NoticeID, second.NoticeID)
	assert.Zero(t, second.AssessedRate)

	third := records[2]
	assert.True(t, third.IsDisqualified())
	assert.Equal(t, "대한", third.Company)
	assert.InDelta(t, 1.005, third.AssessedRate, 1e-12)
}

func TestRead_RatioOnlyRebuildsAmount(t *testing.T) {
	// GIVEN no amount column, only the bid-to-base ratio in percent
	in := "\ufeffrank,bid_ratio,base_amount,agency_rate\n1,87.825,10000000,0.87745\n"

	records, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)

	// THEN the amount is rebuilt to the whole won and the ratio survives
	assert.Equal(t, 8_782_500.0, records[0].BidAmount)
	assert.InDelta(t, 0.87825, records[0].Ratio(), 1e-12)
	assert.True(t, records[0].SubmittedAt.IsZero())
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("rank,bid_amount,base_amount\n1,100,200\n"))
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "agency_rate")

	_, err = Read(strings.NewReader("rank,base_amount,agency_rate\n1,200,0.8\n"))
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestRead_RowErrorsCarryLineNumber(t *testing.T) {
	_, err := Read(strings.NewReader("rank,bid_amount,base_amount,agency_rate\n1,100,200,0.8\nfirst,100,200,0.8\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")

	_, err = Read(strings.NewReader("rank,bid_amount,base_amount,agency_rate\n0,100,200,0.8\n"))
	assert.True(t, errors.Is(err, sim.ErrInvalidParameter), "rank 0 is rejected by record validation")
}

func TestRead_NewNoticeDoesNotInherit(t *testing.T) {
	in := "notice_id,rank,bid_amount,base_amount,agency_rate\nA,1,100,200,0.8\nB,1,100,,\n"
	_, err := Read(strings.NewReader(in))
	assert.True(t, errors.Is(err, sim.ErrInvalidParameter))
}

func TestRead_BadTimestampLeavesRecordUndated(t *testing.T) {
	in := "rank,bid_amount,base_amount,agency_rate,submitted_at\n1,100,200,0.8,yesterday\n"
	records, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.True(t, records[0].SubmittedAt.IsZero())
}

func TestRead_Empty(t *testing.T) {
	records, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriteThenLoad(t *testing.T) {
	// GIVEN records with every field set
	want := []sim.BidRecord{
		{NoticeID: "N-1", Rank: 1, Company: "한빛건설", BidAmount: 34_250_000, BaseAmount: 39_000_000,
			AgencyRate: 0.87745, AssessedRate: 0.99877, SubmittedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		{NoticeID: "N-1", Rank: -1, Company: "대한", BidAmount: 33_000_000, BaseAmount: 39_000_000,
			AgencyRate: 0.87745},
	}
	path := filepath.Join(t.TempDir(), "bids.csv")

	// WHEN written and loaded back
	require.NoError(t, WriteFile(path, want))
	got, err := LoadFile(path)
	require.NoError(t, err)

	// THEN the records are preserved
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].NoticeID, got[i].NoticeID)
		assert.Equal(t, want[i].Rank, got[i].Rank)
		assert.Equal(t, want[i].Company, got[i].Company)
		assert.Equal(t, want[i].BidAmount, got[i].BidAmount)
		assert.Equal(t, want[i].BaseAmount, got[i].BaseAmount)
		assert.InDelta(t, want[i].AgencyRate, got[i].AgencyRate, 1e-12)
		assert.InDelta(t, want[i].AssessedRate, got[i].AssessedRate, 1e-12)
		assert.True(t, want[i].SubmittedAt.Equal(got[i].SubmittedAt))
	}
}

func TestWrite_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, "notice_id,rank,company,submitted_at,bid_amount,base_amount,agency_rate,assessed_rate\n", buf.String())
}
