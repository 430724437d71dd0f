package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsim/bidsim/sim"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "bids.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func bid(rank int, amount, agency float64) sim.BidRecord {
	return sim.BidRecord{BaseAmount: 39_000_000, BidAmount: amount, Rank: rank, AgencyRate: agency}
}

func TestSaveRecords_RoundTrip(t *testing.T) {
	// GIVEN a record with every field set
	s := openTestStore(t)
	submitted := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	want := sim.BidRecord{
		NoticeID: "N-1", BaseAmount: 39_000_000, AgencyRate: 87.745, BidAmount: 34_250_123,
		Rank: 1, SubmittedAt: submitted, Company: "한빛건설", AssessedRate: 0.99877,
	}

	// WHEN saved and loaded back
	id, err := s.SaveRecords("bids.csv", []sim.BidRecord{want, bid(-1, 33_000_000, 0.87745)})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	got, err := s.LoadAll()
	require.NoError(t, err)

	// THEN the rate is stored as a fraction and nothing else changes
	require.Len(t, got, 2)
	assert.Equal(t, "N-1", got[0].NoticeID)
	assert.Equal(t, 34_250_123.0, got[0].BidAmount)
	assert.Equal(t, 39_000_000.0, got[0].BaseAmount)
	assert.InDelta(t, 0.87745, got[0].AgencyRate, 1e-12)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "한빛건설", got[0].Company)
	assert.InDelta(t, 0.99877, got[0].AssessedRate, 1e-12)
	assert.True(t, submitted.Equal(got[0].SubmittedAt))
	assert.True(t, got[1].SubmittedAt.IsZero())
	assert.True(t, got[1].IsDisqualified())

	imports, err := s.Imports()
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, id, imports[0].ID)
	assert.Equal(t, 2, imports[0].Records)
}

func TestSaveRecords_InvalidRecordStoresNothing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SaveRecords("bad.csv", []sim.BidRecord{bid(1, 100, 0.8), bid(0, 100, 0.8)})
	assert.True(t, errors.Is(err, sim.ErrInvalidParameter))

	got, err := s.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGroups(t *testing.T) {
	// GIVEN two imports spanning two agency rates
	s := openTestStore(t)
	_, err := s.SaveRecords("a.csv", []sim.BidRecord{bid(1, 34_000_000, 0.87745), bid(2, 34_100_000, 0.87745)})
	require.NoError(t, err)
	_, err = s.SaveRecords("b.csv", []sim.BidRecord{bid(1, 33_000_000, 86.745), bid(1, 34_200_000, 87.745)})
	require.NoError(t, err)

	// WHEN listing groups
	groups, err := s.ListGroups()
	require.NoError(t, err)

	// THEN percentages and fractions land in the same group
	require.Len(t, groups, 2)
	assert.InDelta(t, 0.86745, groups[0].AgencyRate, 1e-12)
	assert.Equal(t, int64(1), groups[0].Records)
	assert.InDelta(t, 0.87745, groups[1].AgencyRate, 1e-12)
	assert.Equal(t, int64(3), groups[1].Records)

	// AND a group loads with either notation
	recs, err := s.LoadGroup(87.745)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	recs, err = s.LoadGroup(0.86745)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSaveRecords_Empty(t *testing.T) {
	s := openTestStore(t)
	id, err := s.SaveRecords("empty.csv", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	groups, err := s.ListGroups()
	require.NoError(t, err)
	assert.Empty(t, groups)
}
