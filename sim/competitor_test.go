package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCompany(r BidRecord, company string) BidRecord {
	r.Company = company
	return r
}

func TestProfileCompetitors(t *testing.T) {
	// GIVEN one frequent bidder, one occasional bidder and an anonymous row
	records := []BidRecord{
		withCompany(amountRecord(87_741_123, 1), "alpha construction"),
		withCompany(amountRecord(87_752_456, 2), "alpha construction"),
		withCompany(amountRecord(86_100_000, -1), "alpha construction"),
		withCompany(amountRecord(87_800_000, 3), "beta engineering"),
		amountRecord(87_900_000, 4),
	}

	// WHEN profiling
	profiles := ProfileCompetitors(records)

	// THEN companies are ordered by participation and anonymous rows skipped
	require.Len(t, profiles, 2)
	alpha := profiles[0]
	assert.Equal(t, "alpha construction", alpha.Company)
	assert.Equal(t, 3, alpha.Participations)
	assert.Equal(t, 1, alpha.Wins)
	assert.Equal(t, 1, alpha.BelowMinimum)
	assert.InDelta(t, 1.0/3.0, alpha.WinShare, 1e-12)
	assert.Equal(t, 3, alpha.Ratio.Count)
	assert.InDelta(t, 0.86100, alpha.Ratio.Min, 1e-12)
	assert.Equal(t, 1, alpha.WinningRatio.Count)
	assert.InDelta(t, 0.87741123, alpha.WinningRatio.Mean, 1e-12)
	assert.Equal(t, 3, alpha.DistinctThirdDigits)
	assert.Equal(t, 3, alpha.DistinctEndings)

	beta, ok := FindCompetitor(profiles, "beta engineering")
	require.True(t, ok)
	assert.Equal(t, 0, beta.Wins)
	assert.Equal(t, 0, beta.WinningRatio.Count)

	_, ok = FindCompetitor(profiles, "gamma")
	assert.False(t, ok)
}

func TestProfileCompetitors_TiesSortByName(t *testing.T) {
	records := []BidRecord{
		withCompany(testRecord(0.87, 2, 0.9), "b"),
		withCompany(testRecord(0.87, 3, 0.9), "a"),
	}
	profiles := ProfileCompetitors(records)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].Company)
	assert.Equal(t, "b", profiles[1].Company)
}
