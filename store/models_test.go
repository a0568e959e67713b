// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInvalidityReplaces(t *testing.T) {
	t.Parallel()
	c := &Candidate{Name: "alpha", Stash: "stash-a"}
	c.SetInvalidity(InvalidityOnline, true, "", 100)
	c.SetInvalidity(InvalidityIdentity, false, "no identity", 100)
	require.Len(t, c.Invalidity, 2)

	c.SetInvalidity(InvalidityIdentity, true, "", 200)

	require.Len(t, c.Invalidity, 2)
	identity, ok := c.InvalidityFor(InvalidityIdentity)
	require.True(t, ok)
	assert.True(t, identity.Valid)
	assert.Equal(t, int64(200), identity.Updated)

	online, ok := c.InvalidityFor(InvalidityOnline)
	require.True(t, ok)
	assert.True(t, online.Valid)
	assert.Equal(t, int64(100), online.Updated)
}

func TestComputeValidConjunction(t *testing.T) {
	t.Parallel()
	c := &Candidate{}
	assert.True(t, c.ComputeValid(), "no verdicts means vacuously valid")

	c.SetInvalidity(InvalidityOnline, true, "", 1)
	c.SetInvalidity(InvalidityCommission, true, "", 1)
	assert.True(t, c.ComputeValid())

	c.SetInvalidity(InvalidityCommission, false, "too high", 2)
	assert.False(t, c.ComputeValid())

	c.SetInvalidity(InvalidityCommission, true, "", 3)
	assert.True(t, c.ComputeValid())
}

func TestInvalidityTypesClosed(t *testing.T) {
	t.Parallel()
	assert.Len(t, InvalidityTypes, 12)
	seen := make(map[InvalidityType]struct{})
	for _, typ := range InvalidityTypes {
		_, dup := seen[typ]
		assert.False(t, dup, "duplicate type %s", typ)
		seen[typ] = struct{}{}
	}
}

func TestRankArithmetic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rank     int
		docked   int
		forgiven int
	}{
		{0, 0, 1},
		{5, 5, 11},
		{6, 5, 13},
		{12, 10, 25},
		{100, 84, 201},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.docked, DockedRank(tt.rank), "docked %d", tt.rank)
		assert.Equal(t, tt.forgiven, ForgivenRank(tt.rank), "forgiven %d", tt.rank)
	}
}

func TestPointsStats(t *testing.T) {
	t.Parallel()
	median, average, max, min := pointsStats([]EraPoints{
		{EraPoints: 1}, {EraPoints: 3}, {EraPoints: 5}, {EraPoints: 7},
	})
	require.NotNil(t, median)
	assert.Equal(t, 4.0, *median)
	assert.Equal(t, 4.0, *average)
	assert.Equal(t, uint64(7), *max)
	assert.Equal(t, uint64(1), *min)

	median, _, _, _ = pointsStats([]EraPoints{
		{EraPoints: 2}, {EraPoints: 4}, {EraPoints: 9},
	})
	require.NotNil(t, median)
	assert.Equal(t, 4.0, *median)

	median, average, max, min = pointsStats(nil)
	assert.Nil(t, median)
	assert.Nil(t, average)
	assert.Nil(t, max)
	assert.Nil(t, min)
}
