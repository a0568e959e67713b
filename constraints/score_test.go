// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package constraints

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validorg/otv-backend/chain/chaintest"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/store"
	"github.com/validorg/otv-backend/store/storetest"
)

func TestMedian(t *testing.T) {
	t.Parallel()
	tests := []struct {
		values   []float64
		expected float64
		ok       bool
	}{
		{[]float64{1, 3, 5, 7}, 4, true},
		{[]float64{2, 4, 9}, 4, true},
		{[]float64{9, 2, 4}, 4, true},
		{[]float64{42}, 42, true},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := Median(tt.values)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.expected, got)
	}
}

func TestNewStats(t *testing.T) {
	t.Parallel()
	stats, ok := NewStats([]float64{1, 3, 5, 7})
	require.True(t, ok)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 7.0, stats.Max)
	assert.Equal(t, 4.0, stats.Mean)
	assert.Equal(t, 4.0, stats.Median)

	_, ok = NewStats(nil)
	assert.False(t, ok)
}

func TestScaledZeroVariance(t *testing.T) {
	t.Parallel()
	stats, ok := NewStats([]float64{5})
	require.True(t, ok)
	// Zero spread must not divide by zero.
	assert.Equal(t, 0.0, Scaled(5, stats))
	assert.Equal(t, 1.0, ScaledInverse(5, stats))
}

func TestScaledDirection(t *testing.T) {
	t.Parallel()
	stats, _ := NewStats([]float64{0, 10})
	assert.Equal(t, 0.0, Scaled(0, stats))
	assert.Equal(t, 1.0, Scaled(10, stats))
	assert.Equal(t, 0.5, Scaled(5, stats))
	assert.Equal(t, 0.5, ScaledInverse(5, stats))
	assert.Equal(t, 0.0, Scaled(-3, stats), "clamped below")
	assert.Equal(t, 1.0, Scaled(30, stats), "clamped above")
}

func scoringChecker(db store.Database) *Checker {
	cfg := config.ConstraintsConfig{
		InclusionWeight:     100,
		SpanInclusionWeight: 100,
		DiscoveredWeight:    5,
		NominatedWeight:     30,
		RankWeight:          5,
		UnclaimedWeight:     10,
		BondedWeight:        50,
		FaultsWeight:        5,
		OfflineWeight:       2,
		RandomnessWeight:    0.15,
	}
	checker := NewChecker(db, chaintest.New(), cfg, 2, nil)
	checker.nowMillis = func() int64 { return 1_000_000 }
	return checker
}

func TestScoreSingleCandidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := storetest.New(1_000_000)
	require.NoError(t, db.AddCandidate(ctx, "solo", "stash-solo", ""))
	db.Candidates["stash-solo"].Valid = true
	db.Candidates["stash-solo"].Bonded = 1000

	checker := scoringChecker(db)
	require.NoError(t, checker.ScoreAllCandidates(ctx))

	score, err := db.GetValidatorScore(ctx, "stash-solo")
	require.NoError(t, err)
	require.NotNil(t, score)
	require.False(t, math.IsNaN(score.Total), "zero variance must not divide by zero")
	require.False(t, math.IsInf(score.Total, 0))
	assert.GreaterOrEqual(t, score.Randomness, 1.0)
	assert.LessOrEqual(t, score.Randomness, 1.15)
	assert.InDelta(t, score.Aggregate*score.Randomness, score.Total, 1e-9)

	meta, err := db.GetValidatorScoreMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 50.0, meta.BondedWeight)
	assert.Equal(t, 1000.0, meta.BondedStats.Min)
	assert.Equal(t, 1000.0, meta.BondedStats.Max)
}

func TestScoreSkipsInvalidCandidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := storetest.New(1_000_000)
	require.NoError(t, db.AddCandidate(ctx, "good", "stash-good", ""))
	require.NoError(t, db.AddCandidate(ctx, "bad", "stash-bad", ""))
	db.Candidates["stash-good"].Valid = true
	db.Candidates["stash-good"].Rank = 10
	db.Candidates["stash-bad"].Valid = false

	checker := scoringChecker(db)
	require.NoError(t, checker.ScoreAllCandidates(ctx))

	good, err := db.GetValidatorScore(ctx, "stash-good")
	require.NoError(t, err)
	require.NotNil(t, good)

	bad, err := db.GetValidatorScore(ctx, "stash-bad")
	require.NoError(t, err)
	assert.Nil(t, bad, "invalid candidates are not scored")
}

func TestScoreOrdersByMerit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := storetest.New(1_000_000)
	require.NoError(t, db.AddCandidate(ctx, "heavy", "stash-heavy", ""))
	require.NoError(t, db.AddCandidate(ctx, "light", "stash-light", ""))
	for _, c := range db.Candidates {
		c.Valid = true
	}
	db.Candidates["stash-heavy"].Bonded = 10000
	db.Candidates["stash-heavy"].Rank = 50
	db.Candidates["stash-light"].Bonded = 10
	db.Candidates["stash-light"].Faults = 5
	db.Candidates["stash-light"].Inclusion = 1

	checker := scoringChecker(db)
	require.NoError(t, checker.ScoreAllCandidates(ctx))

	heavy, err := db.GetValidatorScore(ctx, "stash-heavy")
	require.NoError(t, err)
	light, err := db.GetValidatorScore(ctx, "stash-light")
	require.NoError(t, err)
	// The randomness multiplier tops out at 1.15, far under the
	// aggregate gap between these two.
	assert.Greater(t, heavy.Aggregate, light.Aggregate)
}
