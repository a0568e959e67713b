// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package constraints

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/chain/chaintest"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/store"
	"github.com/validorg/otv-backend/store/storetest"
)

const week = 7 * 24 * time.Hour

func testConstraintsConfig() config.ConstraintsConfig {
	return config.ConstraintsConfig{
		Commission:         10,
		MinSelfStake:       100,
		MinKusamaRank:      2,
		ClientUpgradeGrace: 16 * time.Hour,
		MinConnectionTime:  week,
		MaxOfflineTime:     time.Duration(float64(week) * 0.02),
	}
}

// seedHealthyCandidate stores a candidate that passes every rule
// against the returned adapter.
func seedHealthyCandidate(t *testing.T, db *storetest.DB, adapter *chaintest.Adapter, now int64) *store.Candidate {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.AddCandidate(ctx, "healthy", "stash-healthy", ""))
	c := db.Candidates["stash-healthy"]
	c.DiscoveredAt = now - 2*week.Milliseconds()
	c.OnlineSince = now - 2*week.Milliseconds()
	c.Commission = 5
	c.Bonded = 500
	c.RewardDestination = chain.RewardDestinationStaked
	c.Identity = &store.Identity{Name: "healthy", Verified: true}
	adapter.Intentions["stash-healthy"] = true
	clone := *c
	return &clone
}

func newTestChecker(db *storetest.DB, adapter *chaintest.Adapter, now int64) *Checker {
	checker := NewChecker(db, adapter, testConstraintsConfig(), 2, nil)
	checker.nowMillis = func() int64 { return now }
	return checker
}

func TestCheckCandidateAllValid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().UnixMilli()
	db := storetest.New(now)
	adapter := chaintest.New()
	adapter.ActiveEra = 100
	candidate := seedHealthyCandidate(t, db, adapter, now)

	checker := newTestChecker(db, adapter, now)
	require.NoError(t, checker.CheckCandidate(ctx, candidate))

	stored, err := db.GetCandidate(ctx, candidate.Stash)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Valid)
	assert.Len(t, stored.Invalidity, len(store.InvalidityTypes), "one entry per type")
	for _, typ := range store.InvalidityTypes {
		entry, ok := stored.InvalidityFor(typ)
		require.True(t, ok, "missing %s", typ)
		assert.True(t, entry.Valid, "%s should pass", typ)
	}
}

func TestCheckCandidateCommissionCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().UnixMilli()
	db := storetest.New(now)
	adapter := chaintest.New()
	adapter.ActiveEra = 100
	candidate := seedHealthyCandidate(t, db, adapter, now)
	candidate.Commission = 15
	db.Candidates[candidate.Stash].Commission = 15

	checker := newTestChecker(db, adapter, now)
	require.NoError(t, checker.CheckCandidate(ctx, candidate))

	stored, err := db.GetCandidate(ctx, candidate.Stash)
	require.NoError(t, err)
	assert.False(t, stored.Valid)
	entry, ok := stored.InvalidityFor(store.InvalidityCommission)
	require.True(t, ok)
	assert.False(t, entry.Valid)
	assert.Contains(t, entry.Details, "commission")
}

func TestCheckCandidateUnclaimedThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().UnixMilli()
	db := storetest.New(now)
	adapter := chaintest.New()
	adapter.ActiveEra = 100
	candidate := seedHealthyCandidate(t, db, adapter, now)

	// Kusama threshold is sixteen eras: era 83 is too old at active
	// era 100, era 90 is within the window.
	candidate.UnclaimedEras = []uint64{90}
	db.Candidates[candidate.Stash].UnclaimedEras = []uint64{90}
	checker := newTestChecker(db, adapter, now)
	require.NoError(t, checker.SetUnclaimedInvalidity(ctx, candidate))
	stored, _ := db.GetCandidate(ctx, candidate.Stash)
	entry, _ := stored.InvalidityFor(store.InvalidityUnclaimedRewards)
	assert.True(t, entry.Valid)

	candidate.UnclaimedEras = []uint64{83}
	require.NoError(t, checker.SetUnclaimedInvalidity(ctx, candidate))
	stored, _ = db.GetCandidate(ctx, candidate.Stash)
	entry, _ = stored.InvalidityFor(store.InvalidityUnclaimedRewards)
	assert.False(t, entry.Valid)
}

func TestSetIdentityInvalidityReplacement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().UnixMilli()
	db := storetest.New(now)
	adapter := chaintest.New()
	require.NoError(t, db.AddCandidate(ctx, "ident", "stash-ident", ""))
	db.Candidates["stash-ident"].Invalidity = map[store.InvalidityType]store.InvalidityEntry{
		store.InvalidityOnline:   {Valid: true, Updated: 1},
		store.InvalidityIdentity: {Valid: false, Updated: 1, Details: "unverified"},
	}

	checker := newTestChecker(db, adapter, now)
	candidate, err := db.GetCandidate(ctx, "stash-ident")
	require.NoError(t, err)
	candidate.Identity = &store.Identity{Name: "ident", Verified: true}
	require.NoError(t, checker.SetIdentityInvalidity(ctx, candidate))

	stored, err := db.GetCandidate(ctx, "stash-ident")
	require.NoError(t, err)
	require.Len(t, stored.Invalidity, 2, "replacement, not accumulation")
	identity, _ := stored.InvalidityFor(store.InvalidityIdentity)
	assert.True(t, identity.Valid)
	online, _ := stored.InvalidityFor(store.InvalidityOnline)
	assert.True(t, online.Valid)
	assert.Equal(t, int64(1), online.Updated, "unrelated entry untouched")
}

func TestCheckCandidateChainFailureSkips(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().UnixMilli()
	db := storetest.New(now)
	adapter := chaintest.New()
	candidate := seedHealthyCandidate(t, db, adapter, now)
	adapter.Err = assert.AnError

	checker := newTestChecker(db, adapter, now)
	err := checker.CheckCandidate(ctx, candidate)
	require.Error(t, err, "chain failure skips this candidate this tick")
}

func TestVersionAtLeast(t *testing.T) {
	t.Parallel()
	tests := []struct {
		version  string
		release  string
		expected bool
	}{
		{"0.9.12", "v0.9.12", true},
		{"v0.9.13", "v0.9.12", true},
		{"0.9.11", "v0.9.12", false},
		{"0.9.12-abc123", "v0.9.12", true},
		{"1.0.0", "v0.9.99", true},
		{"", "v0.9.12", false},
		{"junk", "v0.9.12", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, versionAtLeast(tt.version, tt.release), "%s vs %s", tt.version, tt.release)
	}
}
