// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/chain/chaintest"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/jobs"
	"github.com/validorg/otv-backend/store/storetest"
)

func testServiceConfig() *config.Config {
	return &config.Config{
		Global: config.GlobalConfig{NetworkPrefix: chain.KusamaPrefix},
		Cron: config.CronConfig{
			Monitor:         config.DefaultMonitorCron,
			ClearOffline:    config.DefaultClearOfflineCron,
			Validity:        config.DefaultValidityCron,
			Score:           config.DefaultScoreCron,
			EraStats:        config.DefaultEraStatsCron,
			Execution:       config.DefaultExecutionCron,
			RewardClaiming:  config.DefaultRewardClaimingCron,
			Cancel:          config.DefaultCancelCron,
			Stale:           config.DefaultStaleCron,
			EraPoints:       config.DefaultEraPointsCron,
			ActiveValidator: config.DefaultActiveValidatorCron,
			Inclusion:       config.DefaultInclusionCron,
			SessionKey:      config.DefaultSessionKeyCron,
			UnclaimedEras:   config.DefaultUnclaimedErasCron,
			ValidatorPref:   config.DefaultValidatorPrefCron,
			ExtNominations:  config.DefaultExtNominationsCron,
		},
		Proxy: config.ProxyConfig{TimeDelayBlocks: config.DefaultTimeDelayBlocks},
	}
}

type stubNominator struct {
	address string
	stash   string
}

func (s *stubNominator) Address() string                          { return s.address }
func (s *stubNominator) Controller() string                       { return s.address }
func (s *stubNominator) IsProxy() bool                            { return false }
func (s *stubNominator) Stash(context.Context) (string, error)    { return s.stash, nil }
func (s *stubNominator) CancelTx(context.Context, chain.ProxyAnnouncement) error {
	return nil
}
func (s *stubNominator) SendStakingTx(context.Context, []string) (string, error) {
	return "", nil
}

func TestServiceRemovesStaleNominators(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(1_000)
	// The store already knows A, B and C; only A and C remain
	// controlled.
	require.NoError(t, db.AddNominator(ctx, "A", "stash-a", "", 0, 1))
	require.NoError(t, db.AddNominator(ctx, "B", "stash-b", "", 0, 1))
	require.NoError(t, db.AddNominator(ctx, "C", "stash-c", "", 0, 1))

	nominators := []jobs.Nominator{
		&stubNominator{address: "A", stash: "stash-a"},
		&stubNominator{address: "C", stash: "stash-c"},
	}
	service, err := New(testServiceConfig(), db, chaintest.New(), nominators, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, service.syncNominators(ctx))

	remaining, err := db.AllNominators(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "A", remaining[0].Address)
	assert.Equal(t, "C", remaining[1].Address)
}

func TestServiceIngestsCandidates(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(1_000)
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i)
	}
	polkadotAddr, err := chain.EncodeAddress(pub, chain.PolkadotPrefix)
	require.NoError(t, err)

	cfg := testServiceConfig()
	cfg.Candidates = []config.CandidateConfig{
		{Name: "alpha", Stash: polkadotAddr},
	}
	service, err := New(cfg, db, chaintest.New(), nil, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, service.ingestCandidates(ctx))

	candidate, err := db.GetCandidateByName(ctx, "alpha")
	require.NoError(t, err)
	require.NotNil(t, candidate)

	prefix, _, err := chain.DecodeAddress(candidate.Stash)
	require.NoError(t, err)
	assert.Equal(t, chain.KusamaPrefix, prefix, "configured stash canonicalized to the network prefix")
}

func TestServiceStartStop(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(1_000)
	service, err := New(testServiceConfig(), db, chaintest.New(), nil, nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, service.Start(ctx))
	defer service.Stop()

	meta, err := db.GetChainMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Development", meta.Name)
}
