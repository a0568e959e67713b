// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package jobs

import (
	"context"
	"time"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/constraints"
	"github.com/validorg/otv-backend/store"
)

const testNow = int64(1_700_000_000_000)

func testConfig() *config.Config {
	return &config.Config{
		Global: config.GlobalConfig{NetworkPrefix: 2},
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
		Proxy: config.ProxyConfig{TimeDelayBlocks: 10},
		Constraints: config.ConstraintsConfig{
			Commission:         10,
			MinSelfStake:       100,
			ClientUpgradeGrace: 16 * time.Hour,
			MinConnectionTime:  7 * 24 * time.Hour,
			MaxOfflineTime:     202 * time.Minute,
			ClaimerMinBalance:  100,
		},
	}
}

func testRunner(db store.Database, adapter chain.Adapter, nominators []Nominator, claimer Claimer, bot Bot, feed ReleaseFeed) *Runner {
	cfg := testConfig()
	checker := constraints.NewChecker(db, adapter, cfg.Constraints, cfg.Global.NetworkPrefix, nil)
	r := NewRunner(db, adapter, cfg, checker, nominators, claimer, bot, feed)
	r.nowMillis = func() int64 { return testNow }
	return r
}

type fakeNominator struct {
	address    string
	controller string
	stash      string
	proxy      bool
	sendErr    error

	sent      [][]string
	cancelled []chain.ProxyAnnouncement
}

func (f *fakeNominator) Address() string    { return f.address }
func (f *fakeNominator) Controller() string { return f.controller }
func (f *fakeNominator) IsProxy() bool      { return f.proxy }

func (f *fakeNominator) Stash(context.Context) (string, error) {
	return f.stash, nil
}

func (f *fakeNominator) SendStakingTx(_ context.Context, targets []string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, targets)
	return "0xblockhash", nil
}

func (f *fakeNominator) CancelTx(_ context.Context, announcement chain.ProxyAnnouncement) error {
	f.cancelled = append(f.cancelled, announcement)
	return nil
}

type fakeClaimer struct {
	address string
	claimed [][]EraReward
}

func (f *fakeClaimer) Address() string { return f.address }

func (f *fakeClaimer) Claim(_ context.Context, rewards []EraReward) error {
	f.claimed = append(f.claimed, rewards)
	return nil
}

type fakeBot struct {
	messages []string
}

func (f *fakeBot) SendMessage(msg string) error {
	f.messages = append(f.messages, msg)
	return nil
}

type fakeFeed struct {
	release *Release
}

func (f *fakeFeed) LatestRelease(context.Context) (*Release, error) {
	return f.release, nil
}
