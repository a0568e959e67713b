// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

// Package jobs holds the catalog of periodic tasks the scheduler
// drives. Each job tolerates stale inputs and converges over
// successive ticks; per-candidate failures never abort the sweep.
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/constraints"
	"github.com/validorg/otv-backend/scheduler"
	"github.com/validorg/otv-backend/store"
)

var log = logrus.WithField("prefix", "jobs")

// The inclusion windows, in eras.
const (
	eraWindow  = 84
	spanWindow = 28
)

// Nominator is a controlled nominator account able to sign staking
// transactions, injected from outside the core.
type Nominator interface {
	Address() string
	Controller() string
	Stash(ctx context.Context) (string, error)
	IsProxy() bool
	// SendStakingTx submits a (proxy-announced) nominate transaction
	// for the targets and returns the inclusion block hash.
	SendStakingTx(ctx context.Context, targets []string) (string, error)
	CancelTx(ctx context.Context, announcement chain.ProxyAnnouncement) error
}

// EraReward identifies one unclaimed reward to batch-claim.
type EraReward struct {
	Era   uint64
	Stash string
}

// Claimer submits batched reward claims.
type Claimer interface {
	Address() string
	Claim(ctx context.Context, rewards []EraReward) error
}

// Bot delivers operator notifications. Optional.
type Bot interface {
	SendMessage(msg string) error
}

// Release is an upstream client release as seen by the feed.
type Release struct {
	Name        string
	PublishedAt time.Time
}

// ReleaseFeed resolves the latest upstream client release.
type ReleaseFeed interface {
	LatestRelease(ctx context.Context) (*Release, error)
}

// Runner binds the job bodies to their collaborators. One Runner is
// shared by every job; it carries no per-invocation state.
type Runner struct {
	db         store.Database
	chain      chain.Adapter
	cfg        *config.Config
	checker    *constraints.Checker
	nominators []Nominator
	claimer    Claimer
	bot        Bot
	feed       ReleaseFeed

	nowMillis func() int64
}

// NewRunner wires the job bodies. Nominators, claimer, bot and feed
// may be absent; the jobs needing them degrade to logged no-ops.
func NewRunner(db store.Database, adapter chain.Adapter, cfg *config.Config, checker *constraints.Checker, nominators []Nominator, claimer Claimer, bot Bot, feed ReleaseFeed) *Runner {
	return &Runner{
		db:         db,
		chain:      adapter,
		cfg:        cfg,
		checker:    checker,
		nominators: nominators,
		claimer:    claimer,
		bot:        bot,
		feed:       feed,
		nowMillis:  func() int64 { return time.Now().UnixMilli() },
	}
}

func (r *Runner) notify(msg string) {
	if r.bot == nil {
		return
	}
	if err := r.bot.SendMessage(msg); err != nil {
		log.WithError(err).Warn("Bot notification failed")
	}
}

// Catalog returns every job with its configured schedule. The
// scheduler enforces no ordering; the cron pacing in the defaults
// table is the ordering contract.
func (r *Runner) Catalog() []*scheduler.Job {
	c := r.cfg.Cron
	return []*scheduler.Job{
		{Name: "Monitor", Spec: c.Monitor, Body: r.MonitorJob},
		{Name: "ClearOffline", Spec: c.ClearOffline, Body: r.ClearOfflineJob},
		{Name: "EraPoints", Spec: c.EraPoints, Body: r.EraPointsJob},
		{Name: "ActiveValidator", Spec: c.ActiveValidator, Body: r.ActiveValidatorJob},
		{Name: "Inclusion", Spec: c.Inclusion, Body: r.InclusionJob},
		{Name: "SessionKey", Spec: c.SessionKey, Body: r.SessionKeyJob},
		{Name: "UnclaimedEras", Spec: c.UnclaimedEras, Body: r.UnclaimedErasJob},
		{Name: "ValidatorPref", Spec: c.ValidatorPref, Body: r.ValidatorPrefJob},
		{Name: "Validity", Spec: c.Validity, Body: r.ValidityJob},
		{Name: "Score", Spec: c.Score, Body: r.ScoreJob},
		{Name: "EraStats", Spec: c.EraStats, Body: r.EraStatsJob},
		{Name: "ExtNominations", Spec: c.ExtNominations, Body: r.ExtNominationsJob},
		{Name: "Execution", Spec: c.Execution, Body: r.ExecutionJob},
		{Name: "RewardClaim", Spec: c.RewardClaiming, Body: r.RewardClaimJob},
		{Name: "Cancel", Spec: c.Cancel, Body: r.CancelJob},
		{Name: "Stale", Spec: c.Stale, Body: r.StaleJob},
	}
}
