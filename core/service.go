// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

// Package core wires the store, chain adapter, evaluator and
// scheduler into one long-lived service.
package core

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/constraints"
	"github.com/validorg/otv-backend/jobs"
	"github.com/validorg/otv-backend/scheduler"
	"github.com/validorg/otv-backend/store"
)

var log = logrus.WithField("prefix", "core")

// nowMillis is stubbed in tests.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}

// Service is the programme backend. All collaborators are injected
// and long-lived for the process lifetime; the store is the only
// shared mutable state.
type Service struct {
	cfg        *config.Config
	db         store.Database
	chain      chain.Adapter
	checker    *constraints.Checker
	scheduler  *scheduler.Scheduler
	runner     *jobs.Runner
	nominators []jobs.Nominator
}

// New constructs the service and registers the job catalog. The
// nominators, claimer, bot and release feed come from outside the
// core and may be absent.
func New(cfg *config.Config, db store.Database, adapter chain.Adapter, nominators []jobs.Nominator, claimer jobs.Claimer, bot jobs.Bot, feed jobs.ReleaseFeed, siblingRank constraints.SiblingRankFunc) (*Service, error) {
	checker := constraints.NewChecker(db, adapter, cfg.Constraints, cfg.Global.NetworkPrefix, siblingRank)
	runner := jobs.NewRunner(db, adapter, cfg, checker, nominators, claimer, bot, feed)

	sched := scheduler.New()
	for _, job := range runner.Catalog() {
		if err := sched.Register(job); err != nil {
			return nil, errors.Wrapf(err, "register %s", job.Name)
		}
	}
	return &Service{
		cfg:        cfg,
		db:         db,
		chain:      adapter,
		checker:    checker,
		scheduler:  sched,
		runner:     runner,
		nominators: nominators,
	}, nil
}

// Start ingests the configured candidates, records the chain
// metadata and begins dispatching jobs.
func (s *Service) Start(ctx context.Context) error {
	if err := s.ingestCandidates(ctx); err != nil {
		return err
	}
	if err := s.syncNominators(ctx); err != nil {
		return err
	}
	if meta, err := s.chain.GetChainMetadata(ctx); err != nil {
		log.WithError(err).Warn("Failed to read chain metadata")
	} else if err := s.db.SetChainMetadata(ctx, meta.Name, meta.Decimals); err != nil {
		log.WithError(err).Warn("Failed to store chain metadata")
	}

	if err := s.scheduler.Start(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"network":    s.cfg.Global.NetworkPrefix,
		"candidates": len(s.cfg.Candidates),
	}).Info("Service started")
	return nil
}

// Stop drains in-flight jobs.
func (s *Service) Stop() {
	s.scheduler.Stop()
	log.Info("Service stopped")
}

// syncNominators upserts the controlled nominator accounts and drops
// stored nominators no longer controlled by the service.
func (s *Service) syncNominators(ctx context.Context) error {
	now := nowMillis()
	keep := make([]string, 0, len(s.nominators))
	for _, nominator := range s.nominators {
		keep = append(keep, nominator.Address())
		stash, err := nominator.Stash(ctx)
		if err != nil {
			log.WithError(err).WithField("nominator", nominator.Address()).Warn("Failed to resolve nominator stash")
			continue
		}
		proxy := ""
		if nominator.IsProxy() {
			proxy = nominator.Address()
		}
		var bonded float64
		if amount, err := s.chain.GetBondedAmount(ctx, stash); err == nil {
			bonded, _ = new(big.Float).SetInt(amount).Float64()
		}
		if err := s.db.AddNominator(ctx, nominator.Address(), stash, proxy, bonded, now); err != nil {
			return errors.Wrapf(err, "sync nominator %s", nominator.Address())
		}
	}
	return s.db.RemoveStaleNominators(ctx, keep)
}

// ingestCandidates upserts the configured candidate list,
// canonicalizing every stash to the network's address prefix.
func (s *Service) ingestCandidates(ctx context.Context) error {
	for _, candidate := range s.cfg.Candidates {
		stash, err := chain.FormatAddress(candidate.Stash, s.cfg.Global.NetworkPrefix)
		if err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Bad configured stash, skipping")
			continue
		}
		if err := s.db.AddCandidate(ctx, candidate.Name, stash, candidate.KusamaStash); err != nil {
			return errors.Wrapf(err, "ingest candidate %s", candidate.Name)
		}
	}
	return nil
}
