// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package jobs

import (
	"context"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/store"
)

// ValidityJob re-evaluates every invalidity verdict for the fleet.
func (r *Runner) ValidityJob(ctx context.Context) error {
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	for i := range candidates {
		if err := r.checker.CheckCandidate(ctx, &candidates[i]); err != nil {
			log.WithError(err).WithField("candidate", candidates[i].Name).Warn("Skipping candidate this tick")
		}
	}
	return nil
}

// ScoreJob rescores the valid candidate set.
func (r *Runner) ScoreJob(ctx context.Context) error {
	return r.checker.ScoreAllCandidates(ctx)
}

// EraStatsJob snapshots the fleet composition for the active era.
func (r *Runner) EraStatsJob(ctx context.Context) error {
	activeEra, err := r.chain.GetActiveEraIndex(ctx)
	if err != nil {
		return err
	}
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	valid, active := 0, 0
	for _, candidate := range candidates {
		if candidate.Valid {
			valid++
		}
		if candidate.Active {
			active++
		}
	}
	return r.db.SetEraStats(ctx, activeEra, r.nowMillis(), len(candidates), valid, active)
}

// ExtNominationsJob tallies external nominations per candidate. The
// totals are not persisted yet; the sweep only reports them.
func (r *Runner) ExtNominationsJob(ctx context.Context) error {
	nominators, err := r.chain.GetAllNominators(ctx)
	if err != nil {
		return err
	}
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	own := make(map[string]struct{}, len(r.nominators))
	for _, n := range r.nominators {
		own[n.Address()] = struct{}{}
	}
	counts := make(map[string]int, len(candidates))
	for address, targets := range nominators {
		if _, ours := own[address]; ours {
			continue
		}
		for _, target := range targets {
			counts[target]++
		}
	}
	for _, candidate := range candidates {
		log.WithFields(map[string]interface{}{
			"candidate":      candidate.Name,
			"extNominations": counts[candidate.Stash],
		}).Debug("External nominations")
	}
	return nil
}

func toEraPointRows(era uint64, validators []chain.ValidatorEraPoints) []store.EraPoints {
	rows := make([]store.EraPoints, 0, len(validators))
	for _, v := range validators {
		rows = append(rows, store.EraPoints{Era: era, Address: v.Address, EraPoints: v.EraPoints})
	}
	return rows
}
