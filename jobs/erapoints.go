// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package jobs

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// eraPointsConcurrency bounds the per-era fan-out against the node.
const eraPointsConcurrency = 4

// EraPointsJob fills the trailing era window with per-era point rows
// and refreshes the active era. Eras already recorded as filled are
// skipped, so a sweep over a populated window performs no writes.
func (r *Runner) EraPointsJob(ctx context.Context) error {
	activeEra, err := r.chain.GetActiveEraIndex(ctx)
	if err != nil {
		return err
	}

	var startEra uint64
	if activeEra > eraWindow {
		startEra = activeEra - eraWindow
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(eraPointsConcurrency)
	for era := startEra; era < activeEra; era++ {
		era := era
		group.Go(func() error {
			if err := r.refreshEraPoints(groupCtx, era, false); err != nil {
				// A missed era heals on the next sweep.
				log.WithError(err).WithField("era", era).Warn("Failed to refresh era points")
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// The active era's counts keep moving; always refresh it.
	return r.refreshEraPoints(ctx, activeEra, true)
}

// refreshEraPoints upserts one era's aggregate and its per-validator
// rows. Unless forced, a filled era (total at the era-filled gate
// with statistics present) is left alone.
func (r *Runner) refreshEraPoints(ctx context.Context, era uint64, force bool) error {
	if !force {
		stored, err := r.db.GetTotalEraPoints(ctx, era)
		if err != nil {
			return err
		}
		if stored != nil && stored.TotalEraPoints >= 70000 && stored.Median != nil {
			return nil
		}
	}

	info, err := r.chain.GetTotalEraPoints(ctx, era)
	if err != nil {
		return err
	}
	validators := toEraPointRows(era, info.Validators)
	if err := r.db.SetTotalEraPoints(ctx, era, info.Total, validators); err != nil {
		return err
	}
	for _, row := range validators {
		if err := r.db.SetEraPoints(ctx, era, row.Address, row.EraPoints); err != nil {
			return err
		}
	}
	return nil
}
