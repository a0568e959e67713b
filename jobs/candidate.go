// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package jobs

import (
	"context"
	"math/big"

	"github.com/dustin/go-humanize"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/store"
)

// ClearOfflineJob zeroes the weekly offline accounting.
func (r *Runner) ClearOfflineJob(ctx context.Context) error {
	return r.db.ClearAccumulatedOfflineTime(ctx)
}

// ActiveValidatorJob flags the candidates present in the current
// validator set.
func (r *Runner) ActiveValidatorJob(ctx context.Context) error {
	validators, err := r.chain.CurrentValidators(ctx)
	if err != nil {
		return err
	}
	active := make(map[string]struct{}, len(validators))
	for _, v := range validators {
		active[v] = struct{}{}
	}

	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		_, isActive := active[candidate.Stash]
		if err := r.db.SetActive(ctx, candidate.Stash, isActive); err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to set active flag")
		}
	}
	return nil
}

// ValidatorPrefJob refreshes the chain-derived candidate attributes:
// identity, commission, controller, reward destination, bond and the
// external-nomination block flag. A failing candidate is skipped this
// tick and retried on the next.
func (r *Runner) ValidatorPrefJob(ctx context.Context) error {
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		prefs, err := r.fetchPreferences(ctx, candidate.Stash)
		if err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to fetch validator preferences")
			continue
		}
		if err := r.db.SetValidatorPreferences(ctx, candidate.Stash, *prefs); err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to store validator preferences")
			continue
		}
		log.WithFields(map[string]interface{}{
			"candidate": candidate.Name,
			"bonded":    humanize.Comma(int64(prefs.Bonded)),
		}).Debug("Refreshed validator preferences")
	}
	return nil
}

func (r *Runner) fetchPreferences(ctx context.Context, stash string) (*store.ValidatorPreferences, error) {
	rawCommission, blocked, err := r.chain.GetValidatorPrefs(ctx, stash)
	if err != nil {
		return nil, err
	}
	controller, err := r.chain.GetControllerFromStash(ctx, stash)
	if err != nil {
		return nil, err
	}
	destination, err := r.chain.GetRewardDestination(ctx, stash)
	if err != nil {
		return nil, err
	}
	bonded, err := r.chain.GetBondedAmount(ctx, stash)
	if err != nil {
		return nil, err
	}
	identity, err := r.chain.GetFormattedIdentity(ctx, stash)
	if err != nil {
		return nil, err
	}

	prefs := &store.ValidatorPreferences{
		Commission:        chain.CommissionToPercent(rawCommission),
		Controller:        controller,
		RewardDestination: destination,
		Blocked:           blocked,
	}
	prefs.Bonded, _ = new(big.Float).SetInt(bonded).Float64()
	if identity != nil {
		prefs.Identity = &store.Identity{Name: identity.Name, Sub: identity.Sub, Verified: identity.Verified}
	}
	return prefs, nil
}

// SessionKeyJob refreshes queued and next session keys.
func (r *Runner) SessionKeyJob(ctx context.Context) error {
	queued, err := r.chain.GetQueuedKeys(ctx)
	if err != nil {
		return err
	}
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		if keys, ok := queued[candidate.Stash]; ok {
			if err := r.db.SetQueuedKeys(ctx, candidate.Stash, keys); err != nil {
				log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to store queued keys")
			}
		}
		nextKeys, err := r.chain.GetNextKeys(ctx, candidate.Stash)
		if err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to fetch next keys")
			continue
		}
		if err := r.db.SetNextKeys(ctx, candidate.Stash, nextKeys); err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to store next keys")
		}
	}
	return nil
}

// UnclaimedErasJob refreshes unclaimed-era sets and their invalidity
// verdict.
func (r *Runner) UnclaimedErasJob(ctx context.Context) error {
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	for i := range candidates {
		candidate := &candidates[i]
		eras, err := r.chain.GetUnclaimedEras(ctx, candidate.Stash)
		if err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to fetch unclaimed eras")
			continue
		}
		if err := r.db.SetUnclaimedEras(ctx, candidate.Stash, eras); err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to store unclaimed eras")
			continue
		}
		candidate.UnclaimedEras = eras
		if err := r.checker.SetUnclaimedInvalidity(ctx, candidate); err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to judge unclaimed eras")
		}
	}
	return nil
}

// InclusionJob derives the inclusion fractions from the persisted
// era-point rows. It reads whatever the era-points job has landed so
// far and converges as that fills in.
func (r *Runner) InclusionJob(ctx context.Context) error {
	activeEra, err := r.chain.GetActiveEraIndex(ctx)
	if err != nil {
		return err
	}
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		inclusion, err := r.inclusionOver(ctx, candidate.Stash, activeEra, eraWindow)
		if err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to derive inclusion")
			continue
		}
		span, err := r.inclusionOver(ctx, candidate.Stash, activeEra, spanWindow)
		if err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to derive span inclusion")
			continue
		}
		if err := r.db.SetInclusion(ctx, candidate.Stash, inclusion); err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to store inclusion")
			continue
		}
		if err := r.db.SetSpanInclusion(ctx, candidate.Stash, span); err != nil {
			log.WithError(err).WithField("candidate", candidate.Name).Warn("Failed to store span inclusion")
		}
	}
	return nil
}

func (r *Runner) inclusionOver(ctx context.Context, stash string, activeEra, window uint64) (float64, error) {
	var startEra uint64
	if activeEra > window {
		startEra = activeEra - window
	}
	rows, err := r.db.GetEraPointsRange(ctx, stash, startEra, activeEra)
	if err != nil {
		return 0, err
	}
	var included uint64
	for _, row := range rows {
		if row.EraPoints > 0 {
			included++
		}
	}
	return float64(included) / float64(window), nil
}
