// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package jobs

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/validorg/otv-backend/chain"
)

// ExecutionJob executes delayed nomination transactions whose delay
// window has elapsed. A failed submission leaves the row for the next
// tick.
func (r *Runner) ExecutionJob(ctx context.Context) error {
	currentBlock, err := r.chain.GetLatestBlock(ctx)
	if err != nil {
		return err
	}
	txs, err := r.db.AllDelayedTxs(ctx)
	if err != nil {
		return err
	}
	delay := r.cfg.Proxy.TimeDelayBlocks

	for _, tx := range txs {
		if tx.Number+delay > currentBlock {
			continue
		}
		nominator := r.nominatorByController(tx.Controller)
		if nominator == nil {
			log.WithField("controller", tx.Controller).Warn("No nominator for delayed tx")
			continue
		}
		blockHash, err := nominator.SendStakingTx(ctx, tx.Targets)
		if err != nil {
			log.WithError(err).WithField("controller", tx.Controller).Warn("Delayed nomination failed, retrying next tick")
			continue
		}

		currentEra, eraErr := r.chain.GetCurrentEra(ctx)
		if eraErr == nil {
			if err := r.db.SetNomination(ctx, nominator.Address(), currentEra, tx.Targets, 0, blockHash, r.nowMillis()); err != nil {
				log.WithError(err).Warn("Failed to record nomination")
			}
			if err := r.db.SetLastNominatedEraIndex(ctx, currentEra); err != nil {
				log.WithError(err).Warn("Failed to record nominated era")
			}
		}
		for _, target := range tx.Targets {
			if err := r.db.SetNominatedAt(ctx, target, r.nowMillis()); err != nil {
				log.WithError(err).WithField("target", target).Warn("Failed to stamp nomination")
			}
		}
		if err := r.db.DeleteDelayedTx(ctx, tx.Number, tx.Controller); err != nil {
			log.WithError(err).Warn("Failed to delete executed delayed tx")
			continue
		}
		r.notify(fmt.Sprintf("Executed delayed nomination for %s: %s", tx.Controller, strings.Join(tx.Targets, ", ")))
	}
	return nil
}

func (r *Runner) nominatorByController(controller string) Nominator {
	for _, n := range r.nominators {
		if n.Controller() == controller {
			return n
		}
	}
	return nil
}

// RewardClaimJob batches a claim for every sufficiently old unclaimed
// era across the fleet.
func (r *Runner) RewardClaimJob(ctx context.Context) error {
	if r.claimer == nil {
		log.Debug("No claimer configured")
		return nil
	}
	balance, err := r.chain.GetBalance(ctx, r.claimer.Address())
	if err != nil {
		return err
	}
	free, _ := new(big.Float).SetInt(balance).Float64()
	if free < r.cfg.Constraints.ClaimerMinBalance {
		r.notify(fmt.Sprintf("Reward claimer balance low: %s", humanize.Comma(int64(free))))
		return nil
	}

	currentEra, err := r.chain.GetCurrentEra(ctx)
	if err != nil {
		return err
	}
	threshold := chain.RewardClaimThreshold(r.cfg.Global.NetworkPrefix)
	if currentEra <= threshold {
		return nil
	}
	cutoff := currentEra - threshold

	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	var rewards []EraReward
	for _, candidate := range candidates {
		for _, era := range candidate.UnclaimedEras {
			if era < cutoff {
				rewards = append(rewards, EraReward{Era: era, Stash: candidate.Stash})
			}
		}
	}
	if len(rewards) == 0 {
		return nil
	}
	if err := r.claimer.Claim(ctx, rewards); err != nil {
		return err
	}
	r.notify(fmt.Sprintf("Claimed rewards for %d era/stash pairs", len(rewards)))
	return nil
}

// CancelJob cancels proxy announcements that outlived twice the
// execution delay.
func (r *Runner) CancelJob(ctx context.Context) error {
	currentBlock, err := r.chain.GetLatestBlock(ctx)
	if err != nil {
		return err
	}
	window := 2 * r.cfg.Proxy.TimeDelayBlocks
	if currentBlock <= window {
		return nil
	}
	cutoff := currentBlock - window

	for _, nominator := range r.nominators {
		announcements, err := r.chain.GetProxyAnnouncements(ctx, nominator.Address())
		if err != nil {
			log.WithError(err).WithField("nominator", nominator.Address()).Warn("Failed to fetch announcements")
			continue
		}
		for _, announcement := range announcements {
			if announcement.Height >= cutoff {
				continue
			}
			if err := nominator.CancelTx(ctx, announcement); err != nil {
				log.WithError(err).WithField("callHash", announcement.CallHash).Warn("Failed to cancel announcement")
				continue
			}
			r.notify(fmt.Sprintf("Cancelled stale announcement %s for %s", announcement.CallHash, nominator.Address()))
		}
	}
	return nil
}

// StaleJob flags controlled nominators endorsing targets that are no
// longer registered candidates. Notification only; nothing is
// written.
func (r *Runner) StaleJob(ctx context.Context) error {
	nominations, err := r.chain.GetAllNominators(ctx)
	if err != nil {
		return err
	}
	candidates, err := r.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	registered := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		registered[candidate.Stash] = struct{}{}
	}

	for _, nominator := range r.nominators {
		stash, err := nominator.Stash(ctx)
		if err != nil {
			log.WithError(err).WithField("nominator", nominator.Address()).Warn("Failed to resolve nominator stash")
			continue
		}
		for _, target := range nominations[stash] {
			if _, ok := registered[target]; !ok {
				r.notify(fmt.Sprintf("Nominator %s has a stale nomination for %s", stash, target))
			}
		}
	}
	return nil
}
