// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package constraints

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/store"
)

var log = logrus.WithField("prefix", "constraints")

// SiblingRankFunc resolves a candidate's rank on the sibling chain.
// Nil disables the KUSAMA_RANK rule.
type SiblingRankFunc func(ctx context.Context, stash string) (int, error)

// Checker computes per-candidate invalidity verdicts and the fleet
// score. It holds no state between runs; the store is the only shared
// state.
type Checker struct {
	db          store.Database
	chain       chain.Adapter
	cfg         config.ConstraintsConfig
	prefix      uint16
	siblingRank SiblingRankFunc

	nowMillis func() int64
}

// NewChecker wires a checker against the shared store and chain
// adapter.
func NewChecker(db store.Database, adapter chain.Adapter, cfg config.ConstraintsConfig, prefix uint16, siblingRank SiblingRankFunc) *Checker {
	return &Checker{
		db:          db,
		chain:       adapter,
		cfg:         cfg,
		prefix:      prefix,
		siblingRank: siblingRank,
		nowMillis:   func() int64 { return time.Now().UnixMilli() },
	}
}

// CheckCandidate writes every invalidity verdict for one candidate
// and then folds them into the overall valid flag. A chain failure
// aborts this candidate only; the caller moves on to the next.
func (c *Checker) CheckCandidate(ctx context.Context, candidate *store.Candidate) error {
	if err := c.SetOnlineInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetValidateIntentionInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetClientUpgradeInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetConnectionTimeInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetIdentityInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetOfflineAccumulatedInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetRewardDestinationInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetCommissionInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetSelfStakeInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetUnclaimedInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetBlockedInvalidity(ctx, candidate); err != nil {
		return err
	}
	if err := c.SetKusamaRankInvalidity(ctx, candidate); err != nil {
		return err
	}
	return c.FoldValidity(ctx, candidate.Stash)
}

// FoldValidity sets the overall flag to the conjunction of the
// current invalidity entries.
func (c *Checker) FoldValidity(ctx context.Context, stash string) error {
	current, err := c.db.GetCandidate(ctx, stash)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	return c.db.SetValid(ctx, stash, current.ComputeValid())
}

func (c *Checker) SetOnlineInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := candidate.OnlineSince > 0 && candidate.OfflineSince == 0
	details := ""
	if !valid {
		details = fmt.Sprintf("%s offline. Offline since %d.", candidate.Name, candidate.OfflineSince)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityOnline, valid, details)
}

func (c *Checker) SetValidateIntentionInvalidity(ctx context.Context, candidate *store.Candidate) error {
	intends, err := c.chain.GetValidateIntention(ctx, candidate.Stash)
	if err != nil {
		return errors.Wrapf(err, "validate intention for %s", candidate.Name)
	}
	details := ""
	if !intends {
		details = fmt.Sprintf("%s does not have a validate intention.", candidate.Name)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityValidateIntention, intends, details)
}

func (c *Checker) SetClientUpgradeInvalidity(ctx context.Context, candidate *store.Candidate) error {
	release, err := c.db.GetLatestRelease(ctx)
	if err != nil {
		return err
	}
	valid := true
	details := ""
	switch {
	case release == nil:
		// No release on record yet, nothing to hold against anyone.
	case candidate.Updated:
	case versionAtLeast(candidate.Version, release.Name):
	case c.nowMillis()-release.PublishedAt < c.cfg.ClientUpgradeGrace.Milliseconds():
	default:
		valid = false
		details = fmt.Sprintf("%s is not on the latest client version (%s).", candidate.Name, release.Name)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityClientUpgrade, valid, details)
}

func (c *Checker) SetConnectionTimeInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := c.nowMillis()-candidate.DiscoveredAt > c.cfg.MinConnectionTime.Milliseconds()
	details := ""
	if !valid {
		details = fmt.Sprintf("%s has not been connected for the minimum length.", candidate.Name)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityConnectionTime, valid, details)
}

func (c *Checker) SetIdentityInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := candidate.Identity != nil && candidate.Identity.Verified
	details := ""
	if !valid {
		details = fmt.Sprintf("%s does not have a verified identity.", candidate.Name)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityIdentity, valid, details)
}

func (c *Checker) SetOfflineAccumulatedInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := candidate.OfflineAccumulated < c.cfg.MaxOfflineTime.Milliseconds()
	details := ""
	if !valid {
		details = fmt.Sprintf("%s has been offline %d minutes this week.", candidate.Name, candidate.OfflineAccumulated/60000)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityAccumulatedOffline, valid, details)
}

func (c *Checker) SetRewardDestinationInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := candidate.RewardDestination == chain.RewardDestinationStaked
	details := ""
	if !valid {
		details = fmt.Sprintf("%s does not have reward destination set to Staked.", candidate.Name)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityRewardDestination, valid, details)
}

func (c *Checker) SetCommissionInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := candidate.Commission <= c.cfg.Commission
	details := ""
	if !valid {
		details = fmt.Sprintf("%s commission is %v%%, above the programme cap of %v%%.", candidate.Name, candidate.Commission, c.cfg.Commission)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityCommission, valid, details)
}

func (c *Checker) SetSelfStakeInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := candidate.Bonded >= c.cfg.MinSelfStake
	details := ""
	if !valid {
		details = fmt.Sprintf("%s has less than the minimum amount bonded.", candidate.Name)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvaliditySelfStake, valid, details)
}

// SetUnclaimedInvalidity fails a candidate carrying an unclaimed era
// older than the network threshold.
func (c *Checker) SetUnclaimedInvalidity(ctx context.Context, candidate *store.Candidate) error {
	activeEra, err := c.chain.GetActiveEraIndex(ctx)
	if err != nil {
		return errors.Wrapf(err, "active era for %s", candidate.Name)
	}
	threshold := chain.UnclaimedEraThreshold(c.prefix)
	valid := true
	details := ""
	if activeEra > threshold {
		cutoff := activeEra - threshold
		for _, era := range candidate.UnclaimedEras {
			if era < cutoff {
				valid = false
				details = fmt.Sprintf("%s has unclaimed rewards in era %d.", candidate.Name, era)
				break
			}
		}
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityUnclaimedRewards, valid, details)
}

func (c *Checker) SetBlockedInvalidity(ctx context.Context, candidate *store.Candidate) error {
	valid := !candidate.Blocked
	details := ""
	if !valid {
		details = fmt.Sprintf("%s blocks external nominations.", candidate.Name)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityBlocked, valid, details)
}

func (c *Checker) SetKusamaRankInvalidity(ctx context.Context, candidate *store.Candidate) error {
	if candidate.KusamaStash == "" || c.siblingRank == nil {
		return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityKusamaRank, true, "")
	}
	rank, err := c.siblingRank(ctx, candidate.KusamaStash)
	if err != nil {
		return errors.Wrapf(err, "sibling rank for %s", candidate.Name)
	}
	valid := rank >= c.cfg.MinKusamaRank
	details := ""
	if !valid {
		details = fmt.Sprintf("%s has a Kusama rank of %d, below the minimum.", candidate.Name, rank)
	}
	return c.db.SetInvalidity(ctx, candidate.Stash, store.InvalidityKusamaRank, valid, details)
}

// versionAtLeast reports whether a node version satisfies a release
// tag. Both sides tolerate a leading v and build suffixes.
func versionAtLeast(version, release string) bool {
	have := parseVersion(version)
	want := parseVersion(release)
	if have == nil || want == nil {
		return false
	}
	for i := 0; i < 3; i++ {
		if have[i] != want[i] {
			return have[i] > want[i]
		}
	}
	return true
}

func parseVersion(s string) []int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+ "); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) < 3 {
		return nil
	}
	version := make([]int, 3)
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return nil
		}
		version[i] = n
	}
	return version
}
