// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package chain

import (
	"context"
	"math/big"
)

// Network SS58 prefixes recognized by the programme.
const (
	PolkadotPrefix uint16 = 0
	KusamaPrefix   uint16 = 2
	TestnetPrefix  uint16 = 42
)

// Commission on chain is expressed in parts per billion.
const commissionScale = 10_000_000

// RewardDestinationStaked is the only reward destination the programme
// accepts from candidates.
const RewardDestinationStaked = "Staked"

// Identity is a validator's on-chain identity record.
type Identity struct {
	Name     string
	Sub      string
	Verified bool
}

// ValidatorEraPoints is a single validator's point count within an era.
type ValidatorEraPoints struct {
	Address   string
	EraPoints uint64
}

// EraPointsInfo is the chain's per-era reward point summary.
type EraPointsInfo struct {
	Era        uint64
	Total      uint64
	Validators []ValidatorEraPoints
}

// ProxyAnnouncement is a pending announced proxy call.
type ProxyAnnouncement struct {
	Real     string
	CallHash string
	Height   uint64
}

// NominationRecord is a nominator's exposure as submitted on chain.
type NominationRecord struct {
	Targets     []string
	SubmittedIn uint64
}

// Metadata holds the chain's display name and token decimals.
type Metadata struct {
	Name     string
	Decimals int
}

// Adapter is the pull-only view of the chain consumed by the jobs and
// the constraint evaluator. Implementations must be safe for use from
// concurrently running jobs.
type Adapter interface {
	GetActiveEraIndex(ctx context.Context) (uint64, error)
	GetCurrentEra(ctx context.Context) (uint64, error)
	GetTotalEraPoints(ctx context.Context, era uint64) (*EraPointsInfo, error)
	CurrentValidators(ctx context.Context) ([]string, error)
	GetFormattedIdentity(ctx context.Context, stash string) (*Identity, error)
	GetCommission(ctx context.Context, stash string) (uint64, error)
	GetValidatorPrefs(ctx context.Context, stash string) (commission uint64, blocked bool, err error)
	GetValidateIntention(ctx context.Context, stash string) (bool, error)
	GetControllerFromStash(ctx context.Context, stash string) (string, error)
	GetRewardDestination(ctx context.Context, stash string) (string, error)
	GetBondedAmount(ctx context.Context, stash string) (*big.Int, error)
	GetUnclaimedEras(ctx context.Context, stash string) ([]uint64, error)
	GetQueuedKeys(ctx context.Context) (map[string]string, error)
	GetNextKeys(ctx context.Context, stash string) (string, error)
	GetLatestBlock(ctx context.Context) (uint64, error)
	GetProxyAnnouncements(ctx context.Context, address string) ([]ProxyAnnouncement, error)
	GetNominationAt(ctx context.Context, stash string, era uint64) (*NominationRecord, error)
	GetAllNominators(ctx context.Context) (map[string][]string, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetChainMetadata(ctx context.Context) (*Metadata, error)
}

// CommissionToPercent converts a raw parts-per-billion commission to
// the percent figure stored on candidates. 50_000_000 -> 5.
func CommissionToPercent(raw uint64) float64 {
	return float64(raw) / commissionScale
}

// ErasPerDay returns the number of reward eras per day on the network
// identified by its SS58 prefix.
func ErasPerDay(prefix uint16) uint64 {
	switch prefix {
	case KusamaPrefix:
		return 4
	default:
		return 1
	}
}

// UnclaimedEraThreshold is the age, in eras, past which an unclaimed
// reward makes a candidate invalid. Four days worth of eras.
func UnclaimedEraThreshold(prefix uint16) uint64 {
	return 4 * ErasPerDay(prefix)
}

// RewardClaimThreshold is the age, in eras, past which the claim job
// claims rewards on behalf of a candidate.
func RewardClaimThreshold(prefix uint16) uint64 {
	return 4 * ErasPerDay(prefix)
}
