// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

// Package chaintest provides a configurable in-memory chain.Adapter
// for job and evaluator tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/validorg/otv-backend/chain"
)

// Adapter serves canned chain state. Fields are plain data; populate
// what the test needs and leave the rest zero.
type Adapter struct {
	ActiveEra     uint64
	CurrentEraNum uint64
	LatestBlock   uint64
	Validators    []string
	EraPoints     map[uint64]*chain.EraPointsInfo
	Identities    map[string]*chain.Identity
	Commissions   map[string]uint64
	BlockedPrefs  map[string]bool
	Intentions    map[string]bool
	Controllers   map[string]string
	Destinations  map[string]string
	Bonded        map[string]*big.Int
	Unclaimed     map[string][]uint64
	QueuedKeys    map[string]string
	NextKeys      map[string]string
	Announcements map[string][]chain.ProxyAnnouncement
	Nominations   map[string]*chain.NominationRecord
	Nominators    map[string][]string
	Balances      map[string]*big.Int
	Metadata      *chain.Metadata

	// Err, when set, is returned from every call to exercise the
	// transient-failure paths.
	Err error

	// EraPointsCalls counts GetTotalEraPoints invocations per era.
	// Guarded by mu; the era-points job fans out.
	EraPointsCalls map[uint64]int

	mu sync.Mutex
}

var _ chain.Adapter = (*Adapter)(nil)

// New returns an empty fake.
func New() *Adapter {
	return &Adapter{
		EraPoints:      make(map[uint64]*chain.EraPointsInfo),
		Identities:     make(map[string]*chain.Identity),
		Commissions:    make(map[string]uint64),
		BlockedPrefs:   make(map[string]bool),
		Intentions:     make(map[string]bool),
		Controllers:    make(map[string]string),
		Destinations:   make(map[string]string),
		Bonded:         make(map[string]*big.Int),
		Unclaimed:      make(map[string][]uint64),
		QueuedKeys:     make(map[string]string),
		NextKeys:       make(map[string]string),
		Announcements:  make(map[string][]chain.ProxyAnnouncement),
		Nominations:    make(map[string]*chain.NominationRecord),
		Nominators:     make(map[string][]string),
		Balances:       make(map[string]*big.Int),
		EraPointsCalls: make(map[uint64]int),
	}
}

func (a *Adapter) GetActiveEraIndex(context.Context) (uint64, error) {
	return a.ActiveEra, a.Err
}

func (a *Adapter) GetCurrentEra(context.Context) (uint64, error) {
	return a.CurrentEraNum, a.Err
}

func (a *Adapter) GetTotalEraPoints(_ context.Context, era uint64) (*chain.EraPointsInfo, error) {
	a.mu.Lock()
	a.EraPointsCalls[era]++
	a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	if info, ok := a.EraPoints[era]; ok {
		return info, nil
	}
	return &chain.EraPointsInfo{Era: era}, nil
}

func (a *Adapter) CurrentValidators(context.Context) ([]string, error) {
	return a.Validators, a.Err
}

func (a *Adapter) GetFormattedIdentity(_ context.Context, stash string) (*chain.Identity, error) {
	return a.Identities[stash], a.Err
}

func (a *Adapter) GetCommission(_ context.Context, stash string) (uint64, error) {
	return a.Commissions[stash], a.Err
}

func (a *Adapter) GetValidatorPrefs(_ context.Context, stash string) (uint64, bool, error) {
	return a.Commissions[stash], a.BlockedPrefs[stash], a.Err
}

func (a *Adapter) GetValidateIntention(_ context.Context, stash string) (bool, error) {
	return a.Intentions[stash], a.Err
}

func (a *Adapter) GetControllerFromStash(_ context.Context, stash string) (string, error) {
	return a.Controllers[stash], a.Err
}

func (a *Adapter) GetRewardDestination(_ context.Context, stash string) (string, error) {
	return a.Destinations[stash], a.Err
}

func (a *Adapter) GetBondedAmount(_ context.Context, stash string) (*big.Int, error) {
	if bonded, ok := a.Bonded[stash]; ok {
		return bonded, a.Err
	}
	return big.NewInt(0), a.Err
}

func (a *Adapter) GetUnclaimedEras(_ context.Context, stash string) ([]uint64, error) {
	return a.Unclaimed[stash], a.Err
}

func (a *Adapter) GetQueuedKeys(context.Context) (map[string]string, error) {
	return a.QueuedKeys, a.Err
}

func (a *Adapter) GetNextKeys(_ context.Context, stash string) (string, error) {
	return a.NextKeys[stash], a.Err
}

func (a *Adapter) GetLatestBlock(context.Context) (uint64, error) {
	return a.LatestBlock, a.Err
}

func (a *Adapter) GetProxyAnnouncements(_ context.Context, address string) ([]chain.ProxyAnnouncement, error) {
	return a.Announcements[address], a.Err
}

func (a *Adapter) GetNominationAt(_ context.Context, stash string, _ uint64) (*chain.NominationRecord, error) {
	return a.Nominations[stash], a.Err
}

func (a *Adapter) GetAllNominators(context.Context) (map[string][]string, error) {
	return a.Nominators, a.Err
}

func (a *Adapter) GetBalance(_ context.Context, address string) (*big.Int, error) {
	if balance, ok := a.Balances[address]; ok {
		return balance, a.Err
	}
	return big.NewInt(0), a.Err
}

func (a *Adapter) GetChainMetadata(context.Context) (*chain.Metadata, error) {
	if a.Metadata != nil {
		return a.Metadata, a.Err
	}
	return &chain.Metadata{Name: "Development", Decimals: 12}, a.Err
}
