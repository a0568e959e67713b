// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package store

import "context"

// Database is the persistence surface shared by the jobs and the
// constraint evaluator. The Mongo-backed Store implements it; tests
// use the in-memory fake under storetest. Every write is a
// find-and-update on a stable key; missing-record writes are no-ops
// that never create partial candidates.
type Database interface {
	// Candidates.
	AddCandidate(ctx context.Context, name, stash, kusamaStash string) error
	GetCandidate(ctx context.Context, stash string) (*Candidate, error)
	GetCandidateByName(ctx context.Context, name string) (*Candidate, error)
	AllCandidates(ctx context.Context) ([]Candidate, error)
	SetActive(ctx context.Context, stash string, active bool) error
	SetValidatorPreferences(ctx context.Context, stash string, prefs ValidatorPreferences) error
	SetQueuedKeys(ctx context.Context, stash, keys string) error
	SetNextKeys(ctx context.Context, stash, keys string) error
	SetInclusion(ctx context.Context, stash string, inclusion float64) error
	SetSpanInclusion(ctx context.Context, stash string, spanInclusion float64) error
	SetUnclaimedEras(ctx context.Context, stash string, eras []uint64) error
	SetNominatedAt(ctx context.Context, stash string, now int64) error
	ClearAccumulatedOfflineTime(ctx context.Context) error
	SetInvalidity(ctx context.Context, stash string, t InvalidityType, valid bool, details string) error
	SetValid(ctx context.Context, stash string, valid bool) error
	AddPoint(ctx context.Context, stash string, startEra, activeEra uint64) error
	DockPoints(ctx context.Context, stash, reason string) error
	ForgiveDockedPoints(ctx context.Context, stash string) error

	// Telemetry-facing candidate bookkeeping.
	ReportOnline(ctx context.Context, telemetryID int64, name, version string, now int64) error
	ReportOffline(ctx context.Context, telemetryID int64, now int64) error
	ReportBestBlock(ctx context.Context, telemetryID int64, height uint64, now int64) error

	// Nominators and nominations.
	AddNominator(ctx context.Context, address, stash, proxy string, bonded float64, now int64) error
	GetNominator(ctx context.Context, address string) (*Nominator, error)
	AllNominators(ctx context.Context) ([]Nominator, error)
	SetCurrentTargets(ctx context.Context, address string, targets []string, now int64) error
	RemoveStaleNominators(ctx context.Context, keep []string) error
	SetNomination(ctx context.Context, address string, era uint64, validators []string, bonded float64, blockHash string, now int64) error
	GetNomination(ctx context.Context, address string, era uint64) (*Nomination, error)

	// Era points.
	SetEraPoints(ctx context.Context, era uint64, address string, points uint64) error
	GetEraPoints(ctx context.Context, era uint64, address string) (*EraPoints, error)
	GetEraPointsRange(ctx context.Context, address string, startEra, endEra uint64) ([]EraPoints, error)
	SetTotalEraPoints(ctx context.Context, era uint64, total uint64, validators []EraPoints) error
	GetTotalEraPoints(ctx context.Context, era uint64) (*TotalEraPoints, error)

	// Era stats.
	SetEraStats(ctx context.Context, era uint64, when int64, totalNodes, valid, active int) error
	GetLatestEraStats(ctx context.Context) (*EraStats, error)

	// Scores.
	SetValidatorScore(ctx context.Context, score ValidatorScore) error
	GetValidatorScore(ctx context.Context, address string) (*ValidatorScore, error)
	SetValidatorScoreMetadata(ctx context.Context, meta ValidatorScoreMetadata) error
	GetValidatorScoreMetadata(ctx context.Context) (*ValidatorScoreMetadata, error)

	// Delayed transactions.
	AddDelayedTx(ctx context.Context, tx DelayedTx) error
	AllDelayedTxs(ctx context.Context) ([]DelayedTx, error)
	DeleteDelayedTx(ctx context.Context, number uint64, controller string) error

	// Releases, chain metadata, era markers.
	SetRelease(ctx context.Context, name string, publishedAt int64) error
	GetLatestRelease(ctx context.Context) (*Release, error)
	SetChainMetadata(ctx context.Context, name string, decimals int) error
	GetChainMetadata(ctx context.Context) (*ChainMetadata, error)
	SetLastNominatedEraIndex(ctx context.Context, era uint64) error
	GetLastNominatedEraIndex(ctx context.Context) (uint64, error)
}

// ValidatorPreferences is the bundle of chain-derived candidate
// attributes refreshed together by the validator-pref job.
type ValidatorPreferences struct {
	Commission        float64
	Controller        string
	RewardDestination string
	Bonded            float64
	Blocked           bool
	Identity          *Identity
}
