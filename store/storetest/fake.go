// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

// Package storetest provides an in-memory store.Database for job and
// evaluator tests. Semantics mirror the Mongo store: find-and-update
// on stable keys, no-op writes for missing candidates, idempotent
// era-point rows.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/validorg/otv-backend/store"
)

// DB is an in-memory store.Database. Writes is a per-operation
// counter so tests can assert idempotence.
type DB struct {
	mu sync.Mutex

	Candidates  map[string]*store.Candidate // keyed on stash
	Nominators  map[string]*store.Nominator // keyed on address
	Nominations map[nominationKey]*store.Nomination
	Points      map[pointsKey]*store.EraPoints
	Totals      map[uint64]*store.TotalEraPoints
	Stats       map[uint64]*store.EraStats
	Scores      map[string]*store.ValidatorScore
	ScoreMeta   *store.ValidatorScoreMetadata
	DelayedTxs  []store.DelayedTx
	Releases    []store.Release
	ChainMeta   *store.ChainMetadata
	LastNomEra  uint64

	Now    int64
	Writes map[string]int
}

type nominationKey struct {
	Address string
	Era     uint64
}

type pointsKey struct {
	Era     uint64
	Address string
}

var _ store.Database = (*DB)(nil)

// New returns an empty fake with the clock pinned at now.
func New(now int64) *DB {
	return &DB{
		Candidates:  make(map[string]*store.Candidate),
		Nominators:  make(map[string]*store.Nominator),
		Nominations: make(map[nominationKey]*store.Nomination),
		Points:      make(map[pointsKey]*store.EraPoints),
		Totals:      make(map[uint64]*store.TotalEraPoints),
		Stats:       make(map[uint64]*store.EraStats),
		Scores:      make(map[string]*store.ValidatorScore),
		Now:         now,
		Writes:      make(map[string]int),
	}
}

func (d *DB) wrote(op string) {
	d.Writes[op]++
}

// WriteCount returns the number of writes recorded for one operation.
func (d *DB) WriteCount(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Writes[op]
}

func (d *DB) AddCandidate(_ context.Context, name, stash, kusamaStash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("AddCandidate")
	for _, c := range d.Candidates {
		if c.Name == name {
			c.Stash = stash
			c.KusamaStash = kusamaStash
			return nil
		}
	}
	d.Candidates[stash] = &store.Candidate{
		Name:         name,
		Stash:        stash,
		KusamaStash:  kusamaStash,
		DiscoveredAt: d.Now,
	}
	return nil
}

func (d *DB) GetCandidate(_ context.Context, stash string) (*store.Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.Candidates[stash]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (d *DB) GetCandidateByName(_ context.Context, name string) (*store.Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.Candidates {
		if c.Name == name {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (d *DB) AllCandidates(_ context.Context) ([]store.Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	candidates := make([]store.Candidate, 0, len(d.Candidates))
	for _, c := range d.Candidates {
		candidates = append(candidates, *c)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates, nil
}

// mutateCandidate applies fn under the lock; a missing stash is a
// silent no-op, matching the Mongo store.
func (d *DB) mutateCandidate(op, stash string, fn func(*store.Candidate)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.Candidates[stash]
	if !ok {
		return nil
	}
	d.wrote(op)
	fn(c)
	return nil
}

func (d *DB) SetActive(_ context.Context, stash string, active bool) error {
	return d.mutateCandidate("SetActive", stash, func(c *store.Candidate) {
		c.Active = active
	})
}

func (d *DB) SetValidatorPreferences(_ context.Context, stash string, prefs store.ValidatorPreferences) error {
	return d.mutateCandidate("SetValidatorPreferences", stash, func(c *store.Candidate) {
		c.Commission = prefs.Commission
		c.Controller = prefs.Controller
		c.RewardDestination = prefs.RewardDestination
		c.Bonded = prefs.Bonded
		c.Blocked = prefs.Blocked
		c.Identity = prefs.Identity
	})
}

func (d *DB) SetQueuedKeys(_ context.Context, stash, keys string) error {
	return d.mutateCandidate("SetQueuedKeys", stash, func(c *store.Candidate) {
		c.QueuedKeys = keys
	})
}

func (d *DB) SetNextKeys(_ context.Context, stash, keys string) error {
	return d.mutateCandidate("SetNextKeys", stash, func(c *store.Candidate) {
		c.NextKeys = keys
	})
}

func (d *DB) SetInclusion(_ context.Context, stash string, inclusion float64) error {
	return d.mutateCandidate("SetInclusion", stash, func(c *store.Candidate) {
		c.Inclusion = inclusion
	})
}

func (d *DB) SetSpanInclusion(_ context.Context, stash string, spanInclusion float64) error {
	return d.mutateCandidate("SetSpanInclusion", stash, func(c *store.Candidate) {
		c.SpanInclusion = spanInclusion
	})
}

func (d *DB) SetUnclaimedEras(_ context.Context, stash string, eras []uint64) error {
	return d.mutateCandidate("SetUnclaimedEras", stash, func(c *store.Candidate) {
		c.UnclaimedEras = eras
	})
}

func (d *DB) SetNominatedAt(_ context.Context, stash string, now int64) error {
	return d.mutateCandidate("SetNominatedAt", stash, func(c *store.Candidate) {
		c.NominatedAt = now
	})
}

func (d *DB) ClearAccumulatedOfflineTime(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("ClearAccumulatedOfflineTime")
	for _, c := range d.Candidates {
		c.OfflineAccumulated = 0
	}
	return nil
}

func (d *DB) SetInvalidity(_ context.Context, stash string, t store.InvalidityType, valid bool, details string) error {
	return d.mutateCandidate("SetInvalidity", stash, func(c *store.Candidate) {
		c.SetInvalidity(t, valid, details, d.Now)
	})
}

func (d *DB) SetValid(_ context.Context, stash string, valid bool) error {
	return d.mutateCandidate("SetValid", stash, func(c *store.Candidate) {
		c.Valid = valid
	})
}

func (d *DB) AddPoint(_ context.Context, stash string, startEra, activeEra uint64) error {
	return d.mutateCandidate("AddPoint", stash, func(c *store.Candidate) {
		c.Rank++
		c.RankEvents = append(c.RankEvents, store.RankEvent{When: d.Now, StartEra: startEra, ActiveEra: activeEra})
	})
}

func (d *DB) DockPoints(_ context.Context, stash, reason string) error {
	return d.mutateCandidate("DockPoints", stash, func(c *store.Candidate) {
		c.Rank = store.DockedRank(c.Rank)
		c.Faults++
		c.FaultEvents = append(c.FaultEvents, store.FaultEvent{When: d.Now, Reason: reason})
	})
}

func (d *DB) ForgiveDockedPoints(_ context.Context, stash string) error {
	return d.mutateCandidate("ForgiveDockedPoints", stash, func(c *store.Candidate) {
		c.Rank = store.ForgivenRank(c.Rank)
		c.Faults--
	})
}

func (d *DB) ReportOnline(_ context.Context, telemetryID int64, name, version string, now int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.Candidates {
		if c.Name != name {
			continue
		}
		d.wrote("ReportOnline")
		if c.OfflineSince > 0 {
			c.OfflineAccumulated += now - c.OfflineSince
		}
		if c.OnlineSince == 0 || c.OfflineSince > 0 {
			c.OnlineSince = now
		}
		c.OfflineSince = 0
		c.TelemetryID = telemetryID
		c.Version = version
		c.NodeRefs++
		return nil
	}
	return nil
}

func (d *DB) ReportOffline(_ context.Context, telemetryID int64, now int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.Candidates {
		if c.TelemetryID != telemetryID {
			continue
		}
		d.wrote("ReportOffline")
		if c.NodeRefs <= 1 {
			c.OfflineSince = now
			c.OnlineSince = 0
		}
		c.NodeRefs--
		return nil
	}
	return nil
}

func (d *DB) ReportBestBlock(_ context.Context, telemetryID int64, height uint64, now int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("ReportBestBlock")
	return nil
}

func (d *DB) AddNominator(_ context.Context, address, stash, proxy string, bonded float64, now int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("AddNominator")
	if n, ok := d.Nominators[address]; ok {
		n.Stash = stash
		n.Proxy = proxy
		n.Bonded = bonded
		return nil
	}
	d.Nominators[address] = &store.Nominator{
		Address: address, Stash: stash, Proxy: proxy, Bonded: bonded, CreatedAt: now,
	}
	return nil
}

func (d *DB) GetNominator(_ context.Context, address string) (*store.Nominator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.Nominators[address]
	if !ok {
		return nil, nil
	}
	clone := *n
	return &clone, nil
}

func (d *DB) AllNominators(_ context.Context) ([]store.Nominator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nominators := make([]store.Nominator, 0, len(d.Nominators))
	for _, n := range d.Nominators {
		nominators = append(nominators, *n)
	}
	sort.Slice(nominators, func(i, j int) bool { return nominators[i].Address < nominators[j].Address })
	return nominators, nil
}

func (d *DB) SetCurrentTargets(_ context.Context, address string, targets []string, now int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.Nominators[address]
	if !ok {
		return nil
	}
	d.wrote("SetCurrentTargets")
	n.Current = targets
	n.LastNomination = now
	return nil
}

func (d *DB) RemoveStaleNominators(_ context.Context, keep []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("RemoveStaleNominators")
	keepSet := make(map[string]struct{}, len(keep))
	for _, address := range keep {
		keepSet[address] = struct{}{}
	}
	for address := range d.Nominators {
		if _, ok := keepSet[address]; !ok {
			delete(d.Nominators, address)
		}
	}
	return nil
}

func (d *DB) SetNomination(_ context.Context, address string, era uint64, validators []string, bonded float64, blockHash string, now int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := nominationKey{Address: address, Era: era}
	if existing, ok := d.Nominations[key]; ok && existing.BlockHash != "" {
		return nil
	}
	d.wrote("SetNomination")
	d.Nominations[key] = &store.Nomination{
		Address: address, Era: era, Validators: validators,
		Bonded: bonded, BlockHash: blockHash, Timestamp: now,
	}
	return nil
}

func (d *DB) GetNomination(_ context.Context, address string, era uint64) (*store.Nomination, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.Nominations[nominationKey{Address: address, Era: era}]
	if !ok {
		return nil, nil
	}
	clone := *n
	return &clone, nil
}

func (d *DB) SetEraPoints(_ context.Context, era uint64, address string, points uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pointsKey{Era: era, Address: address}
	if existing, ok := d.Points[key]; ok && existing.EraPoints == points {
		return nil
	}
	d.wrote("SetEraPoints")
	d.Points[key] = &store.EraPoints{Era: era, Address: address, EraPoints: points}
	return nil
}

func (d *DB) GetEraPoints(_ context.Context, era uint64, address string) (*store.EraPoints, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	row, ok := d.Points[pointsKey{Era: era, Address: address}]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (d *DB) GetEraPointsRange(_ context.Context, address string, startEra, endEra uint64) ([]store.EraPoints, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var rows []store.EraPoints
	for key, row := range d.Points {
		if key.Address == address && key.Era >= startEra && key.Era < endEra {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Era < rows[j].Era })
	return rows, nil
}

func (d *DB) SetTotalEraPoints(_ context.Context, era uint64, total uint64, validators []store.EraPoints) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.Totals[era]; ok && existing.TotalEraPoints >= 70000 && existing.Median != nil {
		return nil
	}
	d.wrote("SetTotalEraPoints")
	row := &store.TotalEraPoints{Era: era, TotalEraPoints: total, ValidatorsEraPoints: validators}
	if len(validators) > 0 {
		points := make([]uint64, len(validators))
		var sum uint64
		for i, v := range validators {
			points[i] = v.EraPoints
			sum += v.EraPoints
		}
		sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
		mid := len(points) / 2
		var median float64
		if len(points)%2 == 1 {
			median = float64(points[mid])
		} else {
			median = float64(points[mid-1]+points[mid]) / 2
		}
		average := float64(sum) / float64(len(points))
		max, min := points[len(points)-1], points[0]
		row.Median, row.Average, row.Max, row.Min = &median, &average, &max, &min
	}
	d.Totals[era] = row
	return nil
}

func (d *DB) GetTotalEraPoints(_ context.Context, era uint64) (*store.TotalEraPoints, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	row, ok := d.Totals[era]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (d *DB) SetEraStats(_ context.Context, era uint64, when int64, totalNodes, valid, active int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("SetEraStats")
	d.Stats[era] = &store.EraStats{Era: era, When: when, TotalNodes: totalNodes, Valid: valid, Active: active}
	return nil
}

func (d *DB) GetLatestEraStats(_ context.Context) (*store.EraStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var latest *store.EraStats
	for _, row := range d.Stats {
		if latest == nil || row.Era > latest.Era {
			latest = row
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (d *DB) SetValidatorScore(_ context.Context, score store.ValidatorScore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("SetValidatorScore")
	clone := score
	d.Scores[score.Address] = &clone
	return nil
}

func (d *DB) GetValidatorScore(_ context.Context, address string) (*store.ValidatorScore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	score, ok := d.Scores[address]
	if !ok {
		return nil, nil
	}
	clone := *score
	return &clone, nil
}

func (d *DB) SetValidatorScoreMetadata(_ context.Context, meta store.ValidatorScoreMetadata) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("SetValidatorScoreMetadata")
	clone := meta
	d.ScoreMeta = &clone
	return nil
}

func (d *DB) GetValidatorScoreMetadata(_ context.Context) (*store.ValidatorScoreMetadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ScoreMeta == nil {
		return nil, nil
	}
	clone := *d.ScoreMeta
	return &clone, nil
}

func (d *DB) AddDelayedTx(_ context.Context, tx store.DelayedTx) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.DelayedTxs {
		if existing.Number == tx.Number && existing.Controller == tx.Controller {
			d.DelayedTxs[i] = tx
			return nil
		}
	}
	d.wrote("AddDelayedTx")
	d.DelayedTxs = append(d.DelayedTxs, tx)
	return nil
}

func (d *DB) AllDelayedTxs(_ context.Context) ([]store.DelayedTx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	txs := make([]store.DelayedTx, len(d.DelayedTxs))
	copy(txs, d.DelayedTxs)
	return txs, nil
}

func (d *DB) DeleteDelayedTx(_ context.Context, number uint64, controller string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("DeleteDelayedTx")
	kept := d.DelayedTxs[:0]
	for _, tx := range d.DelayedTxs {
		if tx.Number != number || tx.Controller != controller {
			kept = append(kept, tx)
		}
	}
	d.DelayedTxs = kept
	return nil
}

func (d *DB) SetRelease(_ context.Context, name string, publishedAt int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, r := range d.Releases {
		if r.Name == name {
			d.Releases[i].PublishedAt = publishedAt
			return nil
		}
	}
	d.wrote("SetRelease")
	d.Releases = append(d.Releases, store.Release{Name: name, PublishedAt: publishedAt})
	return nil
}

func (d *DB) GetLatestRelease(_ context.Context) (*store.Release, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var latest *store.Release
	for i := range d.Releases {
		if latest == nil || d.Releases[i].PublishedAt > latest.PublishedAt {
			latest = &d.Releases[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (d *DB) SetChainMetadata(_ context.Context, name string, decimals int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ChainMeta != nil {
		return nil
	}
	d.wrote("SetChainMetadata")
	d.ChainMeta = &store.ChainMetadata{Name: name, Decimals: decimals}
	return nil
}

func (d *DB) GetChainMetadata(_ context.Context) (*store.ChainMetadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ChainMeta == nil {
		return nil, nil
	}
	clone := *d.ChainMeta
	return &clone, nil
}

func (d *DB) SetLastNominatedEraIndex(_ context.Context, era uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote("SetLastNominatedEraIndex")
	d.LastNomEra = era
	return nil
}

func (d *DB) GetLastNominatedEraIndex(_ context.Context) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.LastNomEra, nil
}
