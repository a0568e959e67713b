// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package constraints

import (
	"context"
	"math/rand"
	"sort"

	"github.com/validorg/otv-backend/store"
)

// Stats summarizes one score component over the valid candidate set.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	Median float64
}

// Median returns the middle element of the values (mean of the two
// middle elements on even length). The second return is false on
// empty input; callers must guard.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// NewStats computes min/max/mean/median. Empty input yields the zero
// Stats and false.
func NewStats(values []float64) (Stats, bool) {
	if len(values) == 0 {
		return Stats{}, false
	}
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	median, _ := Median(values)
	return Stats{Min: min, Max: max, Mean: sum / float64(len(values)), Median: median}, true
}

// Scaled rescales a value against its component statistics into
// [0, 1]. A component with zero variance scales to zero so that a
// population of one still scores cleanly.
func Scaled(value float64, stats Stats) float64 {
	spread := stats.Max - stats.Min
	if spread == 0 {
		return 0
	}
	scaled := (value - stats.Min) / spread
	if scaled < 0 {
		return 0
	}
	if scaled > 1 {
		return 1
	}
	return scaled
}

// ScaledInverse is the lower-is-better direction.
func ScaledInverse(value float64, stats Stats) float64 {
	return 1 - Scaled(value, stats)
}

func (s Stats) snapshot() store.ScoreStats {
	return store.ScoreStats{Min: s.Min, Max: s.Max, Mean: s.Mean, Median: s.Median}
}

// ScoreAllCandidates scores the valid subset of the fleet and
// persists one ValidatorScore per candidate plus the metadata
// snapshot of the statistics and weights used.
func (c *Checker) ScoreAllCandidates(ctx context.Context) error {
	candidates, err := c.db.AllCandidates(ctx)
	if err != nil {
		return err
	}
	var valid []store.Candidate
	for _, candidate := range candidates {
		if candidate.Valid {
			valid = append(valid, candidate)
		}
	}
	if len(valid) == 0 {
		log.Info("No valid candidates to score")
		return nil
	}

	var bonded, faults, inclusion, spanInclusion, discovered, nominated, offline, rank, unclaimed []float64
	for _, candidate := range valid {
		bonded = append(bonded, candidate.Bonded)
		faults = append(faults, float64(candidate.Faults))
		inclusion = append(inclusion, candidate.Inclusion)
		spanInclusion = append(spanInclusion, candidate.SpanInclusion)
		discovered = append(discovered, float64(candidate.DiscoveredAt))
		nominated = append(nominated, float64(candidate.NominatedAt))
		offline = append(offline, float64(candidate.OfflineAccumulated))
		rank = append(rank, float64(candidate.Rank))
		unclaimed = append(unclaimed, float64(len(candidate.UnclaimedEras)))
	}

	bondedStats, _ := NewStats(bonded)
	faultsStats, _ := NewStats(faults)
	inclusionStats, _ := NewStats(inclusion)
	spanInclusionStats, _ := NewStats(spanInclusion)
	discoveredStats, _ := NewStats(discovered)
	nominatedStats, _ := NewStats(nominated)
	offlineStats, _ := NewStats(offline)
	rankStats, _ := NewStats(rank)
	unclaimedStats, _ := NewStats(unclaimed)

	now := c.nowMillis()
	for _, candidate := range valid {
		score := store.ValidatorScore{
			Address: candidate.Stash,
			Updated: now,
			// Under-nominated validators score higher, so inclusion
			// runs lower-is-better, as do the age components.
			Inclusion:     ScaledInverse(candidate.Inclusion, inclusionStats) * c.cfg.InclusionWeight,
			SpanInclusion: ScaledInverse(candidate.SpanInclusion, spanInclusionStats) * c.cfg.SpanInclusionWeight,
			Discovered:    ScaledInverse(float64(candidate.DiscoveredAt), discoveredStats) * c.cfg.DiscoveredWeight,
			Nominated:     ScaledInverse(float64(candidate.NominatedAt), nominatedStats) * c.cfg.NominatedWeight,
			Rank:          Scaled(float64(candidate.Rank), rankStats) * c.cfg.RankWeight,
			Unclaimed:     ScaledInverse(float64(len(candidate.UnclaimedEras)), unclaimedStats) * c.cfg.UnclaimedWeight,
			Bonded:        Scaled(candidate.Bonded, bondedStats) * c.cfg.BondedWeight,
			Faults:        ScaledInverse(float64(candidate.Faults), faultsStats) * c.cfg.FaultsWeight,
			Offline:       ScaledInverse(float64(candidate.OfflineAccumulated), offlineStats) * c.cfg.OfflineWeight,
		}
		score.Aggregate = score.Inclusion + score.SpanInclusion + score.Discovered +
			score.Nominated + score.Rank + score.Unclaimed + score.Bonded +
			score.Faults + score.Offline + score.ExtNominations
		score.Randomness = 1 + rand.Float64()*c.cfg.RandomnessWeight
		score.Total = score.Aggregate * score.Randomness

		if err := c.db.SetValidatorScore(ctx, score); err != nil {
			return err
		}
	}

	meta := store.ValidatorScoreMetadata{
		Updated:             now,
		BondedStats:         bondedStats.snapshot(),
		FaultsStats:         faultsStats.snapshot(),
		InclusionStats:      inclusionStats.snapshot(),
		SpanInclusionStats:  spanInclusionStats.snapshot(),
		DiscoveredStats:     discoveredStats.snapshot(),
		NominatedStats:      nominatedStats.snapshot(),
		OfflineStats:        offlineStats.snapshot(),
		RankStats:           rankStats.snapshot(),
		UnclaimedStats:      unclaimedStats.snapshot(),
		BondedWeight:        c.cfg.BondedWeight,
		FaultsWeight:        c.cfg.FaultsWeight,
		InclusionWeight:     c.cfg.InclusionWeight,
		SpanInclusionWeight: c.cfg.SpanInclusionWeight,
		DiscoveredWeight:    c.cfg.DiscoveredWeight,
		NominatedWeight:     c.cfg.NominatedWeight,
		OfflineWeight:       c.cfg.OfflineWeight,
		RankWeight:          c.cfg.RankWeight,
		UnclaimedWeight:     c.cfg.UnclaimedWeight,
		RandomnessWeight:    c.cfg.RandomnessWeight,
	}
	if err := c.db.SetValidatorScoreMetadata(ctx, meta); err != nil {
		return err
	}
	log.WithField("candidates", len(valid)).Info("Scored candidate set")
	return nil
}
