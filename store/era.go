// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package store

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetEraPoints upserts one (era, address) point count. A row that
// already holds the same value is left untouched so repeated sweeps
// over a filled window perform no writes.
func (s *Store) SetEraPoints(ctx context.Context, era uint64, address string, points uint64) error {
	existing, err := s.GetEraPoints(ctx, era, address)
	if err != nil {
		return err
	}
	if existing != nil && existing.EraPoints == points {
		return nil
	}
	_, err = s.coll(collEraPoints).UpdateOne(ctx,
		bson.M{"era": era, "address": address},
		bson.M{"$set": bson.M{"eraPoints": points}},
		upsert,
	)
	return errors.Wrapf(err, "set era points %d/%s", era, address)
}

func (s *Store) GetEraPoints(ctx context.Context, era uint64, address string) (*EraPoints, error) {
	var row EraPoints
	err := s.coll(collEraPoints).FindOne(ctx, bson.M{"era": era, "address": address}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find era points")
	}
	return &row, nil
}

// GetEraPointsRange returns an address's rows with startEra <= era < endEra.
func (s *Store) GetEraPointsRange(ctx context.Context, address string, startEra, endEra uint64) ([]EraPoints, error) {
	cursor, err := s.coll(collEraPoints).Find(ctx, bson.M{
		"address": address,
		"era":     bson.M{"$gte": startEra, "$lt": endEra},
	})
	if err != nil {
		return nil, errors.Wrap(err, "find era points range")
	}
	var rows []EraPoints
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode era points range")
	}
	return rows, nil
}

// SetTotalEraPoints upserts the per-era aggregate, recomputing its
// statistics. A filled row (total at or above the era-filled gate,
// median present) is immutable and left untouched.
func (s *Store) SetTotalEraPoints(ctx context.Context, era uint64, total uint64, validators []EraPoints) error {
	existing, err := s.GetTotalEraPoints(ctx, era)
	if err != nil {
		return err
	}
	if existing != nil && existing.TotalEraPoints >= fullEraThreshold && existing.Median != nil {
		return nil
	}

	median, average, max, min := pointsStats(validators)
	_, err = s.coll(collTotalPoints).UpdateOne(ctx,
		bson.M{"era": era},
		bson.M{"$set": bson.M{
			"totalEraPoints":      total,
			"validatorsEraPoints": validators,
			"median":              median,
			"average":             average,
			"max":                 max,
			"min":                 min,
		}},
		upsert,
	)
	return errors.Wrapf(err, "set total era points %d", era)
}

func (s *Store) GetTotalEraPoints(ctx context.Context, era uint64) (*TotalEraPoints, error) {
	var row TotalEraPoints
	err := s.coll(collTotalPoints).FindOne(ctx, bson.M{"era": era}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find total era points")
	}
	return &row, nil
}

func pointsStats(validators []EraPoints) (median, average *float64, max, min *uint64) {
	if len(validators) == 0 {
		return nil, nil, nil, nil
	}
	points := make([]uint64, len(validators))
	var sum uint64
	for i, v := range validators {
		points[i] = v.EraPoints
		sum += v.EraPoints
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var med float64
	mid := len(points) / 2
	if len(points)%2 == 1 {
		med = float64(points[mid])
	} else {
		med = float64(points[mid-1]+points[mid]) / 2
	}
	avg := float64(sum) / float64(len(points))
	lo, hi := points[0], points[len(points)-1]
	return &med, &avg, &hi, &lo
}

func (s *Store) SetEraStats(ctx context.Context, era uint64, when int64, totalNodes, valid, active int) error {
	_, err := s.coll(collEraStats).UpdateOne(ctx,
		bson.M{"era": era},
		bson.M{"$set": bson.M{
			"when":       when,
			"totalNodes": totalNodes,
			"valid":      valid,
			"active":     active,
		}},
		upsert,
	)
	return errors.Wrapf(err, "set era stats %d", era)
}

func (s *Store) GetLatestEraStats(ctx context.Context) (*EraStats, error) {
	var row EraStats
	opts := options.FindOne().SetSort(bson.M{"era": -1})
	err := s.coll(collEraStats).FindOne(ctx, bson.M{}, opts).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find latest era stats")
	}
	return &row, nil
}

func (s *Store) SetLastNominatedEraIndex(ctx context.Context, era uint64) error {
	_, err := s.coll(collEraIndex).UpdateOne(ctx,
		bson.M{},
		bson.M{"$set": bson.M{"lastNominatedEraIndex": era}},
		upsert,
	)
	return errors.Wrap(err, "set last nominated era")
}

func (s *Store) GetLastNominatedEraIndex(ctx context.Context) (uint64, error) {
	var row struct {
		LastNominatedEraIndex uint64 `bson:"lastNominatedEraIndex"`
	}
	err := s.coll(collEraIndex).FindOne(ctx, bson.M{}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "find last nominated era")
	}
	return row.LastNominatedEraIndex, nil
}
