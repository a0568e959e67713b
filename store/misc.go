// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func optionsFindLatest(field string) *options.FindOneOptions {
	return options.FindOne().SetSort(bson.M{field: -1})
}

func (s *Store) SetValidatorScore(ctx context.Context, score ValidatorScore) error {
	_, err := s.coll(collScores).UpdateOne(ctx,
		bson.M{"address": score.Address},
		bson.M{"$set": score},
		upsert,
	)
	return errors.Wrapf(err, "set score %s", score.Address)
}

func (s *Store) GetValidatorScore(ctx context.Context, address string) (*ValidatorScore, error) {
	var score ValidatorScore
	err := s.coll(collScores).FindOne(ctx, bson.M{"address": address}).Decode(&score)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find score")
	}
	return &score, nil
}

func (s *Store) SetValidatorScoreMetadata(ctx context.Context, meta ValidatorScoreMetadata) error {
	_, err := s.coll(collScoreMetadata).UpdateOne(ctx,
		bson.M{},
		bson.M{"$set": meta},
		upsert,
	)
	return errors.Wrap(err, "set score metadata")
}

func (s *Store) GetValidatorScoreMetadata(ctx context.Context) (*ValidatorScoreMetadata, error) {
	var meta ValidatorScoreMetadata
	err := s.coll(collScoreMetadata).FindOne(ctx, bson.M{}).Decode(&meta)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find score metadata")
	}
	return &meta, nil
}

func (s *Store) SetRelease(ctx context.Context, name string, publishedAt int64) error {
	_, err := s.coll(collReleases).UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$set": bson.M{"publishedAt": publishedAt}},
		upsert,
	)
	return errors.Wrapf(err, "set release %s", name)
}

func (s *Store) GetLatestRelease(ctx context.Context) (*Release, error) {
	var release Release
	opts := optionsFindLatest("publishedAt")
	err := s.coll(collReleases).FindOne(ctx, bson.M{}, opts).Decode(&release)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find latest release")
	}
	return &release, nil
}

// SetChainMetadata only writes the singleton once. An update for an
// existing record is dropped, preserving the source behavior.
func (s *Store) SetChainMetadata(ctx context.Context, name string, decimals int) error {
	existing, err := s.GetChainMetadata(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = s.coll(collChainMetadata).InsertOne(ctx, ChainMetadata{Name: name, Decimals: decimals})
	return errors.Wrap(err, "set chain metadata")
}

func (s *Store) GetChainMetadata(ctx context.Context) (*ChainMetadata, error) {
	var meta ChainMetadata
	err := s.coll(collChainMetadata).FindOne(ctx, bson.M{}).Decode(&meta)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find chain metadata")
	}
	return &meta, nil
}
