// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (s *Store) AddNominator(ctx context.Context, address, stash, proxy string, bonded float64, now int64) error {
	_, err := s.coll(collNominators).UpdateOne(ctx,
		bson.M{"address": address},
		bson.M{
			"$set":         bson.M{"stash": stash, "proxy": proxy, "bonded": bonded},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		upsert,
	)
	return errors.Wrapf(err, "add nominator %s", address)
}

func (s *Store) GetNominator(ctx context.Context, address string) (*Nominator, error) {
	var nominator Nominator
	err := s.coll(collNominators).FindOne(ctx, bson.M{"address": address}).Decode(&nominator)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find nominator")
	}
	return &nominator, nil
}

func (s *Store) AllNominators(ctx context.Context) ([]Nominator, error) {
	cursor, err := s.coll(collNominators).Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "find nominators")
	}
	var nominators []Nominator
	if err := cursor.All(ctx, &nominators); err != nil {
		return nil, errors.Wrap(err, "decode nominators")
	}
	return nominators, nil
}

func (s *Store) SetCurrentTargets(ctx context.Context, address string, targets []string, now int64) error {
	_, err := s.coll(collNominators).UpdateOne(ctx,
		bson.M{"address": address},
		bson.M{"$set": bson.M{"current": targets, "lastNomination": now}})
	return errors.Wrapf(err, "set targets %s", address)
}

// RemoveStaleNominators deletes every nominator whose address is not
// in the keep list.
func (s *Store) RemoveStaleNominators(ctx context.Context, keep []string) error {
	_, err := s.coll(collNominators).DeleteMany(ctx,
		bson.M{"address": bson.M{"$nin": keep}})
	return errors.Wrap(err, "remove stale nominators")
}

// SetNomination records an issued endorsement. Rows are unique on
// (address, era) and immutable once their block hash is recorded.
func (s *Store) SetNomination(ctx context.Context, address string, era uint64, validators []string, bonded float64, blockHash string, now int64) error {
	existing, err := s.GetNomination(ctx, address, era)
	if err != nil {
		return err
	}
	if existing != nil && existing.BlockHash != "" {
		return nil
	}
	_, err = s.coll(collNominations).UpdateOne(ctx,
		bson.M{"address": address, "era": era},
		bson.M{"$set": bson.M{
			"validators": validators,
			"bonded":     bonded,
			"blockHash":  blockHash,
			"timestamp":  now,
		}},
		upsert,
	)
	return errors.Wrapf(err, "set nomination %s/%d", address, era)
}

func (s *Store) GetNomination(ctx context.Context, address string, era uint64) (*Nomination, error) {
	var nomination Nomination
	err := s.coll(collNominations).FindOne(ctx, bson.M{"address": address, "era": era}).Decode(&nomination)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find nomination")
	}
	return &nomination, nil
}

func (s *Store) AddDelayedTx(ctx context.Context, tx DelayedTx) error {
	_, err := s.coll(collDelayedTxs).UpdateOne(ctx,
		bson.M{"number": tx.Number, "controller": tx.Controller},
		bson.M{"$set": bson.M{"targets": tx.Targets, "callHash": tx.CallHash}},
		upsert,
	)
	return errors.Wrapf(err, "add delayed tx %d/%s", tx.Number, tx.Controller)
}

func (s *Store) AllDelayedTxs(ctx context.Context) ([]DelayedTx, error) {
	cursor, err := s.coll(collDelayedTxs).Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "find delayed txs")
	}
	var txs []DelayedTx
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, errors.Wrap(err, "decode delayed txs")
	}
	return txs, nil
}

func (s *Store) DeleteDelayedTx(ctx context.Context, number uint64, controller string) error {
	_, err := s.coll(collDelayedTxs).DeleteOne(ctx,
		bson.M{"number": number, "controller": controller})
	return errors.Wrapf(err, "delete delayed tx %d/%s", number, controller)
}
