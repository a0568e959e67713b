// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var log = logrus.WithField("prefix", "store")

// Collection names.
const (
	collCandidates    = "candidates"
	collNominators    = "nominators"
	collNominations   = "nominations"
	collEraPoints     = "eraPoints"
	collTotalPoints   = "totalEraPoints"
	collEraStats      = "eraStats"
	collScores        = "validatorScores"
	collScoreMetadata = "validatorScoreMetadata"
	collDelayedTxs    = "delayedTxs"
	collReleases      = "releases"
	collChainMetadata = "chainMetadata"
	collEraIndex      = "eraIndex"
)

// fullEraThreshold gates the era-is-filled heuristic: a total-points
// row at or above it is complete and immutable (statistics may still
// transition from absent to present).
const fullEraThreshold = 70000

// Store is the Mongo-backed Database. One Store is shared by every
// job; coordination is per record via find-and-update on stable keys.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Database = (*Store)(nil)

// Connect dials the store and pings it. A failure here is fatal to
// the process by design.
func Connect(ctx context.Context, uri, name string) (*Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect store")
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "ping store")
	}
	log.WithField("db", name).Info("Connected to store")
	return &Store{client: client, db: client.Database(name)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// nowMillis is stubbed in tests.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}

var upsert = options.Update().SetUpsert(true)

// updateCandidate applies a find-and-update keyed on stash. A missing
// candidate is a logged no-op; it never creates a partial record.
func (s *Store) updateCandidate(ctx context.Context, stash string, update interface{}) error {
	res, err := s.coll(collCandidates).UpdateOne(ctx, byStash(stash), update)
	if err != nil {
		return errors.Wrapf(err, "update candidate %s", stash)
	}
	if res.MatchedCount == 0 {
		log.WithField("stash", stash).Debug("No candidate for update")
	}
	return nil
}
