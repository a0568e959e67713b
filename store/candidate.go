// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func byStash(stash string) bson.M {
	return bson.M{"stash": stash}
}

// AddCandidate upserts a configured candidate keyed on its name. The
// first sighting stamps discoveredAt; re-ingesting existing
// candidates only refreshes the addresses.
func (s *Store) AddCandidate(ctx context.Context, name, stash, kusamaStash string) error {
	_, err := s.coll(collCandidates).UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{
			"$set":         bson.M{"stash": stash, "kusamaStash": kusamaStash},
			"$setOnInsert": bson.M{"discoveredAt": nowMillis(), "rank": 0, "faults": 0},
		},
		upsert,
	)
	return errors.Wrapf(err, "add candidate %s", name)
}

func (s *Store) GetCandidate(ctx context.Context, stash string) (*Candidate, error) {
	return s.findCandidate(ctx, byStash(stash))
}

func (s *Store) GetCandidateByName(ctx context.Context, name string) (*Candidate, error) {
	return s.findCandidate(ctx, bson.M{"name": name})
}

func (s *Store) findCandidate(ctx context.Context, filter bson.M) (*Candidate, error) {
	var candidate Candidate
	err := s.coll(collCandidates).FindOne(ctx, filter).Decode(&candidate)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find candidate")
	}
	return &candidate, nil
}

func (s *Store) AllCandidates(ctx context.Context) ([]Candidate, error) {
	cursor, err := s.coll(collCandidates).Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "find candidates")
	}
	var candidates []Candidate
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, errors.Wrap(err, "decode candidates")
	}
	return candidates, nil
}

func (s *Store) SetActive(ctx context.Context, stash string, active bool) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"active": active}})
}

func (s *Store) SetValidatorPreferences(ctx context.Context, stash string, prefs ValidatorPreferences) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{
		"commission":        prefs.Commission,
		"controller":        prefs.Controller,
		"rewardDestination": prefs.RewardDestination,
		"bonded":            prefs.Bonded,
		"blocked":           prefs.Blocked,
		"identity":          prefs.Identity,
	}})
}

func (s *Store) SetQueuedKeys(ctx context.Context, stash, keys string) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"queuedKeys": keys}})
}

func (s *Store) SetNextKeys(ctx context.Context, stash, keys string) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"nextKeys": keys}})
}

func (s *Store) SetInclusion(ctx context.Context, stash string, inclusion float64) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"inclusion": inclusion}})
}

func (s *Store) SetSpanInclusion(ctx context.Context, stash string, spanInclusion float64) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"spanInclusion": spanInclusion}})
}

func (s *Store) SetUnclaimedEras(ctx context.Context, stash string, eras []uint64) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"unclaimedEras": eras}})
}

func (s *Store) SetNominatedAt(ctx context.Context, stash string, now int64) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"nominatedAt": now}})
}

// ClearAccumulatedOfflineTime zeroes the weekly offline accounting for
// the whole fleet.
func (s *Store) ClearAccumulatedOfflineTime(ctx context.Context) error {
	_, err := s.coll(collCandidates).UpdateMany(ctx, bson.M{},
		bson.M{"$set": bson.M{"offlineAccumulated": 0}})
	return errors.Wrap(err, "clear offline time")
}

// SetInvalidity writes one typed verdict. Keying the map on the type
// keeps at most one entry per type without a read-modify-write cycle.
func (s *Store) SetInvalidity(ctx context.Context, stash string, t InvalidityType, valid bool, details string) error {
	entry := InvalidityEntry{Valid: valid, Updated: nowMillis(), Details: details}
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"invalidity." + string(t): entry}})
}

func (s *Store) SetValid(ctx context.Context, stash string, valid bool) error {
	return s.updateCandidate(ctx, stash, bson.M{"$set": bson.M{"valid": valid}})
}

// AddPoint raises a candidate's rank by one and records the era span
// the increase was earned over.
func (s *Store) AddPoint(ctx context.Context, stash string, startEra, activeEra uint64) error {
	event := RankEvent{When: nowMillis(), StartEra: startEra, ActiveEra: activeEra}
	return s.updateCandidate(ctx, stash, bson.M{
		"$inc":  bson.M{"rank": 1},
		"$push": bson.M{"rankEvents": event},
	})
}

// DockPoints registers a fault and reduces rank by the programme's
// historical arithmetic.
func (s *Store) DockPoints(ctx context.Context, stash, reason string) error {
	candidate, err := s.GetCandidate(ctx, stash)
	if err != nil {
		return err
	}
	if candidate == nil {
		log.WithField("stash", stash).Debug("No candidate to dock")
		return nil
	}
	event := FaultEvent{When: nowMillis(), Reason: reason}
	return s.updateCandidate(ctx, stash, bson.M{
		"$set":  bson.M{"rank": DockedRank(candidate.Rank)},
		"$inc":  bson.M{"faults": 1},
		"$push": bson.M{"faultEvents": event},
	})
}

// ForgiveDockedPoints restores rank after a fault is pardoned.
func (s *Store) ForgiveDockedPoints(ctx context.Context, stash string) error {
	candidate, err := s.GetCandidate(ctx, stash)
	if err != nil {
		return err
	}
	if candidate == nil {
		log.WithField("stash", stash).Debug("No candidate to forgive")
		return nil
	}
	return s.updateCandidate(ctx, stash, bson.M{
		"$set": bson.M{"rank": ForgivenRank(candidate.Rank)},
		"$inc": bson.M{"faults": -1},
	})
}

// ReportOnline marks a telemetry session online under the candidate's
// name, accumulating the closed offline window if one was open.
func (s *Store) ReportOnline(ctx context.Context, telemetryID int64, name, version string, now int64) error {
	candidate, err := s.GetCandidateByName(ctx, name)
	if err != nil {
		return err
	}
	if candidate == nil {
		log.WithField("name", name).Debug("Telemetry report for unknown candidate")
		return nil
	}
	set := bson.M{
		"telemetryId":  telemetryID,
		"version":      version,
		"offlineSince": int64(0),
	}
	if candidate.OnlineSince == 0 || candidate.OfflineSince > 0 {
		set["onlineSince"] = now
	}
	update := bson.M{"$set": set, "$inc": bson.M{"nodeRefs": 1}}
	if candidate.OfflineSince > 0 {
		update["$inc"].(bson.M)["offlineAccumulated"] = now - candidate.OfflineSince
	}
	_, err = s.coll(collCandidates).UpdateOne(ctx, bson.M{"name": name}, update)
	return errors.Wrapf(err, "report online %s", name)
}

// ReportOffline closes a telemetry session. The offline stamp is only
// set once the last session with this name disappears.
func (s *Store) ReportOffline(ctx context.Context, telemetryID int64, now int64) error {
	var candidate Candidate
	err := s.coll(collCandidates).FindOne(ctx, bson.M{"telemetryId": telemetryID}).Decode(&candidate)
	if err == mongo.ErrNoDocuments {
		log.WithField("telemetryId", telemetryID).Debug("Offline report for unknown session")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "find candidate by telemetry id")
	}
	update := bson.M{"$inc": bson.M{"nodeRefs": -1}}
	if candidate.NodeRefs <= 1 {
		update["$set"] = bson.M{"offlineSince": now, "onlineSince": int64(0)}
	}
	_, err = s.coll(collCandidates).UpdateOne(ctx, bson.M{"telemetryId": telemetryID}, update)
	return errors.Wrap(err, "report offline")
}

// ReportBestBlock finds the session by telemetryId only and refreshes
// its liveness stamp.
func (s *Store) ReportBestBlock(ctx context.Context, telemetryID int64, height uint64, now int64) error {
	_, err := s.coll(collCandidates).UpdateOne(ctx,
		bson.M{"telemetryId": telemetryID},
		bson.M{"$set": bson.M{"bestBlockHeight": height, "bestBlockSeen": now}})
	return errors.Wrap(err, "report best block")
}
