package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"watchparty-service/internal/errs"
	"watchparty-service/internal/models"
)

const casRetries = 5

// RedisStore keeps party records as JSON values under party:{id} keys.
// Mutations run as WATCH/MULTI transactions so concurrent joins and leaves
// from different instances serialize per key.
type RedisStore struct {
	rdb            *redis.Client
	idleTTL        time.Duration
	endedRetention time.Duration
}

// NewRedisStore builds a RedisStore. idleTTL is the inactivity window after
// which a party expires; endedRetention is how long ENDED records linger.
func NewRedisStore(rdb *redis.Client, idleTTL, endedRetention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, idleTTL: idleTTL, endedRetention: endedRetention}
}

func partyKey(partyID string) string {
	return "party:" + partyID
}

// Ping reports store reachability for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Create(ctx context.Context, party models.Party) (models.Party, error) {
	data, err := json.Marshal(party)
	if err != nil {
		return models.Party{}, fmt.Errorf("marshal party: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, partyKey(party.PartyID), data, s.idleTTL).Result()
	if err != nil {
		return models.Party{}, fmt.Errorf("create party %s: %w", party.PartyID, err)
	}
	if !ok {
		return models.Party{}, errs.ErrAlreadyExists
	}
	return party, nil
}

func (s *RedisStore) Get(ctx context.Context, partyID string) (models.Party, error) {
	data, err := s.rdb.Get(ctx, partyKey(partyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Party{}, errs.ErrNotFound
	}
	if err != nil {
		return models.Party{}, fmt.Errorf("get party %s: %w", partyID, err)
	}

	var party models.Party
	if err := json.Unmarshal(data, &party); err != nil {
		return models.Party{}, fmt.Errorf("unmarshal party %s: %w", partyID, err)
	}
	return party, nil
}

func (s *RedisStore) AddMember(ctx context.Context, partyID string, member models.PartyMember) (models.Party, bool, error) {
	var result models.Party
	var added bool

	err := s.mutate(ctx, partyID, func(party models.Party) (models.Party, time.Duration, bool, error) {
		if party.Status != models.PartyStatusActive {
			return party, 0, false, errs.ErrPartyEnded
		}
		if party.HasMember(member.UserID) {
			result, added = party, false
			return party, 0, false, nil
		}
		party.Members = append(party.Members, member)
		result, added = party, true
		return party, s.idleTTL, true, nil
	})
	if err != nil {
		return models.Party{}, false, err
	}
	return result, added, nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, partyID string, userID int64) (models.Party, bool, error) {
	var result models.Party
	var removed bool

	err := s.mutate(ctx, partyID, func(party models.Party) (models.Party, time.Duration, bool, error) {
		if party.Status != models.PartyStatusActive || !party.HasMember(userID) {
			result, removed = party, false
			return party, 0, false, nil
		}

		members := party.Members[:0:0]
		for _, m := range party.Members {
			if m.UserID != userID {
				members = append(members, m)
			}
		}
		party.Members = members

		ttl := s.idleTTL
		if userID == party.HostID {
			// Host loss ends the party; there is no host handoff.
			party.Status = models.PartyStatusEnded
			ttl = s.endedRetention
		}
		result, removed = party, true
		return party, ttl, true, nil
	})
	if err != nil {
		return models.Party{}, false, err
	}
	return result, removed, nil
}

func (s *RedisStore) Delete(ctx context.Context, partyID string) (models.Party, bool, error) {
	var result models.Party
	var ended bool

	err := s.mutate(ctx, partyID, func(party models.Party) (models.Party, time.Duration, bool, error) {
		if party.Status != models.PartyStatusActive {
			result, ended = party, false
			return party, 0, false, nil
		}
		party.Status = models.PartyStatusEnded
		result, ended = party, true
		return party, s.endedRetention, true, nil
	})
	if err != nil {
		return models.Party{}, false, err
	}
	return result, ended, nil
}

// mutate runs fn inside a WATCH transaction on the party key, retrying on
// concurrent modification. fn returns the new record, the TTL to apply and
// whether a write is needed at all.
func (s *RedisStore) mutate(ctx context.Context, partyID string, fn func(models.Party) (models.Party, time.Duration, bool, error)) error {
	key := partyKey(partyID)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return errs.ErrNotFound
		}
		if err != nil {
			return err
		}

		var party models.Party
		if err := json.Unmarshal(data, &party); err != nil {
			return fmt.Errorf("unmarshal party %s: %w", partyID, err)
		}

		updated, ttl, write, err := fn(party)
		if err != nil || !write {
			return err
		}

		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal party %s: %w", partyID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("party %s: too many concurrent updates", partyID)
}
