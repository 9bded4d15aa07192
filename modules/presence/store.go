// Package presence stores room memberships in the shared Redis store so that
// every server instance pointed at the same backend sees the same state.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	domain "github.com/mshige1979/simple-messaging/domain/relay"
)

// defaultKey is the hash holding all memberships, field = connection id.
const defaultKey = "relay:members"

// Store provides membership operations backed by a Redis hash.
//
// Each membership lives under its own hash field, so removal is a single
// atomic HDEL rather than a read-filter-rewrite of the whole collection.
// Concurrent disconnects therefore cannot clobber each other's updates.
type Store struct {
	client *redis.Client
	key    string
}

// New creates a membership store on the given client.
func New(client *redis.Client, key string) *Store {
	if key == "" {
		key = defaultKey
	}
	return &Store{client: client, key: key}
}

// Join inserts or overwrites the membership for its connection id.
// At most one membership exists per connection: a re-join replaces the
// previous record wholesale.
func (s *Store) Join(ctx context.Context, m domain.Membership) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal membership: %w", err)
	}

	if err := s.client.HSet(ctx, s.key, m.ConnID, data).Err(); err != nil {
		return storeErr("join", err)
	}
	return nil
}

// Lookup resolves the membership for a connection id.
// Returns domain.ErrNotFound when the connection never joined.
func (s *Store) Lookup(ctx context.Context, connID string) (domain.Membership, error) {
	data, err := s.client.HGet(ctx, s.key, connID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Membership{}, domain.ErrNotFound
		}
		return domain.Membership{}, storeErr("lookup", err)
	}

	var m domain.Membership
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Membership{}, fmt.Errorf("unmarshal membership: %w", err)
	}
	return m, nil
}

// Remove deletes the membership and returns the room id that was left, so
// the caller can unsubscribe the transport. Removing an absent membership is
// an idempotent no-op returning an empty room id.
func (s *Store) Remove(ctx context.Context, connID string) (string, error) {
	m, err := s.Lookup(ctx, connID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	if err := s.client.HDel(ctx, s.key, connID).Err(); err != nil {
		return "", storeErr("remove", err)
	}
	return m.RoomID, nil
}

// ResetRoom removes every membership referencing the given room.
// The snapshot-then-HDEL sequence deletes by key, so a membership written
// after the snapshot survives rather than being clobbered.
func (s *Store) ResetRoom(ctx context.Context, roomID string) error {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return storeErr("reset", err)
	}

	var fields []string
	for connID, raw := range all {
		var m domain.Membership
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		if m.RoomID == roomID {
			fields = append(fields, connID)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.client.HDel(ctx, s.key, fields...).Err(); err != nil {
		return storeErr("reset", err)
	}
	return nil
}

// MembersByRoom lists the current memberships of one room.
func (s *Store) MembersByRoom(ctx context.Context, roomID string) ([]domain.Membership, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, storeErr("members", err)
	}

	var members []domain.Membership
	for _, raw := range all {
		var m domain.Membership
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		if m.RoomID == roomID {
			members = append(members, m)
		}
	}
	return members, nil
}

// Ping checks that the shared store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// storeErr tags a transport failure with the domain sentinel so callers can
// contain it without inspecting redis internals.
func storeErr(op string, err error) error {
	return fmt.Errorf("presence %s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
