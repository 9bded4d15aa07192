// Package history keeps the append-only message log in the shared Redis
// store, one list per room.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	domain "github.com/mshige1979/simple-messaging/domain/relay"
)

// defaultPrefix namespaces the per-room lists, e.g. relay:messages:lobby.
const defaultPrefix = "relay:messages:"

// Log provides append and query operations over per-room message lists.
type Log struct {
	client *redis.Client
	prefix string
}

// New creates a message log on the given client.
func New(client *redis.Client, prefix string) *Log {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Log{client: client, prefix: prefix}
}

func (l *Log) roomKey(roomID string) string {
	return l.prefix + roomID
}

// Append records a message at the head of its room's list.
// Messages are immutable once appended.
func (l *Log) Append(ctx context.Context, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := l.client.LPush(ctx, l.roomKey(msg.RoomID), data).Err(); err != nil {
		return logErr("append", err)
	}
	return nil
}

// ListByRoom returns the room's messages, most-recent-first. Appends push to
// the head of the list, so callers needing chronological order must reverse.
// An unknown room yields an empty slice, not an error.
func (l *Log) ListByRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	raws, err := l.client.LRange(ctx, l.roomKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, logErr("list", err)
	}

	msgs := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Len returns the number of messages logged for a room.
func (l *Log) Len(ctx context.Context, roomID string) (int64, error) {
	n, err := l.client.LLen(ctx, l.roomKey(roomID)).Result()
	if err != nil {
		return 0, logErr("len", err)
	}
	return n, nil
}

// ClearRoom drops one room's log. Used by the room reset path.
func (l *Log) ClearRoom(ctx context.Context, roomID string) error {
	if err := l.client.Del(ctx, l.roomKey(roomID)).Err(); err != nil {
		return logErr("clear", err)
	}
	return nil
}

// ClearAll drops every room's log.
func (l *Log) ClearAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := l.client.Scan(ctx, cursor, l.prefix+"*", 100).Result()
		if err != nil {
			return logErr("clear all", err)
		}
		if len(keys) > 0 {
			if err := l.client.Del(ctx, keys...).Err(); err != nil {
				return logErr("clear all", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks that the shared store is reachable.
func (l *Log) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func logErr(op string, err error) error {
	return fmt.Errorf("history %s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
