package presence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	domain "github.com/mshige1979/simple-messaging/domain/relay"
)

// Requires Redis running on localhost:6379; tests skip otherwise.
const testRedisAddr = "localhost:6379"

// setupTestStore creates a store on its own hash key and a cleanup func.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	key := fmt.Sprintf("test:relay:members:%d", time.Now().UnixNano())
	client.Del(ctx, key)

	store := New(client, key)

	cleanup := func() {
		client.Del(ctx, key)
		client.Close()
	}
	return store, cleanup
}

func membership(connID, roomID string) domain.Membership {
	return domain.Membership{
		ConnID:   connID,
		RoomID:   roomID,
		JoinedAt: time.Now().UTC(),
	}
}

func TestStore_JoinThenLookup(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	m := membership("conn-1", "lobby")
	m.DisplayName = "alice"
	if err := store.Join(ctx, m); err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	got, err := store.Lookup(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if got.RoomID != "lobby" {
		t.Errorf("Lookup() room = %q, want %q", got.RoomID, "lobby")
	}
	if got.DisplayName != "alice" {
		t.Errorf("Lookup() displayName = %q, want %q", got.DisplayName, "alice")
	}
}

func TestStore_LookupUnknownIsNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.Lookup(context.Background(), "never-joined")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestStore_RejoinOverwrites(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.Join(ctx, membership("conn-1", "lobby")); err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if err := store.Join(ctx, membership("conn-1", "other")); err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	got, err := store.Lookup(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if got.RoomID != "other" {
		t.Errorf("Lookup() room = %q after re-join, want %q", got.RoomID, "other")
	}

	// At most one membership per connection.
	members, err := store.MembersByRoom(ctx, "lobby")
	if err != nil {
		t.Fatalf("MembersByRoom() error: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("old room still has %d memberships, want 0", len(members))
	}
}

func TestStore_RemoveReturnsRoomAndIsIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.Join(ctx, membership("conn-1", "lobby")); err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	roomID, err := store.Remove(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if roomID != "lobby" {
		t.Errorf("Remove() room = %q, want %q", roomID, "lobby")
	}

	// Second removal: no error, no room, no duplicate side effects.
	roomID, err = store.Remove(ctx, "conn-1")
	if err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
	if roomID != "" {
		t.Errorf("second Remove() room = %q, want empty", roomID)
	}

	if _, err := store.Lookup(ctx, "conn-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Lookup() after remove = %v, want ErrNotFound", err)
	}
}

func TestStore_ResetRoomIsRoomScoped(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for i := range 3 {
		if err := store.Join(ctx, membership(fmt.Sprintf("lobby-%d", i), "lobby")); err != nil {
			t.Fatalf("Join() error: %v", err)
		}
	}
	if err := store.Join(ctx, membership("other-1", "other")); err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	if err := store.ResetRoom(ctx, "lobby"); err != nil {
		t.Fatalf("ResetRoom() error: %v", err)
	}

	lobby, err := store.MembersByRoom(ctx, "lobby")
	if err != nil {
		t.Fatalf("MembersByRoom() error: %v", err)
	}
	if len(lobby) != 0 {
		t.Errorf("lobby has %d memberships after reset, want 0", len(lobby))
	}

	other, err := store.MembersByRoom(ctx, "other")
	if err != nil {
		t.Fatalf("MembersByRoom() error: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("other room has %d memberships, want 1 (reset must not cross rooms)", len(other))
	}
}

// Concurrent joins and removals must not lose updates: removal is an atomic
// delete-by-key, never a read-filter-rewrite of the collection.
func TestStore_ConcurrentJoinAndRemove(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	const n = 50

	// Seed n members that will be removed while n others join.
	for i := range n {
		if err := store.Join(ctx, membership(fmt.Sprintf("old-%d", i), "lobby")); err != nil {
			t.Fatalf("seed Join() error: %v", err)
		}
	}

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			roomID, err := store.Remove(ctx, fmt.Sprintf("old-%d", i))
			if err != nil {
				return err
			}
			if roomID != "lobby" {
				return fmt.Errorf("Remove() room = %q, want lobby", roomID)
			}
			return nil
		})
		g.Go(func() error {
			return store.Join(ctx, membership(fmt.Sprintf("new-%d", i), "lobby"))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent ops: %v", err)
	}

	members, err := store.MembersByRoom(ctx, "lobby")
	if err != nil {
		t.Fatalf("MembersByRoom() error: %v", err)
	}
	if len(members) != n {
		t.Errorf("lobby has %d memberships, want %d (lost update?)", len(members), n)
	}
}
