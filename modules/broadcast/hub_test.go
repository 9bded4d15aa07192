package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeConn captures frames written through the client's write pump.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.frames <- data
	return nil
}

func (f *fakeConn) Close() error {
	close(f.closed)
	return nil
}

// waitFrame blocks until the conn receives a frame or the test times out.
func waitFrame(t *testing.T, conn *fakeConn) Frame {
	t.Helper()
	select {
	case data := <-conn.frames:
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

// assertNoFrame asserts the conn receives nothing in a short window.
func assertNoFrame(t *testing.T, conn *fakeConn) {
	t.Helper()
	select {
	case data := <-conn.frames:
		t.Fatalf("unexpected frame delivered: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_BroadcastReachesOnlyRoomSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.CloseAll()

	a, b, c := newFakeConn(), newFakeConn(), newFakeConn()
	hub.Register("conn-a", a)
	hub.Register("conn-b", b)
	hub.Register("conn-c", c)

	hub.Subscribe("conn-a", "lobby")
	hub.Subscribe("conn-b", "lobby")
	hub.Subscribe("conn-c", "other")

	delivered := hub.Broadcast("lobby", Frame{Type: FrameReceiveMessage, Body: "hi", RoomID: "lobby"})
	if delivered != 2 {
		t.Errorf("Broadcast() delivered = %d, want 2", delivered)
	}

	for _, conn := range []*fakeConn{a, b} {
		frame := waitFrame(t, conn)
		if frame.Type != FrameReceiveMessage || frame.Body != "hi" || frame.RoomID != "lobby" {
			t.Errorf("unexpected frame: %+v", frame)
		}
	}
	assertNoFrame(t, c)
}

func TestHub_BroadcastToEmptyRoomIsNoOp(t *testing.T) {
	hub := NewHub()
	defer hub.CloseAll()

	if delivered := hub.Broadcast("nobody-home", Frame{Type: FrameReceiveMessage}); delivered != 0 {
		t.Errorf("Broadcast() delivered = %d, want 0", delivered)
	}
}

func TestHub_ResubscribeLeavesPreviousRoom(t *testing.T) {
	hub := NewHub()
	defer hub.CloseAll()

	conn := newFakeConn()
	hub.Register("conn-a", conn)
	hub.Subscribe("conn-a", "lobby")
	hub.Subscribe("conn-a", "other")

	if n := hub.RoomClientCount("lobby"); n != 0 {
		t.Errorf("RoomClientCount(lobby) = %d after re-join, want 0", n)
	}
	if n := hub.RoomClientCount("other"); n != 1 {
		t.Errorf("RoomClientCount(other) = %d, want 1", n)
	}

	// The old room no longer delivers to the client.
	hub.Broadcast("lobby", Frame{Type: FrameReceiveMessage, Body: "stale"})
	assertNoFrame(t, conn)

	hub.Broadcast("other", Frame{Type: FrameReceiveMessage, Body: "fresh"})
	if frame := waitFrame(t, conn); frame.Body != "fresh" {
		t.Errorf("frame body = %q, want %q", frame.Body, "fresh")
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	defer hub.CloseAll()

	conn := newFakeConn()
	hub.Register("conn-a", conn)
	hub.Subscribe("conn-a", "lobby")

	hub.Unregister("conn-a")

	if delivered := hub.Broadcast("lobby", Frame{Type: FrameReceiveMessage}); delivered != 0 {
		t.Errorf("Broadcast() delivered = %d after unregister, want 0", delivered)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Unregistering twice is a no-op.
	hub.Unregister("conn-a")

	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Error("transport not closed after unregister")
	}
}

// sinkConn discards every write; used where frame contents don't matter.
type sinkConn struct{}

func (sinkConn) WriteMessage(int, []byte) error { return nil }
func (sinkConn) Close() error                   { return nil }

// Broadcasts racing concurrent unregisters must never send on a closed
// queue: a disconnect may only stop delivery, not panic the broadcaster.
func TestHub_BroadcastRacingUnregister(t *testing.T) {
	hub := NewHub()

	const clients = 200
	for i := range clients {
		id := fmt.Sprintf("conn-%d", i)
		hub.Register(id, sinkConn{})
		hub.Subscribe(id, "lobby")
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				hub.Broadcast("lobby", Frame{Type: FrameReceiveMessage, Body: "hi"})
			}
		}()
	}
	for i := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Unregister(fmt.Sprintf("conn-%d", i))
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after all unregisters, want 0", hub.ClientCount())
	}
	if n := hub.Broadcast("lobby", Frame{Type: FrameReceiveMessage}); n != 0 {
		t.Errorf("Broadcast() delivered = %d to emptied room, want 0", n)
	}
}

func TestHub_UnsubscribeRoomExcept(t *testing.T) {
	hub := NewHub()
	defer hub.CloseAll()

	evicted, keeper, bystander := newFakeConn(), newFakeConn(), newFakeConn()
	hub.Register("conn-evicted", evicted)
	hub.Register("conn-keeper", keeper)
	hub.Register("conn-bystander", bystander)

	hub.Subscribe("conn-evicted", "lobby")
	hub.Subscribe("conn-keeper", "lobby")
	hub.Subscribe("conn-bystander", "other")

	hub.UnsubscribeRoomExcept("lobby", "conn-keeper")

	if n := hub.RoomClientCount("lobby"); n != 1 {
		t.Errorf("RoomClientCount(lobby) = %d, want 1", n)
	}

	hub.Broadcast("lobby", Frame{Type: FrameReceiveMessage, Body: "fresh"})
	if frame := waitFrame(t, keeper); frame.Body != "fresh" {
		t.Errorf("keeper frame body = %q, want %q", frame.Body, "fresh")
	}
	assertNoFrame(t, evicted)

	// The other room's subscription is untouched.
	hub.Broadcast("other", Frame{Type: FrameReceiveMessage, Body: "yo"})
	if frame := waitFrame(t, bystander); frame.Body != "yo" {
		t.Errorf("bystander frame body = %q, want %q", frame.Body, "yo")
	}
}

func TestHub_SubscribeUnknownConnIsIgnored(t *testing.T) {
	hub := NewHub()
	hub.Subscribe("ghost", "lobby")
	if n := hub.RoomClientCount("lobby"); n != 0 {
		t.Errorf("RoomClientCount(lobby) = %d, want 0", n)
	}
}

func TestHub_CloseAllClosesTransports(t *testing.T) {
	hub := NewHub()

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	hub.Register("conn-a", conns[0])
	hub.Register("conn-b", conns[1])
	hub.Subscribe("conn-a", "lobby")

	hub.CloseAll()

	for _, conn := range conns {
		select {
		case <-conn.closed:
		case <-time.After(2 * time.Second):
			t.Fatal("transport not closed by CloseAll")
		}
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}
