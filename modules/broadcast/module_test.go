package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/mshige1979/simple-messaging/events"
)

func TestRoomResetNotifiesThenEvictsPriorSubscribers(t *testing.T) {
	m := NewModule()
	defer m.hub.CloseAll()

	evicted, joiner := newFakeConn(), newFakeConn()
	m.hub.Register("conn-evicted", evicted)
	m.hub.Register("conn-joiner", joiner)
	m.hub.Subscribe("conn-evicted", "lobby")
	m.hub.Subscribe("conn-joiner", "lobby")

	err := m.handleRoomReset(context.Background(), events.RoomResetEvent{
		RoomID:    "lobby",
		ConnID:    "conn-joiner",
		Timestamp: time.Now().UTC(),
	}, nil)
	if err != nil {
		t.Fatalf("handleRoomReset() error: %v", err)
	}

	// Everyone subscribed at reset time gets the notification frame.
	for _, conn := range []*fakeConn{evicted, joiner} {
		if frame := waitFrame(t, conn); frame.Type != FrameRoomReset {
			t.Errorf("frame type = %q, want %q", frame.Type, FrameRoomReset)
		}
	}

	// Afterwards only the resetting joiner is still in the room.
	m.hub.Broadcast("lobby", Frame{Type: FrameReceiveMessage, Body: "fresh"})
	if frame := waitFrame(t, joiner); frame.Body != "fresh" {
		t.Errorf("joiner frame body = %q, want %q", frame.Body, "fresh")
	}
	assertNoFrame(t, evicted)
}
