package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted when a joined connection sends a message.
type MessageSentEvent struct {
	RoomID    string    `json:"room_id"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// MemberJoinedEvent is emitted when a connection joins a room.
type MemberJoinedEvent struct {
	RoomID      string    `json:"room_id"`
	ConnID      string    `json:"conn_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// MemberLeftEvent is emitted when a connection with a membership disconnects.
type MemberLeftEvent struct {
	RoomID    string    `json:"room_id"`
	ConnID    string    `json:"conn_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomResetEvent is emitted when a room's memberships and log are cleared.
// ConnID identifies the joining connection that triggered the reset; it is
// the one subscriber the fan-out side must not evict.
type RoomResetEvent struct {
	RoomID    string    `json:"room_id"`
	ConnID    string    `json:"conn_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"relay",
		"MessageSent",
		"v1",
	)

	MemberJoinedV1 = helper.EventDefinition[MemberJoinedEvent](
		"relay",
		"MemberJoined",
		"v1",
	)

	MemberLeftV1 = helper.EventDefinition[MemberLeftEvent](
		"relay",
		"MemberLeft",
		"v1",
	)

	RoomResetV1 = helper.EventDefinition[RoomResetEvent](
		"relay",
		"RoomReset",
		"v1",
	)
)
