package relay

import "time"

// Membership associates one connection with at most one room.
// It is keyed by connection id and replaced wholesale on re-join.
type Membership struct {
	ConnID      string    `json:"connId"`
	RoomID      string    `json:"roomId"`
	DisplayName string    `json:"displayName,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Message is one chat message appended to a room's log.
// Immutable once appended; removed only by a room reset.
type Message struct {
	Body      string    `json:"body"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}
