package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/mshige1979/simple-messaging/events"
)

// Frame is the envelope delivered to WebSocket subscribers.
type Frame struct {
	Type        string    `json:"type"`
	Body        string    `json:"body,omitempty"`
	RoomID      string    `json:"roomId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Frame types on the wire.
const (
	FrameReceiveMessage = "receiveMessage"
	FrameMemberJoined   = "memberJoined"
	FrameMemberLeft     = "memberLeft"
	FrameRoomReset      = "roomReset"
)

// Module consumes relay events and broadcasts them to room subscribers.
type Module struct {
	hub *Hub
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new broadcast module.
func NewModule() *Module {
	return &Module{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[broadcast] Module started - WebSocket hub ready")
	return nil
}

// Stop closes all client connections.
func (m *Module) Stop(_ context.Context) error {
	count := m.hub.ClientCount()
	m.hub.CloseAll()
	log.Printf("[broadcast] Module stopped - %d clients were connected", count)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers subscribes the hub to the relay events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MemberJoinedV1, m.handleMemberJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register MemberJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MemberLeftV1, m.handleMemberLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register MemberLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomResetV1, m.handleRoomReset, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomReset consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: MessageSent, MemberJoined, MemberLeft, RoomReset")
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	delivered := m.hub.Broadcast(event.RoomID, Frame{
		Type:      FrameReceiveMessage,
		Body:      event.Body,
		RoomID:    event.RoomID,
		Timestamp: event.Timestamp,
	})
	log.Printf("[broadcast] Delivered message to %d clients in room %s", delivered, event.RoomID)
	return nil
}

func (m *Module) handleMemberJoined(_ context.Context, event events.MemberJoinedEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, Frame{
		Type:        FrameMemberJoined,
		RoomID:      event.RoomID,
		DisplayName: event.DisplayName,
		Timestamp:   event.Timestamp,
	})
	return nil
}

func (m *Module) handleMemberLeft(_ context.Context, event events.MemberLeftEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, Frame{
		Type:      FrameMemberLeft,
		RoomID:    event.RoomID,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Module) handleRoomReset(_ context.Context, event events.RoomResetEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, Frame{
		Type:      FrameRoomReset,
		RoomID:    event.RoomID,
		Timestamp: event.Timestamp,
	})

	// Evicted members lost their store memberships in the reset; their
	// transport subscriptions go with them. The resetting joiner stays
	// subscribed whether its subscription landed before or after this
	// consumer ran.
	m.hub.UnsubscribeRoomExcept(event.RoomID, event.ConnID)
	return nil
}

// Hub returns the WebSocket hub for direct injection.
func (m *Module) Hub() *Hub {
	return m.hub
}
