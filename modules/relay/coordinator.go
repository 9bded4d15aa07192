// Package relay orchestrates the per-connection join/message/disconnect
// lifecycle against the shared membership store and message log.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-monolith/mono"

	domain "github.com/mshige1979/simple-messaging/domain/relay"
	"github.com/mshige1979/simple-messaging/events"
	"github.com/mshige1979/simple-messaging/modules/broadcast"
	"github.com/mshige1979/simple-messaging/modules/registry"
)

// storeOpTimeout bounds every shared-store round trip so a dead store yields
// a dropped operation, never a hung connection.
const storeOpTimeout = 3 * time.Second

// MembershipStore is the coordinator's view of the shared membership state.
type MembershipStore interface {
	Join(ctx context.Context, m domain.Membership) error
	Lookup(ctx context.Context, connID string) (domain.Membership, error)
	Remove(ctx context.Context, connID string) (string, error)
	ResetRoom(ctx context.Context, roomID string) error
}

// MessageLog is the coordinator's view of the shared message log.
type MessageLog interface {
	Append(ctx context.Context, msg domain.Message) error
	ClearRoom(ctx context.Context, roomID string) error
}

// Transport is the live-connection side: registration and room subscription
// of the actual delivery channel. Satisfied by *broadcast.Hub.
type Transport interface {
	Register(connID string, conn broadcast.Conn)
	Unregister(connID string)
	Subscribe(connID, roomID string)
	Unsubscribe(connID string)
}

// Session states. A session only ever moves forward.
type sessionState int

const (
	stateConnected sessionState = iota
	stateJoined
	stateDisconnected
)

// Session is the connection-local state for one client. Only the owning
// read loop touches it, so per-connection event ordering is structural.
type Session struct {
	ConnID string
	state  sessionState
	roomID string // last joined room, informational only
}

// Coordinator drives the Connected -> Joined -> Disconnected state machine
// for every connection. All failures are contained here: nothing a single
// connection does may affect another connection's broadcast or the process.
type Coordinator struct {
	registry  *registry.Registry
	members   MembershipStore
	log       MessageLog
	transport Transport
	bus       mono.EventBus
	logger    *slog.Logger
}

// NewCoordinator wires a coordinator. A nil bus disables event publication
// (used by tests).
func NewCoordinator(reg *registry.Registry, members MembershipStore, msgLog MessageLog, transport Transport, bus mono.EventBus) *Coordinator {
	return &Coordinator{
		registry:  reg,
		members:   members,
		log:       msgLog,
		transport: transport,
		bus:       bus,
		logger:    slog.Default(),
	}
}

func (c *Coordinator) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeOpTimeout)
}

// Accept issues a connection id, registers the transport and returns the
// new session in the Connected state.
func (c *Coordinator) Accept(conn broadcast.Conn) *Session {
	connID := c.registry.Accept()
	c.transport.Register(connID, conn)
	c.logger.Info("connection accepted", "connID", connID)
	return &Session{ConnID: connID, state: stateConnected}
}

// Join handles a join event from the Connected or Joined state. The new
// membership replaces any previous one, and the transport subscription moves
// with it. With isNewRoom set, the target room is reset first: its
// memberships and its message log are cleared.
func (c *Coordinator) Join(sess *Session, roomID, displayName string, isNewRoom bool) error {
	if sess.state == stateDisconnected {
		return nil
	}
	if roomID == "" {
		return domain.ErrMalformedInput
	}

	ctx, cancel := c.opCtx()
	defer cancel()

	now := time.Now().UTC()

	if isNewRoom {
		if err := c.members.ResetRoom(ctx, roomID); err != nil {
			return err
		}
		if err := c.log.ClearRoom(ctx, roomID); err != nil {
			return err
		}
		c.publishRoomReset(roomID, sess.ConnID, now)
	}

	m := domain.Membership{
		ConnID:      sess.ConnID,
		RoomID:      roomID,
		DisplayName: displayName,
		JoinedAt:    now,
	}
	if err := c.members.Join(ctx, m); err != nil {
		return err
	}

	c.transport.Subscribe(sess.ConnID, roomID)
	sess.state = stateJoined
	sess.roomID = roomID

	c.publishMemberJoined(m, now)
	c.logger.Info("joined room", "connID", sess.ConnID, "roomID", roomID, "isNewRoom", isNewRoom)
	return nil
}

// Message handles a message event. The sender's room is resolved by
// re-reading the store rather than trusting connection-local state; a
// connection with no membership gets its message dropped silently: no log
// entry, no broadcast.
func (c *Coordinator) Message(sess *Session, body string) error {
	if sess.state == stateDisconnected {
		return nil
	}
	if body == "" {
		return domain.ErrMalformedInput
	}

	ctx, cancel := c.opCtx()
	defer cancel()

	m, err := c.members.Lookup(ctx, sess.ConnID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.logger.Debug("message from unjoined connection dropped", "connID", sess.ConnID)
		}
		return err
	}

	msg := domain.Message{
		Body:      body,
		RoomID:    m.RoomID,
		Timestamp: time.Now().UTC(),
	}
	if err := c.log.Append(ctx, msg); err != nil {
		return err
	}

	c.publishMessageSent(msg)
	return nil
}

// Disconnect tears a session down: membership removed, transport
// unsubscribed and unregistered, registry entry dropped. Safe to call more
// than once; the second call is a complete no-op.
func (c *Coordinator) Disconnect(sess *Session, reason string) {
	if sess.state == stateDisconnected {
		return
	}
	sess.state = stateDisconnected

	ctx, cancel := c.opCtx()
	defer cancel()

	roomID, err := c.members.Remove(ctx, sess.ConnID)
	if err != nil {
		// Membership may linger in the store until the store recovers;
		// the transport side still goes away.
		c.logger.Error("membership removal failed", "connID", sess.ConnID, "error", err)
	}

	c.transport.Unsubscribe(sess.ConnID)
	c.transport.Unregister(sess.ConnID)
	c.registry.Remove(sess.ConnID)

	if roomID != "" {
		c.publishMemberLeft(sess.ConnID, roomID)
	}
	c.logger.Info("connection closed", "connID", sess.ConnID, "reason", reason)
}

func (c *Coordinator) publishMessageSent(msg domain.Message) {
	if c.bus == nil {
		return
	}
	event := events.MessageSentEvent{
		RoomID:    msg.RoomID,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	}
	if err := events.MessageSentV1.Publish(c.bus, event, nil); err != nil {
		slog.Warn("Failed to publish MessageSent event", "error", err)
	}
}

func (c *Coordinator) publishMemberJoined(m domain.Membership, now time.Time) {
	if c.bus == nil {
		return
	}
	event := events.MemberJoinedEvent{
		RoomID:      m.RoomID,
		ConnID:      m.ConnID,
		DisplayName: m.DisplayName,
		Timestamp:   now,
	}
	if err := events.MemberJoinedV1.Publish(c.bus, event, nil); err != nil {
		slog.Warn("Failed to publish MemberJoined event", "error", err)
	}
}

func (c *Coordinator) publishMemberLeft(connID, roomID string) {
	if c.bus == nil {
		return
	}
	event := events.MemberLeftEvent{
		RoomID:    roomID,
		ConnID:    connID,
		Timestamp: time.Now().UTC(),
	}
	if err := events.MemberLeftV1.Publish(c.bus, event, nil); err != nil {
		slog.Warn("Failed to publish MemberLeft event", "error", err)
	}
}

func (c *Coordinator) publishRoomReset(roomID, connID string, now time.Time) {
	if c.bus == nil {
		return
	}
	event := events.RoomResetEvent{
		RoomID:    roomID,
		ConnID:    connID,
		Timestamp: now,
	}
	if err := events.RoomResetV1.Publish(c.bus, event, nil); err != nil {
		slog.Warn("Failed to publish RoomReset event", "error", err)
	}
}
