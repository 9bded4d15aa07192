package relay

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/contrib/websocket"

	domain "github.com/mshige1979/simple-messaging/domain/relay"
)

// Inbound event types on the persistent per-connection channel.
const (
	EventJoin    = "join"
	EventMessage = "message"
)

// InboundEvent is the envelope clients send over the WebSocket.
type InboundEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	IsNewRoom   bool   `json:"isNewRoom,omitempty"`
	Body        string `json:"body,omitempty"`
}

// HandleConnection runs one connection's read loop. Events are processed in
// arrival order for this connection; across connections there is no global
// ordering. The loop never crashes the process: malformed input, unjoined
// senders and store failures are dropped and logged, and the connection
// stays alive.
func (c *Coordinator) HandleConnection(conn *websocket.Conn) {
	sess := c.Accept(conn)

	reason := "client closed"
	defer func() {
		c.Disconnect(sess, reason)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = err.Error()
			}
			return
		}

		var evt InboundEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.logger.Warn("unparseable inbound event dropped", "connID", sess.ConnID, "error", err)
			continue
		}

		c.dispatch(sess, evt)
	}
}

// dispatch routes one inbound event through the state machine.
func (c *Coordinator) dispatch(sess *Session, evt InboundEvent) {
	var err error
	switch evt.Type {
	case EventJoin:
		err = c.Join(sess, evt.RoomID, evt.DisplayName, evt.IsNewRoom)
	case EventMessage:
		err = c.Message(sess, evt.Body)
	default:
		err = domain.ErrMalformedInput
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		// Already logged at debug; nothing is surfaced to other clients.
	case errors.Is(err, domain.ErrMalformedInput):
		c.logger.Warn("malformed inbound event dropped", "connID", sess.ConnID, "type", evt.Type)
	default:
		c.logger.Error("inbound event failed", "connID", sess.ConnID, "type", evt.Type, "error", err)
	}
}
