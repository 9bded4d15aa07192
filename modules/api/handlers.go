package api

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	domain "github.com/mshige1979/simple-messaging/domain/relay"
)

// setupRoutes configures all HTTP and WebSocket routes.
func (m *Module) setupRoutes() {
	// Health check
	m.app.Get("/health", m.healthHandler)

	// WebSocket upgrade middleware
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket endpoint, driven by the lifecycle coordinator
	m.app.Get("/ws", websocket.New(m.relayMod.Coordinator().HandleConnection))

	// Query surface
	m.app.Get("/messages", m.getMessages)
	m.app.Get("/rooms/:id/members", m.getRoomMembers)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// getMessages handles GET /messages?id=<roomId>. Messages come back
// most-recent-first, mirroring the log's ordering. No pagination.
func (m *Module) getMessages(c *fiber.Ctx) error {
	roomID := c.Query("id")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "query parameter 'id' is required",
		})
	}

	msgs, err := m.historyMod.Log().ListByRoom(c.UserContext(), roomID)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(MessagesResponse{Messages: msgs})
}

// getRoomMembers handles GET /rooms/:id/members.
func (m *Module) getRoomMembers(c *fiber.Ctx) error {
	roomID := c.Params("id")

	members, err := m.presenceMod.Store().MembersByRoom(c.UserContext(), roomID)
	if err != nil {
		return storeError(c, err)
	}

	if members == nil {
		members = []domain.Membership{}
	}
	return c.JSON(MembersResponse{Members: members, Total: len(members)})
}

// storeError maps shared-store failures onto a 503 without leaking details.
func storeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "store_unavailable",
			Message: "shared store unreachable",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "unexpected failure",
	})
}
