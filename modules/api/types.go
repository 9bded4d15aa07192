package api

import (
	domain "github.com/mshige1979/simple-messaging/domain/relay"
)

// MessagesResponse is the payload of GET /messages.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

// MembersResponse is the payload of GET /rooms/:id/members.
type MembersResponse struct {
	Members []domain.Membership `json:"members"`
	Total   int                 `json:"total"`
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
