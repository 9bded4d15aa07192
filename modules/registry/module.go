package registry

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// Module exposes the connection registry to the rest of the application.
type Module struct {
	registry *Registry
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new registry module.
func NewModule() *Module {
	return &Module{
		registry: New(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "registry"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[registry] Module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Printf("[registry] Module stopped - %d connections were live", m.registry.Count())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"live_connections": m.registry.Count(),
		},
	}
}

// Registry returns the underlying registry for direct injection.
func (m *Module) Registry() *Registry {
	return m.registry
}
