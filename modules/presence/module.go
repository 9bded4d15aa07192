package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Module provides the membership store as a mono module.
type Module struct {
	store     *Store
	client    *redis.Client
	redisAddr string
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new presence module.
func NewModule(redisAddr string) *Module {
	return &Module{
		redisAddr: redisAddr,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Init connects to the shared store. A permanently unreachable store at boot
// is fatal: the error propagates and the application refuses to start.
func (m *Module) Init(_ mono.ServiceContainer) error {
	m.client = redis.NewClient(&redis.Options{
		Addr:         m.redisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := m.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to shared store: %w", err)
	}

	m.store = New(m.client, defaultKey)
	log.Printf("[presence] Connected to shared store at %s", m.redisAddr)
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[presence] Module started")
	return nil
}

// Stop closes the store connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close shared store connection: %w", err)
		}
	}
	log.Println("[presence] Module stopped")
	return nil
}

// Health reports whether the shared store is reachable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{Healthy: false, Message: "store not initialized"}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// Store returns the membership store for direct injection.
func (m *Module) Store() *Store {
	return m.store
}
