package relay

import (
	"context"
	"log"

	"github.com/go-monolith/mono"

	"github.com/mshige1979/simple-messaging/events"
	"github.com/mshige1979/simple-messaging/modules/broadcast"
	"github.com/mshige1979/simple-messaging/modules/history"
	"github.com/mshige1979/simple-messaging/modules/presence"
	"github.com/mshige1979/simple-messaging/modules/registry"
)

// Module owns the lifecycle coordinator. The store-backed collaborators are
// resolved at Start, after the presence and history modules have connected.
type Module struct {
	coordinator *Coordinator
	registryMod *registry.Module
	presenceMod *presence.Module
	historyMod  *history.Module
	hub         *broadcast.Hub
	eventBus    mono.EventBus
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates a new relay module.
func NewModule(registryMod *registry.Module, presenceMod *presence.Module, historyMod *history.Module, hub *broadcast.Hub) *Module {
	return &Module{
		registryMod: registryMod,
		presenceMod: presenceMod,
		historyMod:  historyMod,
		hub:         hub,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.MemberJoinedV1.ToBase(),
		events.MemberLeftV1.ToBase(),
		events.RoomResetV1.ToBase(),
	}
}

// Start builds the coordinator. Registration order guarantees the stores
// are connected by now.
func (m *Module) Start(_ context.Context) error {
	m.coordinator = NewCoordinator(
		m.registryMod.Registry(),
		m.presenceMod.Store(),
		m.historyMod.Log(),
		m.hub,
		m.eventBus,
	)
	log.Println("[relay] Module started - lifecycle coordinator ready")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[relay] Module stopped")
	return nil
}

// Coordinator returns the lifecycle coordinator for the API module.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}
