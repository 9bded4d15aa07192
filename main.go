package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/mshige1979/simple-messaging/modules/api"
	"github.com/mshige1979/simple-messaging/modules/broadcast"
	"github.com/mshige1979/simple-messaging/modules/history"
	"github.com/mshige1979/simple-messaging/modules/presence"
	"github.com/mshige1979/simple-messaging/modules/registry"
	"github.com/mshige1979/simple-messaging/modules/relay"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== simple-messaging - room-scoped chat relay ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	port := envOr("PORT", "3000")

	// Create modules
	registryModule := registry.NewModule()
	presenceModule := presence.NewModule(redisAddr)
	historyModule := history.NewModule(redisAddr)
	broadcastModule := broadcast.NewModule()
	relayModule := relay.NewModule(registryModule, presenceModule, historyModule, broadcastModule.Hub())
	apiModule := api.NewModule(port, relayModule, historyModule, presenceModule, broadcastModule.Hub())

	// Registration order doubles as start order: stores connect before the
	// coordinator resolves them, the HTTP surface comes up last.
	app.Register(registryModule)  // connection ids
	app.Register(presenceModule)  // membership store (shared)
	app.Register(historyModule)   // message log (shared)
	app.Register(broadcastModule) // WebSocket hub + event consumers
	app.Register(relayModule)     // lifecycle coordinator + event emitter
	app.Register(apiModule)       // HTTP/WebSocket surface

	// Unreachable store or failed bind aborts here with a clear diagnostic.
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(port, redisAddr)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printStartupInfo(port, redisAddr string) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Printf("  - Shared store: Redis at %s (memberships + message log)", redisAddr)
	log.Println("  - Fan-out: relay events -> broadcast module -> WebSocket clients")
	log.Println("")
	log.Printf("HTTP Endpoints (http://localhost:%s):", port)
	log.Println("  GET /health              - Health check")
	log.Println("  GET /messages?id=<room>  - Room message history")
	log.Println("  GET /rooms/:id/members   - Current room members")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println(`  join:    {"type":"join","roomId":"lobby","displayName":"alice","isNewRoom":false}`)
	log.Println(`  message: {"type":"message","body":"hi"}`)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
