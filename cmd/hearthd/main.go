// Hearth Core - Home Automation Engine
//
// This is the main entry point for the Hearth Core daemon. The engine:
//   - Consumes device telemetry from an MQTT broker
//   - Maintains an in-memory latest-state cache per device
//   - Evaluates user-defined automation rules against incoming telemetry
//   - Publishes resolved device commands back to the broker
//   - Serves a REST + WebSocket control plane for definitions and state
//
// The broker is the only hard external dependency, and even it is soft:
// the engine starts without it, serves reads, and reports command
// endpoints as unavailable until the connection is established.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hearthd/hearth-core/migrations"

	"github.com/hearthd/hearth-core/internal/api"
	"github.com/hearthd/hearth-core/internal/audit"
	"github.com/hearthd/hearth-core/internal/bus"
	"github.com/hearthd/hearth-core/internal/device"
	"github.com/hearthd/hearth-core/internal/infrastructure/config"
	"github.com/hearthd/hearth-core/internal/infrastructure/database"
	"github.com/hearthd/hearth-core/internal/infrastructure/logging"
	"github.com/hearthd/hearth-core/internal/rules"
	"github.com/hearthd/hearth-core/internal/state"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Components shut down in reverse start order via defers: the bus stops
// first so no more events flow into the hub, then the API drains its
// in-flight requests, then the database closes.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the audit database (optional: the engine runs without it,
	// control-plane mutations are simply not recorded)
	var db *database.DB
	var auditRepo audit.Repository
	if cfg.Audit.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.URI,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", db.Path())

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		auditRepo = audit.NewSQLiteRepository(db.DB)
	} else {
		log.Info("audit trail disabled")
	}

	// Device registry: definitions loaded from the JSON file. A missing
	// file starts the registry empty; definitions arrive via the API.
	registry := device.NewRegistry(cfg.Engine.DevicesFile)
	registry.SetLogger(log)
	if loadErr := registry.Load(); loadErr != nil {
		return fmt.Errorf("loading device registry: %w", loadErr)
	}
	log.Info("device registry initialised",
		"path", cfg.Engine.DevicesFile,
		"devices", registry.Count(),
	)

	// Rules store: same deal, file-backed, empty when absent.
	store := rules.NewStore(cfg.Engine.RulesFile)
	store.SetLogger(log)
	if loadErr := store.Load(); loadErr != nil {
		return fmt.Errorf("loading rules: %w", loadErr)
	}

	// State cache over the registry.
	states := state.NewCache(registry)
	states.SetLogger(log)

	// Rule evaluator. The bus wires itself in as the action handler.
	evaluator := rules.NewEvaluator(store, registry)
	evaluator.SetLogger(log)

	// Message bus: MQTT connection management, inbound dispatch to the
	// cache and evaluator, outbound command publishes.
	busClient := bus.New(cfg.MQTT, cfg.Engine, registry, evaluator, states)
	busClient.SetLogger(log)

	// After every rule mutation: recompile the evaluator's rule set and
	// reconcile broker subscriptions, synchronously, so the change is
	// live before the API responds.
	store.OnChange(func() {
		if reloadErr := evaluator.Reload(); reloadErr != nil {
			log.Error("rule reload failed", "error", reloadErr)
		}
		if subErr := busClient.ReconcileSubscriptions(); subErr != nil {
			log.Error("subscription reconcile failed", "error", subErr)
		}
	})

	// Initial compile so trigger topics are known before the bus connects.
	if reloadErr := evaluator.Reload(); reloadErr != nil {
		return fmt.Errorf("compiling rules: %w", reloadErr)
	}
	total, enabled := store.Count()
	log.Info("rule engine ready", "rules", total, "enabled", enabled)

	// WebSocket hub doubles as the bus's event sink: state changes and
	// command records fan out to subscribed clients.
	hub := api.NewHub(cfg.WebSocket, log)
	busClient.SetEventSink(hub)

	// HTTP control plane.
	apiServer, err := api.New(api.Deps{
		App:         cfg.App,
		API:         cfg.API,
		CORS:        cfg.CORS,
		WS:          cfg.WebSocket,
		JWTSecret:   cfg.JWTSecretKey,
		Logger:      log,
		Registry:    registry,
		States:      states,
		Rules:       store,
		Bus:         busClient,
		AuditRepo:   auditRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// Connect to the broker last, after every consumer is wired. Start
	// returns immediately; connection and retries happen in background.
	busClient.Start()
	defer func() {
		log.Info("stopping bus")
		busClient.Stop()
	}()
	log.Info("bus starting",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.BrokerHost, cfg.MQTT.BrokerPort),
	)

	// Verify the components that must be up are up. The bus is exempt:
	// a dead broker degrades command endpoints, it does not stop the engine.
	if err := healthCheck(ctx, db, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Bus (stop telemetry and command flow)
	// 2. API server (drain in-flight requests)
	// 3. Database (if audit enabled)

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the startup-critical components are healthy.
// The database is nil when the audit trail is disabled.
func healthCheck(ctx context.Context, db *database.DB, apiServer *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
