// Cold Chain Core - Flower Shipment Telemetry Engine
//
// This is the main entry point for the Cold Chain Core application.
// Cold Chain Core ingests environmental telemetry from refrigerated
// flower shipments, evaluates each reading against per-shipment safety
// envelopes, and raises alerts when cargo conditions drift out of range.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/petalworks/coldchain-core/migrations"

	"github.com/petalworks/coldchain-core/internal/api"
	"github.com/petalworks/coldchain-core/internal/bridges/sensormqtt"
	"github.com/petalworks/coldchain-core/internal/device"
	"github.com/petalworks/coldchain-core/internal/infrastructure/config"
	"github.com/petalworks/coldchain-core/internal/infrastructure/database"
	"github.com/petalworks/coldchain-core/internal/infrastructure/influxdb"
	"github.com/petalworks/coldchain-core/internal/infrastructure/logging"
	"github.com/petalworks/coldchain-core/internal/infrastructure/mqtt"
	"github.com/petalworks/coldchain-core/internal/shipment"
	"github.com/petalworks/coldchain-core/internal/telemetry"
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

// pruneInterval is how often the retention pass runs.
const pruneInterval = time.Hour

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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Cold Chain Core",
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

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.With("component", "registry"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	// Repositories and ingestion pipeline
	shipments := shipment.NewSQLiteRepository(db.DB)
	readings := telemetry.NewSQLiteReadingRepository(db.DB)
	alerts := telemetry.NewSQLiteAlertRepository(db.DB)

	emitter := telemetry.NewEmitter(alerts)
	emitter.SetLogger(log.With("component", "alerts"))

	pipeline := telemetry.NewPipeline(registry, shipments, readings, emitter, cfg.GetIngestTimeout())
	pipeline.SetLogger(log.With("component", "ingest"))

	query := telemetry.NewQueryService(readings, cfg.GetIngestTimeout())
	query.SetLogger(log.With("component", "query"))

	// Connect to InfluxDB mirror (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		pipeline.SetMirror(influxClient)
		log.Info("InfluxDB mirror connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	// Create the API server and wire its WebSocket hub into the pipeline
	// before anything starts, so early readings reach dashboards too.
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log.With("component", "api"),
		Registry:  registry,
		Shipments: shipments,
		Alerts:    alerts,
		Pipeline:  pipeline,
		Query:     query,
		DB:        db,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	sinks := []telemetry.EventSink{server.Hub()}

	// Connect to MQTT and start the sensor bridge (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge := sensormqtt.New(mqttClient, pipeline, log.With("component", "sensor_bridge"))
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting sensor bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping sensor bridge")
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Error("error stopping sensor bridge", "error", stopErr)
			}
		}()

		sinks = append(sinks, sensormqtt.NewEventPublisher(mqttClient, log.With("component", "event_publisher")))
	} else {
		log.Info("MQTT sensor bridge disabled")
	}

	pipeline.SetEventSink(fanoutSink(sinks))

	// Start the API server
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Start the retention pruner (if enabled)
	if cfg.Ingest.RetentionDays > 0 {
		go pruneLoop(ctx, readings, cfg.Ingest.RetentionDays, log.With("component", "retention"))
		log.Info("retention pruning enabled", "days", cfg.Ingest.RetentionDays)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Sensor bridge, MQTT (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("Cold Chain Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses COLDCHAIN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("COLDCHAIN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// fanoutSink fans one pipeline event out to every configured sink.
type fanoutSink []telemetry.EventSink

// Broadcast implements telemetry.EventSink.
func (f fanoutSink) Broadcast(eventType string, payload any) {
	for _, sink := range f {
		sink.Broadcast(eventType, payload)
	}
}

// pruneLoop periodically deletes readings older than the retention window.
func pruneLoop(ctx context.Context, readings telemetry.ReadingRepository, retentionDays int, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
			deleted, err := readings.Prune(ctx, cutoff)
			if err != nil {
				log.Error("retention prune failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("pruned old readings", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
			}
		}
	}
}
