// wbimport imports Wirenboard MQTT devices into a device registry.
//
// It discovers controls from the retained /devices/<device>/controls/<control>
// topics of a Wirenboard broker, materialises the enabled ones as registry
// devices, relays their values, and publishes commands back to the
// controls' "/on" topics. An HTTP API exposes status, device management
// and a WebSocket event feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/wbmqtt-import/migrations"

	"github.com/nerrad567/wbmqtt-import/internal/api"
	"github.com/nerrad567/wbmqtt-import/internal/device"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/config"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/database"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/influxdb"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/logging"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/mqtt"
	"github.com/nerrad567/wbmqtt-import/internal/namespace"
	"github.com/nerrad567/wbmqtt-import/internal/wbimport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, args []string) error { //nolint:funlen // Linear startup sequence
	log := logging.Default()
	log.Info("starting wbimport",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", flags.configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	if flags.migrateDown {
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		log.Info("latest migration rolled back")
		return nil
	}
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database migrations complete", "applied", len(applied))

	registry := device.NewRegistry()
	registry.SetLogger(log.Component("registry"))
	namespaces := namespace.NewStore()

	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	session := mqtt.NewSession(cfg.MQTT)
	session.SetLogger(log.Component("mqtt"))

	opts := wbimport.Options{
		Config:    cfg,
		Transport: session,
		Registry:  registry,
		Store:     wbimport.NewSQLiteStore(db, cfg.Module.ID),
		Namespace: namespaces,
		Logger:    log.Component("wbimport").With("module_id", cfg.Module.ID),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	module, err := wbimport.New(opts)
	if err != nil {
		return fmt.Errorf("creating import module: %w", err)
	}
	if err := module.Start(ctx); err != nil {
		return fmt.Errorf("starting import module: %w", err)
	}
	defer func() {
		log.Info("stopping import module")
		module.Stop()
	}()
	log.Info("connecting to MQTT broker",
		"broker", session.Broker(),
		"namespace", cfg.NamespaceName(),
	)

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.Component("api"),
			Registry:   registry,
			Importer:   module,
			Namespaces: namespaces,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Import module (removes its devices, persists state)
	// 3. InfluxDB (if enabled)
	// 4. Database

	return nil
}

type cliFlags struct {
	configPath  string
	migrateDown bool
}

// parseFlags reads the command line. The config path is the --config
// flag, else WBIMPORT_CONFIG, else the default.
func parseFlags(args []string) (cliFlags, error) {
	fs := pflag.NewFlagSet("wbimport", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to the YAML configuration file")
	down := fs.Bool("migrate-down", false, "roll back the latest database migration and exit")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, fmt.Errorf("parsing flags: %w", err)
	}

	f := cliFlags{configPath: *path, migrateDown: *down}
	if f.configPath == "" {
		f.configPath = os.Getenv("WBIMPORT_CONFIG")
	}
	if f.configPath == "" {
		f.configPath = defaultConfigPath
	}
	return f, nil
}

// connectInflux connects to InfluxDB when enabled. It returns a nil client
// when telemetry is off.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// healthCheck verifies the infrastructure connections. influxClient may be
// nil. The MQTT broker is not checked: the import module reconnects on its
// own schedule.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
