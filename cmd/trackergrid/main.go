// Tracker Grid - live device_tracker table with one-click reconnects
//
// This is the main entry point. It wires the Home Assistant state feed into
// the grid engine and serves the result to the HTTP/WebSocket API and,
// optionally, an interactive terminal table.
//
// Usage:
//
//	trackergrid                    run the service
//	trackergrid token <subject> [role]
//	                               print an API access token
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/tracker-grid/internal/api"
	"github.com/nerrad567/tracker-grid/internal/audit"
	"github.com/nerrad567/tracker-grid/internal/auth"
	"github.com/nerrad567/tracker-grid/internal/feed"
	"github.com/nerrad567/tracker-grid/internal/grid"
	"github.com/nerrad567/tracker-grid/internal/hass"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/config"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/database"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/influxdb"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/logging"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/mqtt"
	"github.com/nerrad567/tracker-grid/internal/tui"
	"github.com/nerrad567/tracker-grid/migrations"
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

// terminalLogFile receives log output while the terminal table owns the screen.
const terminalLogFile = "trackergrid.log"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(os.Stdout, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Tracker Grid",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	viewCfg, err := viewConfig(cfg.Grid)
	if err != nil {
		return fmt.Errorf("grid config: %w", err)
	}

	// Reinitialise logger with config settings
	logOut, closeLog, err := logOutput(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	log = logging.NewWithWriter(cfg.Logging, version, logOut)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Quitting the terminal table stops the service too.
	ctx, stop := context.WithCancel(ctx)
	defer stop()

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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	history := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(history, log, 0)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Renderers: WebSocket hub, terminal table, presence history
	hub := api.NewHub(cfg.WebSocket, log)
	renderers := grid.Fanout{hub}
	var termRenderer *tui.Renderer
	if cfg.Terminal.Enabled {
		termRenderer = tui.NewRenderer()
		renderers = append(renderers, termRenderer)
	}
	if influxClient != nil {
		renderers = append(renderers, influxClient)
	}

	store := feed.NewStore(nil)

	// The Home Assistant connection carries both state and reconnect calls.
	var transport grid.Transport
	var hassClient *hass.Client
	if cfg.HomeAssistant.Enabled {
		hassClient = hass.New(hass.OptionsFromConfig(cfg.HomeAssistant), store)
		hassClient.SetLogger(log)
		transport = hassClient
	}

	engine, err := grid.NewEngine(viewCfg, grid.Deps{
		Transport: transport,
		Renderer:  renderers,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating grid engine: %w", err)
	}
	defer engine.Close()

	actions := engine.Actions()
	actions.OnResult(recorder.Record)
	actions.OnResult(hub.PublishReconnect)
	if mqttClient != nil {
		actions.OnResult(mqttClient.PublishReconnect)
	}
	if influxClient != nil {
		actions.OnResult(influxClient.WriteReconnect)
	}

	store.SetSink(engine.PushFeed)
	log.Info("grid engine ready",
		"title", viewCfg.Title,
		"service", viewCfg.ServiceDomain+"."+viewCfg.ServiceAction,
		"feed", cfg.Feed.Source,
	)

	if cfg.Feed.Source == config.FeedSourceStatestream {
		stream := feed.NewStatestream(mqttClient, store, cfg.Feed.StatestreamBaseTopic, byte(cfg.MQTT.QoS))
		stream.SetLogger(log)
		if startErr := stream.Start(); startErr != nil {
			return fmt.Errorf("subscribing to statestream: %w", startErr)
		}
		log.Info("statestream subscribed", "topic", stream.Topic())
		defer func() {
			if stopErr := stream.Stop(); stopErr != nil {
				log.Warn("error unsubscribing statestream", "error", stopErr)
			}
		}()
	}

	// Start API server (optional)
	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{"database": db}
		if mqttClient != nil {
			checks["mqtt"] = mqttClient
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}
		if hassClient != nil {
			checks["home_assistant"] = hassClient
		}

		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Engine:   engine,
			Hub:      hub,
			History:  history,
			Checks:   checks,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return recorder.Run(gctx)
	})

	if hassClient != nil {
		defer hassClient.Close() //nolint:errcheck // Best effort on shutdown
		g.Go(func() error {
			if runErr := hassClient.Run(gctx); runErr != nil {
				return fmt.Errorf("home assistant: %w", runErr)
			}
			return nil
		})
	}

	if termRenderer != nil {
		g.Go(func() error {
			defer stop()
			return tui.Run(gctx, engine, termRenderer, tui.Options{AltScreen: cfg.Terminal.AltScreen})
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Home Assistant connection
	// 2. API server
	// 3. Grid engine
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database

	log.Info("Tracker Grid stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TRACKERGRID_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TRACKERGRID_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// logOutput picks the log destination. While the terminal table is shown,
// stdout and stderr belong to it, so logs go to a file beside the database.
//
// Returns:
//   - io.Writer: Log destination
//   - func(): Closes the destination
//   - error: If the log file cannot be opened
func logOutput(cfg *config.Config) (io.Writer, func(), error) {
	switch cfg.Logging.Output {
	case "discard", "none":
		return io.Discard, func() {}, nil
	}

	if cfg.Terminal.Enabled {
		dir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, terminalLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, func() { f.Close() }, nil
	}

	if cfg.Logging.Output == "stderr" {
		return os.Stderr, func() {}, nil
	}
	return os.Stdout, func() {}, nil
}

// viewConfig resolves the grid section of the configuration file.
// A "service" shorthand takes precedence over service_domain/service_action.
func viewConfig(g config.GridConfig) (grid.ViewConfig, error) {
	vc := grid.ViewConfig{
		Title:             g.Title,
		ServiceDomain:     g.ServiceDomain,
		ServiceAction:     g.ServiceAction,
		MACParam:          g.MACParam,
		FormatMAC:         g.FormatMAC,
		Columns:           columns(g.ColumnsOrder),
		ShowOffline:       g.ShowOffline,
		FilterByEntity:    g.FilterByEntity,
		MaxDevices:        g.MaxDevices,
		SortBy:            grid.SortKey(g.SortBy),
		SortOrder:         grid.SortOrder(g.SortOrder),
		AlternatingRows:   g.AlternatingRows,
		ShowFilter:        g.ShowFilter,
		FilterPlaceholder: g.FilterPlaceholder,
		StateIndicator:    g.StateIndicator,
		SortableColumns:   columns(g.SortableColumns),
		EnableSorting:     g.EnableSorting,
		Debounce:          g.Debounce(),
		RestoreDelay:      g.RestoreDelay(),
		ActionTimeout:     g.ActionTimeoutDuration(),
	}
	if vc.Title == "" {
		vc.Title = grid.DefaultTitle
	}

	if g.Service != "" {
		domain, action, err := grid.ParseService(g.Service)
		if err != nil {
			return grid.ViewConfig{}, err
		}
		vc.ServiceDomain, vc.ServiceAction = domain, action
	}

	if err := vc.Validate(); err != nil {
		return grid.ViewConfig{}, err
	}
	return vc, nil
}

func columns(names []string) []grid.Column {
	cols := make([]grid.Column, len(names))
	for i, n := range names {
		cols[i] = grid.Column(n)
	}
	return cols
}

// printToken issues an API access token signed with the configured secret.
//
// Parameters:
//   - w: Destination for the token
//   - args: subject and optional role (default operator)
//
// Returns:
//   - error: On missing arguments, an unknown role, or a config failure
func printToken(w io.Writer, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return errors.New("usage: trackergrid token <subject> [viewer|operator]")
	}
	role := auth.RoleOperator
	if len(args) > 1 {
		role = auth.Role(args[1])
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	token, err := auth.GenerateToken(args[0], role, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// healthCheck verifies all infrastructure connections are healthy.
// The Home Assistant connection is not checked: it is established in the
// background and retried until it succeeds.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
