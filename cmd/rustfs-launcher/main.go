// RustFS Launcher - local supervisor for a RustFS object storage server
//
// This is the main entry point for the launcher. It starts an HTTP API and
// WebSocket event stream on loopback, launches RustFS on request, captures
// its console output into bounded in-memory logs and terminates it on
// shutdown.
//
// Optional integrations, each enabled in the config file:
//   - SQLite run history
//   - MQTT log relay
//   - InfluxDB log and lifecycle metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/rustfs-launcher/migrations"

	"github.com/nerrad567/rustfs-launcher/internal/api"
	"github.com/nerrad567/rustfs-launcher/internal/history"
	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/config"
	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/database"
	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/influxdb"
	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/logging"
	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/mqtt"
	"github.com/nerrad567/rustfs-launcher/internal/process"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor the env var is set.
	// A missing file at this path falls back to built-in defaults.
	defaultConfigPath = "configs/config.yaml"

	// configEnv overrides the config path.
	configEnv = "RUSTFS_LAUNCHER_CONFIG"

	// staleRunStatus marks runs left open by a previous launcher process.
	staleRunStatus = "launcher restarted"
)

// options holds parsed command-line flags.
type options struct {
	configPath     string
	configOptional bool
	showVersion    bool
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line. The config path comes from --config,
// then RUSTFS_LAUNCHER_CONFIG, then the default.
func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("rustfs-launcher", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default: "+defaultConfigPath+")")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if opts.configPath == "" {
		opts.configPath = os.Getenv(configEnv)
	}
	if opts.configPath == "" {
		opts.configPath = defaultConfigPath
		opts.configOptional = true
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//   - out: Destination for --help and --version output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args, out)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(out, "rustfs-launcher %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting RustFS launcher",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath, opts.configOptional)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	supervisor := process.New(process.Config{
		BinariesDir:        cfg.Launcher.BinariesDir,
		AppLogCapacity:     cfg.Launcher.AppLogCapacity,
		ProcessLogCapacity: cfg.Launcher.ProcessLogCapacity,
	})
	supervisor.SetLogger(log.With("component", "process"))
	supervisor.Broadcaster().SetLogger(log.With("component", "broadcast"))

	health := make(map[string]api.HealthChecker)
	var closers []closer

	runs, dbCloser, err := setupHistory(ctx, cfg, supervisor, log)
	if err != nil {
		return err
	}
	if dbCloser != nil {
		// The database must outlive the final exit record, so it is closed
		// after the concurrent shutdown group.
		defer dbCloser.close(log)
		health["database"] = dbCloser.checker
	}

	if c := setupMQTT(cfg, supervisor, log); c != nil {
		closers = append(closers, *c)
		health["mqtt"] = c.checker
	}
	if c := setupInfluxDB(cfg, supervisor, log); c != nil {
		closers = append(closers, *c)
		health["influxdb"] = c.checker
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.With("component", "api"),
		Supervisor: supervisor,
		Register: func(h *api.Hub) bool {
			return supervisor.Broadcaster().SetSurface(h)
		},
		History: runs,
		Health:  health,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		closeAll(log, closers)
		return fmt.Errorf("starting API server: %w", err)
	}
	closers = append([]closer{{name: "API server", fn: server.Close}}, closers...)

	supervisor.AppLog("RustFS launcher started")
	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	supervisor.AppLog("Application closing, terminating RustFS process...")
	supervisor.Terminate()

	// Flush queued relay entries before the MQTT and InfluxDB clients go
	supervisor.Broadcaster().Close()
	closeAll(log, closers)

	log.Info("RustFS launcher stopped")
	return nil
}

// closer is a named shutdown step, optionally with a health check.
type closer struct {
	name    string
	fn      func() error
	checker api.HealthChecker
}

func (c closer) close(log *logging.Logger) {
	log.Info("closing " + c.name)
	if err := c.fn(); err != nil {
		log.Error("error closing "+c.name, "error", err)
	}
}

// closeAll shuts independent components down concurrently.
func closeAll(log *logging.Logger, closers []closer) {
	var g errgroup.Group
	for _, c := range closers {
		c := c
		g.Go(func() error {
			c.close(log)
			return nil
		})
	}
	//nolint:errcheck // closers log their own errors
	g.Wait()
}

// setupHistory opens the database, migrates it, closes runs left open by a
// previous launcher process and subscribes a recorder to the supervisor.
func setupHistory(ctx context.Context, cfg *config.Config, supervisor *process.Supervisor, log *logging.Logger) (history.Repository, *closer, error) {
	if !cfg.Database.Enabled {
		log.Info("run history disabled")
		return nil, nil, nil
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	repo := history.NewSQLiteRepository(db.DB)
	closed, err := repo.CloseStale(ctx, time.Now(), staleRunStatus)
	if err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("closing stale runs: %w", err)
	}
	if closed > 0 {
		log.Warn("closed runs left open by a previous launcher", "count", closed)
	}

	recorder := history.NewRecorder(repo)
	recorder.SetLogger(log.With("component", "history"))
	supervisor.AddObserver(recorder)

	return repo, &closer{name: "database", fn: db.Close, checker: db}, nil
}

// setupMQTT connects the optional log relay. A broker that cannot be reached
// disables the relay; the launcher keeps running.
func setupMQTT(cfg *config.Config, supervisor *process.Supervisor, log *logging.Logger) *closer {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT relay disabled")
		return nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		log.Warn("MQTT relay unavailable", "error", err)
		supervisor.AppLog("MQTT relay unavailable: " + err.Error())
		return nil
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	relay := mqtt.NewRelay(client)
	supervisor.Broadcaster().AddSink(relay)
	supervisor.AddObserver(relay)

	return &closer{name: "MQTT", fn: client.Close, checker: client}
}

// setupInfluxDB connects the optional metrics sink. Like MQTT, an unreachable
// server only disables the sink.
func setupInfluxDB(cfg *config.Config, supervisor *process.Supervisor, log *logging.Logger) *closer {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		log.Warn("InfluxDB unavailable", "error", err)
		supervisor.AppLog("InfluxDB unavailable: " + err.Error())
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)

	sink := influxdb.NewSink(client)
	supervisor.Broadcaster().AddSink(sink)
	supervisor.AddObserver(sink)

	return &closer{name: "InfluxDB", fn: client.Close, checker: client}
}
