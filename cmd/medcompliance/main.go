// medcompliance tracks expiring inventory and drives controlled disposal
// through approval and witness to completion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medequip/compliance/internal/config"
	"github.com/medequip/compliance/internal/database"
	"github.com/medequip/compliance/internal/lock"
	"github.com/medequip/compliance/internal/metrics"
	"github.com/medequip/compliance/internal/report"
	"github.com/medequip/compliance/internal/scheduler"
	"github.com/medequip/compliance/internal/server"
	"github.com/medequip/compliance/internal/services/compliance"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type options struct {
	configPath  string
	migrateOnly bool
	scan        bool
	horizon     int
	summary     bool
	export      string
	serve       bool
	debug       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.migrateOnly, "migrate-only", false, "Run migrations and exit")
	flag.BoolVar(&opts.scan, "scan", false, "Scan inventory for expiring lots and exit")
	flag.IntVar(&opts.horizon, "horizon", 0, "Scan horizon in days (default from config)")
	flag.BoolVar(&opts.summary, "summary", false, "Print the compliance report")
	flag.StringVar(&opts.export, "export", "", "Write the compliance report to an XLSX file")
	flag.BoolVar(&opts.serve, "serve", false, "Run scheduled scans and serve health and metrics")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("medcompliance version %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		time.AfterFunc(10*time.Second, func() {
			slog.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	if err := run(ctx, opts); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, cfgPath, err := config.Load(opts.configPath, true)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	closeLog, err := setupLogging(cfg, opts.debug)
	if err != nil {
		return err
	}
	defer closeLog()

	slog.Info("medcompliance starting",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cfgPath,
		"facility", cfg.Facility.Name,
	)

	dbPath, err := config.EnsureDataDir(cfg)
	if err != nil {
		return fmt.Errorf("ensuring data directory: %w", err)
	}

	backupDir, err := config.BackupDir(cfg)
	if err != nil {
		slog.Warn("failed to create backup directory", "error", err)
		backupDir = ""
	}

	db, err := database.Open(dbPath, &cfg.Database, backupDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		slog.Info("closing database")
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}()

	migrator, err := database.NewMigrator(db)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	result, err := migrator.MigrateUp(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if len(result.Applied) > 0 {
		slog.Info("applied migrations",
			"count", len(result.Applied),
			"to_version", result.TargetVersion,
		)
	}

	if opts.migrateOnly {
		slog.Info("migrations complete, exiting")
		return nil
	}

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	m := metrics.New()

	svcOpts, err := compliance.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("building service options: %w", err)
	}
	svcOpts.Locker = locker
	svcOpts.Metrics = m
	svcOpts.Logger = slog.Default()
	svc := compliance.NewService(db, svcOpts)

	switch {
	case opts.serve:
		return serve(ctx, cfg, svc, db, m)
	case opts.scan:
		return scan(ctx, svc, opts.horizon)
	}

	if opts.export == "" && !opts.summary {
		// Nothing else asked for; the report is the default view.
		opts.summary = true
	}

	data, err := report.Collect(ctx, svc, cfg.Facility.Name)
	if err != nil {
		return fmt.Errorf("collecting report: %w", err)
	}

	if opts.export != "" {
		if err := export(opts.export, data, svc.Thresholds()); err != nil {
			return err
		}
		slog.Info("report exported", "path", opts.export)
	}

	if opts.summary {
		term := report.NewTerminal(report.NewTheme(cfg.Display.ColorScheme), svc.Thresholds())
		if err := term.Write(os.Stdout, data); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}

	return nil
}

func setupLogging(cfg *config.Config, debug bool) (func(), error) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case config.LogLevelDebug:
			logLevel = slog.LevelDebug
		case config.LogLevelWarn:
			logLevel = slog.LevelWarn
		case config.LogLevelError:
			logLevel = slog.LevelError
		}
	}

	logPath, err := config.EnsureLogDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	closeFn := func() {}
	var logHandler slog.Handler
	if logPath != "" {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		closeFn = func() { logFile.Close() }

		logHandler = slog.NewJSONHandler(logFile, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		logHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		})
	}

	slog.SetDefault(slog.New(logHandler))
	return closeFn, nil
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.Locking.Backend != config.LockBackendRedis {
		return lock.NewLocalLocker(), func() {}, nil
	}

	client := lock.NewRedisClient(lock.RedisOptions{
		Addr:     cfg.Locking.RedisAddr,
		Password: cfg.Locking.RedisPass,
		DB:       cfg.Locking.RedisDB,
	})
	prefix := "medcompliance:" + cfg.Facility.Code + ":lock:"
	locker := lock.NewRedisLocker(client, prefix, cfg.Locking.LockTTL())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := locker.Ping(pingCtx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Locking.RedisAddr, err)
	}

	slog.Info("using redis locks", "addr", cfg.Locking.RedisAddr)
	return locker, func() {
		if err := client.Close(); err != nil {
			slog.Warn("error closing redis client", "error", err)
		}
	}, nil
}

func scan(ctx context.Context, svc *compliance.Service, horizon int) error {
	if horizon <= 0 {
		horizon = svc.Horizon()
	}

	res, err := svc.Scan(ctx, horizon)
	if err != nil {
		return fmt.Errorf("scanning inventory: %w", err)
	}

	fmt.Printf("Scan complete (horizon %d days) in %s\n", horizon, res.Duration.Round(time.Millisecond))
	fmt.Printf("  expired:       %d\n", res.Expired)
	fmt.Printf("  expiring soon: %d\n", res.ExpiringSoon)
	fmt.Printf("  created:       %d\n", res.Created)
	fmt.Printf("  updated:       %d\n", res.Updated)
	fmt.Printf("  suppressed:    %d\n", res.Suppressed)
	fmt.Printf("  cleared:       %d\n", res.Cleared)
	fmt.Printf("  skipped:       %d\n", res.Skipped)
	if res.Failed > 0 {
		fmt.Printf("  failed:        %d\n", res.Failed)
	}
	return nil
}

func export(path string, data *report.Data, thresholds compliance.Thresholds) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	if err := report.WriteWorkbook(f, data, thresholds); err != nil {
		f.Close()
		return fmt.Errorf("exporting report: %w", err)
	}
	return f.Close()
}

func serve(ctx context.Context, cfg *config.Config, svc *compliance.Service, db *database.DB, m *metrics.Metrics) error {
	sched := scheduler.New(svc, cfg.Compliance.ScanInterval(), svc.Horizon(), slog.Default())

	errCh := make(chan error, 2)
	go func() {
		errCh <- sched.Run(ctx)
	}()

	var srv *server.Server
	if cfg.Metrics.Enabled {
		srv = server.New(cfg.Metrics.Addr, m.Registry(), db.HealthCheck)
		go func() {
			slog.Info("serving health and metrics", "addr", cfg.Metrics.Addr)
			if err := srv.Start(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	slog.Info("scheduler started",
		"interval", cfg.Compliance.ScanInterval(),
		"horizon_days", svc.Horizon(),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down metrics server", "error", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	slog.Info("medcompliance shutdown complete", "scheduled_runs", sched.Runs())
	return nil
}
