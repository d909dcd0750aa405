package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/perfguard/perfguard/internal/activity"
	"github.com/perfguard/perfguard/internal/config"
	"github.com/perfguard/perfguard/internal/gpu"
	"github.com/perfguard/perfguard/internal/poller"
	"github.com/perfguard/perfguard/internal/session"
	"github.com/perfguard/perfguard/internal/store"
	"github.com/perfguard/perfguard/internal/telemetry"
)

var BUILD_VERSION = "dev"

var (
	configPath  = flag.String("config", "", "path to the YAML configuration file")
	dataPath    = flag.String("data", "", "override the session data file location")
	trackName   = flag.String("track", "", "add an application to the tracking whitelist and exit")
	trackExe    = flag.String("exe", "", "executable path for -track")
	untrackName = flag.String("untrack", "", "stop tracking an application and exit")
	oncePID     = flag.Uint("pid", 0, "print one sample for a single process and exit")
	once        = flag.Bool("once", false, "print one telemetry snapshot and exit")
	versionFlag = flag.Bool("ver", false, "display build version")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfguard: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfguard: unable to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg, logger); err != nil {
		logger.Error("unhandled error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "perfguard: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	switch {
	case *trackName != "":
		return editWhitelist(cfg, logger, func(a *session.Aggregator) {
			a.Track(*trackName, *trackExe, time.Now())
		})
	case *untrackName != "":
		return editWhitelist(cfg, logger, func(a *session.Aggregator) {
			a.Untrack(*untrackName)
		})
	case *oncePID != 0:
		return printProcess(cfg, logger, uint32(*oncePID))
	case *once:
		return printSnapshot(cfg, logger)
	default:
		return runEngine(cfg, logger)
	}
}

// runEngine is the long-running mode: sample, score, aggregate, persist.
func runEngine(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, data, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	agg := session.NewAggregator(data, logger)

	tracker := activity.NewTracker(logger)
	tracker.Start()

	collector := telemetry.NewCollector(gpu.NewEstimator(logger), logger)

	manager := poller.NewManager(logger,
		poller.StreamTelemetry(collector, poller.TelemetryConfig{
			SampleInterval: cfg.PollInterval.Duration,
			ProcessLimit:   cfg.ProcessLimit,
		}, logger),
		poller.StreamActivity(tracker, poller.ActivityConfig{
			SampleInterval: cfg.PollInterval.Duration,
		}),
	)

	logger.Info("engine started",
		zap.Duration("poll_interval", cfg.PollInterval.Duration),
		zap.Duration("save_interval", cfg.SaveInterval.Duration),
		zap.String("data_file", st.Path()))

	var (
		mu           sync.Mutex
		lastActivity activity.Sample
		lastSave     = time.Now()
	)

	err = manager.Run(ctx, func(env poller.Envelope) error {
		mu.Lock()
		defer mu.Unlock()

		switch payload := env.Payload.(type) {
		case activity.Sample:
			lastActivity = payload
		case poller.TelemetrySample:
			agg.Observe(payload.Processes, lastActivity, tracker.IsAnyForeground, env.Timestamp)
			logger.Debug("poll cycle",
				zap.Int("processes", len(payload.Processes)),
				zap.Float64("cpu_percent", payload.System.CPUPercent),
				zap.Float64("memory_percent", payload.System.MemoryPercent),
				zap.Float64("activity_percent", lastActivity.ActivityPercent),
				zap.Int("open_sessions", agg.ActiveSessions()))
			if time.Since(lastSave) >= cfg.SaveInterval.Duration {
				if err := st.Save(agg.Snapshot()); err != nil {
					logger.Warn("periodic save failed", zap.Error(err))
				} else {
					lastSave = time.Now()
				}
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	agg.CloseAll(time.Now())
	if err := st.Save(agg.Snapshot()); err != nil {
		return fmt.Errorf("final save failed: %w", err)
	}
	logger.Info("engine stopped", zap.Int("sessions", len(agg.Snapshot().Sessions)))
	return nil
}

// editWhitelist applies a whitelist mutation and persists the document.
func editWhitelist(cfg config.Config, logger *zap.Logger, mutate func(*session.Aggregator)) error {
	st, data, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	agg := session.NewAggregator(data, logger)
	mutate(agg)
	return st.Save(agg.Snapshot())
}

// printSnapshot samples twice to establish CPU baselines and prints the top
// of the process table.
func printSnapshot(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	collector := telemetry.NewCollector(gpu.NewEstimator(logger), logger)

	if _, err := collector.CollectProcesses(ctx); err != nil {
		return err
	}
	time.Sleep(time.Second)

	procs, err := collector.CollectProcesses(ctx)
	if err != nil {
		return err
	}
	sys, err := collector.CollectSystemSummary(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("cpu %.1f%% of %d cores, memory %.1f%% (%.1f/%.1f GB)\n\n",
		sys.CPUPercent, sys.CPUCores, sys.MemoryPercent, sys.UsedMemoryGB, sys.TotalMemoryGB)

	limit := cfg.ProcessLimit
	if limit <= 0 || limit > len(procs) {
		limit = len(procs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tCPU%\tMEMORY\tGPU%")
	for _, p := range procs[:limit] {
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%s\t%.1f\n",
			p.PID, p.Name, p.CPUPercent, humanize.IBytes(p.MemoryBytes), p.GPUPercent)
	}
	return w.Flush()
}

func printProcess(cfg config.Config, logger *zap.Logger, pid uint32) error {
	ctx := context.Background()
	collector := telemetry.NewCollector(gpu.NewEstimator(logger), logger)

	// The first sample only seeds the CPU baseline; the rate comes from the
	// second pass.
	first, err := collector.CollectOne(ctx, pid)
	if err != nil {
		return err
	}
	if first == nil {
		return fmt.Errorf("process %d not found", pid)
	}
	time.Sleep(time.Second)

	sample, err := collector.CollectOne(ctx, pid)
	if err != nil {
		return err
	}
	if sample == nil {
		return fmt.Errorf("process %d exited while sampling", pid)
	}

	fmt.Printf("pid=%d name=%s status=%s cpu=%.1f%% memory=%s gpu=%.1f%%\n",
		sample.PID, sample.Name, sample.Status, sample.CPUPercent,
		humanize.IBytes(sample.MemoryBytes), sample.GPUPercent)
	if sample.ExePath != "" {
		fmt.Printf("exe=%s\n", sample.ExePath)
	}
	return nil
}

func openStore(cfg config.Config, logger *zap.Logger) (*store.Store, store.AppData, error) {
	path := cfg.DataPath
	if path == "" {
		var err error
		path, err = store.DefaultPath()
		if err != nil {
			return nil, store.AppData{}, err
		}
	}

	st := store.New(path)
	data, err := st.Load()
	if err != nil {
		return nil, store.AppData{}, err
	}
	logger.Info("loaded session data",
		zap.String("path", path),
		zap.Int("whitelist", len(data.Whitelist)),
		zap.Int("sessions", len(data.Sessions)))
	return st, data, nil
}

func initializeLogger(cfg config.Config) (*zap.Logger, error) {
	loggerConfig := zap.NewProductionConfig()
	if cfg.LogPath != "" {
		loggerConfig.OutputPaths = []string{cfg.LogPath}
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		loggerConfig.Level = level
	}
	return loggerConfig.Build()
}
