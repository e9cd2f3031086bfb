package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/cleanup"
	"github.com/blackwell-systems/dirwarden/internal/config"
	"github.com/blackwell-systems/dirwarden/internal/hashindex"
	"github.com/blackwell-systems/dirwarden/internal/metrics"
	"github.com/blackwell-systems/dirwarden/internal/monitor"
	"github.com/blackwell-systems/dirwarden/internal/output"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/sysinfo"
	"github.com/blackwell-systems/dirwarden/internal/watcher"
)

var (
	watchMaxFiles    uint32
	watchInterval    uint32
	watchBackupDir   string
	watchNoNotify    bool
	watchMetricsAddr string
	watchNoSave      bool
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool

	watchCmd = &cobra.Command{
		Use:   "watch [directory]",
		Short: "Monitor a directory and enforce its file limit",
		Long: `Monitor a directory and keep it at or below max_files files.

On every check interval, and shortly after files are created or removed, the
directory is rescanned. When it holds more than max_files files the oldest are
backed up and then deleted; a file whose backup fails is never deleted.
Duplicate files are reported but never touched.

Watch modes:
  • Foreground (default): live status screen, Ctrl+C to stop
  • Daemon: background process logging to a file
  • Stop: stop a running daemon

Flags override the config file for this run. Unless --no-save is given the
settings in effect are written back to the config file on exit.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  dirwarden watch /var/tmp/uploads

  # Keep 50 files, check every 30 seconds
  dirwarden watch /var/tmp/uploads --max-files 50 --interval 30

  # Run as background daemon with Prometheus metrics
  dirwarden watch /var/tmp/uploads --daemon --metrics-addr 127.0.0.1:9464

  # Stop running daemon
  dirwarden watch --stop`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().Uint32Var(&watchMaxFiles, "max-files", config.DefaultMaxFiles, "maximum number of files to keep")
	watchCmd.Flags().Uint32Var(&watchInterval, "interval", config.DefaultCheckIntervalSeconds, "check interval in seconds")
	watchCmd.Flags().StringVar(&watchBackupDir, "backup-dir", "", "backup directory (default from config: ./backup)")
	watchCmd.Flags().BoolVar(&watchNoNotify, "no-watch", false, "disable filesystem notifications and only poll")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	watchCmd.Flags().BoolVar(&watchNoSave, "no-save", false, "do not write settings back to the config file on exit")
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.dirwarden/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.dirwarden/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	if watchStop {
		return stopWatchDaemon()
	}

	if len(args) == 0 {
		return errors.New("a directory to watch is required")
	}
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}

	cfg, err := watchConfig(cmd)
	if err != nil {
		return err
	}

	if watchDaemon {
		return startWatchDaemon(cmd, dir)
	}

	return runMonitor(cmd, dir, cfg)
}

// watchConfig applies explicitly set flags on top of the loaded config.
func watchConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := *currentConfig()
	flags := cmd.Flags()

	if flags.Changed("max-files") {
		if watchMaxFiles < 1 {
			return nil, errors.New("--max-files must be >= 1")
		}
		cfg.MaxFiles = watchMaxFiles
	}
	if flags.Changed("interval") {
		if watchInterval < 1 {
			return nil, errors.New("--interval must be >= 1")
		}
		cfg.CheckIntervalSeconds = watchInterval
	}
	if flags.Changed("backup-dir") {
		cfg.Backup.Dir = watchBackupDir
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Listen = watchMetricsAddr
	}
	return &cfg, nil
}

func stopWatchDaemon() error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon(cmd *cobra.Command, dir string) error {
	// Fail in the parent so the user sees the error instead of the log file.
	if _, err := resolveDir(dir); err != nil {
		return err
	}

	spinner := output.NewSpinner("Starting daemon...")
	spinner.Start()
	if err := watcher.StartDaemon(daemonArgs(cmd, dir), watchPIDFile, watchLogFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nMonitoring %s in the background\n", dir)
	fmt.Printf("  PID file: %s\n", watchPIDFile)
	fmt.Printf("  Log file: %s\n", watchLogFile)
	fmt.Printf("\nTo stop: dirwarden watch --stop\n")

	return nil
}

// daemonArgs rebuilds the command line for the daemon child: the same
// explicitly set flags, with --daemon swapped for --daemon-child.
func daemonArgs(cmd *cobra.Command, dir string) []string {
	args := []string{"watch", dir, "--daemon-child",
		"--pid-file", watchPIDFile, "--log-file", watchLogFile}

	skip := map[string]bool{"daemon": true, "daemon-child": true, "pid-file": true, "log-file": true}
	add := func(f *pflag.Flag) {
		if !skip[f.Name] {
			args = append(args, "--"+f.Name+"="+f.Value.String())
		}
	}
	cmd.Flags().Visit(add)
	cmd.InheritedFlags().Visit(add)
	return args
}

// runMonitor wires the monitor for dir and runs it until SIGINT or SIGTERM.
func runMonitor(cmd *cobra.Command, dir string, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchDaemonChild {
		defer watcher.RemovePIDFile(watchPIDFile)
	}

	reporter := monitorReporter(cfg)
	log := slog.Default().With("component", "watch")

	var collector *metrics.Collector
	if cfg.Metrics.Listen != "" {
		collector = metrics.New(prometheus.NewRegistry())
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Listen); err != nil {
				reporter.Report(report.Warning{Message: "metrics server stopped", Err: err})
			}
		}()
	}

	backups, err := openBackups(cfg, "")
	if err != nil {
		return err
	}

	index, err := hashindex.New(osFs, hashindex.DefaultCacheSize, reporter)
	if err != nil {
		return fmt.Errorf("failed to create hash index: %w", err)
	}

	// Held by the monitor from cleanup until journaling, and by the pruner.
	var cleanupMu sync.Mutex

	deps := monitor.Deps{
		Dir:         dir,
		Config:      cfg,
		FS:          osFs,
		Reporter:    reporter,
		Index:       index,
		Executor:    cleanup.New(osFs, backups, reporter, cleanup.WithMetrics(collector)),
		Backups:     backups,
		Sampler:     sysinfo.New(dir),
		Metrics:     collector,
		Logger:      slog.Default(),
		CleanupLock: &cleanupMu,
	}

	if !watchNoSave {
		path, err := getConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		deps.ConfigStore = config.FileStore{Path: path}
	}

	if !watchNoNotify {
		deps.NewBridge = func(dir string) (monitor.EventSource, error) {
			b, err := watcher.NewBridge(dir, watcher.DefaultBuffer,
				watcher.WithMetrics(collector), watcher.WithLogger(slog.Default()))
			if err != nil {
				return nil, err
			}
			return b, nil
		}
	}

	journal, err := openJournal()
	if err != nil {
		reporter.Report(report.Warning{Message: "cleanup history disabled", Err: err})
	} else {
		defer journal.Close()
		deps.Journal = journal

		pruner := backup.NewPruner(backups, journal, cfg.Backup.RetentionDays, backup.WithLock(&cleanupMu))
		scheduler := backup.NewScheduler(pruner, cfg.Backup.PruneSchedule)
		if err := scheduler.Start(ctx); err != nil {
			reporter.Report(report.Warning{Message: "backup pruning disabled", Err: err})
		}
		defer scheduler.Stop()
	}

	loop, err := monitor.New(deps)
	if err != nil {
		return err
	}

	if !watchDaemonChild {
		fmt.Println("Starting directory monitor (press Ctrl+C to stop)...")
	}
	log.Info("watch starting", "dir", dir, "backup_root", backups.Root())

	if err := loop.Run(ctx); err != nil {
		return err
	}

	if !watchDaemonChild {
		fmt.Println("\nMonitoring stopped")
	}
	return nil
}

// monitorReporter picks the event sinks: the daemon only logs, the
// foreground shows the console and also logs when logs go to a file.
func monitorReporter(cfg *config.Config) report.Reporter {
	logs := report.NewLogReporter(slog.Default())
	if watchDaemonChild {
		return logs
	}

	console := output.NewConsole(os.Stdout)
	switch strings.ToLower(cfg.Logging.Output) {
	case "", "stderr", "stdout":
		return console
	default:
		return report.Multi(console, logs)
	}
}
