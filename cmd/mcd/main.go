package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/loekd/MissionCriticalDemo/internal/cmd/client"
	dispatchrun "github.com/loekd/MissionCriticalDemo/internal/cmd/dispatch"
	plantrun "github.com/loekd/MissionCriticalDemo/internal/cmd/plant"
	cfgpkg "github.com/loekd/MissionCriticalDemo/internal/config"
	logpkg "github.com/loekd/MissionCriticalDemo/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mcd",
		Short: "Gas dispatch runtime CLI",
		Long:  "mcd runs the dispatch and plant processes and provides client commands for the dispatch HTTP API.",
	}

	rootCmd.AddCommand(newStartCommand("dispatch", "Start the dispatch process (HTTP API, relay workers, bus loops)", func(ctx context.Context, cfg cfgpkg.Config, logger logpkg.Logger) error {
		return dispatchrun.Run(ctx, dispatchrun.Options{Config: cfg, Logger: logger})
	}))
	rootCmd.AddCommand(newStartCommand("plant", "Start the plant process (storage facility, request processor)", func(ctx context.Context, cfg cfgpkg.Config, logger logpkg.Logger) error {
		return plantrun.Run(ctx, plantrun.Options{Config: cfg, Logger: logger})
	}))

	for _, c := range []*cobra.Command{
		clientcmd.NewSubmitCommand(apiURL),
		clientcmd.NewGasInStoreCommand(apiURL),
		clientcmd.NewWatchCommand(apiURL),
	} {
		rootCmd.AddCommand(c)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, cfg cfgpkg.Config, logger logpkg.Logger) error

func newStartCommand(role, short string, run runFunc) *cobra.Command {
	roleCmd := &cobra.Command{Use: role, Short: role + " process commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   short,
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsync, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			brokers, _ := cmd.Flags().GetStringSlice("brokers")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Kafka.GroupID == "" || cfg.Kafka.GroupID == "dispatch" {
				cfg.Kafka.GroupID = role
			}
			cfgpkg.FromEnv(&cfg)
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if fsync != "" {
				cfg.Fsync = fsync
			}
			if fsyncIntervalMs > 0 {
				cfg.FsyncIntervalMS = fsyncIntervalMs
			}
			if len(brokers) > 0 {
				cfg.Kafka.Brokers = brokers
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}

			logger := newLogger(cfg.LogLevel, cfg.LogFormat)
			logpkg.RedirectStdLog(logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, logger)
		},
	}
	startCmd.Flags().String("config", "", "Path to JSON config file")
	startCmd.Flags().String("data-dir", "", "Data directory (default: OS-specific app data directory)")
	startCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	startCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	startCmd.Flags().Int("fsync-interval-ms", 0, "When fsync is interval, group-commit window in ms (default 5)")
	startCmd.Flags().StringSlice("brokers", nil, "Kafka broker addresses")
	startCmd.Flags().String("log-level", os.Getenv("MCD_LOG_LEVEL"), "Log level: debug|info|warn|error")
	startCmd.Flags().String("log-format", os.Getenv("MCD_LOG_FORMAT"), "Log format: text|json (default text)")
	roleCmd.AddCommand(startCmd)
	return roleCmd
}

func newLogger(level, format string) logpkg.Logger {
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	var formatter logpkg.Formatter = &logpkg.TextFormatter{}
	if format == "json" {
		formatter = &logpkg.JSONFormatter{}
	}
	return logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(formatter),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
}

func apiURL() string {
	if v := os.Getenv("MCD_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
