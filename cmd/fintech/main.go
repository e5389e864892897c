package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/Zuzuna54/fintech-app-demo/internal/cmd/client"
	serverrun "github.com/Zuzuna54/fintech-app-demo/internal/cmd/server"
	cfgpkg "github.com/Zuzuna54/fintech-app-demo/internal/config"
	pebblestore "github.com/Zuzuna54/fintech-app-demo/internal/storage/pebble"
	logpkg "github.com/Zuzuna54/fintech-app-demo/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// Respect FINTECH_LOG_LEVEL for CLI output before any config is loaded.
	level := os.Getenv("FINTECH_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger.
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "fintech",
		Short: "Payment settlement CLI",
		Long:  "fintech runs the settlement node and provides client commands for submitting payments and inspecting the queue.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the settlement node (HTTP API, workers, reaper, monitor)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			databaseURL, _ := cmd.Flags().GetString("database-url")
			workers, _ := cmd.Flags().GetInt("workers")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			initSchema, _ := cmd.Flags().GetBool("init-schema")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if fsyncMode != "" {
				cfg.Fsync = fsyncMode
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}

			mode := pebblestore.FsyncModeAlways
			switch cfg.Fsync {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "", "always":
			default:
				return fmt.Errorf("invalid fsync mode %q; use always|interval|never", cfg.Fsync)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				HTTPAddr:      httpAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				InitSchema:    initSchema,
				Config:        cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to JSON config file")
	serverStartCmd.Flags().String("data-dir", "", "Queue data directory (defaults to OS-specific application data directory)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	serverStartCmd.Flags().String("database-url", "", "Postgres connection string for the ledger")
	serverStartCmd.Flags().Int("workers", 0, "Number of settlement workers (default 4)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never (default always)")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When fsync=interval, group-commit window in ms")
	serverStartCmd.Flags().Bool("init-schema", false, "Create ledger tables on startup")
	serverStartCmd.Flags().String("log-level", os.Getenv("FINTECH_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("FINTECH_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// client commands
	rootCmd.AddCommand(clientcmd.NewPaymentCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewQueueCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("FINTECH_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
