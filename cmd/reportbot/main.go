package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reportbot/internal/archive"
	"reportbot/internal/bus"
	"reportbot/internal/channel"
	"reportbot/internal/config"
	"reportbot/internal/metrics"
	"reportbot/internal/wizard"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "reportbot",
		Short: "Telegram wizard bot for community game-test reports",
		Long:  "reportbot walks users through a fixed report form, collects screenshots and clips, and posts the result to a configured target chat.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.reportbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (Telegram polling + wizard)",
		Long:  "Starts the Telegram channel and the wizard controller. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	logger = newLogger(cfg.General)

	token := cfg.Telegram.Token
	if token == "" || strings.HasPrefix(token, "${") {
		token = os.Getenv("BOT_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("telegram token is not set (telegram.token in %s or BOT_TOKEN)", cfgPath)
	}

	adminIDs := []string(cfg.Telegram.AdminIDs)
	if len(adminIDs) == 0 {
		if raw := os.Getenv("ADMIN_IDS"); raw != "" {
			adminIDs = strings.Split(raw, ",")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)

	store, err := archive.NewStore(cfg.Archive.DBPath, logger)
	if err != nil {
		return fmt.Errorf("archive store: %w", err)
	}
	defer store.Close()

	prompts := wizard.LoadPrompts(cfg.Prompts.Path, logger)

	telegramCh := channel.NewTelegram(channel.TelegramConfig{
		Token:    token,
		AdminIDs: adminIDs,
		Targets:  store,
		Logger:   logger,
	})

	controller := wizard.NewController(wizard.ControllerConfig{
		Sessions: wizard.NewStore(),
		Prompts:  prompts,
		Gateway:  telegramCh,
		Target:   archive.Resolver{Store: store},
		Archive:  store,
		Bus:      messageBus,
		Logger:   logger,
	})
	go controller.Run(ctx)

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Metrics)
	}

	go func() {
		if err := telegramCh.Start(ctx, messageBus); err != nil {
			logger.Error("telegram channel error", "err", err)
			stop()
		}
	}()

	logger.Info("report bot started. Press Ctrl+C to stop.", "version", version)

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		telegramCh.Stop()
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func serveMetrics(ctx context.Context, mc config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(mc.Endpoint, metrics.Collector.Handler())
	srv := &http.Server{Addr: mc.Listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint started", "listen", mc.Listen, "path", mc.Endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", "err", err)
	}
}

func newLogger(gc config.GeneralConfig) *slog.Logger {
	level := slog.LevelInfo
	switch gc.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if gc.LogFile != "" {
		if f, err := os.OpenFile(gc.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		} else {
			logger.Warn("cannot open log file, logging to stderr", "path", gc.LogFile, "err", err)
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and delivery target status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			if chatID, ok := archive.EnvTarget(); ok {
				logger.Info("target", "source", "env", "chat_id", chatID)
				return nil
			}

			store, err := archive.NewStore(cfg.Archive.DBPath, logger)
			if err != nil {
				return fmt.Errorf("archive store: %w", err)
			}
			defer store.Close()

			chatID, ok, err := store.TargetChat(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				logger.Info("target", "source", "store", "chat_id", chatID)
			} else {
				logger.Info("target", "configured", false)
			}

			reports, err := store.RecentReports(cmd.Context(), 5)
			if err != nil {
				return err
			}
			logger.Info("archive", "recent_reports", len(reports))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. general.logLevel)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. general.logLevel debug)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
