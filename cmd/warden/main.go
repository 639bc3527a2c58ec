package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/bot"
	"warden/internal/config"
	"warden/internal/metrics"
	"warden/internal/modules/automod"
	"warden/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Discord moderation, ticket and giveaway bot",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve",
		RunE:  run,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "check <text>",
		Short: "Evaluate text against the configured automod rules",
		Args:  cobra.MinimumNArgs(1),
		RunE:  check,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var archive *storage.Store
	if cfg.Audit.Database != "" {
		archive, err = storage.Open(cfg.Audit.Database)
		if err != nil {
			logger.Fatal("storage init failed", zap.Error(err))
		}
		defer archive.Close()
		if err := archive.Migrate(ctx); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	botSvc, err := bot.New(cfg, logger, archive)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	if archive != nil && cfg.Audit.RetentionDays > 0 {
		botSvc.Scheduler().Every("audit-retention", 24*time.Hour, func(ctx context.Context) {
			botSvc.RunRetention(ctx, archive)
		})
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := botSvc.Start(ctx); err != nil {
			return err
		}
		logger.Info("bot started")
		<-ctx.Done()
		return nil
	})

	if cfg.Health.Enabled {
		server := &http.Server{Addr: cfg.Health.Addr, Handler: healthMux(archive)}
		group.Go(func() error {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdown)
		})
	}

	err = group.Wait()
	logger.Info("shutdown requested")
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	botSvc.Close(shutdown)
	if err != nil {
		logger.Error("stopped with error", zap.Error(err))
	}
	return err
}

func healthMux(archive *storage.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if archive != nil {
			if err := archive.Ping(r.Context()); err != nil {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func check(cmd *cobra.Command, args []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	rules, err := automod.CompileRules(cfg.AutoMod.Rules)
	if err != nil {
		return err
	}
	for _, text := range args {
		result := automod.NewMatcher(rules).Evaluate(text)
		if !result.Violation {
			fmt.Fprintf(cmd.OutOrStdout(), "ok\t%q\n", text)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "flagged\t%q\trule=%s normalized=%t\n", text, result.Rule, result.Normalized)
	}
	return nil
}
