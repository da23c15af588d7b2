package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/internal/common/config"
	"github.com/amoylab/boom/internal/core"
	"github.com/amoylab/boom/internal/session"
	"github.com/amoylab/boom/pkg/logger"
	"github.com/amoylab/boom/pkg/metrics"
	"github.com/amoylab/boom/pkg/trace"
	"github.com/amoylab/boom/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of boom",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", cnst.CommandName, version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Check the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := config.LoadConfig(getConfigPath())
			if err != nil {
				return fmt.Errorf("configuration %s is invalid: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration %s is valid\n", path)
			return nil
		},
	}

	rootCmd = &cobra.Command{
		Use:          cnst.CommandName,
		Short:        "Realtime bridge for HTTP applications",
		Long:         `boom keeps websocket connections open on behalf of an HTTP application, relays every socket event to it and lets it push events back through a control API`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", "", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(testCmd)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return cnst.BoomYaml
}

func run() error {
	cfg, cfgPath, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
	}

	lg, err := logger.NewLogger(&cfg.Logger, cfg.DevMode)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Sync()

	lg.Info("starting boom",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath),
		zap.Bool("devmode", cfg.DevMode))
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		lg.Fatal("failed to initialize tracing", zap.Error(err))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	store, err := session.NewStore(lg, &cfg.Store)
	if err != nil {
		lg.Fatal("failed to create session store", zap.Error(err))
	}
	if err := store.Init(ctx); err != nil {
		lg.Fatal("failed to initialize session store", zap.String("type", cfg.Store.Type), zap.Error(err))
	}

	srv, err := core.NewServer(lg, cfg, store, m)
	if err != nil {
		lg.Fatal("failed to create server", zap.Error(err))
	}
	if err := srv.Start(); err != nil {
		lg.Fatal("failed to start server", zap.Error(err))
	}

	<-ctx.Done()
	lg.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("failed to shutdown server cleanly", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		lg.Error("failed to close session store", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		lg.Error("failed to shutdown tracing", zap.Error(err))
	}
	lg.Info("server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
