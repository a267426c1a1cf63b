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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/auth"
	"github.com/ebogdum/hdfscache/config"
	"github.com/ebogdum/hdfscache/server"
)

var rootCmd = &cobra.Command{
	Use:   "hdfscache",
	Short: "hdfscache - WebHDFS file store with a local read-through cache",
	Long: `hdfscache stores files on HDFS through WebHDFS, keeps a local copy of
every file it reads, and can re-encrypt stored files under a new key.`,
	SilenceUsage: true,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the hdfscache HTTP server",
	RunE:  runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the hdfscache configuration and display the loaded settings",
	RunE:  validateConfig,
}

var configFilePath string

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")

	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serverCmd, configCmd)
	addFileCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServer starts the hdfscache server
func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateServer(&cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger, err := initializeLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		// Syncing stderr fails on some platforms; nothing useful to do about it.
		_ = logger.Sync()
	}()

	logger.Info("Starting hdfscache server",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("name_node", cfg.Remote.NameNode),
		zap.String("data_node", cfg.Remote.DataNode),
		zap.String("cache_root", cfg.Cache.Root))

	svc, closeService, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeService()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartCleanupWorker(ctx, cfg.Cache.TempCleanupInterval, cfg.Cache.TempMaxAge)

	authenticator := auth.NewAPIKeyAuthenticator(cfg.Auth.APIKeys)
	router := server.NewRouter(svc, authenticator, &cfg.Server, logger)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited gracefully")
	return nil
}

// validateConfig validates the configuration and displays settings
func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Validating configuration...")

	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err == nil {
		err = config.ValidateServer(&cfg)
	}
	if err != nil {
		fmt.Fprintf(out, "Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Fprintln(out, "Configuration is valid")
	fmt.Fprintf(out, "Listen Address: %s\n", cfg.Server.ListenAddr)
	fmt.Fprintf(out, "Name Node: %s\n", cfg.Remote.NameNode)
	fmt.Fprintf(out, "Data Node: %s\n", cfg.Remote.DataNode)
	fmt.Fprintf(out, "Remote Path: %s\n", cfg.Remote.Path)
	fmt.Fprintf(out, "Cache Directory: %s\n", cacheDir(cfg.Cache))
	fmt.Fprintf(out, "Encryption: %s\n", maskSecret(cfg.Encryption.Key))
	fmt.Fprintf(out, "Lock Manager: %s\n", cfg.Locks.Type)
	if cfg.Locks.Type == "redis" {
		fmt.Fprintf(out, "Redis Address: %s\n", cfg.Locks.RedisAddr)
	}

	return nil
}

// maskSecret hides a secret for display
func maskSecret(secret string) string {
	if secret == "" {
		return "disabled"
	}
	return "enabled (***)"
}

func cacheDir(c config.CacheConfig) string {
	if c.SubDirectory == "" {
		return c.Root
	}
	return c.Root + string(os.PathSeparator) + c.SubDirectory
}

// initializeLogger creates a zap logger based on configuration
func initializeLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config

	if logCfg.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch logCfg.Level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Command output goes to stdout; logs must not mix with it.
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}
