package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mdelcroix/courier/internal/app"
	"github.com/mdelcroix/courier/internal/config"
	"github.com/mdelcroix/courier/internal/log"
)

const version = "0.1.0"

var (
	flagConfig   string
	flagTCPAddr  string
	flagHTTPAddr string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "TCP server for a messenger application",
	Long: "Courier routes framed chat messages between TCP clients, persists " +
		"history to SQLite and serves the messenger REST API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print courier version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "courier version %s\n", version)
	},
}

func serve() error {
	bootLogger := log.New(flagLogLevel)

	cfg, cfgPath, err := config.Load(bootLogger, flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags win over file and environment.
	if flagTCPAddr != "" {
		cfg.TCPAddr = flagTCPAddr
	}
	if flagHTTPAddr != "" {
		cfg.HTTPAddr = flagHTTPAddr
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", cfgPath).Str("tcp_addr", cfg.TCPAddr).
		Str("http_addr", cfg.HTTPAddr).Msg("starting courier")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().StringVar(&flagTCPAddr, "tcp-addr", "", "chat protocol listen address")
	rootCmd.Flags().StringVar(&flagHTTPAddr, "http-addr", "", "REST API listen address")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "courier: %v\n", err)
		os.Exit(1)
	}
}
