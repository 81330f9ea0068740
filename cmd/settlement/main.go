package main

import (
	"fmt"
	"os"

	"github.com/fjod/go_cart/settlement-service/internal/config"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "settlement-service"

var Version = "dev"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "settlement",
		Short:        "Checkout and payment settlement service",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional config file; environment variables take precedence")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{Service: serviceName, Env: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}
