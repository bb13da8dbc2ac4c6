package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"healthmon-agent/internal/agent"
	"healthmon-agent/internal/config"
)

var (
	configPath  string
	environment string
)

// errUnhealthy makes the process exit 1 without printing an error.
var errUnhealthy = errors.New("unhealthy")

var rootCmd = &cobra.Command{
	Use:           "healthmon-agent",
	Short:         "Periodic health monitoring agent",
	Long:          `Samples system metrics at a fixed rate, evaluates them against thresholds and forwards alerts to the configured sinks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := agent.BuildLogger(cfg)
		a, err := agent.FromConfig(cfg, logger)
		if err != nil {
			logger.Error("agent initialization failed", "error", err)
			return err
		}
		if err := a.Run(context.Background()); err != nil {
			logger.Error("agent runtime failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default $HEALTHMON_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&environment, "env", "e", "", "environment profile: production, development or experimental (default $HEALTHMON_ENV)")
}

func loadConfig() (config.Config, error) {
	return config.Load(config.Options{Path: configPath, Environment: environment})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
