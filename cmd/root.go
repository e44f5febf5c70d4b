package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reflow_oven/internal/config"
	"reflow_oven/internal/logger"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "reflow",
	Short: "Reflow oven controller",
	Long: `reflow drives a toaster oven through a solder reflow profile.

It runs the stage sequencer against a simulated oven or a serial-attached
microcontroller, records state and events to SQLite and serves a control
API with a live websocket feed.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(serveCmd, simulateCmd, profilesCmd, portsCmd)
}

// loadConfig reads the config and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.Get(cfg.Log)
}
