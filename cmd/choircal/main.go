package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"choircal/internal/config"
	appLog "choircal/internal/log"
)

const version = "0.3.0"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "choircal",
	Short:         "Choir rehearsal schedule board",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "/etc/choircal/config.yaml", "configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "choircal:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies its log settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	appLog.Setup(cfg.LogLevel, cfg.LogConsole)
	return cfg, nil
}
