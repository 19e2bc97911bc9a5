package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/diagram/internal/config"
	"github.com/aretw0/diagram/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "diagramd",
	Short: "diagramd serves diagram models to remote clients",
	Long: `diagramd keeps one session per diagram client, sends it the model it asks for
and pushes updates when the model files change.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("store", "", "Snapshot store: memory, file or redis")
	rootCmd.PersistentFlags().String("store-dir", "", "Directory of the file snapshot store")
	rootCmd.PersistentFlags().String("redis-addr", "", "Address of the redis snapshot store")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the configuration file and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	overrides := map[string]*string{
		"store":      &cfg.Store,
		"store-dir":  &cfg.StoreDir,
		"redis-addr": &cfg.Redis.Addr,
		"log-level":  &cfg.LogLevel,
		"listen":     &cfg.Listen,
		"models":     &cfg.ModelsDir,
		"layout":     &cfg.Layout,
	}
	for name, dst := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if f := cmd.Flags().Lookup("client-layout"); f != nil && f.Changed {
		cfg.ClientLayout, _ = cmd.Flags().GetBool("client-layout")
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.New(level, os.Stderr, cfg.LogFormat)
}
