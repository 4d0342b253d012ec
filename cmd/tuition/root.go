package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/xraph/tuition/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tuition",
	Short: "Training subscription service",
	Long: `Tuition manages training subscriptions: it turns confirmed subscriptions
into sales orders, posts their invoices and replays them on a schedule.

Configuration is read from the --config file, a .env file in the working
directory and TUITION_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}
