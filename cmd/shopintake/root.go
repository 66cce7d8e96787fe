package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/shopintake/core/bootstrap"
	"github.com/m3rciful/shopintake/core/buildinfo"
	corecmd "github.com/m3rciful/shopintake/core/cmd"
	coreconfig "github.com/m3rciful/shopintake/core/config"
)

const defaultConfigPath = "config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "shopintake",
	Short: "Telegram bot that adds products to a WooCommerce shop",
	Long: `shopintake asks a shop operator for a product name, description,
category and photo over Telegram, then creates the product in WooCommerce.

Without a subcommand it runs the bot.`,
	Version:       buildinfo.String(),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot until interrupted",
	RunE:  runBot,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config (default $CONFIG_PATH or "+defaultConfigPath+" when present)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigFile(),
		LoadConfig:        coreconfig.Load,
		Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
			return bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
		},
	})
}

// defaultConfigFile returns config.yaml when it exists so the bot can also
// run from environment variables alone.
func defaultConfigFile() string {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
