package cmd

import (
	"fmt"
	"os"

	"storefront/config"

	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "storefront",
	Short:        "Storefront - online store API server and shopper CLI",
	Long:         "Runs the storefront REST API, manages its database and talks to a running API as a shopper.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: postgres, sqlite3")
	rootCmd.PersistentFlags().String("db-dsn", "", "Database connection string")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address host:port")
	rootCmd.PersistentFlags().String("api-url", "", "Storefront API base URL for shopper commands")
	rootCmd.PersistentFlags().String("state-file", "", "Path to the shopper state file")
}

func initConfig() {
	cfg = config.DefaultConfig()
	cfg.LoadFromEnv()

	// Override from flags
	if v, _ := rootCmd.PersistentFlags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("db-dsn"); v != "" {
		cfg.DBDSN = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("redis-addr"); v != "" {
		cfg.RedisAddr = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("api-url"); v != "" {
		cfg.APIBaseURL = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("state-file"); v != "" {
		cfg.StateFile = v
	}
}
