package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the storefront database schema and demo data",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("path", getEnv("MIGRATIONS_PATH", "file://migrations"), "migrations source URL")

	upCmd.Flags().Bool("schema-only", false, "apply the schema without the demo catalog")
	downCmd.Flags().Int("steps", 1, "number of migrations to roll back")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default 24h)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
