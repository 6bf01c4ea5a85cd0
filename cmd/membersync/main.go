package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "membersync",
		Short:   "Reconcile club memberships with Stripe",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("config", os.Getenv("CLUB_CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().Bool("json", false, "Print the reports as JSON")
	rootCmd.PersistentFlags().Bool("no-email", false, "Do not email reports to the admin address")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
