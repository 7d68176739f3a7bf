package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trustscore",
	Short: "Reputation scoring service",
	Long: `trustscore computes a user's reputation from profile, activity, content,
project and endorsement signals, records every change in an append-only
ledger and serves the result over HTTP.

Configuration comes from defaults, the YAML file named by TRUST_CONFIG and
TRUST_* environment variables. A .env file in the working directory is read
first.`,
	SilenceUsage: true,
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
