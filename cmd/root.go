package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "mol-bhav",
	Short: "Mol-Bhav haggling service",
	Long: `Mol-Bhav runs an Indian-bazaar style price negotiation service:
buyers open a session against a catalog product and haggle round by
round while the seller concedes along a tuned price curve, applies
coupons, and closes with a signed purchase quote.

Sessions live in a hot store (Redis or in-process memory) and every
turn is journalled to durable storage (Postgres or console).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
