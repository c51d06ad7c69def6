// Package cli implements the perkly command line interface.
// `perkly serve` runs the daemon; the admin commands talk to a running
// daemon over its HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "0.1.0"

var (
	configPath string
	serverAddr string
)

var rootCmd = &cobra.Command{
	Use:   "perkly",
	Short: "Customer loyalty points engine",
	Long: `Perkly tracks loyalty point accrual from purchases, tier membership
and multipliers, and point redemption against future orders. The daemon
exposes the ledger over HTTP; these commands administer it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default ~/.perkly/config.toml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://127.0.0.1:8480", "Address of the running daemon")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the perkly version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("perkly %s\n", Version)
	},
}
