package cli

import (
	"github.com/spf13/cobra"

	"github.com/perkly/perkly/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
	serveCmd.Flags().Bool("memory", false, "Run with the in-memory store (state lost on exit)")
	serveCmd.Flags().Bool("no-metrics", false, "Disable the /metrics endpoint")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the loyalty daemon",
	Long: `Run the loyalty daemon: opens the store, seeds program defaults on
first boot, and serves the ledger, query, and admin APIs over HTTP.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.API.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	if mem, _ := cmd.Flags().GetBool("memory"); mem {
		cfg.Storage.Memory = true
	}
	if off, _ := cmd.Flags().GetBool("no-metrics"); off {
		cfg.Metrics.Enabled = false
	}

	return daemon.Run(cfg)
}
