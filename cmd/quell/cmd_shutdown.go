package main

import (
	"github.com/spf13/cobra"

	"github.com/quellsec/quell/types"
)

// shutdownCmd represents the emergency shutdown action
var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Emergency shutdown with a cancellable countdown",
	Long: `Warn logged-in users, stop critical services, sync filesystems, write an
emergency report, then count down before issuing the halt. The countdown is
the only cancellation point: Ctrl-C or SIGTERM during it aborts the
sequence. Once the halt is issued the operation is irreversible.`,
	Example: `  quell shutdown
  quell shutdown --cve CVE-2025-55182`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeAction(types.ActionShutdown)
	},
}

func init() {
	rootCmd.AddCommand(shutdownCmd)
}
