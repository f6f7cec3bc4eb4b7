package main

import (
	"github.com/spf13/cobra"

	"github.com/quellsec/quell/types"
)

// statusCmd represents the status check action
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Generate a read-only system status report",
	Long: `Survey the host - system info, memory, disk, services, network, top
processes, security indicators, pending updates, prior action status - and
write a recommendations report. Missing tools degrade their section to a
"not available" line; this action never fails.`,
	Example: `  quell status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeAction(types.ActionStatusCheck)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
