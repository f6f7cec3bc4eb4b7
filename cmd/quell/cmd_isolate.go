package main

import (
	"github.com/spf13/cobra"

	"github.com/quellsec/quell/types"
)

// isolateCmd represents the isolate action
var isolateCmd = &cobra.Command{
	Use:   "isolate",
	Short: "Isolate the host behind a minimal inbound allow-list",
	Long: `Snapshot the current firewall ruleset, stop exposed services, then apply
isolation rules: allow loopback, allow established connections, allow the
management port, deny everything else inbound. The snapshot is a hard
precondition; without it no restrictive rule is applied.

Restoration is manual: the isolation report documents the procedure and
references the snapshot file.`,
	Example: `  quell isolate
  quell isolate --cve CVE-2025-55182`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeAction(types.ActionIsolate)
	},
}

func init() {
	rootCmd.AddCommand(isolateCmd)
}
