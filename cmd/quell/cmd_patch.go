package main

import (
	"github.com/spf13/cobra"

	"github.com/quellsec/quell/types"
)

// patchCmd represents the patch action
var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Apply OS security updates and restart affected services",
	Long: `Detect the host package manager, refresh indexes, apply updates, and
restart the configured service list. Fails before any update step when no
supported package manager is present.`,
	Example: `  quell patch
  quell patch --cve CVE-2025-55182`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeAction(types.ActionPatch)
	},
}

func init() {
	rootCmd.AddCommand(patchCmd)
}
