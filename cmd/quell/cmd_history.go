package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quellsec/quell/history"
)

var (
	historyLimit int
	ackNote      string
)

// historyCmd groups the invocation history subcommands
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review past action runs and incident acknowledgments",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent action runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListInvocations(historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}
		for _, rec := range records {
			line := fmt.Sprintf("%s  %-12s %-11s %s",
				rec.StartTime.Format(time.RFC3339), rec.Kind, rec.Status, rec.RunID)
			if rec.CVE != "" {
				line += "  " + rec.CVE
			}
			fmt.Println(line)
		}

		acks, err := store.ListAcks(historyLimit)
		if err != nil {
			return err
		}
		for _, ack := range acks {
			line := fmt.Sprintf("%s  acknowledged", ack.Timestamp.Format(time.RFC3339))
			if ack.CVE != "" {
				line += "  " + ack.CVE
			}
			if ack.Note != "" {
				line += "  " + ack.Note
			}
			fmt.Println(line)
		}
		return nil
	},
}

var historyAckCmd = &cobra.Command{
	Use:   "ack",
	Short: "Record an incident acknowledgment",
	Example: `  quell history ack --cve CVE-2025-55182
  quell history ack --cve CVE-2025-55182 --note "confirmed by on-call"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		ack := history.Acknowledgment{
			Timestamp: time.Now(),
			CVE:       resolveCVE(),
			Note:      ackNote,
		}
		if err := store.RecordAck(ack); err != nil {
			return err
		}
		fmt.Println("incident acknowledged and logged")
		return nil
	},
}

func openHistory() (*history.Store, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.BaseDir)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyAckCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show")
	historyAckCmd.Flags().StringVar(&ackNote, "note", "", "Free-form acknowledgment note")
}
