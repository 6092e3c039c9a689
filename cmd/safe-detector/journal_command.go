package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ghalamif/SafeDetector/internal/adapters/journal"
)

func newJournalCommand() *cobra.Command {
	var dir string
	var from uint64
	var changesOnly bool

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print statuses recorded by the journal sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var (
				lastInstance string
				lastFlag     bool
			)
			return journal.ReadFile(filepath.Join(dir, journal.FileName), from, func(seq uint64, r journal.Record) error {
				if changesOnly && r.Instance == lastInstance && r.Flag == lastFlag {
					return nil
				}
				lastInstance, lastFlag = r.Instance, r.Flag
				_, err := fmt.Fprintf(out, "%d\t%s\t%d\t%t\n", seq, r.Instance, r.Timestamp, r.Flag)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./journal", "Journal directory (sinks.journal.dir)")
	cmd.Flags().Uint64Var(&from, "from", 0, "First sequence number to print")
	cmd.Flags().BoolVar(&changesOnly, "changes", false, "Only print flag transitions")
	return cmd
}
