package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backoffice/internal/cli"
	"backoffice/internal/core"
	"backoffice/internal/storage"
)

func batchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect the save journal",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent save batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withJournal(cmd, func(journal *storage.SQLiteRepository) error {
				batches, err := journal.ListRecentBatches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), batches)
				}
				if len(batches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No save batches recorded")
					return nil
				}
				for _, b := range batches {
					printBatchLine(cmd, b)
				}
				return nil
			})
		},
	}
	listCmd.Flags().IntP("limit", "n", 20, "Maximum batches")

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one save batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, func(journal *storage.SQLiteRepository) error {
				b, err := journal.GetBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), b)
				}
				printBatchLine(cmd, b)
				for _, msg := range b.Result.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", msg)
				}
				for _, e := range b.Result.FailedEdits {
					fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s\n", e)
				}
				return nil
			})
		},
	}

	failedCmd := &cobra.Command{
		Use:   "failed",
		Short: "List edits the backend rejected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withJournal(cmd, func(journal *storage.SQLiteRepository) error {
				edits, err := journal.ListFailedEdits(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), edits)
				}
				for _, f := range edits {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", f.BatchID, f.RecordedAt.Format("2006-01-02 15:04"), f.Edit)
				}
				return nil
			})
		},
	}
	failedCmd.Flags().IntP("limit", "n", 50, "Maximum edits")

	cmd.AddCommand(listCmd, showCmd, failedCmd)
	return cmd
}

func withJournal(cmd *cobra.Command, fn func(*storage.SQLiteRepository) error) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	journal, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer journal.Close()
	return fn(journal)
}

func printBatchLine(cmd *cobra.Command, b core.BatchRecord) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  product=%d  edits=%d  %-7s  activities=%d valuations=%d irr=%d\n",
		b.ID,
		b.StartedAt.Format("2006-01-02 15:04:05"),
		b.ProductID,
		b.EditCount,
		b.Outcome(),
		b.Result.ProcessedActivities,
		b.Result.ProcessedValuations,
		b.Result.RecalculatedFunds)
}
