package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backoffice/internal/adapters"
	"backoffice/internal/cli"
	"backoffice/internal/services"
	"backoffice/internal/storage"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export unexported save batches to the audit sheet",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}

	cmd.Flags().Bool("retry-failed", false, "Reset permanently failed exports before exporting")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	journal, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	writer, err := adapters.NewReportWriter(ctx, cfg)
	if err != nil {
		return err
	}

	if retry, _ := cmd.Flags().GetBool("retry-failed"); retry {
		n, err := journal.RetryFailedExports(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Reset %d failed exports\n", n)
	}

	processor := services.NewExportProcessor(journal, writer, adapters.ExportConfig(cfg), logger)
	total := 0
	for ctx.Err() == nil {
		n := processor.ExportPending(ctx)
		if n == 0 {
			break
		}
		total += n
	}

	stats, err := journal.ExportStats(ctx)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), struct {
			ExportedNow int `json:"exportedNow"`
			storage.ExportStats
		}{total, stats})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d batches (pending %d, exported %d, failed %d)\n",
		total, stats.Pending, stats.Exported, stats.Failed)
	return nil
}
