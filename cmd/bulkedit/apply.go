package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"backoffice/internal/cli"
	"backoffice/internal/core"
)

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Save an edit file: activities first, then valuations, then IRR recalculation",
		Long: `Apply reads a YAML or JSON edit file and saves it through the coordinator.

Activities are written before valuations, and every fund touched by a
non-deletion edit gets one IRR recalculation from its earliest edited month.
Edits the backend rejects are reported and can be written to a retry file.`,
		Args: cobra.NoArgs,
		RunE: runApply,
	}

	cmd.Flags().StringP("file", "f", "", "Edit file to apply (- for stdin)")
	cmd.Flags().Int64P("product", "p", 0, "Product id, overrides the file")
	cmd.Flags().String("failed-out", "", "Write rejected edits to this file for a retry")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	req, err := cli.ReadEditFile(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if product, _ := cmd.Flags().GetInt64("product"); product > 0 {
		req.ProductID = product
	}
	if err := cli.RequireProduct(req); err != nil {
		return fmt.Errorf("%w: pass --product or set productId in the file", err)
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	app, err := cli.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	res := app.Coordinator.Save(cmd.Context(), req)

	if wantJSON(cmd) {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		printResult(cmd, res)
	}

	if failedOut, _ := cmd.Flags().GetString("failed-out"); failedOut != "" && len(res.FailedEdits) > 0 {
		if err := cli.WriteFailedEdits(failedOut, req.ProductID, res.FailedEdits); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rejected edits to %s\n", len(res.FailedEdits), failedOut)
	}

	switch {
	case res.Success:
		return nil
	case res.PartialFailure:
		return fmt.Errorf("%d of %d edits failed", len(res.FailedEdits), len(req.Edits))
	default:
		return fmt.Errorf("save failed: %s", strings.Join(res.Errors, "; "))
	}
}

func printResult(cmd *cobra.Command, res core.SaveResult) {
	out := cmd.OutOrStdout()
	status := "saved"
	switch {
	case res.PartialFailure:
		status = "partial failure"
	case !res.Success:
		status = "failed"
	}

	fmt.Fprintf(out, "Batch %s: %s\n", res.BatchID, status)
	fmt.Fprintf(out, "  Activities:   %d\n", res.ProcessedActivities)
	fmt.Fprintf(out, "  Valuations:   %d\n", res.ProcessedValuations)
	fmt.Fprintf(out, "  IRR values:   %d\n", res.RecalculatedFunds)
	if res.RecalculationsQueued > 0 {
		fmt.Fprintf(out, "  Queued:       %d\n", res.RecalculationsQueued)
	}
	for _, msg := range res.Errors {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
}
