package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backoffice/internal/cli"
	"backoffice/internal/core"
	"backoffice/internal/services"
)

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview an edit file without calling the backend",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}

	cmd.Flags().StringP("file", "f", "", "Edit file to preview (- for stdin)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	req, err := cli.ReadEditFile(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	plan := services.BuildPlan(req.Edits)
	if wantJSON(cmd) {
		if err := printJSON(cmd.OutOrStdout(), plan); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Activities: %d  Valuations: %d\n", plan.Activities, plan.Valuations)
		fmt.Fprintf(out, "Creates: %d  Updates: %d  Deletes: %d\n", plan.Creates, plan.Updates, plan.Deletes)
		for _, label := range plan.UnknownLabels {
			if hint := core.ClosestLabel(label); hint != "" {
				fmt.Fprintf(out, "Unknown activity type %q (did you mean %q?)\n", label, hint)
			} else {
				fmt.Fprintf(out, "Unknown activity type %q\n", label)
			}
		}
		for _, r := range plan.Recalculations {
			fmt.Fprintf(out, "Recalculate IRR for fund %d from %s\n", r.FundID, r.ActivityDate)
		}
	}

	if !plan.Valid {
		return fmt.Errorf("invalid batch: %s", plan.Error)
	}
	return nil
}
