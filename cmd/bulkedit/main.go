// Command bulkedit applies grid edit files through the save coordinator and
// inspects the save journal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"backoffice/internal/cli"
	"backoffice/internal/config"
	"backoffice/internal/log"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bulkedit",
		Short:         "Apply bulk grid edits to the portfolio back-office",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := cli.LoadEnvFile(envFile); err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				return os.Setenv("CONFIG_FILE", path)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("env-file", "", "Environment file to load (default .env when present)")
	rootCmd.PersistentFlags().String("config", "", "Configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output as JSON")

	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(batchesCmd())
	rootCmd.AddCommand(exportCmd())

	return rootCmd
}

// setup loads configuration and a logger that writes to the command's
// error stream.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, cli.SetupLogger(cfg, cmd.ErrOrStderr()), nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
