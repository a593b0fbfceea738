package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// Actual version can be specified in build command.
var version = "unknown"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, version)
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, closeFn, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			applied, err := b.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "applied %s\n", v)
			}
			return nil
		},
	}
}

func newTriggerCommand(opts *options) *cobra.Command {
	var maxMatches int

	cmd := &cobra.Command{
		Use:   "trigger <job-id>",
		Short: "Run a matching pass for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || jobID <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			if maxMatches < 0 {
				return fmt.Errorf("--max-matches must not be negative")
			}

			b, closeFn, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := b.TriggerMatching(cmd.Context(), jobID, maxMatches)
			if err != nil {
				return fmt.Errorf("trigger job %d: %w", jobID, err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVarP(&maxMatches, "max-matches", "m", 0, "cap on leads created (0 uses the configured default)")
	return cmd
}

func newExpireCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire pending matches past their response deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, closeFn, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := b.ExpireNow(cmd.Context())
			if err != nil {
				return fmt.Errorf("expire: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"matches_expired": n,
				"message":         fmt.Sprintf("Marked %d matches as expired", n),
			})
		},
	}
}
