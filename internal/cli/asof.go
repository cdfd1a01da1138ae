package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewAsOfCommand creates the asof command.
func NewAsOfCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asof <subject-id> <timestamp>",
		Short: "Show the version effective at a point in time",
		Long: `Show the version whose validity interval contains the given instant.
The interval's start is inclusive and its end exclusive, so a version's
close instant already belongs to its successor.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsOf(rootOpts, cmd, args[0], args[1])
		},
	}
	return cmd
}

func runAsOf(opts *RootOptions, cmd *cobra.Command, subjectID, tsArg string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	t, err := time.Parse(time.RFC3339, tsArg)
	if err != nil {
		_ = formatter.Error("BAD_TIMESTAMP", fmt.Sprintf("invalid timestamp %q: expected RFC3339", tsArg), nil)
		return WrapExitError(ExitCommandError, "parsing timestamp", err)
	}

	s, closer, err := openStore(opts)
	if err != nil {
		_ = formatter.Error("OPEN_FAILED", err.Error(), nil)
		return err
	}
	defer closer()

	v, ok, err := s.AsOf(cmd.Context(), subjectID, t)
	if err != nil {
		return outputStoreError(formatter, err)
	}
	if !ok {
		_ = formatter.Error("NOT_FOUND", fmt.Sprintf("subject %s has no version effective at %s", subjectID, tsArg), nil)
		return NewExitError(ExitFailure, "no version effective at that instant")
	}

	if opts.Format == "json" {
		return formatter.Success(viewOf(v))
	}
	printVersion(formatter.Writer, v)
	return nil
}
