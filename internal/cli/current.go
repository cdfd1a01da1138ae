package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCurrentCommand creates the current command.
func NewCurrentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "current <subject-id>",
		Short:         "Show a subject's open version",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCurrent(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runCurrent(opts *RootOptions, cmd *cobra.Command, subjectID string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, closer, err := openStore(opts)
	if err != nil {
		_ = formatter.Error("OPEN_FAILED", err.Error(), nil)
		return err
	}
	defer closer()

	v, ok, err := s.Current(cmd.Context(), subjectID)
	if err != nil {
		return outputStoreError(formatter, err)
	}
	if !ok {
		_ = formatter.Error("NOT_FOUND", fmt.Sprintf("subject %s has no current version", subjectID), nil)
		return NewExitError(ExitFailure, "no current version")
	}

	if opts.Format == "json" {
		return formatter.Success(viewOf(v))
	}
	printVersion(formatter.Writer, v)
	return nil
}
