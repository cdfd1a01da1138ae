package cli

import (
	"github.com/spf13/cobra"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "history <subject-id>",
		Short:         "List every version of a subject, oldest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runHistory(opts *RootOptions, cmd *cobra.Command, subjectID string) error {
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

	versions, err := temporal.CollectHistory(s.History(cmd.Context(), subjectID))
	if err != nil {
		return outputStoreError(formatter, err)
	}

	if opts.Format == "json" {
		views := make([]VersionView, 0, len(versions))
		for _, v := range versions {
			views = append(views, viewOf(v))
		}
		return formatter.Success(views)
	}

	formatter.VerboseLog("%d version(s) for %s", len(versions), subjectID)
	for _, v := range versions {
		printVersion(formatter.Writer, v)
	}
	return nil
}
