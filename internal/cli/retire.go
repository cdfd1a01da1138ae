package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRetireCommand creates the retire command.
func NewRetireCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "retire <subject-id>",
		Short: "Close a subject's open version without a successor",
		Long: `Close the subject's open version at the effective timestamp. The subject
then has no current version; its closed history stays queryable and the
subject can later be re-created.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetire(rootOpts, cmd, args[0], at)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "effective timestamp (RFC3339, default now)")
	return cmd
}

func runRetire(opts *RootOptions, cmd *cobra.Command, subjectID, atFlag string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	at, err := parseAt(atFlag)
	if err != nil {
		_ = formatter.Error("BAD_TIMESTAMP", err.Error(), nil)
		return WrapExitError(ExitCommandError, "parsing --at", err)
	}

	s, closer, err := openStore(opts)
	if err != nil {
		_ = formatter.Error("OPEN_FAILED", err.Error(), nil)
		return err
	}
	defer closer()

	if err := s.Retire(cmd.Context(), subjectID, at); err != nil {
		return outputStoreError(formatter, err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]string{"subject_id": subjectID, "retired_at": at.String()})
	}
	fmt.Fprintf(formatter.Writer, "retired %s\n", subjectID)
	return nil
}
