package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "create <subject-id> <kind> <payload-json>",
		Short: "Create a subject with its first version",
		Long: `Create a subject with its first version, open-ended from the effective
timestamp. Fails if the subject already has an open version.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(rootOpts, cmd, args[0], args[1], args[2], at)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "effective timestamp (RFC3339, default now)")
	return cmd
}

func runCreate(opts *RootOptions, cmd *cobra.Command, subjectID, kind, payload, atFlag string) error {
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

	v, err := s.Create(cmd.Context(), subjectID, kind, json.RawMessage(payload), at)
	if err != nil {
		return outputStoreError(formatter, err)
	}

	if opts.Format == "json" {
		return formatter.Success(viewOf(v))
	}
	fmt.Fprintf(formatter.Writer, "created %s\n", subjectID)
	printVersion(formatter.Writer, v)
	return nil
}
