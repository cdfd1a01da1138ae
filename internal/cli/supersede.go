package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewSupersedeCommand creates the supersede command.
func NewSupersedeCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "supersede <subject-id> <payload-json>",
		Short: "Replace a subject's current version with a new one",
		Long: `Close the subject's open version at the effective timestamp and open a
successor carrying the new payload. The timestamp must be strictly after
the open version's valid-from.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupersede(rootOpts, cmd, args[0], args[1], at)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "effective timestamp (RFC3339, default now)")
	return cmd
}

func runSupersede(opts *RootOptions, cmd *cobra.Command, subjectID, payload, atFlag string) error {
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

	v, err := s.Supersede(cmd.Context(), subjectID, json.RawMessage(payload), at)
	if err != nil {
		return outputStoreError(formatter, err)
	}

	if opts.Format == "json" {
		return formatter.Success(viewOf(v))
	}
	fmt.Fprintf(formatter.Writer, "superseded %s\n", subjectID)
	printVersion(formatter.Writer, v)
	return nil
}
