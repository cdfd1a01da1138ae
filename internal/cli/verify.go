package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// VerifyResult holds invariant audit results.
type VerifyResult struct {
	Clean      bool                 `json:"clean"`
	Violations []temporal.Violation `json:"violations,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit the store's interval invariants",
		Long: `Audit every subject's version history: intervals must be well-formed,
non-overlapping, and at most one version per subject may be open.
Exits non-zero if any violation is found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
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

	auditor, ok := s.(temporal.Auditor)
	if !ok {
		_ = formatter.Error("UNSUPPORTED", "backend does not support verification", nil)
		return NewExitError(ExitCommandError, "backend does not support verification")
	}

	violations, err := auditor.Verify(cmd.Context())
	if err != nil {
		return outputStoreError(formatter, err)
	}

	if opts.Format == "json" {
		result := VerifyResult{Clean: len(violations) == 0, Violations: violations}
		if len(violations) > 0 {
			if err := formatter.Success(result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("found %d violation(s)", len(violations)))
		}
		return formatter.Success(result)
	}

	if len(violations) == 0 {
		fmt.Fprintln(formatter.Writer, "✓ All invariants hold")
		return nil
	}

	fmt.Fprintln(formatter.Writer, "✗ Invariant violations found")
	fmt.Fprintln(formatter.Writer)
	for _, v := range violations {
		fmt.Fprintf(formatter.Writer, "  %s: %s (%s)\n", v.SubjectID, v.Message, v.Kind)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("found %d violation(s)", len(violations)))
}
