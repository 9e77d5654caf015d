package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/frontend"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
	"github.com/xkilldash9x/pathtaint/internal/observability"
)

// newIRCmd creates the `ir` command. Its output is the input of `scan --ir`.
func newIRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ir <file.c>",
		Short: "Prints the intermediate form of a C file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := frontend.NewParser(observability.GetLogger())
			tu, err := parser.ParseFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to lower %s: %w", args[0], err)
			}
			return ir.Encode(cmd.OutOrStdout(), tu)
		},
	}
}
