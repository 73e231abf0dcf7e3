package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coinbase/pk11-go/pkg/pk11"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "pk11-go", pk11.BuildInfo())
			return err
		},
	}
}
