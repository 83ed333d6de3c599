package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResyncCommand(connect connectFunc) *cobra.Command {
	var departmentID int64

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Rewrite the spreadsheet mirror from the slot store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, connect, false, func(b *Backend) error {
				results, err := b.Operator.Resync(cmd.Context(), departmentID)
				if err != nil {
					return fmt.Errorf("resync: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().Int64Var(&departmentID, "department", 0, "Only resync this department (default all)")
	return cmd
}
