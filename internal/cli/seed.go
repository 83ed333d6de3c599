package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/interview-slots/internal/service"
)

func newSeedCommand(connect connectFunc) *cobra.Command {
	var (
		gridPath     string
		departmentID int64
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace department slot grids from a YAML availability file",
		Long: `Seed deletes and recreates every slot of the selected departments.

Departments that still hold bookings are refused unless --force is given;
with --force the occupants are notified that their booking was revoked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			grid, err := service.LoadAvailabilityGrid(gridPath)
			if err != nil {
				return err
			}
			return withBackend(cmd, connect, false, func(b *Backend) error {
				reports, err := b.Operator.Seed(cmd.Context(), grid, departmentID, force)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), reports)
			})
		},
	}
	cmd.Flags().StringVar(&gridPath, "grid", "", "Path to the availability grid YAML")
	cmd.Flags().Int64Var(&departmentID, "department", 0, "Only seed this department (default all in the file)")
	cmd.Flags().BoolVar(&force, "force", false, "Reseed departments that still hold bookings")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}
