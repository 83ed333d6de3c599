package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/interview-slots/internal/models"
)

func newAvailabilityCommand(connect connectFunc) *cobra.Command {
	var (
		edit       models.AvailabilityEdit
		open, shut bool
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Open or close start times on one department date",
		Example: `  slotctl availability --department 1 --date 2025-10-09 --time 09:00 --time 09:20 --close
  slotctl availability --department 1 --date 2025-10-09 --time 13:00,13:20 --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if open == shut {
				return errors.New("exactly one of --open or --close is required")
			}
			edit.Available = open
			return withBackend(cmd, connect, false, func(b *Backend) error {
				report, err := b.Operator.SetAvailability(cmd.Context(), edit)
				if err != nil {
					return fmt.Errorf("set availability: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().Int64Var(&edit.DepartmentID, "department", 0, "Department ID")
	cmd.Flags().StringVar(&edit.Date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&edit.StartTimes, "time", nil, "Start time (HH:MM), repeatable")
	cmd.Flags().BoolVar(&open, "open", false, "Make the start times bookable")
	cmd.Flags().BoolVar(&shut, "close", false, "Withdraw the start times, revoking any bookings")
	cmd.MarkFlagsMutuallyExclusive("open", "close")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}
