package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/interview-slots/internal/models"
	"github.com/noah-isme/interview-slots/internal/service"
)

type operator interface {
	Seed(ctx context.Context, grid *service.AvailabilityGrid, departmentID int64, force bool) ([]service.SeedReport, error)
	SetAvailability(ctx context.Context, edit models.AvailabilityEdit) (*service.AvailabilityReport, error)
	Resync(ctx context.Context, departmentID int64) (map[int64]models.SyncResult, error)
}

type tokenIssuer interface {
	IssueToken(candidateID int64, ttl time.Duration) (string, time.Time, error)
}

// Backend is what the commands operate on. Close releases connections.
type Backend struct {
	Operator operator
	Tokens   tokenIssuer
	Close    func()
}

// Options are resolved from the persistent flags.
type Options struct {
	Verbose bool
	// Offline skips database and mirror connections, for commands that only need config.
	Offline bool
}

// BackendFactory builds a Backend for one command invocation.
type BackendFactory func(ctx context.Context, opts Options) (*Backend, error)

// NewRootCommand assembles slotctl around factory.
func NewRootCommand(factory BackendFactory) *cobra.Command {
	var opts Options

	root := &cobra.Command{
		Use:   "slotctl",
		Short: "Operator tooling for interview slot bookings",
		Long: `slotctl manages the interview slot grid behind the booking API:

- seed: replace department grids from a YAML availability file
- availability: open or close start times on one date
- resync: push the current bookings to the spreadsheet mirror
- token: issue a candidate token for support sessions`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print debug logs and stack traces")

	connect := func(cmd *cobra.Command, offline bool) (*Backend, error) {
		o := opts
		o.Offline = offline
		return factory(cmd.Context(), o)
	}

	root.AddCommand(
		newSeedCommand(connect),
		newAvailabilityCommand(connect),
		newResyncCommand(connect),
		newTokenCommand(connect),
	)
	return root
}

// Execute runs slotctl with the production backend.
func Execute(ctx context.Context) error {
	return NewRootCommand(NewBackend).ExecuteContext(ctx)
}

type connectFunc func(cmd *cobra.Command, offline bool) (*Backend, error)

func withBackend(cmd *cobra.Command, connect connectFunc, offline bool, run func(*Backend) error) error {
	backend, err := connect(cmd, offline)
	if err != nil {
		return err
	}
	if backend.Close != nil {
		defer backend.Close()
	}
	return run(backend)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
