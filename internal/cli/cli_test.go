package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interview-slots/internal/models"
	"github.com/noah-isme/interview-slots/internal/service"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

type fakeOperator struct {
	seedDepartment int64
	seedForce      bool
	seedErr        error
	edits          []models.AvailabilityEdit
	resynced       []int64
}

func (f *fakeOperator) Seed(_ context.Context, grid *service.AvailabilityGrid, departmentID int64, force bool) ([]service.SeedReport, error) {
	f.seedDepartment = departmentID
	f.seedForce = force
	if f.seedErr != nil {
		return nil, f.seedErr
	}
	return []service.SeedReport{{DepartmentID: grid.Departments[0].ID, Slots: 4}}, nil
}

func (f *fakeOperator) SetAvailability(_ context.Context, edit models.AvailabilityEdit) (*service.AvailabilityReport, error) {
	f.edits = append(f.edits, edit)
	return &service.AvailabilityReport{AvailabilityChange: models.AvailabilityChange{Updated: int64(len(edit.StartTimes))}}, nil
}

func (f *fakeOperator) Resync(_ context.Context, departmentID int64) (map[int64]models.SyncResult, error) {
	f.resynced = append(f.resynced, departmentID)
	return map[int64]models.SyncResult{departmentID: {Status: models.SyncSynced, Attempts: 1}}, nil
}

type recordedFactory struct {
	operator *fakeOperator
	tokens   *service.TokenService
	calls    []Options
	closed   int
}

func (r *recordedFactory) build(_ context.Context, opts Options) (*Backend, error) {
	r.calls = append(r.calls, opts)
	return &Backend{Operator: r.operator, Tokens: r.tokens, Close: func() { r.closed++ }}, nil
}

func newTestRoot() (*recordedFactory, *cobra.Command) {
	factory := &recordedFactory{
		operator: &fakeOperator{},
		tokens:   service.NewTokenService(service.TokenConfig{Secret: "secret", Issuer: "front-end"}),
	}
	return factory, NewRootCommand(factory.build)
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeGrid(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.yaml")
	content := `departments:
  - id: 1
    dates: ["2025-10-06"]
    start: "09:00"
    end: "10:00"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	_, root := newTestRoot()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"seed", "availability", "resync", "token"} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestSeedCommand(t *testing.T) {
	factory, root := newTestRoot()

	out, err := executeCommand(root, "seed", "--grid", writeGrid(t), "--department", "1", "--force", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, `"department_id": 1`)
	assert.Equal(t, int64(1), factory.operator.seedDepartment)
	assert.True(t, factory.operator.seedForce)
	require.Len(t, factory.calls, 1)
	assert.True(t, factory.calls[0].Verbose)
	assert.False(t, factory.calls[0].Offline)
	assert.Equal(t, 1, factory.closed)
}

func TestSeedCommandSurfacesConflict(t *testing.T) {
	factory, root := newTestRoot()
	factory.operator.seedErr = appErrors.Clone(appErrors.ErrConflict, "department 1 has 2 active bookings")

	_, err := executeCommand(root, "seed", "--grid", writeGrid(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "department 1 has 2 active bookings")
}

func TestSeedCommandRequiresGrid(t *testing.T) {
	factory, root := newTestRoot()

	_, err := executeCommand(root, "seed")
	require.Error(t, err)
	assert.Empty(t, factory.calls)
}

func TestAvailabilityCommand(t *testing.T) {
	factory, root := newTestRoot()

	out, err := executeCommand(root, "availability", "--department", "1", "--date", "2025-10-09", "--time", "09:00", "--time", "09:20", "--close")
	require.NoError(t, err)
	assert.Contains(t, out, `"updated": 2`)
	require.Len(t, factory.operator.edits, 1)
	edit := factory.operator.edits[0]
	assert.Equal(t, []string{"09:00", "09:20"}, edit.StartTimes)
	assert.False(t, edit.Available)
}

func TestAvailabilityCommandNeedsDirection(t *testing.T) {
	factory, root := newTestRoot()

	_, err := executeCommand(root, "availability", "--department", "1", "--date", "2025-10-09", "--time", "09:00")
	require.Error(t, err)
	assert.Empty(t, factory.operator.edits)

	_, root = newTestRoot()
	_, err = executeCommand(root, "availability", "--department", "1", "--date", "2025-10-09", "--time", "09:00", "--open", "--close")
	require.Error(t, err)
}

func TestResyncCommand(t *testing.T) {
	factory, root := newTestRoot()

	out, err := executeCommand(root, "resync", "--department", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"SYNCED"`)
	assert.Equal(t, []int64{2}, factory.operator.resynced)
}

func TestTokenCommandIsOffline(t *testing.T) {
	factory, root := newTestRoot()

	out, err := executeCommand(root, "token", "--candidate", "42", "--ttl", "10m")
	require.NoError(t, err)
	assert.Contains(t, out, `"candidate_id": 42`)
	require.Len(t, factory.calls, 1)
	assert.True(t, factory.calls[0].Offline)

	_, root = newTestRoot()
	_, err = executeCommand(root, "token", "--candidate", "-1")
	require.Error(t, err)
}
