package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/noah-isme/interview-slots/internal/models"
	"github.com/noah-isme/interview-slots/pkg/jobs"
	"github.com/noah-isme/interview-slots/pkg/sheets"
)

type sheetCall struct {
	sheet  string
	rng    string
	values [][]interface{}
}

type stubSheetWriter struct {
	mu     sync.Mutex
	calls  []sheetCall
	errors []error
}

func (w *stubSheetWriter) WriteRange(_ context.Context, sheetName, a1Range string, values [][]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, sheetCall{sheet: sheetName, rng: a1Range, values: values})
	if len(w.errors) == 0 {
		return nil
	}
	err := w.errors[0]
	w.errors = w.errors[1:]
	return err
}

type stubMirrorSlots struct {
	byDepartment map[int64][]models.TimeSlot
	err          error
}

func (s *stubMirrorSlots) ListByDepartment(_ context.Context, departmentID int64) ([]models.TimeSlot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byDepartment[departmentID], nil
}

func (s *stubMirrorSlots) ListDepartments(context.Context) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	ids := []int64{}
	for id := range s.byDepartment {
		ids = append(ids, id)
	}
	return ids, nil
}

type stubDirectory struct {
	displays map[int64]models.CandidateDisplay
	err      error
}

func (d *stubDirectory) ResolveDisplay(_ context.Context, candidateID int64) (*models.CandidateDisplay, error) {
	if d.err != nil {
		return nil, d.err
	}
	display, ok := d.displays[candidateID]
	if !ok {
		return nil, nil
	}
	return &display, nil
}

func (d *stubDirectory) ResolveDisplays(_ context.Context, candidateIDs []int64) (map[int64]models.CandidateDisplay, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := map[int64]models.CandidateDisplay{}
	for _, id := range candidateIDs {
		if display, ok := d.displays[id]; ok {
			out[id] = display
		}
	}
	return out, nil
}

func rateLimitedErr() error {
	return fmt.Errorf("write: %w", sheets.ErrRateLimited)
}

func newTestMirrorService(writer *stubSheetWriter, slots *stubMirrorSlots, dir *stubDirectory) (*MirrorService, *[]time.Duration) {
	svc := NewMirrorService(writer, slots, dir, nil, nil, MirrorConfig{
		SheetNames:  map[int64]string{1: "Engineering"},
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	})
	delays := []time.Duration{}
	svc.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	// worst case jitter
	svc.jitter = func(max time.Duration) time.Duration {
		if max <= 0 {
			return 0
		}
		return max - time.Nanosecond
	}
	svc.limiter = rate.NewLimiter(rate.Inf, 1)
	return svc, &delays
}

func occupant(id int64) *int64 { return &id }

func TestMirrorSyncSingleCellWritesNameAndHandle(t *testing.T) {
	writer := &stubSheetWriter{}
	svc, _ := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{displays: map[int64]models.CandidateDisplay{7: {Name: "Ada", Handle: "@ada"}}})

	result := svc.SyncSingleCell(context.Background(), models.MirrorSyncTask{DepartmentID: 1, Date: "2025-10-09", StartTime: "09:00", OccupantID: occupant(7)})

	assert.Equal(t, models.SyncSynced, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "'Engineering'!H3:I3", result.Range)
	require.Len(t, writer.calls, 1)
	assert.Equal(t, "Engineering", writer.calls[0].sheet)
	assert.Equal(t, "H3:I3", writer.calls[0].rng)
	assert.Equal(t, [][]interface{}{{"Ada", "@ada"}}, writer.calls[0].values)
}

func TestMirrorSyncSingleCellBlanksReleasedSlot(t *testing.T) {
	writer := &stubSheetWriter{}
	svc, _ := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{})

	result := svc.SyncSingleCell(context.Background(), models.MirrorSyncTask{DepartmentID: 2, Date: "2025-10-06", StartTime: "09:20"})

	assert.Equal(t, models.SyncSynced, result.Status)
	require.Len(t, writer.calls, 1)
	assert.Equal(t, "Dept 2", writer.calls[0].sheet)
	assert.Equal(t, [][]interface{}{{"", ""}}, writer.calls[0].values)
}

func TestMirrorSyncSingleCellUsesPlaceholderForUnknownCandidate(t *testing.T) {
	writer := &stubSheetWriter{}
	svc, _ := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{err: errors.New("directory down")})

	svc.SyncSingleCell(context.Background(), models.MirrorSyncTask{DepartmentID: 1, Date: "2025-10-06", StartTime: "09:00", OccupantID: occupant(42)})

	require.Len(t, writer.calls, 1)
	assert.Equal(t, [][]interface{}{{"Candidate #42", ""}}, writer.calls[0].values)
}

func TestMirrorSyncSingleCellSkipsUnknownCoordinates(t *testing.T) {
	writer := &stubSheetWriter{}
	svc, delays := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{})

	result := svc.SyncSingleCell(context.Background(), models.MirrorSyncTask{DepartmentID: 1, Date: "2025-12-25", StartTime: "09:00", OccupantID: occupant(7)})

	assert.Equal(t, models.SyncSkipped, result.Status)
	assert.Equal(t, 0, result.Attempts)
	assert.Empty(t, writer.calls)
	assert.Empty(t, *delays)
}

func TestMirrorSyncSingleCellRetriesRateLimitWithIncreasingDelay(t *testing.T) {
	writer := &stubSheetWriter{errors: []error{rateLimitedErr(), rateLimitedErr()}}
	svc, delays := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{})

	result := svc.SyncSingleCell(context.Background(), models.MirrorSyncTask{DepartmentID: 1, Date: "2025-10-09", StartTime: "09:20", OccupantID: occupant(7)})

	assert.Equal(t, models.SyncSynced, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Len(t, writer.calls, 3)
	require.Len(t, *delays, 2)
	assert.Greater(t, (*delays)[1], (*delays)[0])
}

func TestMirrorSyncSingleCellDoesNotRetryOtherErrors(t *testing.T) {
	writer := &stubSheetWriter{errors: []error{errors.New("permission denied")}}
	svc, delays := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{})

	result := svc.SyncSingleCell(context.Background(), models.MirrorSyncTask{DepartmentID: 1, Date: "2025-10-09", StartTime: "09:20"})

	assert.Equal(t, models.SyncFailed, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Len(t, writer.calls, 1)
	assert.Empty(t, *delays)
}

func TestMirrorSyncSingleCellStopsAtAttemptCeiling(t *testing.T) {
	writer := &stubSheetWriter{}
	for i := 0; i < 10; i++ {
		writer.errors = append(writer.errors, rateLimitedErr())
	}
	svc, delays := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{})

	result := svc.SyncSingleCell(context.Background(), models.MirrorSyncTask{DepartmentID: 1, Date: "2025-10-09", StartTime: "09:20"})

	assert.Equal(t, models.SyncFailed, result.Status)
	assert.Equal(t, 5, result.Attempts)
	assert.Len(t, writer.calls, 5)
	require.Len(t, *delays, 4)
	for i := 1; i < len(*delays); i++ {
		assert.Greater(t, (*delays)[i], (*delays)[i-1])
	}
}

func TestMirrorSyncDepartmentWritesWholeGridOnce(t *testing.T) {
	writer := &stubSheetWriter{}
	slots := &stubMirrorSlots{byDepartment: map[int64][]models.TimeSlot{
		1: {
			{ID: 1, DepartmentID: 1, Date: "2025-10-06", StartTime: "09:00", OccupantID: occupant(7)},
			{ID: 2, DepartmentID: 1, Date: "2025-10-06", StartTime: "09:20", IsAvailable: true},
		},
	}}
	svc, _ := newTestMirrorService(writer, slots, &stubDirectory{displays: map[int64]models.CandidateDisplay{7: {Name: "Ada", Handle: "@ada"}}})

	result := svc.SyncDepartment(context.Background(), 1)

	assert.Equal(t, models.SyncSynced, result.Status)
	require.Len(t, writer.calls, 1)
	assert.Equal(t, "A1:U29", writer.calls[0].rng)
	grid := writer.calls[0].values
	assert.Equal(t, "Ada", grid[2][1])
	assert.Equal(t, "@ada", grid[2][2])
	assert.Equal(t, "", grid[3][1])
}

func TestMirrorSyncDepartmentFailsWhenStoreUnavailable(t *testing.T) {
	writer := &stubSheetWriter{}
	svc, _ := newTestMirrorService(writer, &stubMirrorSlots{err: errors.New("db down")}, &stubDirectory{})

	result := svc.SyncDepartment(context.Background(), 1)

	assert.Equal(t, models.SyncFailed, result.Status)
	assert.Empty(t, writer.calls)
}

func TestMirrorReconcileAll(t *testing.T) {
	writer := &stubSheetWriter{}
	slots := &stubMirrorSlots{byDepartment: map[int64][]models.TimeSlot{1: {}, 2: {}, 3: {}}}
	svc, _ := newTestMirrorService(writer, slots, &stubDirectory{})

	results, err := svc.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for _, result := range results {
		assert.Equal(t, models.SyncSynced, result.Status)
	}
	assert.Len(t, writer.calls, 3)
}

func TestMirrorReconcileAllStopsOnCancelledContext(t *testing.T) {
	writer := &stubSheetWriter{}
	slots := &stubMirrorSlots{byDepartment: map[int64][]models.TimeSlot{1: {}, 2: {}}}
	svc, _ := newTestMirrorService(writer, slots, &stubDirectory{})
	svc.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ReconcileAll(ctx)
	assert.Error(t, err)
}

func TestMirrorHandleJob(t *testing.T) {
	writer := &stubSheetWriter{errors: []error{nil, errors.New("boom")}}
	svc, _ := newTestMirrorService(writer, &stubMirrorSlots{}, &stubDirectory{})
	task := models.MirrorSyncTask{DepartmentID: 1, Date: "2025-10-06", StartTime: "09:00"}

	assert.NoError(t, svc.HandleJob(context.Background(), jobs.Job{Type: MirrorSyncJobType, Payload: task}))
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{Type: MirrorSyncJobType, Payload: task}))
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{Type: "other", Payload: task}))
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{Type: MirrorSyncJobType, Payload: "nope"}))
}

func TestMirrorBackoffCapsAtMaxDelay(t *testing.T) {
	svc, _ := newTestMirrorService(&stubSheetWriter{}, &stubMirrorSlots{}, &stubDirectory{})
	svc.jitter = func(time.Duration) time.Duration { return 0 }

	assert.Equal(t, 100*time.Millisecond, svc.backoff(1))
	assert.Equal(t, 200*time.Millisecond, svc.backoff(2))
	assert.Equal(t, 400*time.Millisecond, svc.backoff(3))
	assert.Equal(t, 10*time.Second, svc.backoff(20))
}
