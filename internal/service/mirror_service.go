package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/interview-slots/internal/models"
	"github.com/noah-isme/interview-slots/pkg/jobs"
	"github.com/noah-isme/interview-slots/pkg/sheets"
)

// MirrorSyncJobType tags queue jobs carrying a models.MirrorSyncTask.
const MirrorSyncJobType = "mirror.sync_cell"

type sheetWriter interface {
	WriteRange(ctx context.Context, sheetName, a1Range string, values [][]interface{}) error
}

type mirrorSlotReader interface {
	ListByDepartment(ctx context.Context, departmentID int64) ([]models.TimeSlot, error)
	ListDepartments(ctx context.Context) ([]int64, error)
}

type displayResolver interface {
	ResolveDisplay(ctx context.Context, candidateID int64) (*models.CandidateDisplay, error)
	ResolveDisplays(ctx context.Context, candidateIDs []int64) (map[int64]models.CandidateDisplay, error)
}

// MirrorConfig tunes spreadsheet writes.
type MirrorConfig struct {
	SheetNames          map[int64]string
	MaxAttempts         int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	WriteQuotaPerMinute int
	ReconcileInterval   time.Duration
	CallTimeout         time.Duration
}

// MirrorService keeps the reviewer spreadsheet eventually consistent with
// the slot table. Failures are logged and never reach candidates.
type MirrorService struct {
	writer    sheetWriter
	slots     mirrorSlotReader
	directory displayResolver
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       MirrorConfig
	limiter   *rate.Limiter

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// NewMirrorService constructs the mirror sync service.
func NewMirrorService(writer sheetWriter, slots mirrorSlotReader, directory displayResolver, metrics *MetricsService, logger *zap.Logger, cfg MirrorConfig) *MirrorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.WriteQuotaPerMinute <= 0 {
		cfg.WriteQuotaPerMinute = 60
	}
	return &MirrorService{
		writer:    writer,
		slots:     slots,
		directory: directory,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.WriteQuotaPerMinute)), 1),
		sleep:     sleepContext,
		jitter:    randomJitter,
	}
}

// SheetName returns the sheet holding a department's grid.
func (s *MirrorService) SheetName(departmentID int64) string {
	if name, ok := s.cfg.SheetNames[departmentID]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Dept %d", departmentID)
}

// SyncSingleCell overwrites one name/handle pair. Coordinates outside the
// fixed grid are skipped without calling the spreadsheet.
func (s *MirrorService) SyncSingleCell(ctx context.Context, task models.MirrorSyncTask) models.SyncResult {
	start := time.Now()
	log := s.logger.With(
		zap.Int64("department_id", task.DepartmentID),
		zap.String("date", task.Date),
		zap.String("start_time", task.StartTime),
	)

	cell, ok := cellFor(task.Date, task.StartTime)
	if !ok {
		log.Debug("slot outside mirror grid, skipped")
		result := models.SyncResult{Status: models.SyncSkipped}
		s.metrics.ObserveMirrorSync("cell", string(result.Status), 0, time.Since(start))
		return result
	}

	var display *models.CandidateDisplay
	if task.OccupantID != nil {
		display = s.resolveDisplay(ctx, *task.OccupantID, log)
	}

	result := s.write(ctx, task.DepartmentID, cell.A1(), cellValues(display), log)
	s.metrics.ObserveMirrorSync("cell", string(result.Status), result.Attempts, time.Since(start))
	return result
}

// SyncDepartment rebuilds a department's whole sheet in one write.
func (s *MirrorService) SyncDepartment(ctx context.Context, departmentID int64) models.SyncResult {
	start := time.Now()
	log := s.logger.With(zap.Int64("department_id", departmentID))

	slots, err := s.slots.ListByDepartment(ctx, departmentID)
	if err != nil {
		log.Error("load department slots for mirror", zap.Error(err))
		s.metrics.ObserveMirrorSync("department", string(models.SyncFailed), 0, time.Since(start))
		return models.SyncResult{Status: models.SyncFailed}
	}

	occupants := make([]int64, 0)
	for _, slot := range slots {
		if slot.OccupantID != nil {
			occupants = append(occupants, *slot.OccupantID)
		}
	}
	displays := map[int64]models.CandidateDisplay{}
	if len(occupants) > 0 && s.directory != nil {
		resolved, err := s.directory.ResolveDisplays(ctx, occupants)
		if err != nil {
			log.Warn("resolve occupant displays, using placeholders", zap.Error(err))
		} else {
			displays = resolved
		}
	}

	result := s.write(ctx, departmentID, gridRange(), buildGrid(slots, displays), log)
	s.metrics.ObserveMirrorSync("department", string(result.Status), result.Attempts, time.Since(start))
	return result
}

// ReconcileAll resyncs every department, pacing writes to stay under the
// spreadsheet quota. It stops early only when ctx ends.
func (s *MirrorService) ReconcileAll(ctx context.Context) (map[int64]models.SyncResult, error) {
	departments, err := s.slots.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}

	results := make(map[int64]models.SyncResult, len(departments))
	for _, departmentID := range departments {
		if err := s.limiter.Wait(ctx); err != nil {
			return results, fmt.Errorf("wait for write quota: %w", err)
		}
		results[departmentID] = s.SyncDepartment(ctx, departmentID)
	}
	return results, nil
}

// HandleJob consumes mirror tasks from the background queue.
func (s *MirrorService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != MirrorSyncJobType {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	task, ok := job.Payload.(models.MirrorSyncTask)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	result := s.SyncSingleCell(ctx, task)
	if result.Status == models.SyncFailed {
		return fmt.Errorf("mirror write %s failed after %d attempts", result.Range, result.Attempts)
	}
	return nil
}

// StartReconciler boots a goroutine that resyncs all departments periodically.
func (s *MirrorService) StartReconciler(ctx context.Context) {
	if s.cfg.ReconcileInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.ReconcileInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				results, err := s.ReconcileAll(ctx)
				if err != nil {
					s.logger.Sugar().Warnw("mirror reconciliation aborted", "error", err)
					continue
				}
				failed := 0
				for _, result := range results {
					if result.Status == models.SyncFailed {
						failed++
					}
				}
				s.logger.Sugar().Infow("mirror reconciliation finished", "departments", len(results), "failed", failed)
			}
		}
	}()
}

func (s *MirrorService) resolveDisplay(ctx context.Context, candidateID int64, log *zap.Logger) *models.CandidateDisplay {
	placeholder := placeholderDisplay(candidateID)
	if s.directory == nil {
		return &placeholder
	}
	display, err := s.directory.ResolveDisplay(ctx, candidateID)
	if err != nil {
		log.Warn("resolve occupant display, using placeholder", zap.Int64("candidate_id", candidateID), zap.Error(err))
		return &placeholder
	}
	if display == nil {
		return &placeholder
	}
	return display
}

// write issues the spreadsheet call, retrying only quota rejections.
func (s *MirrorService) write(ctx context.Context, departmentID int64, a1Range string, values [][]interface{}, log *zap.Logger) models.SyncResult {
	sheetName := s.SheetName(departmentID)
	target := sheets.QualifiedRange(sheetName, a1Range)

	for attempt := 1; ; attempt++ {
		err := s.callOnce(ctx, sheetName, a1Range, values)
		if err == nil {
			return models.SyncResult{Status: models.SyncSynced, Attempts: attempt, Range: target}
		}
		if !errors.Is(err, sheets.ErrRateLimited) {
			log.Error("mirror write failed", zap.String("range", target), zap.Int("attempt", attempt), zap.Error(err))
			return models.SyncResult{Status: models.SyncFailed, Attempts: attempt, Range: target}
		}
		if attempt >= s.cfg.MaxAttempts {
			log.Error("mirror write rate limited, giving up", zap.String("range", target), zap.Int("attempts", attempt), zap.Error(err))
			return models.SyncResult{Status: models.SyncFailed, Attempts: attempt, Range: target}
		}

		delay := s.backoff(attempt)
		log.Debug("mirror write rate limited, backing off", zap.String("range", target), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		if err := s.sleep(ctx, delay); err != nil {
			log.Warn("mirror write abandoned", zap.String("range", target), zap.Error(err))
			return models.SyncResult{Status: models.SyncFailed, Attempts: attempt, Range: target}
		}
	}
}

func (s *MirrorService) callOnce(ctx context.Context, sheetName, a1Range string, values [][]interface{}) error {
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}
	return s.writer.WriteRange(ctx, sheetName, a1Range, values)
}

// backoff returns base*2^(attempt-1) capped at MaxDelay, plus jitter below
// half of that step. Each uncapped step exceeds the previous one even with
// maximal jitter.
func (s *MirrorService) backoff(attempt int) time.Duration {
	step := s.cfg.BaseDelay
	for i := 1; i < attempt && step < s.cfg.MaxDelay; i++ {
		step *= 2
	}
	if step > s.cfg.MaxDelay {
		step = s.cfg.MaxDelay
	}
	return step + s.jitter(step/2)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
