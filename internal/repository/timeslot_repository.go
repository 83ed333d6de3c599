package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/interview-slots/internal/models"
)

const uniqueViolation = "23505"

const slotColumns = `id, department_id, to_char(slot_date, 'YYYY-MM-DD') AS slot_date, to_char(start_time, 'HH24:MI') AS start_time, is_available, occupant_id, created_at, updated_at`

// TimeSlotRepository is the system of record for the slot grid. Every
// occupant change goes through Reserve, Release or an operator edit here.
type TimeSlotRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewTimeSlotRepository builds repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ListAvailableDates returns distinct dates with at least one open slot.
func (r *TimeSlotRepository) ListAvailableDates(ctx context.Context, departmentID int64) ([]string, error) {
	const query = `SELECT DISTINCT to_char(slot_date, 'YYYY-MM-DD') AS slot_date FROM time_slots
WHERE department_id = $1 AND is_available AND occupant_id IS NULL ORDER BY slot_date ASC`
	dates := []string{}
	if err := r.db.SelectContext(ctx, &dates, query, departmentID); err != nil {
		return nil, fmt.Errorf("list available dates: %w", err)
	}
	return dates, nil
}

// ListAvailableSlots returns the open slots of a department date ordered by start time.
func (r *TimeSlotRepository) ListAvailableSlots(ctx context.Context, departmentID int64, date string) ([]models.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots
WHERE department_id = $1 AND slot_date = $2 AND is_available AND occupant_id IS NULL ORDER BY time_slots.start_time ASC`
	slots := []models.TimeSlot{}
	if err := r.db.SelectContext(ctx, &slots, query, departmentID, date); err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// Reserve moves the candidate's booking pointer to timeslotID in one
// transaction: any slot the candidate holds is released, then the target is
// claimed only if it is still open. When the claim matches no row the whole
// transaction rolls back, so the previous booking survives, and false is
// returned. A unique violation on the occupant index means the same candidate
// won a parallel reserve and is reported the same way.
func (r *TimeSlotRepository) Reserve(ctx context.Context, candidateID, timeslotID int64) (reserved bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reserve transaction: %w", err)
	}
	defer func() {
		if !reserved {
			_ = tx.Rollback()
		}
	}()

	now := r.now()
	const releaseQuery = `UPDATE time_slots SET occupant_id = NULL, is_available = TRUE, updated_at = $3 WHERE occupant_id = $1 AND id <> $2`
	if _, err = tx.ExecContext(ctx, releaseQuery, candidateID, timeslotID, now); err != nil {
		return false, fmt.Errorf("release previous slot: %w", err)
	}

	const claimQuery = `UPDATE time_slots SET occupant_id = $1, is_available = FALSE, updated_at = $3 WHERE id = $2 AND is_available = TRUE AND occupant_id IS NULL`
	res, err := tx.ExecContext(ctx, claimQuery, candidateID, timeslotID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim slot rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("commit reserve: %w", err)
	}
	return true, nil
}

// Release frees the slot held by the candidate. It reports false when the candidate held nothing.
func (r *TimeSlotRepository) Release(ctx context.Context, candidateID int64) (bool, error) {
	const query = `UPDATE time_slots SET occupant_id = NULL, is_available = TRUE, updated_at = $2 WHERE occupant_id = $1`
	res, err := r.db.ExecContext(ctx, query, candidateID, r.now())
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release slot rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetByOccupant returns the candidate's current slot or nil.
func (r *TimeSlotRepository) GetByOccupant(ctx context.Context, candidateID int64) (*models.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE occupant_id = $1`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, candidateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by occupant: %w", err)
	}
	return &slot, nil
}

// GetByID returns a slot or nil.
func (r *TimeSlotRepository) GetByID(ctx context.Context, timeslotID int64) (*models.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE id = $1`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, timeslotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return &slot, nil
}

// ListByDepartment returns every slot of a department ordered by date and time.
func (r *TimeSlotRepository) ListByDepartment(ctx context.Context, departmentID int64) ([]models.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE department_id = $1 ORDER BY time_slots.slot_date ASC, time_slots.start_time ASC`
	slots := []models.TimeSlot{}
	if err := r.db.SelectContext(ctx, &slots, query, departmentID); err != nil {
		return nil, fmt.Errorf("list department slots: %w", err)
	}
	return slots, nil
}

// ListDepartments returns every department that has at least one slot.
func (r *TimeSlotRepository) ListDepartments(ctx context.Context) ([]int64, error) {
	const query = `SELECT DISTINCT department_id FROM time_slots ORDER BY department_id ASC`
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return ids, nil
}

// ReseedDepartment replaces a department's grid. Occupants of deleted rows are
// returned so the caller can tell them their booking is gone.
func (r *TimeSlotRepository) ReseedDepartment(ctx context.Context, departmentID int64, grid []models.GridSlot) (revoked []models.RevokedBooking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reseed transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery := `SELECT ` + slotColumns + ` FROM time_slots WHERE department_id = $1 AND occupant_id IS NOT NULL FOR UPDATE`
	var occupied []models.TimeSlot
	if err = tx.SelectContext(ctx, &occupied, lockQuery, departmentID); err != nil {
		return nil, fmt.Errorf("lock occupied slots: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM time_slots WHERE department_id = $1`, departmentID); err != nil {
		return nil, fmt.Errorf("delete department slots: %w", err)
	}

	now := r.now()
	const insertQuery = `INSERT INTO time_slots (department_id, slot_date, start_time, is_available, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`
	for _, slot := range grid {
		if _, err = tx.ExecContext(ctx, insertQuery, departmentID, slot.Date, slot.StartTime, slot.IsAvailable, now); err != nil {
			return nil, fmt.Errorf("insert slot %s %s: %w", slot.Date, slot.StartTime, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reseed: %w", err)
	}
	return toRevoked(occupied), nil
}

// SetAvailability opens or closes start times on one department date.
// Closing an occupied slot evicts its occupant in the same transaction.
// Opening never touches occupied slots.
func (r *TimeSlotRepository) SetAvailability(ctx context.Context, edit models.AvailabilityEdit) (change *models.AvailabilityChange, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin availability transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now()
	times := pq.Array(edit.StartTimes)
	change = &models.AvailabilityChange{}

	var res sql.Result
	if edit.Available {
		const openQuery = `UPDATE time_slots SET is_available = TRUE, updated_at = $4
WHERE department_id = $1 AND slot_date = $2 AND start_time = ANY($3::time[]) AND occupant_id IS NULL`
		res, err = tx.ExecContext(ctx, openQuery, edit.DepartmentID, edit.Date, times, now)
	} else {
		lockQuery := `SELECT ` + slotColumns + ` FROM time_slots
WHERE department_id = $1 AND slot_date = $2 AND start_time = ANY($3::time[]) AND occupant_id IS NOT NULL FOR UPDATE`
		var occupied []models.TimeSlot
		if err = tx.SelectContext(ctx, &occupied, lockQuery, edit.DepartmentID, edit.Date, times); err != nil {
			return nil, fmt.Errorf("lock occupied slots: %w", err)
		}
		change.Revoked = toRevoked(occupied)

		const closeQuery = `UPDATE time_slots SET is_available = FALSE, occupant_id = NULL, updated_at = $4
WHERE department_id = $1 AND slot_date = $2 AND start_time = ANY($3::time[])`
		res, err = tx.ExecContext(ctx, closeQuery, edit.DepartmentID, edit.Date, times, now)
	}
	if err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}
	if change.Updated, err = res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("availability rows affected: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit availability: %w", err)
	}
	return change, nil
}

func toRevoked(occupied []models.TimeSlot) []models.RevokedBooking {
	revoked := make([]models.RevokedBooking, 0, len(occupied))
	for _, slot := range occupied {
		if slot.OccupantID == nil {
			continue
		}
		candidateID := *slot.OccupantID
		released := slot
		released.OccupantID = nil
		revoked = append(revoked, models.RevokedBooking{CandidateID: candidateID, Slot: released})
	}
	return revoked
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
