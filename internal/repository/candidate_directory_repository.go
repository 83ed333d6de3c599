package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/interview-slots/internal/models"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CandidateDirectoryRepository reads the candidate profile table owned by
// the surrounding application. It never writes to it.
type CandidateDirectoryRepository struct {
	db    *sqlx.DB
	table string
}

// NewCandidateDirectoryRepository builds a directory over table.
func NewCandidateDirectoryRepository(db *sqlx.DB, table string) (*CandidateDirectoryRepository, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid candidate profile table %q", table)
	}
	return &CandidateDirectoryRepository{db: db, table: table}, nil
}

// ResolveDisplay returns the name and handle for a candidate, or nil when no profile exists.
func (r *CandidateDirectoryRepository) ResolveDisplay(ctx context.Context, candidateID int64) (*models.CandidateDisplay, error) {
	query := fmt.Sprintf(`SELECT full_name, COALESCE(handle, '') AS handle FROM %s WHERE candidate_id = $1`, r.table)
	var display models.CandidateDisplay
	if err := r.db.GetContext(ctx, &display, query, candidateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve candidate display: %w", err)
	}
	return &display, nil
}

// ResolveDisplays loads displays for many candidates at once. Missing profiles are absent from the map.
func (r *CandidateDirectoryRepository) ResolveDisplays(ctx context.Context, candidateIDs []int64) (map[int64]models.CandidateDisplay, error) {
	result := make(map[int64]models.CandidateDisplay, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`SELECT candidate_id, full_name, COALESCE(handle, '') AS handle FROM %s WHERE candidate_id = ANY($1)`, r.table)
	var rows []struct {
		CandidateID int64 `db:"candidate_id"`
		models.CandidateDisplay
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(candidateIDs)); err != nil {
		return nil, fmt.Errorf("resolve candidate displays: %w", err)
	}
	for _, row := range rows {
		result[row.CandidateID] = row.CandidateDisplay
	}
	return result, nil
}

// EligibleDepartment returns the department a candidate may book in. ok is
// false when the candidate has no profile or is not cleared for booking.
func (r *CandidateDirectoryRepository) EligibleDepartment(ctx context.Context, candidateID int64) (departmentID int64, ok bool, err error) {
	query := fmt.Sprintf(`SELECT department_id FROM %s WHERE candidate_id = $1 AND booking_eligible`, r.table)
	if err := r.db.GetContext(ctx, &departmentID, query, candidateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("check booking eligibility: %w", err)
	}
	return departmentID, true, nil
}
