package service

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/interview-slots/internal/models"
)

const defaultGridStep = 20 * time.Minute

// AvailabilityGrid is the operator's seed file: every department, its
// interview dates and the daily window that is cut into slots.
type AvailabilityGrid struct {
	Departments []DepartmentGrid `yaml:"departments" validate:"required,min=1,dive"`
}

// DepartmentGrid describes one department's slots.
type DepartmentGrid struct {
	ID    int64    `yaml:"id" validate:"required,gt=0"`
	Dates []string `yaml:"dates" validate:"required,min=1,dive,datetime=2006-01-02"`
	// Start and End are inclusive first and last slot start times.
	Start string `yaml:"start" validate:"required,datetime=15:04"`
	End   string `yaml:"end" validate:"required,datetime=15:04"`
	// Step defaults to 20m.
	Step   string        `yaml:"step,omitempty"`
	Closed []ClosedSlots `yaml:"closed,omitempty" validate:"dive"`
}

// ClosedSlots are seeded but not bookable.
type ClosedSlots struct {
	Date  string   `yaml:"date" validate:"required,datetime=2006-01-02"`
	Times []string `yaml:"times" validate:"required,min=1,dive,datetime=15:04"`
}

// LoadAvailabilityGrid reads and validates a grid file.
func LoadAvailabilityGrid(path string) (*AvailabilityGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grid file: %w", err)
	}
	return ParseAvailabilityGrid(data)
}

// ParseAvailabilityGrid decodes and validates grid YAML.
func ParseAvailabilityGrid(data []byte) (*AvailabilityGrid, error) {
	var grid AvailabilityGrid
	if err := yaml.Unmarshal(data, &grid); err != nil {
		return nil, fmt.Errorf("parse grid file: %w", err)
	}
	if err := validator.New().Struct(grid); err != nil {
		return nil, fmt.Errorf("invalid grid file: %w", err)
	}
	seen := make(map[int64]bool, len(grid.Departments))
	for _, dept := range grid.Departments {
		if seen[dept.ID] {
			return nil, fmt.Errorf("invalid grid file: department %d listed twice", dept.ID)
		}
		seen[dept.ID] = true
	}
	return &grid, nil
}

// Department returns the grid of one department.
func (g *AvailabilityGrid) Department(id int64) (DepartmentGrid, bool) {
	for _, dept := range g.Departments {
		if dept.ID == id {
			return dept, true
		}
	}
	return DepartmentGrid{}, false
}

// Slots expands the department window into seedable coordinates.
func (d DepartmentGrid) Slots() ([]models.GridSlot, error) {
	step := defaultGridStep
	if d.Step != "" {
		parsed, err := time.ParseDuration(d.Step)
		if err != nil {
			return nil, fmt.Errorf("department %d: invalid step %q: %w", d.ID, d.Step, err)
		}
		step = parsed
	}
	if step <= 0 {
		return nil, fmt.Errorf("department %d: step must be positive", d.ID)
	}

	start, err := time.Parse(models.TimeLayout, d.Start)
	if err != nil {
		return nil, fmt.Errorf("department %d: invalid start: %w", d.ID, err)
	}
	end, err := time.Parse(models.TimeLayout, d.End)
	if err != nil {
		return nil, fmt.Errorf("department %d: invalid end: %w", d.ID, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("department %d: end %s before start %s", d.ID, d.End, d.Start)
	}

	closed := make(map[string]bool)
	for _, c := range d.Closed {
		for _, t := range c.Times {
			closed[c.Date+" "+t] = true
		}
	}

	slots := make([]models.GridSlot, 0)
	seenDates := make(map[string]bool, len(d.Dates))
	for _, date := range d.Dates {
		if seenDates[date] {
			continue
		}
		seenDates[date] = true
		for t := start; !t.After(end); t = t.Add(step) {
			label := t.Format(models.TimeLayout)
			slots = append(slots, models.GridSlot{
				DepartmentID: d.ID,
				Date:         date,
				StartTime:    label,
				IsAvailable:  !closed[date+" "+label],
			})
		}
	}
	return slots, nil
}
