package service

import (
	"fmt"

	"github.com/noah-isme/interview-slots/internal/models"
	"github.com/noah-isme/interview-slots/pkg/sheets"
)

// Interview dates shown on every department sheet, in column order.
var mirrorDates = [...]string{
	"2025-10-06",
	"2025-10-07",
	"2025-10-08",
	"2025-10-09",
	"2025-10-10",
	"2025-10-13",
	"2025-10-14",
	"2025-10-15",
	"2025-10-16",
	"2025-10-17",
}

// Time labels shown in column A, in row order.
var mirrorTimes = [...]string{
	"09:00", "09:20", "09:40",
	"10:00", "10:20", "10:40",
	"11:00", "11:20", "11:40",
	"12:00", "12:20", "12:40",
	"13:00", "13:20", "13:40",
	"14:00", "14:20", "14:40",
	"15:00", "15:20", "15:40",
	"16:00", "16:20", "16:40",
	"17:00", "17:20", "17:40",
}

const (
	mirrorHeaderRows = 2
	mirrorNameHeader = "Name"
	mirrorHandleHdr  = "Handle"
	mirrorTimeHeader = "Time"
)

var (
	mirrorDateIndex = indexOf(mirrorDates[:])
	mirrorTimeIndex = indexOf(mirrorTimes[:])
)

func indexOf(values []string) map[string]int {
	out := make(map[string]int, len(values))
	for i, v := range values {
		out[v] = i
	}
	return out
}

// gridCell locates the name/handle pair of one slot. Columns are zero based,
// rows are one based as in A1 notation.
type gridCell struct {
	nameColumn int
	row        int
}

// cellFor maps a slot coordinate onto the grid. ok is false for dates or
// times outside the fixed tables.
func cellFor(date, startTime string) (gridCell, bool) {
	d, ok := mirrorDateIndex[date]
	if !ok {
		return gridCell{}, false
	}
	t, ok := mirrorTimeIndex[startTime]
	if !ok {
		return gridCell{}, false
	}
	return gridCell{nameColumn: 1 + 2*d, row: mirrorHeaderRows + 1 + t}, true
}

// A1 returns the two-cell range holding the name and handle.
func (c gridCell) A1() string {
	return fmt.Sprintf("%s%d:%s%d", sheets.ColumnName(c.nameColumn), c.row, sheets.ColumnName(c.nameColumn+1), c.row)
}

// gridRange covers the whole sheet including headers.
func gridRange() string {
	lastColumn := 2 * len(mirrorDates)
	lastRow := mirrorHeaderRows + len(mirrorTimes)
	return fmt.Sprintf("A1:%s%d", sheets.ColumnName(lastColumn), lastRow)
}

// cellValues renders the name/handle pair for one occupant. Nil clears the cell.
func cellValues(display *models.CandidateDisplay) [][]interface{} {
	if display == nil {
		return [][]interface{}{{"", ""}}
	}
	return [][]interface{}{{display.Name, display.Handle}}
}

// buildGrid renders a department's full sheet. Slots outside the tables are
// ignored and every unoccupied cell is blank so stale names are overwritten.
func buildGrid(slots []models.TimeSlot, displays map[int64]models.CandidateDisplay) [][]interface{} {
	width := 1 + 2*len(mirrorDates)
	rows := make([][]interface{}, mirrorHeaderRows+len(mirrorTimes))
	for i := range rows {
		row := make([]interface{}, width)
		for j := range row {
			row[j] = ""
		}
		rows[i] = row
	}

	rows[0][0] = mirrorTimeHeader
	for i, date := range mirrorDates {
		rows[0][1+2*i] = date
		rows[1][1+2*i] = mirrorNameHeader
		rows[1][2+2*i] = mirrorHandleHdr
	}
	for i, label := range mirrorTimes {
		rows[mirrorHeaderRows+i][0] = label
	}

	for _, slot := range slots {
		if slot.OccupantID == nil {
			continue
		}
		cell, ok := cellFor(slot.Date, slot.StartTime)
		if !ok {
			continue
		}
		display := displayOrPlaceholder(*slot.OccupantID, displays)
		row := rows[cell.row-1]
		row[cell.nameColumn] = display.Name
		row[cell.nameColumn+1] = display.Handle
	}
	return rows
}

// displayOrPlaceholder never returns an empty name for a real occupant.
func displayOrPlaceholder(candidateID int64, displays map[int64]models.CandidateDisplay) models.CandidateDisplay {
	if display, ok := displays[candidateID]; ok {
		return display
	}
	return placeholderDisplay(candidateID)
}

func placeholderDisplay(candidateID int64) models.CandidateDisplay {
	return models.CandidateDisplay{Name: fmt.Sprintf("Candidate #%d", candidateID)}
}
