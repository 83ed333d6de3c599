package models

// MirrorSyncTask asks the mirror to overwrite one cell pair. A nil OccupantID
// blanks the cell. Tasks carry no identity; replays are harmless overwrites.
type MirrorSyncTask struct {
	DepartmentID int64  `json:"department_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	OccupantID   *int64 `json:"occupant_id,omitempty"`
}

// TaskForSlot builds the mirror task reflecting slot's current occupant.
func TaskForSlot(slot TimeSlot, occupantID *int64) MirrorSyncTask {
	return MirrorSyncTask{
		DepartmentID: slot.DepartmentID,
		Date:         slot.Date,
		StartTime:    slot.StartTime,
		OccupantID:   occupantID,
	}
}

// SyncStatus reports what a mirror write did.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "SYNCED"
	SyncSkipped SyncStatus = "SKIPPED"
	SyncFailed  SyncStatus = "FAILED"
)

// SyncResult summarises one mirror write.
type SyncResult struct {
	Status   SyncStatus `json:"status"`
	Attempts int        `json:"attempts"`
	Range    string     `json:"range,omitempty"`
}
