package attendance

import (
	"time"
)

// Status is the daily attendance state of a student.
type Status string

const (
	StatusHadir Status = "HADIR"
	StatusIzin  Status = "IZIN"
	StatusSakit Status = "SAKIT"
	StatusAlfa  Status = "ALFA"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusHadir, StatusIzin, StatusSakit, StatusAlfa:
		return true
	}
	return false
}

// Gender of a registered student.
type Gender string

const (
	GenderMale   Gender = "Laki-laki"
	GenderFemale Gender = "Perempuan"
)

// Valid reports whether g is one of the two accepted values.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Student represents a registered student.
type Student struct {
	ID        string    `json:"_id" db:"id"`
	UID       string    `json:"uid" db:"uid"`
	StudentID string    `json:"studentId" db:"student_id"`
	Name      string    `json:"name" db:"name"`
	Gender    Gender    `json:"gender" db:"gender"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// StudentRef is the student view embedded in attendance payloads.
type StudentRef struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
}

// Ref returns the embeddable view of s.
func (s Student) Ref() *StudentRef {
	return &StudentRef{ID: s.ID, Name: s.Name, StudentID: s.StudentID}
}

// DeletedStudentName labels records whose student no longer exists.
const DeletedStudentName = "deleted student"

// Record is the single attendance entry of a student for one day.
type Record struct {
	ID        string      `json:"_id"`
	StudentID string      `json:"-"`
	Student   *StudentRef `json:"student"`
	Day       string      `json:"day"`
	Timestamp time.Time   `json:"timestamp"`
	Status    Status      `json:"status"`
	PhotoURL  *string     `json:"photoUrl"`
	Remark    string      `json:"keterangan"`
}

// Dangling reports whether the record's student could not be resolved.
func (r Record) Dangling() bool {
	return r.Student == nil
}

// NewStudent carries the fields needed to register a student.
type NewStudent struct {
	UID       string
	StudentID string
	Name      string
	Gender    Gender
}

// ManualEntry is a staff-submitted status for a student and date.
type ManualEntry struct {
	StudentID string
	Date      string
	Status    Status
	Remark    string
}

// TapResult enumerates the outcomes of a hardware tap.
type TapResult int

const (
	TapRecorded TapResult = iota
	TapAlreadyMarked
	TapUnknownHardwareID
	TapPromptedForRegistration
)

// String returns the metric label of r.
func (r TapResult) String() string {
	switch r {
	case TapRecorded:
		return "recorded"
	case TapAlreadyMarked:
		return "already_marked"
	case TapUnknownHardwareID:
		return "unknown"
	case TapPromptedForRegistration:
		return "registration_prompt"
	}
	return "invalid"
}

// TapOutcome is returned by Engine.HandleTap.
type TapOutcome struct {
	Result TapResult
	// Record is set when Result is TapRecorded.
	Record *Record
	// Student is set when the hardware id resolved to a student.
	Student *Student
	// Existing is the status already held today when Result is TapAlreadyMarked.
	Existing Status
}

// ManualOutcome is returned by Engine.HandleManualEntry.
type ManualOutcome struct {
	Record  Record
	Created bool
}

// Board is the initial dashboard state for one day.
type Board struct {
	Attendances    []Record  `json:"attendances"`
	AbsentStudents []Student `json:"absentStudents"`
}
