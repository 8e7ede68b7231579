package attendance

import (
	"context"

	"absensi/internal/broadcast"
)

// StudentDirectory is the registry of students.
// Finders return (nil, nil) when nothing matches.
type StudentDirectory interface {
	FindByHardwareID(ctx context.Context, uid string) (*Student, error)
	FindByID(ctx context.Context, id string) (*Student, error)
	// CreateStudent returns ErrDuplicateStudent when uid or studentId is taken.
	CreateStudent(ctx context.Context, st Student) (Student, error)
	// ListStudents returns every student ordered by name.
	ListStudents(ctx context.Context) ([]Student, error)
}

// RecordStore persists at most one record per (student, day).
type RecordStore interface {
	// FindForStudentOnDay returns the student's record for w, or nil.
	FindForStudentOnDay(ctx context.Context, studentID string, w Window) (*Record, error)
	// InsertIfAbsent atomically inserts rec unless one already exists for
	// (rec.StudentID, rec.Day). On conflict it returns the existing record
	// and ErrAlreadyMarked.
	InsertIfAbsent(ctx context.Context, rec Record) (Record, error)
	// UpsertForDay writes rec's status, remark and timestamp over any record
	// for (rec.StudentID, rec.Day), clearing the photo. created reports
	// whether a new row was inserted.
	UpsertForDay(ctx context.Context, rec Record) (saved Record, created bool, err error)
	// StudentsInWindow returns the ids of students holding a record in w.
	StudentsInWindow(ctx context.Context, w Window) (map[string]struct{}, error)
	// ListInWindow returns records in w newest first with Student resolved,
	// or nil Student for dangling references.
	ListInWindow(ctx context.Context, w Window) ([]Record, error)
}

// PhotoStore turns a captured image into a URL. It returns "" on any
// failure and never reports an error to the caller.
type PhotoStore interface {
	Store(ctx context.Context, image []byte, hint string) string
}

// Publisher receives domain events.
type Publisher interface {
	Publish(evt broadcast.Event)
}
