package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"absensi/internal/attendance"
)

// Students persists the student directory.
type Students struct {
	db *sqlx.DB
}

var _ attendance.StudentDirectory = (*Students)(nil)

// NewStudents creates the repository.
func NewStudents(db *DB) *Students {
	return &Students{db: db.Client}
}

const studentColumns = `id, uid, student_id, name, gender, created_at`

func (r *Students) findOne(ctx context.Context, where string, arg any) (*attendance.Student, error) {
	var st attendance.Student
	err := r.db.GetContext(ctx, &st, r.db.Rebind(`SELECT `+studentColumns+` FROM students WHERE `+where+` = ?`), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find student by %s", where)
	}
	return &st, nil
}

// FindByHardwareID returns the student holding uid.
func (r *Students) FindByHardwareID(ctx context.Context, uid string) (*attendance.Student, error) {
	return r.findOne(ctx, "uid", uid)
}

// FindByID returns the student with the given internal id.
func (r *Students) FindByID(ctx context.Context, id string) (*attendance.Student, error) {
	return r.findOne(ctx, "id", id)
}

// CreateStudent inserts st. Unique uid and student_id are enforced by the
// schema.
func (r *Students) CreateStudent(ctx context.Context, st attendance.Student) (attendance.Student, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO students (id, uid, student_id, name, gender, created_at)
		VALUES (:id, :uid, :student_id, :name, :gender, :created_at)
	`, st)
	if isUniqueViolation(err) {
		return attendance.Student{}, attendance.ErrDuplicateStudent
	}
	if err != nil {
		return attendance.Student{}, errors.Wrap(err, "insert student")
	}
	return st, nil
}

// ListStudents returns all students ordered by name.
func (r *Students) ListStudents(ctx context.Context) ([]attendance.Student, error) {
	var out []attendance.Student
	if err := r.db.SelectContext(ctx, &out, `SELECT `+studentColumns+` FROM students ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	return out, nil
}
