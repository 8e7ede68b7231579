package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"absensi/internal/attendance"
)

// Records persists attendance records, one per (student_id, day).
type Records struct {
	db *sqlx.DB
}

var _ attendance.RecordStore = (*Records)(nil)

// NewRecords creates the repository.
func NewRecords(db *DB) *Records {
	return &Records{db: db.Client}
}

type recordRow struct {
	ID            string         `db:"id"`
	StudentID     string         `db:"student_id"`
	Day           string         `db:"day"`
	OccurredAt    time.Time      `db:"occurred_at"`
	Status        string         `db:"status"`
	PhotoURL      sql.NullString `db:"photo_url"`
	Remark        string         `db:"remark"`
	StudentName   sql.NullString `db:"student_name"`
	StudentNumber sql.NullString `db:"student_number"`
	StudentRowID  sql.NullString `db:"student_row_id"`
}

func (r recordRow) record() attendance.Record {
	rec := attendance.Record{
		ID:        r.ID,
		StudentID: r.StudentID,
		Day:       r.Day,
		Timestamp: r.OccurredAt,
		Status:    attendance.Status(r.Status),
		Remark:    r.Remark,
	}
	if r.PhotoURL.Valid {
		url := r.PhotoURL.String
		rec.PhotoURL = &url
	}
	if r.StudentRowID.Valid {
		rec.Student = &attendance.StudentRef{
			ID:        r.StudentRowID.String,
			Name:      r.StudentName.String,
			StudentID: r.StudentNumber.String,
		}
	}
	return rec
}

const recordColumns = `id, student_id, day, occurred_at, status, photo_url, remark`

func (r *Records) findByDay(ctx context.Context, studentID, day string) (*attendance.Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = ? AND day = ?
	`), studentID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find record")
	}
	rec := row.record()
	return &rec, nil
}

// FindForStudentOnDay returns the student's record for w.
func (r *Records) FindForStudentOnDay(ctx context.Context, studentID string, w attendance.Window) (*attendance.Record, error) {
	return r.findByDay(ctx, studentID, w.Key())
}

// InsertIfAbsent relies on UNIQUE (student_id, day): of two concurrent
// inserts exactly one affects a row.
func (r *Records) InsertIfAbsent(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, day) DO NOTHING
	`), rec.ID, rec.StudentID, rec.Day, rec.Timestamp.UTC(), string(rec.Status), nullString(rec.PhotoURL), rec.Remark)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "insert record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "insert record rows affected")
	}
	if n == 1 {
		rec.Student = nil
		return rec, nil
	}

	existing, err := r.findByDay(ctx, rec.StudentID, rec.Day)
	if err != nil {
		return attendance.Record{}, err
	}
	if existing == nil {
		return attendance.Record{}, errors.New("insert record: conflict without existing row")
	}
	return *existing, attendance.ErrAlreadyMarked
}

// UpsertForDay overwrites status, remark and timestamp for the day and
// clears the photo. A new row keeps rec.ID, which is how created is told
// apart from an overwrite.
func (r *Records) UpsertForDay(ctx context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, NULL, ?)
		ON CONFLICT (student_id, day) DO UPDATE SET
			occurred_at = excluded.occurred_at,
			status = excluded.status,
			remark = excluded.remark,
			photo_url = NULL
		RETURNING `+recordColumns+`
	`), rec.ID, rec.StudentID, rec.Day, rec.Timestamp.UTC(), string(rec.Status), rec.Remark)
	if err != nil {
		return attendance.Record{}, false, errors.Wrap(err, "upsert record")
	}
	return row.record(), row.ID == rec.ID, nil
}

// StudentsInWindow returns the distinct students with a record in w.
func (r *Records) StudentsInWindow(ctx context.Context, w attendance.Window) (map[string]struct{}, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`
		SELECT DISTINCT student_id FROM attendance_records
		WHERE day >= ? AND day < ?
	`), w.Key(), w.EndKey())
	if err != nil {
		return nil, errors.Wrap(err, "students in window")
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// ListInWindow returns records in w newest first. Records whose student is
// gone come back with a nil Student.
func (r *Records) ListInWindow(ctx context.Context, w attendance.Window) ([]attendance.Record, error) {
	var rows []recordRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT a.id, a.student_id, a.day, a.occurred_at, a.status, a.photo_url, a.remark,
		       s.id AS student_row_id, s.name AS student_name, s.student_id AS student_number
		FROM attendance_records a
		LEFT JOIN students s ON s.id = a.student_id
		WHERE a.day >= ? AND a.day < ?
		ORDER BY a.occurred_at DESC
	`), w.Key(), w.EndKey())
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	out := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
