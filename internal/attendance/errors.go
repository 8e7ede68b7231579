package attendance

import "errors"

var (
	ErrHardwareIDRequired = errors.New("uid is required")
	ErrMissingField       = errors.New("uid, name and studentId are required")
	ErrInvalidStatus      = errors.New("status must be one of HADIR, IZIN, SAKIT, ALFA")
	ErrInvalidGender      = errors.New("gender must be Laki-laki or Perempuan")
	ErrInvalidDate        = errors.New("date must be YYYY-MM-DD")
	ErrStudentNotFound    = errors.New("student not found")
	ErrDuplicateStudent   = errors.New("uid or studentId already registered")

	// ErrAlreadyMarked is returned by RecordStore.InsertIfAbsent when the
	// student already holds a record for the day. The existing record is
	// returned alongside it.
	ErrAlreadyMarked = errors.New("attendance already recorded for this day")
)

// IsValidation reports whether err should be surfaced as a bad request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrHardwareIDRequired) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidGender) ||
		errors.Is(err, ErrInvalidDate)
}
