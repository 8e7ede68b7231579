package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"absensi/internal/broadcast"
	"absensi/internal/logging"
	"absensi/internal/metrics"
)

const (
	defaultPhotoTimeout = 5 * time.Second
	autoAbsentRemark    = "otomatis: tidak ada tap"
)

// Engine applies the daily attendance rules and emits domain events.
type Engine struct {
	students     StudentDirectory
	records      RecordStore
	photos       PhotoStore
	pub          Publisher
	log          logging.Logger
	cal          Calendar
	now          func() time.Time
	photoTimeout time.Duration

	modeMu  sync.Mutex
	regMode atomic.Bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPhotoStore attaches photos to tap records.
func WithPhotoStore(p PhotoStore) Option { return func(e *Engine) { e.photos = p } }

// WithCalendar sets the day boundary.
func WithCalendar(c Calendar) Option { return func(e *Engine) { e.cal = c } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(e *Engine) { e.log = l } }

// WithPhotoTimeout bounds a single photo store call.
func WithPhotoTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.photoTimeout = d
		}
	}
}

// NewEngine creates an engine. Registration mode starts disabled.
func NewEngine(students StudentDirectory, records RecordStore, pub Publisher, opts ...Option) *Engine {
	e := &Engine{
		students:     students,
		records:      records,
		pub:          pub,
		log:          logging.Discard(),
		cal:          NewCalendar(nil),
		now:          time.Now,
		photoTimeout: defaultPhotoTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calendar returns the engine's day boundary.
func (e *Engine) Calendar() Calendar { return e.cal }

// Today is the window of the current local day.
func (e *Engine) Today() Window { return e.cal.Day(e.now()) }

// RegistrationMode reports whether unknown taps prompt for registration.
func (e *Engine) RegistrationMode() bool { return e.regMode.Load() }

// SetRegistrationMode flips registration mode and announces the new value.
func (e *Engine) SetRegistrationMode(enabled bool) {
	e.modeMu.Lock()
	defer e.modeMu.Unlock()
	e.regMode.Store(enabled)
	e.pub.Publish(broadcast.ModeStatus(enabled))
	e.log.Info("registration mode changed", "enabled", enabled)
}

// FollowRemote applies registration mode changes made on another instance.
// Nothing is published, so relayed toggles do not echo.
func (e *Engine) FollowRemote(evt broadcast.Event) {
	if evt.Type != broadcast.TypeModeStatus || evt.IsRegistrationMode == nil {
		return
	}
	e.modeMu.Lock()
	defer e.modeMu.Unlock()
	e.regMode.Store(*evt.IsRegistrationMode)
	e.log.Info("registration mode followed from relay", "enabled", *evt.IsRegistrationMode)
}

// HandleTap records a HADIR for the student behind uid, at most once per day.
func (e *Engine) HandleTap(ctx context.Context, uid string, image []byte) (TapOutcome, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return TapOutcome{}, ErrHardwareIDRequired
	}

	st, err := e.students.FindByHardwareID(ctx, uid)
	if err != nil {
		return TapOutcome{}, fmt.Errorf("find student by uid: %w", err)
	}
	if st == nil {
		if e.RegistrationMode() {
			e.pub.Publish(broadcast.RegistrationPrompt(uid))
			e.log.Info("prompting registration for new uid", "uid", uid)
			metrics.Taps.WithLabelValues(TapPromptedForRegistration.String()).Inc()
			return TapOutcome{Result: TapPromptedForRegistration}, nil
		}
		e.log.Info("tap from unknown uid", "uid", uid)
		metrics.Taps.WithLabelValues(TapUnknownHardwareID.String()).Inc()
		return TapOutcome{Result: TapUnknownHardwareID}, nil
	}

	now := e.now()
	today := e.cal.Day(now)

	existing, err := e.records.FindForStudentOnDay(ctx, st.ID, today)
	if err != nil {
		return TapOutcome{}, fmt.Errorf("find today's record: %w", err)
	}
	if existing != nil {
		return e.alreadyMarked(st, existing.Status), nil
	}

	rec := Record{
		ID:        uuid.NewString(),
		StudentID: st.ID,
		Day:       today.Key(),
		Timestamp: now,
		Status:    StatusHadir,
	}
	if len(image) > 0 {
		if url := e.storePhoto(ctx, image, fmt.Sprintf("%d-%s", now.UnixMilli(), uid)); url != "" {
			rec.PhotoURL = &url
		}
	}

	saved, err := e.records.InsertIfAbsent(ctx, rec)
	if errors.Is(err, ErrAlreadyMarked) {
		// lost the race against a concurrent tap for the same student
		return e.alreadyMarked(st, saved.Status), nil
	}
	if err != nil {
		return TapOutcome{}, fmt.Errorf("insert attendance: %w", err)
	}

	saved.Student = st.Ref()
	e.pub.Publish(broadcast.NewAttendance(saved))
	e.log.Info("attendance recorded", "student", st.Name, "status", saved.Status)
	metrics.Taps.WithLabelValues(TapRecorded.String()).Inc()
	return TapOutcome{Result: TapRecorded, Record: &saved, Student: st}, nil
}

func (e *Engine) alreadyMarked(st *Student, status Status) TapOutcome {
	e.log.Info("student already marked today", "student", st.Name, "status", status)
	metrics.Taps.WithLabelValues(TapAlreadyMarked.String()).Inc()
	return TapOutcome{Result: TapAlreadyMarked, Student: st, Existing: status}
}

func (e *Engine) storePhoto(ctx context.Context, image []byte, hint string) string {
	if e.photos == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, e.photoTimeout)
	defer cancel()
	url := e.photos.Store(ctx, image, hint)
	if url == "" {
		metrics.PhotoFailures.Inc()
		e.log.Warn("photo not stored, recording attendance without it", "hint", hint)
	}
	return url
}

// HandleManualEntry writes the submitted status for the student's day,
// overwriting any existing record and clearing its photo.
func (e *Engine) HandleManualEntry(ctx context.Context, in ManualEntry) (ManualOutcome, error) {
	if !in.Status.Valid() {
		return ManualOutcome{}, ErrInvalidStatus
	}
	day, err := e.cal.ParseDay(in.Date)
	if err != nil {
		return ManualOutcome{}, err
	}
	st, err := e.students.FindByID(ctx, strings.TrimSpace(in.StudentID))
	if err != nil {
		return ManualOutcome{}, fmt.Errorf("find student: %w", err)
	}
	if st == nil {
		return ManualOutcome{}, ErrStudentNotFound
	}

	saved, created, err := e.records.UpsertForDay(ctx, Record{
		ID:        uuid.NewString(),
		StudentID: st.ID,
		Day:       day.Key(),
		Timestamp: day.Start,
		Status:    in.Status,
		Remark:    strings.TrimSpace(in.Remark),
	})
	if err != nil {
		return ManualOutcome{}, fmt.Errorf("upsert attendance: %w", err)
	}

	saved.Student = st.Ref()
	e.pub.Publish(broadcast.UpdateAttendance(saved))
	kind := "overwrite"
	if created {
		kind = "insert"
	}
	metrics.ManualEntries.WithLabelValues(kind).Inc()
	e.log.Info("manual attendance saved", "student", st.Name, "status", in.Status, "day", saved.Day, "kind", kind)
	return ManualOutcome{Record: saved, Created: created}, nil
}

// RegisterStudent validates and stores a new student.
func (e *Engine) RegisterStudent(ctx context.Context, in NewStudent) (Student, error) {
	in.UID = strings.TrimSpace(in.UID)
	in.Name = strings.TrimSpace(in.Name)
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.UID == "" || in.Name == "" || in.StudentID == "" {
		return Student{}, ErrMissingField
	}
	if !in.Gender.Valid() {
		return Student{}, ErrInvalidGender
	}
	st, err := e.students.CreateStudent(ctx, Student{
		ID:        uuid.NewString(),
		UID:       in.UID,
		StudentID: in.StudentID,
		Name:      in.Name,
		Gender:    in.Gender,
		CreatedAt: e.now().UTC(),
	})
	if err != nil {
		return Student{}, err
	}
	e.log.Info("student registered", "name", st.Name, "uid", st.UID)
	return st, nil
}

// ListStudents returns all students by name.
func (e *Engine) ListStudents(ctx context.Context) ([]Student, error) {
	students, err := e.students.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	sortByName(students)
	return students, nil
}

// ListAbsentToday returns students without any record in today's window.
func (e *Engine) ListAbsentToday(ctx context.Context) ([]Student, error) {
	return e.listAbsent(ctx, e.Today())
}

func (e *Engine) listAbsent(ctx context.Context, w Window) ([]Student, error) {
	present, err := e.records.StudentsInWindow(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("students in window: %w", err)
	}
	all, err := e.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	absent := make([]Student, 0, len(all))
	for _, st := range all {
		if _, ok := present[st.ID]; !ok {
			absent = append(absent, st)
		}
	}
	return absent, nil
}

// TodayBoard returns today's records, newest first, and the absentees.
// Records whose student no longer exists are left out.
func (e *Engine) TodayBoard(ctx context.Context) (Board, error) {
	today := e.Today()
	raw, err := e.records.ListInWindow(ctx, today)
	if err != nil {
		return Board{}, fmt.Errorf("list today's records: %w", err)
	}
	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		if r.Dangling() {
			continue
		}
		records = append(records, r)
	}
	if dropped := len(raw) - len(records); dropped > 0 {
		e.log.Warn("attendance records reference missing students", "count", dropped, "day", today.Key())
	}

	absent, err := e.listAbsent(ctx, today)
	if err != nil {
		return Board{}, err
	}
	return Board{Attendances: records, AbsentStudents: absent}, nil
}

// Report returns the records in w oldest first. Dangling records are kept
// under a placeholder student.
func (e *Engine) Report(ctx context.Context, w Window) ([]Record, error) {
	records, err := e.records.ListInWindow(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	for i := range records {
		if records[i].Dangling() {
			records[i].Student = &StudentRef{ID: records[i].StudentID, Name: DeletedStudentName}
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// FinalizeDay marks every student still without a record in w as ALFA.
// Existing records are never touched. It returns the number of records
// inserted.
func (e *Engine) FinalizeDay(ctx context.Context, w Window) (int, error) {
	absent, err := e.listAbsent(ctx, w)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for _, st := range absent {
		saved, err := e.records.InsertIfAbsent(ctx, Record{
			ID:        uuid.NewString(),
			StudentID: st.ID,
			Day:       w.Key(),
			Timestamp: w.Start,
			Status:    StatusAlfa,
			Remark:    autoAbsentRemark,
		})
		if errors.Is(err, ErrAlreadyMarked) {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("finalize %s: %w", st.ID, err)
		}
		inserted++
		saved.Student = st.Ref()
		e.pub.Publish(broadcast.UpdateAttendance(saved))
	}
	e.log.Info("day finalized", "day", w.Key(), "alfa", inserted)
	return inserted, nil
}

func sortByName(students []Student) {
	c := collate.New(language.Indonesian, collate.IgnoreCase)
	sort.SliceStable(students, func(i, j int) bool {
		return c.CompareString(students[i].Name, students[j].Name) < 0
	})
}
