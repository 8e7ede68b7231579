package attendance

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps students and records in process memory. It backs
// DB_DRIVER=memory and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]Student
	byUID    map[string]string
	byNumber map[string]string
	records  map[dayKey]Record
}

type dayKey struct {
	student string
	day     string
}

var (
	_ StudentDirectory = (*MemoryStore)(nil)
	_ RecordStore      = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students: make(map[string]Student),
		byUID:    make(map[string]string),
		byNumber: make(map[string]string),
		records:  make(map[dayKey]Record),
	}
}

// FindByHardwareID returns the student holding uid, or nil.
func (m *MemoryStore) FindByHardwareID(_ context.Context, uid string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUID[uid]
	if !ok {
		return nil, nil
	}
	st := m.students[id]
	return &st, nil
}

// FindByID returns the student with id, or nil.
func (m *MemoryStore) FindByID(_ context.Context, id string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// CreateStudent adds st, rejecting a duplicate uid or student number.
func (m *MemoryStore) CreateStudent(_ context.Context, st Student) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUID[st.UID]; ok {
		return Student{}, ErrDuplicateStudent
	}
	if _, ok := m.byNumber[st.StudentID]; ok {
		return Student{}, ErrDuplicateStudent
	}
	m.students[st.ID] = st
	m.byUID[st.UID] = st.ID
	m.byNumber[st.StudentID] = st.ID
	return st, nil
}

// ListStudents returns every registered student.
func (m *MemoryStore) ListStudents(_ context.Context) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Student, 0, len(m.students))
	for _, st := range m.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteStudent removes a student and leaves its records behind, the way an
// out-of-band deletion would.
func (m *MemoryStore) DeleteStudent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[id]
	if !ok {
		return
	}
	delete(m.students, id)
	delete(m.byUID, st.UID)
	delete(m.byNumber, st.StudentID)
}

// FindForStudentOnDay returns the student's record for the window's day, or nil.
func (m *MemoryStore) FindForStudentOnDay(_ context.Context, studentID string, w Window) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[dayKey{studentID, w.Key()}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// InsertIfAbsent stores rec unless the student already has a record that day.
func (m *MemoryStore) InsertIfAbsent(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dayKey{rec.StudentID, rec.Day}
	if existing, ok := m.records[key]; ok {
		return existing, ErrAlreadyMarked
	}
	rec.Student = nil
	m.records[key] = rec
	return rec, nil
}

// UpsertForDay creates or overwrites the student's record for the day.
func (m *MemoryStore) UpsertForDay(_ context.Context, rec Record) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dayKey{rec.StudentID, rec.Day}
	existing, ok := m.records[key]
	if ok {
		existing.Timestamp = rec.Timestamp
		existing.Status = rec.Status
		existing.Remark = rec.Remark
		existing.PhotoURL = nil
		m.records[key] = existing
		return existing, false, nil
	}
	rec.Student = nil
	rec.PhotoURL = nil
	m.records[key] = rec
	return rec, true, nil
}

// StudentsInWindow returns the ids of students with a record in w.
func (m *MemoryStore) StudentsInWindow(_ context.Context, w Window) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{})
	for key := range m.records {
		if inDays(key.day, w) {
			out[key.student] = struct{}{}
		}
	}
	return out, nil
}

// ListInWindow returns the records in w, newest first.
func (m *MemoryStore) ListInWindow(_ context.Context, w Window) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for key, rec := range m.records {
		if !inDays(key.day, w) {
			continue
		}
		if st, ok := m.students[rec.StudentID]; ok {
			rec.Student = st.Ref()
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func inDays(day string, w Window) bool {
	return day >= w.Key() && day < w.EndKey()
}
