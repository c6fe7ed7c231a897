package store

import (
	"context"
	"sync"

	"qrattend/internal/attendance"
)

// Memory keeps every collection in process. A single lock makes each
// check-then-insert atomic, which is what the uniqueness contract needs.
type Memory struct {
	mu          sync.RWMutex
	students    map[string]attendance.Student // by StudentID
	instructors map[string]attendance.Instructor
	usernames   map[string]string // username -> instructor id
	sessions    []attendance.Session
	sessionIdx  map[string]int // id -> position in sessions
	tokens      map[string]int // token -> position in sessions
	records     []attendance.Record
	marked      map[markKey]struct{}
}

type markKey struct{ sessionID, studentID string }

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		students:    make(map[string]attendance.Student),
		instructors: make(map[string]attendance.Instructor),
		usernames:   make(map[string]string),
		sessionIdx:  make(map[string]int),
		tokens:      make(map[string]int),
		marked:      make(map[markKey]struct{}),
	}
}

func (m *Memory) InsertStudent(_ context.Context, st attendance.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[st.StudentID]; ok {
		return attendance.ErrDuplicateKey
	}
	m.students[st.StudentID] = st
	return nil
}

func (m *Memory) GetStudent(_ context.Context, studentID string) (*attendance.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *Memory) InsertInstructor(_ context.Context, in attendance.Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usernames[in.Username]; ok {
		return attendance.ErrDuplicateKey
	}
	if _, ok := m.instructors[in.ID]; ok {
		return attendance.ErrDuplicateKey
	}
	m.instructors[in.ID] = in
	m.usernames[in.Username] = in.ID
	return nil
}

func (m *Memory) GetInstructorByUsername(_ context.Context, username string) (*attendance.Instructor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return nil, nil
	}
	in := m.instructors[id]
	return &in, nil
}

func (m *Memory) InsertSession(_ context.Context, s attendance.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessionIdx[s.ID]; ok {
		return attendance.ErrDuplicateKey
	}
	if _, ok := m.tokens[s.Token]; ok {
		return attendance.ErrDuplicateKey
	}
	m.sessions = append(m.sessions, s)
	m.sessionIdx[s.ID] = len(m.sessions) - 1
	m.tokens[s.Token] = len(m.sessions) - 1
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.sessionIdx[id]
	if !ok {
		return nil, nil
	}
	s := m.sessions[i]
	return &s, nil
}

func (m *Memory) GetSessionByToken(_ context.Context, token string) (*attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.tokens[token]
	if !ok {
		return nil, nil
	}
	s := m.sessions[i]
	return &s, nil
}

func (m *Memory) ListSessions(_ context.Context, instructorID string) ([]attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []attendance.Session
	for _, s := range m.sessions {
		if s.InstructorID == instructorID {
			res = append(res, s)
		}
	}
	return res, nil
}

func (m *Memory) InsertAttendance(_ context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := markKey{rec.SessionID, rec.StudentID}
	if _, ok := m.marked[key]; ok {
		return attendance.ErrDuplicateKey
	}
	m.marked[key] = struct{}{}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) GetAttendance(_ context.Context, sessionID, studentID string) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.marked[markKey{sessionID, studentID}]; !ok {
		return nil, nil
	}
	for _, rec := range m.records {
		if rec.SessionID == sessionID && rec.StudentID == studentID {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListAttendance(_ context.Context, sessionID string) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []attendance.Record
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (m *Memory) ListAllAttendance(context.Context) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]attendance.Record(nil), m.records...), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
