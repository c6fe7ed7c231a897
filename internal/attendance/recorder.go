package attendance

import (
	"context"
	"errors"
)

// MarkAttendance records that a student attended a session.
//
// The session must match both sessionID and token and must not be expired,
// and the student must be registered. At most one record exists per
// (session, student): the store's insert-if-absent settles concurrent marks
// for the same pair, and every loser gets ErrAlreadyMarked.
func (s *Service) MarkAttendance(ctx context.Context, sessionID, studentID, token string) (Record, error) {
	sessionID, studentID, token = normalizeID(sessionID), normalizeID(studentID), normalizeID(token)
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Record{}, storageErr("get session", err)
	}
	if sess == nil || token == "" || sess.Token != token {
		return Record{}, ErrSessionNotFound
	}
	now := s.now()
	if sess.ExpiredAt(now) {
		return Record{}, ErrSessionExpired
	}

	st, err := s.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Record{}, storageErr("get student", err)
	}
	if st == nil {
		return Record{}, ErrStudentNotFound
	}

	existing, err := s.repo.GetAttendance(ctx, sess.ID, st.StudentID)
	if err != nil {
		return Record{}, storageErr("get attendance", err)
	}
	if existing != nil {
		return Record{}, ErrAlreadyMarked
	}

	rec := Record{
		ID:          s.newID(),
		SessionID:   sess.ID,
		StudentID:   st.StudentID,
		StudentName: st.Name,
		MarkedAt:    now,
	}
	if err := s.repo.InsertAttendance(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return Record{}, ErrAlreadyMarked
		}
		return Record{}, storageErr("insert attendance", err)
	}
	return rec, nil
}

// AttendanceBySession returns the records for one session.
func (s *Service) AttendanceBySession(ctx context.Context, sessionID string) ([]Record, error) {
	recs, err := s.repo.ListAttendance(ctx, sessionID)
	if err != nil {
		return nil, storageErr("list attendance", err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}
