package attendance

import (
	"context"
	"errors"
	"time"
)

const tokenAttempts = 3

// CreateSession opens a timed session for an instructor and issues its join
// token. A non-positive duration falls back to the default length. The
// instructor id is not checked against registered instructors.
func (s *Service) CreateSession(ctx context.Context, instructorID, courseName, lectureTitle string, duration int) (Session, error) {
	if duration <= 0 {
		duration = s.defaultMinutes
	}
	now := s.now()
	sess := Session{
		ID:           s.newID(),
		InstructorID: instructorID,
		CourseName:   courseName,
		LectureTitle: lectureTitle,
		Duration:     duration,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(duration) * time.Minute),
		Active:       true,
	}

	var err error
	for i := 0; i < tokenAttempts; i++ {
		sess.Token = s.newID()
		err = s.repo.InsertSession(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrDuplicateKey) {
			return Session{}, storageErr("insert session", err)
		}
	}
	return Session{}, storageErr("insert session", err)
}

// GetSessionByToken resolves a join token to a live session.
func (s *Service) GetSessionByToken(ctx context.Context, token string) (Session, error) {
	sess, err := s.repo.GetSessionByToken(ctx, normalizeID(token))
	if err != nil {
		return Session{}, storageErr("get session", err)
	}
	if sess == nil {
		return Session{}, ErrSessionNotFound
	}
	if sess.ExpiredAt(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return *sess, nil
}

// ListSessions returns every session created by the instructor.
func (s *Service) ListSessions(ctx context.Context, instructorID string) ([]Session, error) {
	sessions, err := s.repo.ListSessions(ctx, instructorID)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}
