package attendance

import "time"

// DefaultSessionMinutes is used when a session is created without a duration.
const DefaultSessionMinutes = 60

// Student is a registered student, keyed by the externally assigned StudentID.
type Student struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Department   string    `json:"department"`
	Year         string    `json:"year"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Instructor is keyed by Username. PasswordHash never leaves the service.
type Instructor struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

// InstructorProfile is the public view of an instructor.
type InstructorProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Profile strips the credential.
func (i Instructor) Profile() InstructorProfile {
	return InstructorProfile{ID: i.ID, Name: i.Name, Username: i.Username}
}

// Session is a timed lecture. Token is the QR payload and is unique across sessions.
type Session struct {
	ID           string    `json:"id"`
	InstructorID string    `json:"instructor_id"`
	CourseName   string    `json:"course_name"`
	LectureTitle string    `json:"lecture_title"`
	Duration     int       `json:"duration"` // minutes
	Token        string    `json:"qr_code"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Active       bool      `json:"active"`
}

// ExpiredAt reports whether the session has expired at t.
// A session is still valid at the exact expiry instant.
func (s Session) ExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// Record is a single attendance mark. StudentName is a snapshot taken at mark time.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	MarkedAt    time.Time `json:"marked_at"`
}

// SessionReport is a session together with everyone who marked attendance.
type SessionReport struct {
	Session
	Attendees []Record `json:"attendees"`
}
