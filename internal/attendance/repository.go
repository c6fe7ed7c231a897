package attendance

import "context"

// Repository is the record store behind the service. Inserts are
// insert-if-absent: a uniqueness violation returns ErrDuplicateKey and leaves
// the store untouched. Point lookups return (nil, nil) when nothing matches.
type Repository interface {
	InsertStudent(ctx context.Context, st Student) error
	GetStudent(ctx context.Context, studentID string) (*Student, error)

	InsertInstructor(ctx context.Context, in Instructor) error
	GetInstructorByUsername(ctx context.Context, username string) (*Instructor, error)

	InsertSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	ListSessions(ctx context.Context, instructorID string) ([]Session, error)

	InsertAttendance(ctx context.Context, rec Record) error
	GetAttendance(ctx context.Context, sessionID, studentID string) (*Record, error)
	ListAttendance(ctx context.Context, sessionID string) ([]Record, error)
	ListAllAttendance(ctx context.Context) ([]Record, error)

	Ping(ctx context.Context) error
}
