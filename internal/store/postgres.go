package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"qrattend/internal/attendance"
)

const uniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS students (
	id            TEXT PRIMARY KEY,
	student_id    TEXT UNIQUE NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	department    TEXT NOT NULL DEFAULT '',
	year          TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS instructors (
	id            TEXT PRIMARY KEY,
	username      TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	instructor_id TEXT NOT NULL,
	course_name   TEXT NOT NULL DEFAULT '',
	lecture_title TEXT NOT NULL DEFAULT '',
	duration      INTEGER NOT NULL,
	qr_code       TEXT UNIQUE NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS attendance (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	student_id   TEXT NOT NULL,
	student_name TEXT NOT NULL DEFAULT '',
	marked_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_instructor ON sessions(instructor_id);
CREATE INDEX IF NOT EXISTS idx_attendance_session  ON attendance(session_id);
`

// Postgres persists records in Postgres. Uniqueness is enforced by the schema,
// so concurrent inserts for the same key surface as ErrDuplicateKey.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates the tables if needed and returns the repository.
func NewPostgres(ctx context.Context, db *sql.DB) (*Postgres, error) {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func insertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return attendance.ErrDuplicateKey
	}
	return err
}

func (p *Postgres) InsertStudent(ctx context.Context, st attendance.Student) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO students (id, student_id, name, email, phone, department, year, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, st.ID, st.StudentID, st.Name, st.Email, st.Phone, st.Department, st.Year, st.RegisteredAt)
	return insertErr(err)
}

func (p *Postgres) GetStudent(ctx context.Context, studentID string) (*attendance.Student, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, student_id, name, email, phone, department, year, registered_at
		FROM students WHERE student_id = $1
	`, studentID)
	var st attendance.Student
	if err := row.Scan(&st.ID, &st.StudentID, &st.Name, &st.Email, &st.Phone, &st.Department, &st.Year, &st.RegisteredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	st.RegisteredAt = st.RegisteredAt.UTC()
	return &st, nil
}

func (p *Postgres) InsertInstructor(ctx context.Context, in attendance.Instructor) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO instructors (id, username, password_hash, name, email, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, in.ID, in.Username, in.PasswordHash, in.Name, in.Email, in.CreatedAt)
	return insertErr(err)
}

func (p *Postgres) GetInstructorByUsername(ctx context.Context, username string) (*attendance.Instructor, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, name, email, created_at
		FROM instructors WHERE username = $1
	`, username)
	var in attendance.Instructor
	if err := row.Scan(&in.ID, &in.Username, &in.PasswordHash, &in.Name, &in.Email, &in.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	in.CreatedAt = in.CreatedAt.UTC()
	return &in, nil
}

func (p *Postgres) InsertSession(ctx context.Context, s attendance.Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, instructor_id, course_name, lecture_title, duration, qr_code, created_at, expires_at, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, s.ID, s.InstructorID, s.CourseName, s.LectureTitle, s.Duration, s.Token, s.CreatedAt, s.ExpiresAt, s.Active)
	return insertErr(err)
}

const sessionColumns = `id, instructor_id, course_name, lecture_title, duration, qr_code, created_at, expires_at, active`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (attendance.Session, error) {
	var s attendance.Session
	err := row.Scan(&s.ID, &s.InstructorID, &s.CourseName, &s.LectureTitle, &s.Duration, &s.Token, &s.CreatedAt, &s.ExpiresAt, &s.Active)
	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, err
}

func (p *Postgres) getSession(ctx context.Context, column, value string) (*attendance.Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE `+column+` = $1`, value)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (*attendance.Session, error) {
	return p.getSession(ctx, "id", id)
}

func (p *Postgres) GetSessionByToken(ctx context.Context, token string) (*attendance.Session, error) {
	return p.getSession(ctx, "qr_code", token)
}

func (p *Postgres) ListSessions(ctx context.Context, instructorID string) ([]attendance.Session, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE instructor_id = $1 ORDER BY created_at`, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []attendance.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (p *Postgres) InsertAttendance(ctx context.Context, rec attendance.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attendance (id, session_id, student_id, student_name, marked_at)
		VALUES ($1,$2,$3,$4,$5)
	`, rec.ID, rec.SessionID, rec.StudentID, rec.StudentName, rec.MarkedAt)
	return insertErr(err)
}

func (p *Postgres) GetAttendance(ctx context.Context, sessionID, studentID string) (*attendance.Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, student_name, marked_at
		FROM attendance WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	var rec attendance.Record
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.StudentName, &rec.MarkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.MarkedAt = rec.MarkedAt.UTC()
	return &rec, nil
}

const recordQuery = `SELECT id, session_id, student_id, student_name, marked_at FROM attendance`

func (p *Postgres) ListAttendance(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	return p.listAttendance(ctx, recordQuery+` WHERE session_id = $1 ORDER BY marked_at`, sessionID)
}

func (p *Postgres) ListAllAttendance(ctx context.Context) ([]attendance.Record, error) {
	return p.listAttendance(ctx, recordQuery+` ORDER BY marked_at`)
}

func (p *Postgres) listAttendance(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.StudentName, &rec.MarkedAt); err != nil {
			return nil, err
		}
		rec.MarkedAt = rec.MarkedAt.UTC()
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
