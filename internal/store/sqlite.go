package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qrattend/internal/attendance"
)

type studentRow struct {
	ID           string `gorm:"primaryKey"`
	StudentID    string `gorm:"uniqueIndex;not null"`
	Name         string
	Email        string
	Phone        string
	Department   string
	Year         string
	RegisteredAt time.Time
}

func (studentRow) TableName() string { return "students" }

type instructorRow struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string
	Email        string
	CreatedAt    time.Time
}

func (instructorRow) TableName() string { return "instructors" }

type sessionRow struct {
	ID           string `gorm:"primaryKey"`
	InstructorID string `gorm:"index;not null"`
	CourseName   string
	LectureTitle string
	Duration     int
	QRCode       string `gorm:"column:qr_code;uniqueIndex;not null"`
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Active       bool
}

func (sessionRow) TableName() string { return "sessions" }

type attendanceRow struct {
	ID          string `gorm:"primaryKey"`
	SessionID   string `gorm:"uniqueIndex:idx_attendance_mark;not null"`
	StudentID   string `gorm:"uniqueIndex:idx_attendance_mark;not null"`
	StudentName string
	MarkedAt    time.Time
}

func (attendanceRow) TableName() string { return "attendance" }

// SQLite persists records in a local SQLite file through gorm.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (creating if needed) the database at path and migrates it.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&studentRow{}, &instructorRow{}, &sessionRow{}, &attendanceRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

func createErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return attendance.ErrDuplicateKey
	}
	return err
}

// first runs a single-row query, mapping a miss to (false, nil).
func first(tx *gorm.DB, dest any) (bool, error) {
	err := tx.Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLite) InsertStudent(ctx context.Context, st attendance.Student) error {
	row := studentRow{
		ID: st.ID, StudentID: st.StudentID, Name: st.Name, Email: st.Email,
		Phone: st.Phone, Department: st.Department, Year: st.Year, RegisteredAt: st.RegisteredAt,
	}
	return createErr(s.db.WithContext(ctx).Create(&row).Error)
}

func (s *SQLite) GetStudent(ctx context.Context, studentID string) (*attendance.Student, error) {
	var row studentRow
	ok, err := first(s.db.WithContext(ctx).Where("student_id = ?", studentID), &row)
	if !ok {
		return nil, err
	}
	return &attendance.Student{
		ID: row.ID, StudentID: row.StudentID, Name: row.Name, Email: row.Email,
		Phone: row.Phone, Department: row.Department, Year: row.Year, RegisteredAt: row.RegisteredAt.UTC(),
	}, nil
}

func (s *SQLite) InsertInstructor(ctx context.Context, in attendance.Instructor) error {
	row := instructorRow{
		ID: in.ID, Username: in.Username, PasswordHash: in.PasswordHash,
		Name: in.Name, Email: in.Email, CreatedAt: in.CreatedAt,
	}
	return createErr(s.db.WithContext(ctx).Create(&row).Error)
}

func (s *SQLite) GetInstructorByUsername(ctx context.Context, username string) (*attendance.Instructor, error) {
	var row instructorRow
	ok, err := first(s.db.WithContext(ctx).Where("username = ?", username), &row)
	if !ok {
		return nil, err
	}
	return &attendance.Instructor{
		ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash,
		Name: row.Name, Email: row.Email, CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

func (r sessionRow) session() attendance.Session {
	return attendance.Session{
		ID: r.ID, InstructorID: r.InstructorID, CourseName: r.CourseName, LectureTitle: r.LectureTitle,
		Duration: r.Duration, Token: r.QRCode, CreatedAt: r.CreatedAt.UTC(), ExpiresAt: r.ExpiresAt.UTC(), Active: r.Active,
	}
}

func (s *SQLite) InsertSession(ctx context.Context, sess attendance.Session) error {
	row := sessionRow{
		ID: sess.ID, InstructorID: sess.InstructorID, CourseName: sess.CourseName, LectureTitle: sess.LectureTitle,
		Duration: sess.Duration, QRCode: sess.Token, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt, Active: sess.Active,
	}
	return createErr(s.db.WithContext(ctx).Create(&row).Error)
}

func (s *SQLite) GetSession(ctx context.Context, id string) (*attendance.Session, error) {
	var row sessionRow
	ok, err := first(s.db.WithContext(ctx).Where("id = ?", id), &row)
	if !ok {
		return nil, err
	}
	sess := row.session()
	return &sess, nil
}

func (s *SQLite) GetSessionByToken(ctx context.Context, token string) (*attendance.Session, error) {
	var row sessionRow
	ok, err := first(s.db.WithContext(ctx).Where("qr_code = ?", token), &row)
	if !ok {
		return nil, err
	}
	sess := row.session()
	return &sess, nil
}

func (s *SQLite) ListSessions(ctx context.Context, instructorID string) ([]attendance.Session, error) {
	tx := s.db.WithContext(ctx).Where("instructor_id = ?", instructorID).Order("created_at")
	var rows []sessionRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	var res []attendance.Session
	for _, r := range rows {
		res = append(res, r.session())
	}
	return res, nil
}

func (r attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID: r.ID, SessionID: r.SessionID, StudentID: r.StudentID, StudentName: r.StudentName, MarkedAt: r.MarkedAt.UTC(),
	}
}

func (s *SQLite) InsertAttendance(ctx context.Context, rec attendance.Record) error {
	row := attendanceRow{
		ID: rec.ID, SessionID: rec.SessionID, StudentID: rec.StudentID, StudentName: rec.StudentName, MarkedAt: rec.MarkedAt,
	}
	return createErr(s.db.WithContext(ctx).Create(&row).Error)
}

func (s *SQLite) GetAttendance(ctx context.Context, sessionID, studentID string) (*attendance.Record, error) {
	var row attendanceRow
	ok, err := first(s.db.WithContext(ctx).Where("session_id = ? AND student_id = ?", sessionID, studentID), &row)
	if !ok {
		return nil, err
	}
	rec := row.record()
	return &rec, nil
}

func (s *SQLite) ListAttendance(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	return s.listAttendance(s.db.WithContext(ctx).Where("session_id = ?", sessionID))
}

func (s *SQLite) ListAllAttendance(ctx context.Context) ([]attendance.Record, error) {
	return s.listAttendance(s.db.WithContext(ctx))
}

func (s *SQLite) listAttendance(tx *gorm.DB) ([]attendance.Record, error) {
	tx = tx.Order("marked_at")
	var rows []attendanceRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	var res []attendance.Record
	for _, r := range rows {
		res = append(res, r.record())
	}
	return res, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
