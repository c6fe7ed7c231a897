package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service coordinates registration, sessions, attendance marking and reports.
type Service struct {
	repo           Repository
	hasher         Hasher
	now            func() time.Time
	newID          func() string
	defaultMinutes int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHasher overrides the credential hasher.
func WithHasher(h Hasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithDefaultDuration sets the session length used when none is given.
func WithDefaultDuration(minutes int) Option {
	return func(s *Service) {
		if minutes > 0 {
			s.defaultMinutes = minutes
		}
	}
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		hasher:         BcryptHasher{},
		now:            systemNow,
		newID:          uuid.NewString,
		defaultMinutes: DefaultSessionMinutes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// systemNow keeps millisecond precision, the finest every backend stores.
func systemNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// normalizeID strips surrounding whitespace from identifiers and tokens
// before they reach the store.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// Healthy verifies the backing store is reachable.
func (s *Service) Healthy(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// StudentInput carries the fields supplied on student registration.
type StudentInput struct {
	StudentID  string
	Name       string
	Email      string
	Phone      string
	Department string
	Year       string
}

// RegisterStudent creates a student unless the identifier is already taken.
func (s *Service) RegisterStudent(ctx context.Context, in StudentInput) (Student, error) {
	studentID := normalizeID(in.StudentID)
	if studentID == "" {
		return Student{}, errors.Join(ErrInvalidInput, errors.New("student id required"))
	}

	existing, err := s.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, storageErr("get student", err)
	}
	if existing != nil {
		return Student{}, ErrAlreadyRegistered
	}

	st := Student{
		ID:           s.newID(),
		StudentID:    studentID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Department:   in.Department,
		Year:         in.Year,
		RegisteredAt: s.now(),
	}
	if err := s.repo.InsertStudent(ctx, st); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return Student{}, ErrAlreadyRegistered
		}
		return Student{}, storageErr("insert student", err)
	}
	return st, nil
}

// GetStudent looks a student up by their external identifier.
func (s *Service) GetStudent(ctx context.Context, studentID string) (Student, error) {
	st, err := s.repo.GetStudent(ctx, normalizeID(studentID))
	if err != nil {
		return Student{}, storageErr("get student", err)
	}
	if st == nil {
		return Student{}, ErrStudentNotFound
	}
	return *st, nil
}

// LoginOrRegisterInstructor authenticates an existing instructor or creates
// one on first use of the username. Only public fields are returned.
func (s *Service) LoginOrRegisterInstructor(ctx context.Context, username, password, name, email string) (InstructorProfile, error) {
	username = normalizeID(username)
	if username == "" {
		return InstructorProfile{}, errors.Join(ErrInvalidInput, errors.New("username required"))
	}

	existing, err := s.repo.GetInstructorByUsername(ctx, username)
	if err != nil {
		return InstructorProfile{}, storageErr("get instructor", err)
	}
	if existing != nil {
		return s.authenticate(*existing, password)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return InstructorProfile{}, err
	}
	in := Instructor{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Email:        email,
		CreatedAt:    s.now(),
	}
	if err := s.repo.InsertInstructor(ctx, in); err != nil {
		if !errors.Is(err, ErrDuplicateKey) {
			return InstructorProfile{}, storageErr("insert instructor", err)
		}
		// Lost a race with another first login for the same username.
		winner, gerr := s.repo.GetInstructorByUsername(ctx, username)
		if gerr != nil {
			return InstructorProfile{}, storageErr("get instructor", gerr)
		}
		if winner == nil {
			return InstructorProfile{}, storageErr("insert instructor", err)
		}
		return s.authenticate(*winner, password)
	}
	return in.Profile(), nil
}

func (s *Service) authenticate(in Instructor, password string) (InstructorProfile, error) {
	ok, err := s.hasher.Verify(in.PasswordHash, password)
	if err != nil {
		return InstructorProfile{}, err
	}
	if !ok {
		return InstructorProfile{}, ErrInvalidCredential
	}
	return in.Profile(), nil
}
