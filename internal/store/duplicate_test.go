package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"qrattend/internal/attendance"
)

func TestInsertErrMapsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		dup  bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"other error", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := insertErr(tc.err)
			if errors.Is(got, attendance.ErrDuplicateKey) != tc.dup {
				t.Fatalf("insertErr(%v) = %v", tc.err, got)
			}
			if !tc.dup && got != tc.err {
				t.Fatalf("non-duplicate error rewritten: %v", got)
			}
		})
	}
	if insertErr(nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestMongoInsertErrMapsDuplicateKey(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
	if err := mongoInsertErr(dup); !errors.Is(err, attendance.ErrDuplicateKey) {
		t.Fatalf("duplicate write = %v", err)
	}
	other := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121, Message: "document failed validation"}}}
	if err := mongoInsertErr(other); errors.Is(err, attendance.ErrDuplicateKey) {
		t.Fatalf("validation failure mapped to duplicate: %v", err)
	}
	if mongoInsertErr(nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestCreateErrMapsDuplicateKey(t *testing.T) {
	if err := createErr(gorm.ErrDuplicatedKey); !errors.Is(err, attendance.ErrDuplicateKey) {
		t.Fatalf("gorm duplicate = %v", err)
	}
	if err := createErr(errors.New("UNIQUE constraint failed: attendance.session_id, attendance.student_id")); !errors.Is(err, attendance.ErrDuplicateKey) {
		t.Fatalf("sqlite unique failure = %v", err)
	}
	if err := createErr(gorm.ErrInvalidData); errors.Is(err, attendance.ErrDuplicateKey) {
		t.Fatalf("invalid data mapped to duplicate: %v", err)
	}
}
