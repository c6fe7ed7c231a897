package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"qrattend/internal/attendance"
)

// testRepository runs the record store contract against repo.
func testRepository(t *testing.T, repo attendance.Repository) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("students", func(t *testing.T) {
		st := attendance.Student{ID: "u1", StudentID: "2021001", Name: "Amal", Email: "a@uni.example", Year: "2", RegisteredAt: now}
		if err := repo.InsertStudent(ctx, st); err != nil {
			t.Fatalf("insert: %v", err)
		}
		dup := st
		dup.ID, dup.Name = "u2", "Other"
		if err := repo.InsertStudent(ctx, dup); !errors.Is(err, attendance.ErrDuplicateKey) {
			t.Fatalf("duplicate insert err = %v", err)
		}

		got, err := repo.GetStudent(ctx, "2021001")
		if err != nil || got == nil {
			t.Fatalf("get: %v %v", got, err)
		}
		if got.ID != "u1" || got.Name != "Amal" || !got.RegisteredAt.Equal(now) {
			t.Fatalf("got %+v", got)
		}
		if miss, err := repo.GetStudent(ctx, "missing"); miss != nil || err != nil {
			t.Fatalf("miss = %v, %v", miss, err)
		}
	})

	t.Run("instructors", func(t *testing.T) {
		in := attendance.Instructor{ID: "i1", Username: "dr.salem", PasswordHash: "hash", Name: "Salem", CreatedAt: now}
		if err := repo.InsertInstructor(ctx, in); err != nil {
			t.Fatalf("insert: %v", err)
		}
		dup := in
		dup.ID = "i2"
		if err := repo.InsertInstructor(ctx, dup); !errors.Is(err, attendance.ErrDuplicateKey) {
			t.Fatalf("duplicate username err = %v", err)
		}
		got, err := repo.GetInstructorByUsername(ctx, "dr.salem")
		if err != nil || got == nil || got.ID != "i1" || got.PasswordHash != "hash" {
			t.Fatalf("got %+v, %v", got, err)
		}
		if miss, err := repo.GetInstructorByUsername(ctx, "nobody"); miss != nil || err != nil {
			t.Fatalf("miss = %v, %v", miss, err)
		}
	})

	t.Run("sessions", func(t *testing.T) {
		s1 := attendance.Session{ID: "s1", InstructorID: "i1", CourseName: "Algo", Duration: 60, Token: "tok-1",
			CreatedAt: now, ExpiresAt: now.Add(time.Hour), Active: true}
		s2 := attendance.Session{ID: "s2", InstructorID: "i1", CourseName: "Algo", Duration: 30, Token: "tok-2",
			CreatedAt: now.Add(time.Minute), ExpiresAt: now.Add(31 * time.Minute), Active: true}
		s3 := attendance.Session{ID: "s3", InstructorID: "i2", CourseName: "Physics", Duration: 60, Token: "tok-3",
			CreatedAt: now.Add(2 * time.Minute), ExpiresAt: now.Add(62 * time.Minute), Active: true}
		unowned := attendance.Session{ID: "s5", CourseName: "Open", Duration: 10, Token: "tok-5",
			CreatedAt: now.Add(3 * time.Minute), ExpiresAt: now.Add(13 * time.Minute), Active: true}
		for _, s := range []attendance.Session{s1, s2, s3, unowned} {
			if err := repo.InsertSession(ctx, s); err != nil {
				t.Fatalf("insert %s: %v", s.ID, err)
			}
		}

		sameToken := s1
		sameToken.ID = "s4"
		if err := repo.InsertSession(ctx, sameToken); !errors.Is(err, attendance.ErrDuplicateKey) {
			t.Fatalf("duplicate token err = %v", err)
		}

		got, err := repo.GetSessionByToken(ctx, "tok-2")
		if err != nil || got == nil || got.ID != "s2" || !got.ExpiresAt.Equal(s2.ExpiresAt) || !got.Active {
			t.Fatalf("by token = %+v, %v", got, err)
		}
		got, err = repo.GetSession(ctx, "s1")
		if err != nil || got == nil || got.Token != "tok-1" {
			t.Fatalf("by id = %+v, %v", got, err)
		}
		if miss, err := repo.GetSession(ctx, "s4"); miss != nil || err != nil {
			t.Fatalf("rejected session was stored: %v, %v", miss, err)
		}

		mine, err := repo.ListSessions(ctx, "i1")
		if err != nil || len(mine) != 2 {
			t.Fatalf("list i1 = %v, %v", mine, err)
		}
		if mine[0].ID != "s1" || mine[1].ID != "s2" {
			t.Fatalf("list i1 order = %s, %s", mine[0].ID, mine[1].ID)
		}
		empty, err := repo.ListSessions(ctx, "")
		if err != nil || len(empty) != 1 || empty[0].ID != "s5" {
			t.Fatalf("list empty instructor = %v, %v", empty, err)
		}
		if none, err := repo.ListSessions(ctx, "i9"); err != nil || len(none) != 0 {
			t.Fatalf("list unknown = %v, %v", none, err)
		}
	})

	t.Run("attendance", func(t *testing.T) {
		rec := attendance.Record{ID: "r1", SessionID: "s1", StudentID: "2021001", StudentName: "Amal", MarkedAt: now}
		if err := repo.InsertAttendance(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		dup := rec
		dup.ID = "r2"
		if err := repo.InsertAttendance(ctx, dup); !errors.Is(err, attendance.ErrDuplicateKey) {
			t.Fatalf("duplicate mark err = %v", err)
		}
		other := attendance.Record{ID: "r3", SessionID: "s2", StudentID: "2021001", StudentName: "Amal", MarkedAt: now}
		if err := repo.InsertAttendance(ctx, other); err != nil {
			t.Fatalf("same student, other session: %v", err)
		}

		got, err := repo.GetAttendance(ctx, "s1", "2021001")
		if err != nil || got == nil || got.ID != "r1" || got.StudentName != "Amal" {
			t.Fatalf("get = %+v, %v", got, err)
		}
		if miss, err := repo.GetAttendance(ctx, "s3", "2021001"); miss != nil || err != nil {
			t.Fatalf("miss = %v, %v", miss, err)
		}

		bySession, err := repo.ListAttendance(ctx, "s1")
		if err != nil || len(bySession) != 1 {
			t.Fatalf("list s1 = %v, %v", bySession, err)
		}
		if none, err := repo.ListAttendance(ctx, ""); err != nil || len(none) != 0 {
			t.Fatalf("list empty session id = %v, %v", none, err)
		}
		all, err := repo.ListAllAttendance(ctx)
		if err != nil || len(all) != 2 {
			t.Fatalf("list all = %v, %v", all, err)
		}
	})

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, NewMemory())
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "qrattend.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()
	testRepository(t, repo)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "cassandra"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	repo, err := Open(context.Background(), Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := repo.(*Memory); !ok {
		t.Fatalf("got %T", repo)
	}
}

func TestRedisNotConfigured(t *testing.T) {
	r := NewRedis("")
	if r != nil {
		t.Fatal("expected nil client for empty address")
	}
	if r.Healthy(context.Background()) {
		t.Fatal("nil client reported healthy")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
