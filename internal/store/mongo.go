package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"qrattend/internal/attendance"
)

type mongoStudent struct {
	ID           string    `bson:"id"`
	StudentID    string    `bson:"studentId"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	Phone        string    `bson:"phone"`
	Department   string    `bson:"department"`
	Year         string    `bson:"year"`
	RegisteredAt time.Time `bson:"registeredAt"`
}

type mongoInstructor struct {
	ID           string    `bson:"id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"passwordHash"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type mongoSession struct {
	ID           string    `bson:"id"`
	InstructorID string    `bson:"instructorId"`
	CourseName   string    `bson:"courseName"`
	LectureTitle string    `bson:"lectureTitle"`
	Duration     int       `bson:"duration"`
	QRCode       string    `bson:"qrCode"`
	CreatedAt    time.Time `bson:"createdAt"`
	ExpiresAt    time.Time `bson:"expiresAt"`
	Active       bool      `bson:"active"`
}

type mongoRecord struct {
	ID          string    `bson:"id"`
	SessionID   string    `bson:"sessionId"`
	StudentID   string    `bson:"studentId"`
	StudentName string    `bson:"studentName"`
	MarkedAt    time.Time `bson:"markedAt"`
}

// Mongo persists records in MongoDB collections guarded by unique indexes.
type Mongo struct {
	client      *mongo.Client
	students    *mongo.Collection
	instructors *mongo.Collection
	sessions    *mongo.Collection
	attendance  *mongo.Collection
}

// NewMongo connects to uri, ensures the unique indexes and returns the repository.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:      client,
		students:    db.Collection("students"),
		instructors: db.Collection("instructors"),
		sessions:    db.Collection("sessions"),
		attendance:  db.Collection("attendance"),
	}

	indexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{m.students, bson.D{{Key: "studentId", Value: 1}}},
		{m.instructors, bson.D{{Key: "username", Value: 1}}},
		{m.sessions, bson.D{{Key: "id", Value: 1}}},
		{m.sessions, bson.D{{Key: "qrCode", Value: 1}}},
		{m.attendance, bson.D{{Key: "sessionId", Value: 1}, {Key: "studentId", Value: 1}}},
	}
	for _, idx := range indexes {
		_, err := idx.coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
			Keys:    idx.keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo index %s: %w", idx.coll.Name(), err)
		}
	}
	return m, nil
}

func mongoInsertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return attendance.ErrDuplicateKey
	}
	return err
}

// findOne decodes a single document, mapping a miss to (false, nil).
func findOne(ctx context.Context, coll *mongo.Collection, filter bson.D, dest any) (bool, error) {
	err := coll.FindOne(ctx, filter).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (m *Mongo) InsertStudent(ctx context.Context, st attendance.Student) error {
	_, err := m.students.InsertOne(ctx, mongoStudent(st))
	return mongoInsertErr(err)
}

func (m *Mongo) GetStudent(ctx context.Context, studentID string) (*attendance.Student, error) {
	var doc mongoStudent
	ok, err := findOne(ctx, m.students, bson.D{{Key: "studentId", Value: studentID}}, &doc)
	if !ok {
		return nil, err
	}
	st := attendance.Student(doc)
	st.RegisteredAt = st.RegisteredAt.UTC()
	return &st, nil
}

func (m *Mongo) InsertInstructor(ctx context.Context, in attendance.Instructor) error {
	_, err := m.instructors.InsertOne(ctx, mongoInstructor(in))
	return mongoInsertErr(err)
}

func (m *Mongo) GetInstructorByUsername(ctx context.Context, username string) (*attendance.Instructor, error) {
	var doc mongoInstructor
	ok, err := findOne(ctx, m.instructors, bson.D{{Key: "username", Value: username}}, &doc)
	if !ok {
		return nil, err
	}
	in := attendance.Instructor(doc)
	in.CreatedAt = in.CreatedAt.UTC()
	return &in, nil
}

func (d mongoSession) session() attendance.Session {
	return attendance.Session{
		ID: d.ID, InstructorID: d.InstructorID, CourseName: d.CourseName, LectureTitle: d.LectureTitle,
		Duration: d.Duration, Token: d.QRCode, CreatedAt: d.CreatedAt.UTC(), ExpiresAt: d.ExpiresAt.UTC(), Active: d.Active,
	}
}

func (m *Mongo) InsertSession(ctx context.Context, s attendance.Session) error {
	_, err := m.sessions.InsertOne(ctx, mongoSession{
		ID: s.ID, InstructorID: s.InstructorID, CourseName: s.CourseName, LectureTitle: s.LectureTitle,
		Duration: s.Duration, QRCode: s.Token, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt, Active: s.Active,
	})
	return mongoInsertErr(err)
}

func (m *Mongo) getSession(ctx context.Context, filter bson.D) (*attendance.Session, error) {
	var doc mongoSession
	ok, err := findOne(ctx, m.sessions, filter, &doc)
	if !ok {
		return nil, err
	}
	s := doc.session()
	return &s, nil
}

func (m *Mongo) GetSession(ctx context.Context, id string) (*attendance.Session, error) {
	return m.getSession(ctx, bson.D{{Key: "id", Value: id}})
}

func (m *Mongo) GetSessionByToken(ctx context.Context, token string) (*attendance.Session, error) {
	return m.getSession(ctx, bson.D{{Key: "qrCode", Value: token}})
}

func (m *Mongo) ListSessions(ctx context.Context, instructorID string) ([]attendance.Session, error) {
	filter := bson.D{{Key: "instructorId", Value: instructorID}}
	cur, err := m.sessions.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoSession
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	var res []attendance.Session
	for _, d := range docs {
		res = append(res, d.session())
	}
	return res, nil
}

func (m *Mongo) InsertAttendance(ctx context.Context, rec attendance.Record) error {
	_, err := m.attendance.InsertOne(ctx, mongoRecord(rec))
	return mongoInsertErr(err)
}

func (m *Mongo) GetAttendance(ctx context.Context, sessionID, studentID string) (*attendance.Record, error) {
	var doc mongoRecord
	ok, err := findOne(ctx, m.attendance, bson.D{{Key: "sessionId", Value: sessionID}, {Key: "studentId", Value: studentID}}, &doc)
	if !ok {
		return nil, err
	}
	rec := attendance.Record(doc)
	rec.MarkedAt = rec.MarkedAt.UTC()
	return &rec, nil
}

func (m *Mongo) ListAttendance(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	return m.listAttendance(ctx, bson.D{{Key: "sessionId", Value: sessionID}})
}

func (m *Mongo) ListAllAttendance(ctx context.Context) ([]attendance.Record, error) {
	return m.listAttendance(ctx, bson.D{})
}

func (m *Mongo) listAttendance(ctx context.Context, filter bson.D) ([]attendance.Record, error) {
	cur, err := m.attendance.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "markedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]attendance.Record, 0, len(docs))
	for _, d := range docs {
		rec := attendance.Record(d)
		rec.MarkedAt = rec.MarkedAt.UTC()
		res = append(res, rec)
	}
	return res, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
