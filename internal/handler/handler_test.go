package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"qrattend/internal/attendance"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

type testServer struct {
	router *gin.Engine
	events *queue.InMemory
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{events: queue.NewInMemory(16), now: time.Now().UTC()}
	svc := attendance.NewService(store.NewMemory(),
		attendance.WithClock(func() time.Time { return ts.now }),
		attendance.WithHasher(attendance.BcryptHasher{Cost: bcrypt.MinCost}),
	)
	h := New(svc, ts.events, nil, TokenConfig{
		Issuer:     "qrattend-test",
		SigningKey: "test-key",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	ts.router = gin.New()
	h.Routes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type loginResponse struct {
	Instructor  attendance.InstructorProfile `json:"instructor"`
	AccessToken string                       `json:"access_token"`
}

func (ts *testServer) login(t *testing.T, username, password string) loginResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/instructors/login", "", gin.H{
		"username": username, "password": password, "name": "Dr. " + username,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	return decode[loginResponse](t, w)
}

func (ts *testServer) createSession(t *testing.T, token string, duration int) attendance.Session {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/sessions/create", token, gin.H{
		"course_name": "Networks", "lecture_title": "Routing", "duration": duration,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	return decode[struct {
		Session attendance.Session `json:"session"`
	}](t, w).Session
}

func TestStudentRegistration(t *testing.T) {
	ts := newTestServer(t)
	body := gin.H{"student_id": "2021001", "name": "Amal", "email": "amal@uni.example", "year": "3"}

	w := ts.do(t, http.MethodPost, "/api/students/register", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodPost, "/api/students/register", "", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodPost, "/api/students/register", "", gin.H{"name": "No ID"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/students/2021001", "", nil)
	if w.Code != http.StatusOK || decode[attendance.Student](t, w).Name != "Amal" {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodGet, "/api/students/404", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get missing: %d", w.Code)
	}
}

func TestInstructorLogin(t *testing.T) {
	ts := newTestServer(t)
	first := ts.login(t, "salem", "pw")
	if first.AccessToken == "" || first.Instructor.ID == "" {
		t.Fatalf("unexpected login response %+v", first)
	}
	if again := ts.login(t, "salem", "pw"); again.Instructor.ID != first.Instructor.ID {
		t.Fatalf("second login created a new instructor")
	}

	w := ts.do(t, http.MethodPost, "/api/instructors/login", "", gin.H{"username": "salem", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", w.Code)
	}
}

func TestInstructorRoutesRequireOwnToken(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.login(t, "alice", "pw")
	bob := ts.login(t, "bob", "pw")

	w := ts.do(t, http.MethodPost, "/api/sessions/create", "", gin.H{"course_name": "X"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/sessions/create", bob.AccessToken, gin.H{
		"course_name": "X", "instructor_id": alice.Instructor.ID,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("create for someone else: %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/api/attendance/instructor/"+alice.Instructor.ID, bob.AccessToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign report: %d", w.Code)
	}
}

func TestAttendanceFlow(t *testing.T) {
	ts := newTestServer(t)
	inst := ts.login(t, "salem", "pw")
	for _, id := range []string{"s1", "s2", "s3"} {
		w := ts.do(t, http.MethodPost, "/api/students/register", "", gin.H{"student_id": id, "name": "Student " + id})
		if w.Code != http.StatusCreated {
			t.Fatalf("register %s: %d", id, w.Code)
		}
	}

	busy := ts.createSession(t, inst.AccessToken, 1)
	empty := ts.createSession(t, inst.AccessToken, 0)
	if busy.InstructorID != inst.Instructor.ID || empty.Duration != 60 {
		t.Fatalf("unexpected sessions %+v %+v", busy, empty)
	}

	w := ts.do(t, http.MethodGet, "/api/sessions/qr/"+busy.Token, "", nil)
	if w.Code != http.StatusOK || decode[attendance.Session](t, w).ID != busy.ID {
		t.Fatalf("by token: %d %s", w.Code, w.Body.String())
	}

	ts.now = ts.now.Add(30 * time.Second)
	for _, id := range []string{"s1", "s2", "s3"} {
		w := ts.do(t, http.MethodPost, "/api/attendance/mark", "", gin.H{"session_id": busy.ID, "student_id": id, "qr_code": busy.Token})
		if w.Code != http.StatusCreated {
			t.Fatalf("mark %s: %d %s", id, w.Code, w.Body.String())
		}
	}

	select {
	case msg := <-ts.drainOne(t):
		if msg.Type != queue.TypeAttendanceMarked {
			t.Fatalf("event type %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no attendance event published")
	}

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"again", gin.H{"session_id": busy.ID, "student_id": "s1", "qr_code": busy.Token}, http.StatusConflict},
		{"wrong token", gin.H{"session_id": busy.ID, "student_id": "s1", "qr_code": empty.Token}, http.StatusNotFound},
		{"unknown student", gin.H{"session_id": busy.ID, "student_id": "ghost", "qr_code": busy.Token}, http.StatusNotFound},
		{"missing fields", gin.H{"session_id": busy.ID}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := ts.do(t, http.MethodPost, "/api/attendance/mark", "", tc.body)
		if w.Code != tc.want {
			t.Fatalf("%s: status %d, want %d (%s)", tc.name, w.Code, tc.want, w.Body.String())
		}
	}

	w = ts.do(t, http.MethodGet, "/api/attendance/session/"+busy.ID, "", nil)
	if recs := decode[[]attendance.Record](t, w); len(recs) != 3 {
		t.Fatalf("session attendance = %d records", len(recs))
	}

	w = ts.do(t, http.MethodGet, "/api/attendance/instructor/"+inst.Instructor.ID, inst.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report: %d %s", w.Code, w.Body.String())
	}
	report := decode[[]attendance.SessionReport](t, w)
	counts := map[string]int{}
	for _, r := range report {
		counts[r.ID] = len(r.Attendees)
	}
	if len(report) != 2 || counts[busy.ID] != 3 || counts[empty.ID] != 0 {
		t.Fatalf("report counts = %v", counts)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"attendees":[]`)) {
		t.Fatalf("empty session should serialize an empty attendees list: %s", w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/sessions/instructor/"+inst.Instructor.ID, inst.AccessToken, nil)
	if sessions := decode[[]attendance.Session](t, w); len(sessions) != 2 {
		t.Fatalf("sessions = %d", len(sessions))
	}

	ts.now = ts.now.Add(31 * time.Second)
	w = ts.do(t, http.MethodGet, "/api/sessions/qr/"+busy.Token, "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expired by token: %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/api/sessions/qr/unknown", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown token: %d", w.Code)
	}
}

// drainOne starts a consumer on the test queue and returns its channel.
func (ts *testServer) drainOne(t *testing.T) <-chan queue.Message {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	msgs, err := ts.events.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	return msgs
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d %s", w.Code, w.Body.String())
	}
	body := decode[map[string]any](t, w)
	if body["store"] != true {
		t.Fatalf("store health = %v", body["store"])
	}
	if _, ok := body["redis"]; ok {
		t.Fatal("redis reported although not configured")
	}
}
