package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/metrics"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

// TokenConfig controls the JWTs issued on instructor login.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	svc    *attendance.Service
	events queue.Queue  // nil disables event publishing
	redis  *store.Redis // nil if Redis is not configured
	tokens TokenConfig
}

func New(svc *attendance.Service, events queue.Queue, redis *store.Redis, tokens TokenConfig) *Handler {
	return &Handler{svc: svc, events: events, redis: redis, tokens: tokens}
}

// Routes mounts the API on r. Instructor endpoints require a bearer token.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/students/register", h.RegisterStudent)
		api.GET("/students/:studentId", h.GetStudent)

		api.POST("/instructors/login", h.InstructorLogin)

		api.GET("/sessions/qr/:qrCode", h.SessionByToken)
		api.POST("/attendance/mark", h.MarkAttendance)
		api.GET("/attendance/session/:sessionId", h.AttendanceBySession)
	}

	instructor := api.Group("", auth.InstructorAuth(h.tokens.SigningKey, h.tokens.Issuer))
	{
		instructor.POST("/sessions/create", h.CreateSession)
		instructor.GET("/sessions/instructor/:instructorId", h.ListSessions)
		instructor.GET("/attendance/instructor/:instructorId", h.InstructorReport)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeHealthy := h.svc.Healthy(ctx) == nil
	body := gin.H{"status": "ok", "store": storeHealthy, "timestamp": time.Now().UTC()}
	status := http.StatusOK
	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	if !storeHealthy {
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- Students ----------

type registerStudentRequest struct {
	StudentID  string `json:"student_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

func (h *Handler) RegisterStudent(c *gin.Context) {
	var req registerStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.svc.RegisterStudent(c.Request.Context(), attendance.StudentInput{
		StudentID:  req.StudentID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Year:       req.Year,
	})
	metrics.Registrations.WithLabelValues("student", resultLabel(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "student registered", "student": st})
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.svc.GetStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ---------- Instructors ----------

type instructorLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// InstructorLogin signs an instructor in, creating the account on first use.
func (h *Handler) InstructorLogin(c *gin.Context) {
	var req instructorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.svc.LoginOrRegisterInstructor(c.Request.Context(), req.Username, req.Password, req.Name, req.Email)
	metrics.Registrations.WithLabelValues("instructor", resultLabel(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}

	tokens, err := auth.Issue(profile.ID, auth.RoleInstructor, h.tokens.Issuer, h.tokens.SigningKey, h.tokens.AccessTTL, h.tokens.RefreshTTL)
	if err != nil {
		log.Printf("token issue failed for %s: %v", profile.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "logged in",
		"instructor":    profile,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Sessions ----------

type createSessionRequest struct {
	InstructorID string `json:"instructor_id"`
	CourseName   string `json:"course_name" binding:"required"`
	LectureTitle string `json:"lecture_title"`
	Duration     int    `json:"duration"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	subject := auth.Subject(c)
	if req.InstructorID == "" {
		req.InstructorID = subject
	}
	if req.InstructorID != subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "instructor mismatch"})
		return
	}

	sess, err := h.svc.CreateSession(c.Request.Context(), req.InstructorID, req.CourseName, req.LectureTitle, req.Duration)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.SessionsCreated.Inc()
	c.JSON(http.StatusCreated, gin.H{"message": "session created", "session": sess})
}

func (h *Handler) SessionByToken(c *gin.Context) {
	sess, err := h.svc.GetSessionByToken(c.Request.Context(), c.Param("qrCode"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) ListSessions(c *gin.Context) {
	instructorID, ok := ownInstructor(c)
	if !ok {
		return
	}
	sessions, err := h.svc.ListSessions(c.Request.Context(), instructorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// ---------- Attendance ----------

type markRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	StudentID string `json:"student_id" binding:"required"`
	QRCode    string `json:"qr_code" binding:"required"`
}

// MarkAttendance records a scan and announces it on the event queue.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.MarkAttendance(c.Request.Context(), req.SessionID, req.StudentID, req.QRCode)
	metrics.AttendanceMarks.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}

	if h.events != nil {
		if msg, err := queue.NewJSON(queue.TypeAttendanceMarked, rec); err != nil {
			log.Printf("encode attendance event %s: %v", rec.ID, err)
		} else if err := h.events.Publish(c.Request.Context(), msg); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"message": "attendance marked", "attendance": rec})
}

func (h *Handler) AttendanceBySession(c *gin.Context) {
	recs, err := h.svc.AttendanceBySession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *Handler) InstructorReport(c *gin.Context) {
	instructorID, ok := ownInstructor(c)
	if !ok {
		return
	}
	report, err := h.svc.InstructorReport(c.Request.Context(), instructorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ownInstructor returns the :instructorId path param if it matches the token subject.
func ownInstructor(c *gin.Context) (string, bool) {
	id := c.Param("instructorId")
	if id != auth.Subject(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "instructor mismatch"})
		return "", false
	}
	return id, true
}

// ---------- Errors ----------

func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrAlreadyRegistered), errors.Is(err, attendance.ErrAlreadyMarked):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, attendance.ErrStudentNotFound), errors.Is(err, attendance.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrSessionExpired):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = attendance.ErrStorageUnavailable.Error()
	case http.StatusInternalServerError:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, attendance.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, attendance.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, attendance.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, attendance.ErrSessionExpired):
		return "expired"
	case errors.Is(err, attendance.ErrStudentNotFound):
		return "student_not_found"
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return "already_marked"
	case errors.Is(err, attendance.ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "error"
	}
}
