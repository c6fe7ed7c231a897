package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registrations counts student registrations and instructor logins by outcome.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "registrations_total",
		Help:      "Student registrations and instructor logins by kind and result.",
	}, []string{"kind", "result"})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "sessions_created_total",
		Help:      "Lecture sessions opened.",
	})

	// AttendanceMarks counts mark attempts by result (ok, expired, already_marked, ...).
	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "attendance_marks_total",
		Help:      "Attendance mark attempts by result.",
	}, []string{"result"})
)
