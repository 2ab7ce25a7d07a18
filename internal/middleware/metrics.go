package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskforge_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)
	AuthzDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskforge_authz_denials_total",
			Help: "Authorization denials by resource",
		},
		[]string{"resource"},
	)
	TaskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskforge_task_transitions_total",
			Help: "Task status transitions by target status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(LoginAttempts)
	prometheus.MustRegister(AuthzDenials)
	prometheus.MustRegister(TaskTransitions)
}
