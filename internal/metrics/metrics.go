package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medreminder_notifications_sent_total",
		Help: "Push notifications delivered successfully.",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medreminder_notifications_failed_total",
		Help: "Push notification deliveries that failed.",
	})

	AssignmentsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medreminder_assignments_scheduled_total",
		Help: "Notification assignments created by the scheduler.",
	})

	DosesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medreminder_doses_swept_total",
		Help: "Doses transitioned to missed by the sweeper.",
	})

	DosesTaken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medreminder_doses_taken_total",
		Help: "Doses marked as taken, from any entry point.",
	})
)
