// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReportsCreated counts accepted report submissions per category.
	ReportsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_reports_created_total",
		Help: "Number of reports created, by category.",
	}, []string{"category"})

	// ForwardAttempts counts forward resolutions by outcome:
	// forwarded, no_rule or error.
	ForwardAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_forward_attempts_total",
		Help: "Number of automatic forward attempts, by outcome.",
	}, []string{"outcome"})

	// StatusChanges counts admin status changes by target status.
	StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_status_changes_total",
		Help: "Number of report status changes, by new status.",
	}, []string{"status"})

	// NotificationFailures counts failed outbound notifications.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_notification_failures_total",
		Help: "Number of notification deliveries that failed.",
	})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
