// Package metrics registers the Prometheus instruments for the attendance
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the attendance service records
// against. Counters are labelled by check-in method so dashboards can split
// qr, location, and manual traffic.
type Metrics struct {
	CheckinsAccepted *prometheus.CounterVec
	CheckinsRejected *prometheus.CounterVec
	Checkouts        prometheus.Counter
	RecordsDeleted   prometheus.Counter
	TokensIssued     prometheus.Counter
	DeviceConflicts  prometheus.Counter
}

// New creates and registers all attendance metrics with the default
// registry.
func New() *Metrics {
	return &Metrics{
		CheckinsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_checkins_accepted_total",
			Help: "Check-ins accepted, by method.",
		}, []string{"method"}),
		CheckinsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_checkins_rejected_total",
			Help: "Check-ins rejected, by machine-readable reason.",
		}, []string{"reason"}),
		Checkouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_checkouts_total",
			Help: "Successful check-outs.",
		}),
		RecordsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_records_deleted_total",
			Help: "Attendance records soft-deleted by privileged actors.",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_qr_tokens_issued_total",
			Help: "Check-in tokens minted for event QR codes.",
		}),
		DeviceConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_device_conflicts_total",
			Help: "Check-ins rejected because the device already checked in someone else.",
		}),
	}
}
