package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundbook_booking_submissions_total",
			Help: "Booking submissions by outcome (accepted, conflict, rejected_input)",
		},
		[]string{"result"},
	)

	OTPVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundbook_otp_verifications_total",
			Help: "OTP verification attempts by outcome",
		},
		[]string{"result"},
	)

	OTPIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groundbook_otp_issued_total",
			Help: "Total number of OTP challenges issued, resends included",
		},
	)

	BookingDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundbook_booking_decisions_total",
			Help: "Administrator decisions on pending bookings",
		},
		[]string{"decision"},
	)

	BookingRemovalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groundbook_booking_removals_total",
			Help: "Confirmed bookings removed by administrators",
		},
	)

	BookingsReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groundbook_bookings_reclaimed_total",
			Help: "Expired unverified bookings whose slots were released",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordSubmission(result string) {
	BookingSubmissionsTotal.WithLabelValues(result).Inc()
}

func RecordOTPVerification(result string) {
	OTPVerificationsTotal.WithLabelValues(result).Inc()
}

func RecordOTPIssued() {
	OTPIssuedTotal.Inc()
}

func RecordDecision(decision string) {
	BookingDecisionsTotal.WithLabelValues(decision).Inc()
}

func RecordRemoval() {
	BookingRemovalsTotal.Inc()
}

func RecordReclaimed(n int) {
	if n > 0 {
		BookingsReclaimedTotal.Add(float64(n))
	}
}
