package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/v1/bookings", "201", 0.05)
	RecordHTTPRequest("POST", "/v1/bookings", "201", 0.07)
	RecordHTTPRequest("POST", "/v1/bookings", "409", 0.01)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/v1/bookings", "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/v1/bookings", "409")))
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordSubmission(t *testing.T) {
	BookingSubmissionsTotal.Reset()

	RecordSubmission("accepted")
	RecordSubmission("conflict")
	RecordSubmission("accepted")

	assert.Equal(t, float64(2), testutil.ToFloat64(BookingSubmissionsTotal.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingSubmissionsTotal.WithLabelValues("conflict")))
}

func TestRecordOTPVerification(t *testing.T) {
	OTPVerificationsTotal.Reset()

	RecordOTPVerification("ok")
	RecordOTPVerification("invalid")

	assert.Equal(t, float64(1), testutil.ToFloat64(OTPVerificationsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(OTPVerificationsTotal.WithLabelValues("invalid")))
}

func TestRecordDecision(t *testing.T) {
	BookingDecisionsTotal.Reset()

	RecordDecision("CONFIRMED")

	assert.Equal(t, float64(1), testutil.ToFloat64(BookingDecisionsTotal.WithLabelValues("CONFIRMED")))
}

func TestRecordReclaimedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(BookingsReclaimedTotal)

	RecordReclaimed(0)
	RecordReclaimed(3)

	assert.Equal(t, before+3, testutil.ToFloat64(BookingsReclaimedTotal))
}
