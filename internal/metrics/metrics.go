// Package metrics exposes voucher and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

const namespace = "voucher"

// Recorder implements port.MetricsRecorder and holds the HTTP collectors
type Recorder struct {
	VouchersIssued       *prometheus.CounterVec
	VoucherTransitions   *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	UsageLogFailures     *prometheus.CounterVec
	SweepsTotal          prometheus.Counter
	SweepExpired         prometheus.Counter
	SweepFailed          prometheus.Counter
	SweepDuration        prometheus.Histogram
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewRecorder creates the collectors and registers them on reg.
// With a nil reg a private registry is used, which keeps tests isolated.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		VouchersIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issued_total",
				Help:      "Total number of vouchers issued",
			},
			[]string{"booking_type"},
		),
		VoucherTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of voucher status transitions by target status",
			},
			[]string{"status"},
		),
		Verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Total number of token verifications by outcome",
			},
			[]string{"outcome"},
		),
		UsageLogFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_log_failures_total",
				Help:      "Total number of usage log entries that could not be written",
			},
			[]string{"action"},
		),
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of expiration sweeps",
		}),
		SweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_expired_total",
			Help:      "Total number of vouchers expired by sweeps",
		}),
		SweepFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failed_total",
			Help:      "Total number of vouchers a sweep failed to expire",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiration sweeps in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests in flight",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		r.VouchersIssued,
		r.VoucherTransitions,
		r.Verifications,
		r.UsageLogFailures,
		r.SweepsTotal,
		r.SweepExpired,
		r.SweepFailed,
		r.SweepDuration,
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
		r.HTTPRequestsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// VoucherIssued implements port.MetricsRecorder
func (r *Recorder) VoucherIssued(bookingType entity.BookingType) {
	r.VouchersIssued.WithLabelValues(string(bookingType)).Inc()
}

// VoucherTransitioned implements port.MetricsRecorder
func (r *Recorder) VoucherTransitioned(to entity.VoucherStatus) {
	r.VoucherTransitions.WithLabelValues(string(to)).Inc()
}

// Verification implements port.MetricsRecorder
func (r *Recorder) Verification(outcome string) {
	r.Verifications.WithLabelValues(outcome).Inc()
}

// UsageLogFailed implements port.MetricsRecorder
func (r *Recorder) UsageLogFailed(action entity.UsageAction) {
	r.UsageLogFailures.WithLabelValues(string(action)).Inc()
}

// SweepCompleted implements port.MetricsRecorder
func (r *Recorder) SweepCompleted(expired, failed int, duration time.Duration) {
	r.SweepsTotal.Inc()
	r.SweepExpired.Add(float64(expired))
	r.SweepFailed.Add(float64(failed))
	r.SweepDuration.Observe(duration.Seconds())
}

// ObserveHTTP records one finished request
func (r *Recorder) ObserveHTTP(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Verify interface compliance
var _ port.MetricsRecorder = (*Recorder)(nil)
