// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services, ledgers and workers report to.
type Recorder interface {
	RecordLogin(outcome string)
	RecordRefresh(outcome string)
	RecordOtpIssued(purpose string)
	RecordOtpVerify(purpose, outcome string)
	RecordMailFailure()
	RecordPruned(table string, n int64)
	RecordHTTPRequest(method string, status int, d time.Duration)
}

type Collector struct {
	logins      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	otpIssued   *prometheus.CounterVec
	otpVerify   *prometheus.CounterVec
	mailFail    prometheus.Counter
	pruned      *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
	httpLatency prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_otp_issued_total",
			Help: "One-time codes issued by purpose.",
		}, []string{"purpose"}),
		otpVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_otp_verify_total",
			Help: "One-time code verifications by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		mailFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_mail_dispatch_fail_total",
			Help: "Mail messages that could not be handed off.",
		}),
		pruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_pruned_rows_total",
			Help: "Expired rows deleted by the cleanup job.",
		}, []string{"table"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_http_requests_total",
			Help: "HTTP responses by method and status code.",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auth_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.refreshes,
		c.otpIssued,
		c.otpVerify,
		c.mailFail,
		c.pruned,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) { c.logins.WithLabelValues(outcome).Inc() }
func (c *Collector) RecordRefresh(outcome string) { c.refreshes.WithLabelValues(outcome).Inc() }
func (c *Collector) RecordOtpIssued(purpose string) {
	c.otpIssued.WithLabelValues(purpose).Inc()
}

func (c *Collector) RecordOtpVerify(purpose, outcome string) {
	c.otpVerify.WithLabelValues(purpose, outcome).Inc()
}

func (c *Collector) RecordMailFailure() { c.mailFail.Inc() }

func (c *Collector) RecordPruned(table string, n int64) {
	c.pruned.WithLabelValues(table).Add(float64(n))
}

func (c *Collector) RecordHTTPRequest(method string, status int, d time.Duration) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(d.Seconds())
}

// Handler serves the Prometheus exposition format for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordLogin(string) {}
func (Noop) RecordRefresh(string) {}
func (Noop) RecordOtpIssued(string) {}
func (Noop) RecordOtpVerify(string, string) {}
func (Noop) RecordMailFailure() {}
func (Noop) RecordPruned(string, int64) {}
func (Noop) RecordHTTPRequest(string, int, time.Duration) {}
