// Package metrics records workflow outcomes and HTTP traffic.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
)

// Recorder receives one call per payment workflow transition.
type Recorder interface {
	PaymentOutcome(ctx context.Context, outcome string)
}

// Prometheus holds the service's collectors.
type Prometheus struct {
	paymentOutcomes *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDurations   *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		paymentOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_outcomes_total",
				Help: "Payment workflow transitions by outcome.",
			},
			[]string{"outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		httpDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
	reg.MustRegister(p.paymentOutcomes, p.httpRequests, p.httpDurations)
	return p
}

func (p *Prometheus) PaymentOutcome(_ context.Context, outcome string) {
	p.paymentOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records a finished request.
func (p *Prometheus) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(route, method, status).Inc()
	p.httpDurations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// OutcomeSink is implemented by aws.CloudWatchRecorder.
type OutcomeSink interface {
	RecordPaymentOutcome(ctx context.Context, outcome string) error
}

// Sink adapts an OutcomeSink to Recorder. Errors are logged, never returned.
type Sink struct {
	Sink OutcomeSink
}

func (s Sink) PaymentOutcome(ctx context.Context, outcome string) {
	if err := s.Sink.RecordPaymentOutcome(ctx, outcome); err != nil {
		logging.FromContext(ctx).Warn("record payment outcome", zap.String("outcome", outcome), zap.Error(err))
	}
}

// Multi fans out to every recorder.
type Multi []Recorder

func (m Multi) PaymentOutcome(ctx context.Context, outcome string) {
	for _, r := range m {
		r.PaymentOutcome(ctx, outcome)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) PaymentOutcome(context.Context, string) {}
