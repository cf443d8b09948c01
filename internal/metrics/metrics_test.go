package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type sinkFunc func(ctx context.Context, outcome string) error

func (f sinkFunc) RecordPaymentOutcome(ctx context.Context, outcome string) error {
	return f(ctx, outcome)
}

func TestPrometheus_PaymentOutcome(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())

	p.PaymentOutcome(context.Background(), "confirmed")
	p.PaymentOutcome(context.Background(), "confirmed")
	p.PaymentOutcome(context.Background(), "out_of_stock")

	if got := testutil.ToFloat64(p.paymentOutcomes.WithLabelValues("confirmed")); got != 2 {
		t.Fatalf("expected 2 confirmed, got %v", got)
	}
	if got := testutil.ToFloat64(p.paymentOutcomes.WithLabelValues("out_of_stock")); got != 1 {
		t.Fatalf("expected 1 out_of_stock, got %v", got)
	}
}

func TestPrometheus_ObserveHTTP(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())
	p.ObserveHTTP("/api/vinyls", "GET", "200", 15*time.Millisecond)

	if got := testutil.ToFloat64(p.httpRequests.WithLabelValues("/api/vinyls", "GET", "200")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}

func TestMulti_FansOutAndSwallowsSinkErrors(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())
	var seen []string
	sink := Sink{Sink: sinkFunc(func(_ context.Context, outcome string) error {
		seen = append(seen, outcome)
		return errors.New("cloudwatch down")
	})}

	Multi{p, sink, Nop{}}.PaymentOutcome(context.Background(), "failed")

	if len(seen) != 1 || seen[0] != "failed" {
		t.Fatalf("sink not called: %v", seen)
	}
	if got := testutil.ToFloat64(p.paymentOutcomes.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected prometheus count 1, got %v", got)
	}
}
