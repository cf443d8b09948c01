// Package payment confirms, fails and cancels orders by payment id.
//
// Approve is guarded by a set-if-absent marker keyed on the payment id, then
// checks stock for every line item before decrementing any of them. The check
// and the decrement are separate reads, so two different payments sharing a
// vinyl can both pass the check; a conditional decrement with a floor would
// close that window.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
	"github.com/imrishuroy/go-vinyl-storefront/internal/events"
	"github.com/imrishuroy/go-vinyl-storefront/internal/idempotency"
	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/metrics"
	"github.com/imrishuroy/go-vinyl-storefront/internal/orders"
	"github.com/imrishuroy/go-vinyl-storefront/internal/redisx"
)

const tracerName = "vinyl-storefront/payment"

// DefaultMarkerTTL bounds how long a payment id stays claimed.
const DefaultMarkerTTL = 30 * time.Minute

// Outcomes recorded per call.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeOutOfStock       = "out_of_stock"
	OutcomeNotFound         = "not_found"
	OutcomeFailed           = "failed"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

type OrderRepository interface {
	GetByPaymentID(ctx context.Context, paymentID string) (*orders.Order, error)
	Save(ctx context.Context, o *orders.Order) error
}

type VinylRepository interface {
	Get(ctx context.Context, id string) (*catalog.Vinyl, error)
	Save(ctx context.Context, v *catalog.Vinyl) error
}

// Result is the order after a call. AlreadyProcessed is set when another
// call already holds the payment id; Order is then returned unchanged.
type Result struct {
	Order            *orders.Order
	AlreadyProcessed bool
}

type Service struct {
	orders    OrderRepository
	vinyls    VinylRepository
	marker    idempotency.Marker
	markerTTL time.Duration
	metrics   metrics.Recorder
	events    events.Publisher
	tracer    trace.Tracer
	nowFunc   func() time.Time
}

type Option func(*Service)

func WithMarkerTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.markerTTL = ttl
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

func NewService(o OrderRepository, v VinylRepository, m idempotency.Marker, opts ...Option) *Service {
	s := &Service{
		orders:    o,
		vinyls:    v,
		marker:    m,
		markerTTL: DefaultMarkerTTL,
		metrics:   metrics.Nop{},
		events:    events.Nop{},
		tracer:    otel.Tracer(tracerName),
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve confirms the order holding paymentID and takes its items out of stock.
func (s *Service) Approve(ctx context.Context, paymentID string) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.Approve", trace.WithAttributes(attribute.String("payment.id", paymentID)))
	defer func() { s.finish(ctx, span, approveOutcome(res, err), err) }()

	log := logging.FromContext(ctx).With(zap.String("payment_id", paymentID))

	o, err := s.orders.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return Result{}, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return Result{}, ErrOrderNotFound
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	key := redisx.ApprovalMarkerKey(paymentID)
	acquired, err := s.marker.Acquire(ctx, key, s.markerTTL)
	if err != nil {
		return Result{}, fmt.Errorf("acquire marker: %w", err)
	}
	if !acquired {
		log.Info("payment already processed", zap.String("order_id", o.ID), zap.String("status", o.Status))
		return Result{Order: o, AlreadyProcessed: true}, nil
	}

	// Check every item before touching any stock.
	for _, it := range o.Items {
		v, err := s.vinyls.Get(ctx, it.VinylID)
		if err == nil && v == nil {
			err = fmt.Errorf("%w: %s", ErrProductNotFound, it.VinylID)
		}
		if err == nil && v.Stock < it.Quantity {
			err = &OutOfStockError{VinylID: it.VinylID, Requested: it.Quantity, Available: v.Stock}
		}
		if err != nil {
			s.release(ctx, key)
			return Result{}, err
		}
	}

	for _, it := range o.Items {
		v, err := s.vinyls.Get(ctx, it.VinylID)
		if err != nil {
			return Result{}, fmt.Errorf("reload vinyl %s: %w", it.VinylID, err)
		}
		if v == nil {
			return Result{}, fmt.Errorf("%w: %s", ErrProductNotFound, it.VinylID)
		}
		v.Stock -= it.Quantity
		v.UpdatedAt = s.nowFunc().UTC()
		if err := s.vinyls.Save(ctx, v); err != nil {
			return Result{}, fmt.Errorf("decrement vinyl %s: %w", it.VinylID, err)
		}
	}

	o.Status = orders.StatusConfirmed
	o.PaymentConfirmed = true
	o.UpdatedAt = s.nowFunc().UTC()
	if err := s.orders.Save(ctx, o); err != nil {
		return Result{}, fmt.Errorf("save order: %w", err)
	}

	log.Info("payment confirmed", zap.String("order_id", o.ID), zap.Int("qt", o.Quantity))
	s.publish(ctx, events.TypeOrderConfirmed, o)
	return Result{Order: o}, nil
}

// Fail marks the order FAILED. Stock and the marker are left alone.
func (s *Service) Fail(ctx context.Context, paymentID string) (*orders.Order, error) {
	return s.transition(ctx, "payment.Fail", paymentID, orders.StatusFailed, OutcomeFailed, events.TypePaymentFailed)
}

// Cancel marks the order CANCELED. Stock and the marker are left alone.
func (s *Service) Cancel(ctx context.Context, paymentID string) (*orders.Order, error) {
	return s.transition(ctx, "payment.Cancel", paymentID, orders.StatusCanceled, OutcomeCanceled, events.TypeOrderCanceled)
}

func (s *Service) transition(ctx context.Context, op, paymentID, status, outcome, eventType string) (o *orders.Order, err error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("payment.id", paymentID)))
	defer func() {
		oc := outcome
		switch {
		case errors.Is(err, ErrOrderNotFound):
			oc = OutcomeNotFound
		case err != nil:
			oc = OutcomeError
		}
		s.finish(ctx, span, oc, err)
	}()

	o, err = s.orders.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	o.Status = status
	o.PaymentConfirmed = false
	o.UpdatedAt = s.nowFunc().UTC()
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	logging.FromContext(ctx).Info("order status changed",
		zap.String("payment_id", paymentID), zap.String("order_id", o.ID), zap.String("status", status))
	s.publish(ctx, eventType, o)
	return o, nil
}

func approveOutcome(res Result, err error) string {
	var oos *OutOfStockError
	switch {
	case err == nil && res.AlreadyProcessed:
		return OutcomeAlreadyProcessed
	case err == nil:
		return OutcomeConfirmed
	case errors.As(err, &oos):
		return OutcomeOutOfStock
	case errors.Is(err, ErrOrderNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

func (s *Service) finish(ctx context.Context, span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("payment.outcome", outcome))
	if outcome == OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, outcome)
	}
	span.End()
	s.metrics.PaymentOutcome(ctx, outcome)
}

func (s *Service) release(ctx context.Context, key string) {
	if err := s.marker.Release(ctx, key); err != nil {
		logging.FromContext(ctx).Error("release marker", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, o *orders.Order) {
	if err := s.events.Publish(ctx, events.NewOrderEvent(eventType, o)); err != nil {
		logging.FromContext(ctx).Warn("publish order event",
			zap.String("type", eventType), zap.String("order_id", o.ID), zap.Error(err))
	}
}
