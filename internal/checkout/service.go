// Package checkout turns a user's cart into a PENDING order for a payment id.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/cart"
	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
	"github.com/imrishuroy/go-vinyl-storefront/internal/idempotency"
	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/orders"
	"github.com/imrishuroy/go-vinyl-storefront/internal/redisx"
)

var (
	ErrPaymentInProgress = errors.New("payment already being processed")
	ErrEmptyCart         = errors.New("cart is empty")
)

type Carts interface {
	Items(ctx context.Context, userID string) (cart.Items, error)
	Clear(ctx context.Context, userID string) error
}

type Vinyls interface {
	Get(ctx context.Context, id string) (*catalog.Vinyl, error)
}

type Orders interface {
	Create(ctx context.Context, o *orders.Order) error
}

type Service struct {
	carts  Carts
	vinyls Vinyls
	orders Orders
	marker idempotency.Marker
	ttl    time.Duration
}

func NewService(c Carts, v Vinyls, o Orders, m idempotency.Marker, ttl time.Duration) *Service {
	return &Service{carts: c, vinyls: v, orders: o, marker: m, ttl: ttl}
}

// Checkout claims paymentID, builds an order from the cart and clears the
// cart. The claim is dropped on any error so the client can retry, and kept
// until it expires on success.
func (s *Service) Checkout(ctx context.Context, userID, paymentID string) (o *orders.Order, err error) {
	key := redisx.CheckoutMarkerKey(paymentID)
	ok, err := s.marker.Acquire(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire checkout marker: %w", err)
	}
	if !ok {
		return nil, ErrPaymentInProgress
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := s.marker.Release(ctx, key); rerr != nil {
			logging.FromContext(ctx).Error("release checkout marker", zap.String("key", key), zap.Error(rerr))
		}
	}()

	items, err := s.carts.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	o = &orders.Order{
		UserID:    userID,
		PaymentID: paymentID,
		Status:    orders.StatusPending,
		Items:     make([]orders.LineItem, 0, len(items)),
	}
	for _, vinylID := range sortedIDs(items) {
		li := orders.LineItem{VinylID: vinylID, Quantity: items[vinylID]}
		v, err := s.vinyls.Get(ctx, vinylID)
		if err != nil {
			return nil, fmt.Errorf("load vinyl %s: %w", vinylID, err)
		}
		if v != nil {
			li.Snapshot(v)
		}
		o.Items = append(o.Items, li)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		logging.FromContext(ctx).Warn("clear cart after checkout", zap.String("user_id", userID), zap.Error(err))
	}
	return o, nil
}

func sortedIDs(items cart.Items) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
