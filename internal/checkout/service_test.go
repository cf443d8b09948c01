package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/imrishuroy/go-vinyl-storefront/internal/aws/awstest"
	"github.com/imrishuroy/go-vinyl-storefront/internal/cart"
	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
	"github.com/imrishuroy/go-vinyl-storefront/internal/idempotency"
	"github.com/imrishuroy/go-vinyl-storefront/internal/orders"
	"github.com/imrishuroy/go-vinyl-storefront/internal/redisx"
)

type env struct {
	svc    *Service
	fake   *awstest.DynamoDB
	mr     *miniredis.Miniredis
	carts  *cart.Store
	vinyls *catalog.Store
	orders *orders.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fake := awstest.NewDynamoDB(map[string]string{
		"orders":       "order_id",
		"payment_refs": "payment_id",
		"vinyls":       "vinyl_id",
	})
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := &env{
		fake:   fake,
		mr:     mr,
		carts:  cart.NewStore(rdb, 24*time.Hour),
		vinyls: catalog.NewStore(fake, "vinyls"),
		orders: orders.NewStore(fake, "orders", "payment_refs", "user_id-index"),
	}
	e.svc = NewService(e.carts, e.vinyls, e.orders, idempotency.NewRedisMarker(rdb), 30*time.Minute)
	return e
}

func TestCheckout_BuildsOrderFromCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	v := &catalog.Vinyl{ID: "A", Title: "Blue Train", Artist: "John Coltrane", Price: catalog.MustMoney("99.90"), Stock: 3, CoverPath: "/a.jpg"}
	if err := e.vinyls.Create(ctx, v); err != nil {
		t.Fatalf("create vinyl: %v", err)
	}
	if err := e.carts.Replace(ctx, "u1", cart.Items{"A": 2, "ghost": 1}); err != nil {
		t.Fatalf("fill cart: %v", err)
	}

	o, err := e.svc.Checkout(ctx, "u1", "pay-1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if o.Status != orders.StatusPending || o.PaymentConfirmed || o.Quantity != 3 || o.UserID != "u1" {
		t.Fatalf("unexpected order: %+v", o)
	}
	if len(o.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(o.Items))
	}
	a, ghost := o.Items[0], o.Items[1]
	if a.VinylID != "A" || a.Title != "Blue Train" || a.Price == nil || a.Price.String() != "99.9" {
		t.Fatalf("snapshot not copied: %+v", a)
	}
	if ghost.VinylID != "ghost" || ghost.Quantity != 1 || ghost.Title != "" || ghost.Price != nil {
		t.Fatalf("missing vinyl should keep id and quantity only: %+v", ghost)
	}

	stored, err := e.orders.GetByPaymentID(ctx, "pay-1")
	if err != nil || stored == nil || stored.ID != o.ID {
		t.Fatalf("order not stored: %+v %v", stored, err)
	}
	items, _ := e.carts.Items(ctx, "u1")
	if len(items) != 0 {
		t.Fatalf("cart should be cleared, got %v", items)
	}
	if !e.mr.Exists(redisx.CheckoutMarkerKey("pay-1")) {
		t.Fatalf("checkout marker should be kept on success")
	}
	if e.mr.Exists(redisx.ApprovalMarkerKey("pay-1")) {
		t.Fatalf("checkout must not claim the approval marker")
	}
}

func TestCheckout_EmptyCartReleasesMarker(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.Checkout(context.Background(), "u1", "pay-1"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if e.mr.Exists(redisx.CheckoutMarkerKey("pay-1")) {
		t.Fatalf("marker should be released")
	}
}

func TestCheckout_InProgress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.mr.Set(redisx.CheckoutMarkerKey("pay-1"), "1"); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	if err := e.carts.Put(ctx, "u1", "A", 1); err != nil {
		t.Fatalf("fill cart: %v", err)
	}
	if _, err := e.svc.Checkout(ctx, "u1", "pay-1"); !errors.Is(err, ErrPaymentInProgress) {
		t.Fatalf("expected ErrPaymentInProgress, got %v", err)
	}
	if items, _ := e.carts.Items(ctx, "u1"); len(items) != 1 {
		t.Fatalf("cart must be untouched, got %v", items)
	}
}

func TestCheckout_PaymentIDTaken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	existing := &orders.Order{UserID: "u2", PaymentID: "pay-1", Quantity: 1}
	if err := e.orders.Create(ctx, existing); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := e.carts.Put(ctx, "u1", "A", 1); err != nil {
		t.Fatalf("fill cart: %v", err)
	}

	_, err := e.svc.Checkout(ctx, "u1", "pay-1")
	if !errors.Is(err, orders.ErrPaymentIDTaken) {
		t.Fatalf("expected ErrPaymentIDTaken, got %v", err)
	}
	if e.mr.Exists(redisx.CheckoutMarkerKey("pay-1")) {
		t.Fatalf("marker should be released on conflict")
	}
	if items, _ := e.carts.Items(ctx, "u1"); len(items) != 1 {
		t.Fatalf("cart must survive a failed checkout, got %v", items)
	}
}

func TestCheckout_StoreErrorReleasesMarker(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.carts.Put(ctx, "u1", "A", 1); err != nil {
		t.Fatalf("fill cart: %v", err)
	}
	boom := errors.New("dynamo unavailable")
	e.fake.FailOn = func(op, table string) error {
		if op == "TransactWriteItems" {
			return boom
		}
		return nil
	}
	if _, err := e.svc.Checkout(ctx, "u1", "pay-1"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if e.mr.Exists(redisx.CheckoutMarkerKey("pay-1")) {
		t.Fatalf("marker should be released on store error")
	}
}
