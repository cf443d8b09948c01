package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imrishuroy/go-vinyl-storefront/internal/aws/awstest"
	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
)

const (
	ordersTable = "orders"
	refsTable   = "payment_refs"
)

func newStore(t *testing.T) (*Store, *awstest.DynamoDB) {
	t.Helper()
	fake := awstest.NewDynamoDB(map[string]string{
		ordersTable: "order_id",
		refsTable:   "payment_id",
	})
	s := NewStore(fake, ordersTable, refsTable, "user_id-index")
	s.nowFunc = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s, fake
}

func TestCreate_NormalizesAndIndexesPayment(t *testing.T) {
	s, fake := newStore(t)
	ctx := context.Background()
	price := catalog.MustMoney("42.00")

	o := &Order{
		UserID:    "u1",
		PaymentID: "pay-1",
		Items: []LineItem{
			{VinylID: "A", Quantity: 2, Title: "A-side", Price: &price},
			{VinylID: "B", Quantity: 0},
		},
		Quantity: 99,
	}
	if err := s.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.ID == "" || o.Status != StatusPending {
		t.Fatalf("expected id and PENDING, got %+v", o)
	}
	if o.Quantity != 3 || o.Items[1].Quantity != 1 {
		t.Fatalf("expected normalized quantities, got total %d items %+v", o.Quantity, o.Items)
	}
	if len(fake.Items(refsTable)) != 1 {
		t.Fatalf("expected one payment ref")
	}

	got, err := s.GetByPaymentID(ctx, "pay-1")
	if err != nil || got == nil {
		t.Fatalf("get by payment id: %v %v", got, err)
	}
	if got.ID != o.ID || got.Items[0].Price == nil || got.Items[0].Price.String() != "42" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestCreate_DuplicatePaymentID(t *testing.T) {
	s, fake := newStore(t)
	ctx := context.Background()

	first := &Order{UserID: "u1", PaymentID: "pay-dup", Items: []LineItem{{VinylID: "A", Quantity: 1}}}
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := &Order{UserID: "u2", PaymentID: "pay-dup", Items: []LineItem{{VinylID: "B", Quantity: 1}}}
	if err := s.Create(ctx, second); !errors.Is(err, ErrPaymentIDTaken) {
		t.Fatalf("expected ErrPaymentIDTaken, got %v", err)
	}
	if n := len(fake.Items(ordersTable)); n != 1 {
		t.Fatalf("second order must not be written, found %d orders", n)
	}
}

func TestCreate_WithoutPaymentID(t *testing.T) {
	s, fake := newStore(t)
	o := &Order{ID: "fixed", UserID: "u1"}
	if err := s.Create(context.Background(), o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(fake.Items(refsTable)) != 0 {
		t.Fatalf("no ref expected without payment id")
	}
	if err := s.Create(context.Background(), &Order{ID: "fixed"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestGet_Missing(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	if o, err := s.Get(ctx, "nope"); err != nil || o != nil {
		t.Fatalf("expected (nil, nil), got %v %v", o, err)
	}
	if o, err := s.GetByPaymentID(ctx, "nope"); err != nil || o != nil {
		t.Fatalf("expected (nil, nil), got %v %v", o, err)
	}
}

func TestSave_UpdatesAndRejectsMissing(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	o := &Order{UserID: "u1", PaymentID: "pay-2", Items: []LineItem{{VinylID: "A", Quantity: 1}}}
	if err := s.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	o.Status = StatusConfirmed
	o.PaymentConfirmed = true
	if err := s.Save(ctx, o); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := s.GetByPaymentID(ctx, "pay-2")
	if got.Status != StatusConfirmed || !got.PaymentConfirmed {
		t.Fatalf("save not persisted: %+v", got)
	}

	if err := s.Save(ctx, &Order{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByUserAndDelete(t *testing.T) {
	s, fake := newStore(t)
	ctx := context.Background()

	for i, uid := range []string{"u1", "u2", "u1"} {
		o := &Order{ID: string(rune('a' + i)), UserID: uid, PaymentID: "pay-" + string(rune('a'+i))}
		if err := s.Create(ctx, o); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	mine, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "a" || mine[1].ID != "c" {
		t.Fatalf("unexpected orders: %+v", mine)
	}
	all, err := s.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("list: %d %v", len(all), err)
	}

	deleted, err := s.Delete(ctx, "a")
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	if len(fake.Items(refsTable)) != 2 {
		t.Fatalf("payment ref must be deleted with the order")
	}
	if deleted, _ := s.Delete(ctx, "a"); deleted {
		t.Fatalf("second delete must report missing")
	}
	// the payment id is free again
	if err := s.Create(ctx, &Order{UserID: "u3", PaymentID: "pay-a"}); err != nil {
		t.Fatalf("reuse of released payment id: %v", err)
	}
}
