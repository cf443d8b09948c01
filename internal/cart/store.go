// Package cart keeps per-user shopping carts in Redis hashes.
package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imrishuroy/go-vinyl-storefront/internal/redisx"
)

// Items maps vinyl id to quantity.
type Items map[string]int

// Store reads and writes carts. Every write refreshes the cart's TTL.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Items returns the cart contents; a missing cart is empty, not an error.
func (s *Store) Items(ctx context.Context, userID string) (Items, error) {
	raw, err := s.rdb.HGetAll(ctx, redisx.CartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall cart: %w", err)
	}
	items := make(Items, len(raw))
	for vinylID, v := range raw {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("cart %s: bad quantity %q for %s: %w", userID, v, vinylID, err)
		}
		items[vinylID] = qty
	}
	return items, nil
}

// Put sets the quantity of one vinyl. Quantities below 1 are stored as 1.
func (s *Store) Put(ctx context.Context, userID, vinylID string, qty int) error {
	return s.write(ctx, userID, false, Items{vinylID: qty})
}

func (s *Store) Remove(ctx context.Context, userID, vinylID string) error {
	key := redisx.CartKey(userID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, key, vinylID)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// Replace discards the current cart and stores items.
func (s *Store) Replace(ctx context.Context, userID string, items Items) error {
	return s.write(ctx, userID, true, items)
}

// Merge writes items over the current cart, keeping entries not named in items.
func (s *Store) Merge(ctx context.Context, userID string, items Items) error {
	return s.write(ctx, userID, false, items)
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, redisx.CartKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, userID string, reset bool, items Items) error {
	key := redisx.CartKey(userID)
	fields := make([]any, 0, len(items)*2)
	for vinylID, qty := range items {
		if qty < 1 {
			qty = 1
		}
		fields = append(fields, vinylID, strconv.Itoa(qty))
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if reset {
			p.Del(ctx, key)
		}
		if len(fields) > 0 {
			p.HSet(ctx, key, fields...)
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}
