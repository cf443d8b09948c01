// Package redisx builds the shared go-redis client and owns key layouts.
package redisx

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options resolves connection options. A non-empty url wins over addr.
// rediss:// and Upstash hosts get TLS; forceTLS, when set, overrides both.
func Options(url, addr string, forceTLS *bool) (*redis.Options, error) {
	var opts *redis.Options
	if url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
		if opts.TLSConfig == nil && strings.Contains(opts.Addr, "upstash") {
			opts.TLSConfig = tlsConfig(opts.Addr)
		}
	} else {
		opts = &redis.Options{Addr: addr}
	}

	if forceTLS != nil {
		if *forceTLS && opts.TLSConfig == nil {
			opts.TLSConfig = tlsConfig(opts.Addr)
		}
		if !*forceTLS {
			opts.TLSConfig = nil
		}
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	return opts, nil
}

// New returns a client built from Options.
func New(url, addr string, forceTLS *bool) (*redis.Client, error) {
	opts, err := Options(url, addr, forceTLS)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Ping checks connectivity with a short deadline.
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func tlsConfig(addr string) *tls.Config {
	host := addr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		host = addr[:i]
	}
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
