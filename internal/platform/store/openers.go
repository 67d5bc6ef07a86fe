package store

import (
	"context"
	"fmt"
	"time"

	chx "defectwatch/internal/platform/store/ch"
	"defectwatch/internal/platform/store/pg"
)

// openPG opens pg and wraps it with our sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
	})
	if err != nil {
		return nil, err
	}

	retries := cfg.PG.ConnectRetries
	if retries <= 0 {
		retries = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	// Connection guardrails: ping with retry/backoff using the pool directly
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < retries; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx)
		cancel()

		if lastErr == nil {
			// publish the adapter only after the pool is healthy
			return newPGAdapter(p, s.Log, cfg.PG.SlowQueryMs), nil
		}
		if ctx.Err() != nil {
			p.Close()
			return nil, ctx.Err()
		}
		time.Sleep(backoff)
		if backoff < backoffCeiling {
			backoff *= 2
			if backoff > backoffCeiling {
				backoff = backoffCeiling
			}
		}
	}
	p.Close()
	return nil, fmt.Errorf("pg: not reachable after %d attempts: %w", retries, lastErr)
}

// openCH opens a clickhouse connection wrapped by the seam adapter
func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.CH.Role, App: cfg.AppName})
	if err != nil {
		return nil, err
	}
	return newCHAdapter(c), nil
}
