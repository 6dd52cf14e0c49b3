package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cozyberries/storefront/internal/domain"
)

// NewStore creates a distributed store based on configuration.
func NewStore(cfg domain.CacheConfig) (domain.Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.LocalMaxSize), nil

	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// Service is the domain-aware cache interface. Every caller goes through it
// so a given kind of data always uses the same key shape and TTL. Store
// failures never surface to callers: a failed read is a miss, a failed
// write is logged and swallowed.
type Service struct {
	store         domain.Store
	lookupTimeout time.Duration
	staleFraction float64

	hits          atomic.Int64
	misses        atomic.Int64
	timeouts      atomic.Int64
	writes        atomic.Int64
	writeFailures atomic.Int64
}

// NewService creates a cache service over a distributed store.
func NewService(store domain.Store, cfg domain.CacheConfig) *Service {
	lookupTimeout := cfg.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = 300 * time.Millisecond
	}
	staleFraction := cfg.StaleFraction
	if staleFraction <= 0 || staleFraction >= 1 {
		staleFraction = 0.2
	}
	return &Service{
		store:         store,
		lookupTimeout: lookupTimeout,
		staleFraction: staleFraction,
	}
}

// Get retrieves a cached value, or nil on miss. Store errors and lookup
// timeouts are both reported as misses.
func (s *Service) Get(ctx context.Context, d domain.CacheDomain, parts ...string) []byte {
	entry := s.GetWithTTL(ctx, d, parts...)
	if entry == nil {
		return nil
	}
	return entry.Data
}

// GetWithTTL retrieves a cached value together with its remaining TTL,
// or nil on miss. Stale is set once the remaining TTL drops under the
// configured fraction of the domain's policy TTL.
func (s *Service) GetWithTTL(ctx context.Context, d domain.CacheDomain, parts ...string) *domain.Entry {
	key := Key(d, parts...)

	val, ttl, err, timedOut := s.boundedLookup(ctx, key)
	if timedOut {
		s.timeouts.Add(1)
		s.misses.Add(1)
		slog.Debug("cache lookup timed out", "key", key, "bound_ms", s.lookupTimeout.Milliseconds())
		return nil
	}
	if err != nil {
		s.misses.Add(1)
		slog.Warn("cache read failed, treating as miss", "key", key, "error", err)
		return nil
	}
	if val == nil {
		s.misses.Add(1)
		return nil
	}

	s.hits.Add(1)
	threshold := time.Duration(float64(domain.TTLFor(d)) * s.staleFraction)
	return &domain.Entry{
		Data:  val,
		TTL:   ttl,
		Stale: ttl < threshold,
	}
}

// Set writes a value under the domain's policy TTL. Returns whether the
// write succeeded; failures are logged, never propagated.
func (s *Service) Set(ctx context.Context, d domain.CacheDomain, value []byte, parts ...string) bool {
	key := Key(d, parts...)
	ttl := domain.TTLFor(d)

	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.writeFailures.Add(1)
		slog.Warn("cache write failed", "key", key, "error", err)
		return false
	}
	s.writes.Add(1)
	return true
}

// Delete removes a key. Deleting an absent key is a success.
func (s *Service) Delete(ctx context.Context, d domain.CacheDomain, parts ...string) bool {
	key := Key(d, parts...)
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("cache delete failed", "key", key, "error", err)
		return false
	}
	return true
}

// DeletePattern removes every key matching a glob pattern.
func (s *Service) DeletePattern(ctx context.Context, pattern string) bool {
	if err := s.store.DeletePattern(ctx, pattern); err != nil {
		slog.Warn("cache pattern delete failed", "pattern", pattern, "error", err)
		return false
	}
	return true
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// lookupReply carries the result of a store read across the timeout race.
type lookupReply struct {
	val []byte
	ttl time.Duration
	err error
}

// boundedLookup races a store read against the lookup bound. If the timer
// wins, the read is abandoned, not cancelled: it may still complete in the
// background and its result is discarded through the buffered channel.
func (s *Service) boundedLookup(ctx context.Context, key string) (val []byte, ttl time.Duration, err error, timedOut bool) {
	replyCh := make(chan lookupReply, 1)

	go func() {
		v, t, e := s.store.GetWithTTL(ctx, key)
		replyCh <- lookupReply{val: v, ttl: t, err: e}
	}()

	select {
	case reply := <-replyCh:
		return reply.val, reply.ttl, reply.err, false
	case <-time.After(s.lookupTimeout):
		return nil, 0, nil, true
	case <-ctx.Done():
		return nil, 0, ctx.Err(), false
	}
}

// Stats are the service's operation counters.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Timeouts      int64 `json:"timeouts"`
	Writes        int64 `json:"writes"`
	WriteFailures int64 `json:"writeFailures"`
}

// Stats returns current counters.
func (s *Service) Stats() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Timeouts:      s.timeouts.Load(),
		Writes:        s.writes.Load(),
		WriteFailures: s.writeFailures.Load(),
	}
}
