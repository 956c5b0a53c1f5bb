package httpapi

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates an incoming X-Request-ID or assigns a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("requestid", id)
		c.Set(requestIDHeader, id)
		return c.Next()
	}
}

// ClientLimiter keeps one token bucket per client IP.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*clientEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (l *ClientLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	ent, ok := l.clients[key]
	if !ok {
		ent = &clientEntry{lim: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = ent
	}
	ent.lastSeen = now
	l.mu.Unlock()

	return ent.lim.AllowN(now, 1)
}

// Cleanup drops clients idle for longer than the idle TTL.
func (l *ClientLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, ent := range l.clients {
		if ent.lastSeen.Before(cutoff) {
			delete(l.clients, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (l *ClientLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// Middleware rejects clients over their inbound budget with 429.
func (l *ClientLimiter) Middleware() fiber.Handler {
	retry := strconv.Itoa(int(max(1, 1/float64(l.rps))))
	return func(c *fiber.Ctx) error {
		if l.Allow(c.IP()) {
			return c.Next()
		}
		c.Set(fiber.HeaderRetryAfter, retry)
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "too many requests",
			"code":  "INBOUND_RATE_LIMITED",
		})
	}
}
