package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// UserRateLimiter throttles requests per authenticated user, falling back to
// the client IP when no user is on the request.
type UserRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	log      *zap.Logger
}

type visitor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserRateLimiter(perMinute int, burst int, logger *zap.Logger) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserRateLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: burst,
		log:   logger,
	}
}

func (l *UserRateLimiter) getLimiter(key string) *rate.Limiter {
	v, _ := l.visitors.LoadOrStore(key, &visitor{
		limiter:  rate.NewLimiter(l.rps, l.burst),
		lastSeen: time.Now(),
	})
	vi := v.(*visitor)
	vi.mu.Lock()
	vi.lastSeen = time.Now()
	vi.mu.Unlock()
	return vi.limiter
}

// Cleanup evicts idle visitors every minute until ctx is cancelled.
func (l *UserRateLimiter) Cleanup(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.evictIdle(time.Now().Add(-5 * time.Minute))
		}
	}
}

func (l *UserRateLimiter) evictIdle(cutoff time.Time) {
	l.visitors.Range(func(k, v interface{}) bool {
		vi := v.(*visitor)
		vi.mu.Lock()
		idle := vi.lastSeen.Before(cutoff)
		vi.mu.Unlock()
		if idle {
			l.visitors.Delete(k)
		}
		return true
	})
}

func (l *UserRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, _ := c.Locals("user_id").(string)
		if key == "" {
			key = "ip:" + c.IP()
		}
		if !l.getLimiter(key).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("key", key), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Rate limit exceeded"})
		}
		return c.Next()
	}
}
