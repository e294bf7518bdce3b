package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type emailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}
}

func newBreaker(name string, cfg BreakerConfig, log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("notification channel breaker state",
				zap.String("channel", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// BreakerSMS stops calling the SMS provider while it keeps failing.
type BreakerSMS struct {
	next smsSender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSMS(next smsSender, cfg BreakerConfig, log *zap.Logger) *BreakerSMS {
	return &BreakerSMS{next: next, cb: newBreaker("sms", cfg, log)}
}

func (b *BreakerSMS) SendSMS(ctx context.Context, to, message string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.SendSMS(ctx, to, message)
	})
	return err
}

// BreakerEmail stops calling the email provider while it keeps failing.
type BreakerEmail struct {
	next emailSender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerEmail(next emailSender, cfg BreakerConfig, log *zap.Logger) *BreakerEmail {
	return &BreakerEmail{next: next, cb: newBreaker("email", cfg, log)}
}

func (b *BreakerEmail) SendEmail(ctx context.Context, to, subject, html string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.SendEmail(ctx, to, subject, html)
	})
	return err
}
