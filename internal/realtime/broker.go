package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/digitalcloudassets/kutable-sub001/internal/metrics"
	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/google/uuid"
)

var (
	ErrSlowSubscriber = errors.New("realtime: subscriber fell behind the feed")
	ErrBrokerClosed   = errors.New("realtime: broker stopped")
)

const defaultSubscriberBuffer = 64

// Handler receives every message inserted for the subscribed booking.
type Handler func(message models.Message)

// Sink accepts messages from a change-feed source.
type Sink interface {
	Publish(message models.Message)
}

// Broker fans change-feed messages out to per-booking subscriptions.
type Broker struct {
	subscribers map[uuid.UUID]map[*Subscription]struct{}
	register    chan *Subscription
	unregister  chan *Subscription
	publish     chan models.Message
	done        chan struct{}
	bufferSize  int
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[uuid.UUID]map[*Subscription]struct{}),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		publish:     make(chan models.Message, 256),
		done:        make(chan struct{}),
		bufferSize:  defaultSubscriberBuffer,
	}
}

// Run owns the subscriber table until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range b.subscribers {
				for sub := range set {
					metrics.RealtimeSubscriptions.Dec()
					go sub.stop(ErrBrokerClosed)
				}
			}
			b.subscribers = make(map[uuid.UUID]map[*Subscription]struct{})
			return nil
		case sub := <-b.register:
			set, ok := b.subscribers[sub.bookingID]
			if !ok {
				set = make(map[*Subscription]struct{})
				b.subscribers[sub.bookingID] = set
			}
			set[sub] = struct{}{}
			metrics.RealtimeSubscriptions.Inc()
		case sub := <-b.unregister:
			b.remove(sub)
		case message := <-b.publish:
			b.deliver(message)
		}
	}
}

// Publish hands a message to the broker loop. It is dropped once the broker
// has stopped.
func (b *Broker) Publish(message models.Message) {
	select {
	case b.publish <- message:
	case <-b.done:
	}
}

// Subscribe registers handler for inserts on bookingID. Each call gets its
// own Subscription and its own teardown.
func (b *Broker) Subscribe(bookingID uuid.UUID, handler Handler) (*Subscription, error) {
	sub := &Subscription{
		broker:    b,
		bookingID: bookingID,
		handler:   handler,
		queue:     make(chan models.Message, b.bufferSize),
		stopped:   make(chan struct{}),
	}

	select {
	case b.register <- sub:
	case <-b.done:
		return nil, ErrBrokerClosed
	}

	go sub.run()
	return sub, nil
}

func (b *Broker) remove(sub *Subscription) bool {
	set, ok := b.subscribers[sub.bookingID]
	if !ok {
		return false
	}
	if _, exists := set[sub]; !exists {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subscribers, sub.bookingID)
	}
	metrics.RealtimeSubscriptions.Dec()
	return true
}

func (b *Broker) deliver(message models.Message) {
	set, ok := b.subscribers[message.BookingID]
	if !ok {
		return
	}

	for sub := range set {
		select {
		case sub.queue <- message:
		default:
			b.remove(sub)
			metrics.RealtimeEvictions.Inc()
			go sub.stop(ErrSlowSubscriber)
		}
	}
}

// Subscription is one caller's registration on a booking's message stream.
type Subscription struct {
	broker    *Broker
	bookingID uuid.UUID
	handler   Handler
	queue     chan models.Message
	stopped   chan struct{}

	stopOnce  sync.Once
	unsubOnce sync.Once

	// mu is held while the handler runs so Unsubscribe can wait it out.
	mu     sync.Mutex
	closed bool

	errMu sync.Mutex
	err   error
}

func (s *Subscription) BookingID() uuid.UUID {
	return s.bookingID
}

// Unsubscribe tears the registration down. Once it returns the handler will
// not be called again. It must not be called from inside the handler.
func (s *Subscription) Unsubscribe() {
	s.unsubOnce.Do(func() {
		select {
		case s.broker.unregister <- s:
		case <-s.broker.done:
		}
		s.stop(nil)

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
}

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} {
	return s.stopped
}

// Err reports why the broker ended the subscription, or nil after Unsubscribe.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Subscription) stop(err error) {
	s.stopOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		close(s.stopped)
	})
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.stopped:
			return
		case message := <-s.queue:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.handler(message)
			s.mu.Unlock()
		}
	}
}
