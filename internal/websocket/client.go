package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/digitalcloudassets/kutable-sub001/internal/realtime"
	"github.com/digitalcloudassets/kutable-sub001/internal/services"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sendBuffer     = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	authorizeLimit = 5 * time.Second
	maxFrameSize   = 8 << 10
)

type Authorizer interface {
	AuthorizeBooking(ctx context.Context, bookingID uuid.UUID, userID uuid.UUID) (*models.BookingParticipants, error)
}

type Subscriber interface {
	Subscribe(bookingID uuid.UUID, handler realtime.Handler) (*realtime.Subscription, error)
}

// Frame is the envelope for every message on the socket in either direction.
type Frame struct {
	Type      string          `json:"type"`
	BookingID *uuid.UUID      `json:"booking_id,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

const (
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FrameMessage      = "message"
	FrameError        = "error"
)

// Conn is the part of a websocket connection the client uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one socket session. It owns its booking subscriptions and tears
// them all down when the socket closes.
type Client struct {
	conn   Conn
	userID uuid.UUID
	auth   Authorizer
	broker Subscriber
	log    *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[uuid.UUID]*realtime.Subscription
}

func NewClient(conn Conn, userID uuid.UUID, auth Authorizer, broker Subscriber, log *zap.Logger) *Client {
	return &Client{
		conn:   conn,
		userID: userID,
		auth:   auth,
		broker: broker,
		log:    log.With(zap.String("user_id", userID.String())),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		subs:   make(map[uuid.UUID]*realtime.Subscription),
	}
}

// Serve runs the session until the socket closes.
func (c *Client) Serve(ctx context.Context) {
	go c.WritePump()
	c.ReadPump(ctx)
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.unsubscribeAll()
		c.close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming Frame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.writeFrame(Frame{Type: FrameError, Error: "invalid frame"})
			continue
		}
		if incoming.BookingID == nil || *incoming.BookingID == uuid.Nil {
			c.writeFrame(Frame{Type: FrameError, Error: "booking_id is required"})
			continue
		}

		switch incoming.Type {
		case FrameSubscribe:
			c.subscribe(ctx, *incoming.BookingID)
		case FrameUnsubscribe:
			c.unsubscribe(*incoming.BookingID)
			c.writeFrame(Frame{Type: FrameUnsubscribed, BookingID: incoming.BookingID})
		default:
			c.writeFrame(Frame{Type: FrameError, Error: "unsupported frame type"})
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) subscribe(ctx context.Context, bookingID uuid.UUID) {
	authCtx, cancel := context.WithTimeout(ctx, authorizeLimit)
	booking, err := c.auth.AuthorizeBooking(authCtx, bookingID, c.userID)
	cancel()
	if err != nil {
		c.writeFrame(Frame{Type: FrameError, BookingID: &bookingID, Error: subscribeError(err)})
		return
	}

	c.mu.Lock()
	_, exists := c.subs[bookingID]
	c.mu.Unlock()
	if exists {
		c.writeFrame(Frame{Type: FrameSubscribed, BookingID: &bookingID})
		return
	}

	sub, err := c.broker.Subscribe(bookingID, func(message models.Message) {
		booking.Annotate(&message)
		c.writeFrame(Frame{Type: FrameMessage, BookingID: &message.BookingID, Message: &message})
	})
	if err != nil {
		c.writeFrame(Frame{Type: FrameError, BookingID: &bookingID, Error: "realtime unavailable"})
		return
	}

	c.mu.Lock()
	c.subs[bookingID] = sub
	c.mu.Unlock()

	go c.watch(sub)
	c.writeFrame(Frame{Type: FrameSubscribed, BookingID: &bookingID})
}

// watch reports a subscription the broker ended on its own.
func (c *Client) watch(sub *realtime.Subscription) {
	select {
	case <-c.done:
		return
	case <-sub.Done():
	}

	err := sub.Err()
	if err == nil {
		return
	}

	bookingID := sub.BookingID()
	c.mu.Lock()
	if c.subs[bookingID] == sub {
		delete(c.subs, bookingID)
	}
	c.mu.Unlock()

	c.log.Info("realtime subscription ended",
		zap.String("booking_id", bookingID.String()),
		zap.Error(err),
	)
	c.writeFrame(Frame{Type: FrameUnsubscribed, BookingID: &bookingID, Error: err.Error()})
}

func (c *Client) unsubscribe(bookingID uuid.UUID) {
	c.mu.Lock()
	sub, ok := c.subs[bookingID]
	delete(c.subs, bookingID)
	c.mu.Unlock()

	if ok {
		sub.Unsubscribe()
	}
}

func (c *Client) unsubscribeAll() {
	c.mu.Lock()
	subs := make([]*realtime.Subscription, 0, len(c.subs))
	for id, sub := range c.subs {
		subs = append(subs, sub)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// writeFrame never blocks. A client that cannot keep up is disconnected.
func (c *Client) writeFrame(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("encode websocket frame", zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- payload:
	default:
		c.log.Warn("websocket send buffer full; closing connection")
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func subscribeError(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "booking not found"
	case errors.Is(err, services.ErrAccessDenied), errors.Is(err, services.ErrUnauthenticated):
		return "forbidden"
	default:
		return "subscribe failed"
	}
}
