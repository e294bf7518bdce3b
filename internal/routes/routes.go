package routes

import (
	"github.com/digitalcloudassets/kutable-sub001/internal/config"
	"github.com/digitalcloudassets/kutable-sub001/internal/handlers"
	"github.com/digitalcloudassets/kutable-sub001/internal/metrics"
	"github.com/digitalcloudassets/kutable-sub001/internal/middleware"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type Handlers struct {
	Messaging   *handlers.MessagingHandler
	Realtime    *handlers.RealtimeHandler
	SendLimiter *middleware.UserRateLimiter
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if cfg.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}

	api := app.Group("/api")

	// Registered before the protected group so the upgrade can carry its
	// token in the query string.
	api.Use("/v1/ws", h.Realtime.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(h.Realtime.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	authProtected.Get("/conversations", h.Messaging.ListConversations)

	messages := authProtected.Group("/messages")
	messages.Get("/unread-count", h.Messaging.UnreadCount)
	messages.Post("/:id/read", h.Messaging.MarkRead)

	bookings := authProtected.Group("/bookings")
	bookings.Get("/:id/messages", h.Messaging.GetMessages)
	send := []fiber.Handler{h.Messaging.SendMessage}
	if h.SendLimiter != nil {
		send = append([]fiber.Handler{h.SendLimiter.Handler()}, send...)
	}
	bookings.Post("/:id/messages", send...)
	bookings.Post("/:id/messages/read", h.Messaging.MarkConversationRead)
}
