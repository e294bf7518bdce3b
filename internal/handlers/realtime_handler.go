package handlers

import (
	"context"

	"github.com/digitalcloudassets/kutable-sub001/internal/middleware"
	chatws "github.com/digitalcloudassets/kutable-sub001/internal/websocket"
	"github.com/digitalcloudassets/kutable-sub001/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RealtimeHandler upgrades authenticated clients to a booking message stream.
type RealtimeHandler struct {
	auth      chatws.Authorizer
	broker    chatws.Subscriber
	jwtSecret string
	baseCtx   context.Context
	log       *zap.Logger
}

func NewRealtimeHandler(
	baseCtx context.Context,
	auth chatws.Authorizer,
	broker chatws.Subscriber,
	jwtSecret string,
	log *zap.Logger,
) *RealtimeHandler {
	return &RealtimeHandler{
		auth:      auth,
		broker:    broker,
		jwtSecret: jwtSecret,
		baseCtx:   baseCtx,
		log:       log,
	}
}

func (h *RealtimeHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	tokenString := middleware.BearerToken(c)
	if tokenString == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
	}
	claims, err := utils.ValidateToken(tokenString, h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	c.Locals("user_id", claims.UserID)
	return c.Next()
}

func (h *RealtimeHandler) HandleWebSocket(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(conn, userID, h.auth, h.broker, h.log)
	client.Serve(h.baseCtx)
}
