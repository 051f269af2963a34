package server

import (
	"errors"
	"log/slog"

	"fraatlas/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ListNotifications handles GET /api/notifications
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} service.NotificationPage
// @Router /notifications [get]
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	result, err := s.notifications.List(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(result)
}

// MarkNotificationRead handles POST /api/notifications/:id/read
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notifications.MarkRead(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

// WebsocketHandler streams the caller's notification events. It is mounted
// behind AuthRequired, which accepts a ticket from POST /api/ws/ticket.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			s.logger.Warn("websocket register failed", slog.Uint64("user_id", uint64(uid)), slog.Any("error", err))
			reason := "unavailable"
			switch {
			case errors.Is(err, notifications.ErrUserFull):
				reason = "too many connections"
			case errors.Is(err, notifications.ErrServerFull):
				reason = "server busy"
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+reason+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
