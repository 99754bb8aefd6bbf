package delivery

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const credentialKey = "credential"

func (s *Server) registerWebSocket(app *fiber.App) {
	// WebSocket middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		// Browsers cannot set headers on upgrade, so the token may come
		// as a query parameter.
		credential := c.Query("token")
		if credential == "" {
			credential = c.Get(fiber.HeaderAuthorization)
		}
		c.Locals(credentialKey, credential)
		return c.Next()
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		credential, _ := c.Locals(credentialKey).(string)
		s.gateway.Serve(context.Background(), c, credential)
	}, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))
}
