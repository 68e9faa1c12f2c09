// Package api implements the thin Fiber REST surface: /auth/login,
// /auth/accept-invitation, /healthz, and the /gateway WebSocket upgrade.
// Everything else a client does goes over the WebSocket gateway
// (spec.md §1, §6).
package api

import (
	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/loomctl/loom/internal/gateway"
)

// GatewayHandler serves the WebSocket upgrade endpoint.
type GatewayHandler struct {
	server *gateway.Server
}

// NewGatewayHandler creates a new gateway handler.
func NewGatewayHandler(server *gateway.Server) *GatewayHandler {
	return &GatewayHandler{server: server}
}

// Upgrade handles GET /gateway. It upgrades the HTTP connection to a
// WebSocket and hands it to the Server.
func (h *GatewayHandler) Upgrade(c fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.server.ServeWebSocket(conn.Conn)
	})(c)
}
