package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID, runTurn TurnRunner, validate RequestValidator) {
	client := NewClient(hub, c, userID, runTurn, validate)
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // the handler must block for the connection's lifetime
}
