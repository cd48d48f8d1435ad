package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"ai-chatstream-be/internal/dto"
	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// TurnRunner starts one chat turn and returns its event stream.
type TurnRunner func(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest) <-chan dto.StreamEvent

// RequestValidator checks an incoming turn request before it runs.
type RequestValidator func(req *dto.StreamChatRequest) error

// Client is a middleman between the websocket connection and the chat turn
// pipeline. Each text frame received is one turn request; only one turn runs
// at a time per connection.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// UserID associated with this connection
	UserID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	runTurn  TurnRunner
	validate RequestValidator
	busy     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, runTurn TurnRunner, validate RequestValidator) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		Hub:      hub,
		Conn:     conn,
		UserID:   userID,
		Send:     make(chan []byte, 256),
		runTurn:  runTurn,
		validate: validate,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// readPump reads turn requests until the peer goes away. Closing the
// connection cancels the turn in flight.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WARN] chat websocket closed for user %s: %v", c.UserID, err)
			}
			break
		}
		c.handleRequest(data)
	}
}

func (c *Client) handleRequest(data []byte) {
	var req dto.StreamChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.enqueue(service.ErrorEvent(apperror.Validation("malformed request body")))
		return
	}
	if c.validate != nil {
		if err := c.validate(&req); err != nil {
			c.enqueue(service.ErrorEvent(err))
			return
		}
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.enqueue(service.ErrorEvent(apperror.Validation("a turn is already in progress on this connection")))
		return
	}

	go func() {
		defer c.busy.Store(false)
		for event := range c.runTurn(c.ctx, c.UserID, &req) {
			c.enqueue(event)
		}
	}()
}

func (c *Client) enqueue(event dto.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	case <-c.ctx.Done():
	}
}

// writePump pumps turn events to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
