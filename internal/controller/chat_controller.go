package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-chatstream-be/internal/dto"
	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/pkg/logger"
	"ai-chatstream-be/internal/pkg/serverutils"
	"ai-chatstream-be/internal/service"
	internalWS "ai-chatstream-be/internal/websocket"
	"ai-chatstream-be/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const maxSocketsPerUser = 5

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	GetAllSessions(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	RenameSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	Providers(ctx *fiber.Ctx) error
}

type chatController struct {
	sessionService    service.ISessionService
	chatStreamService service.IChatStreamService
	identity          serverutils.IdentityResolver
	limiter           ratelimit.Limiter
	hub               *internalWS.Hub
	heartbeat         time.Duration
	logger            logger.ILogger
}

func NewChatController(
	sessionService service.ISessionService,
	chatStreamService service.IChatStreamService,
	identity serverutils.IdentityResolver,
	limiter ratelimit.Limiter,
	hub *internalWS.Hub,
	heartbeat time.Duration,
	logger logger.ILogger,
) IChatController {
	return &chatController{
		sessionService:    sessionService,
		chatStreamService: chatStreamService,
		identity:          identity,
		limiter:           limiter,
		hub:               hub,
		heartbeat:         heartbeat,
		logger:            logger,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware(c.identity))
	h.Get("/sessions", c.GetAllSessions)
	h.Post("/sessions", c.CreateSession)
	h.Get("/sessions/:id", c.GetSession)
	h.Put("/sessions/:id", c.RenameSession)
	h.Delete("/sessions/:id", c.DeleteSession)
	h.Get("/providers", c.Providers)

	limited := serverutils.RateLimitMiddleware(c.limiter, c.logger)
	h.Post("/stream", limited, c.Stream)
	h.Get("/ws", limited, c.upgradeWebsocket, websocket.New(c.serveWebsocket))
}

func (c *chatController) GetAllSessions(ctx *fiber.Ctx) error {
	userId := serverutils.UserId(ctx)

	var page dto.ListSessionsRequest
	if err := ctx.QueryParser(&page); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := serverutils.ValidateRequest(page); err != nil {
		return err
	}

	res, err := c.sessionService.GetAllSessions(ctx.UserContext(), userId, &page)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userId := serverutils.UserId(ctx)

	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.CreateSession(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) GetSession(ctx *fiber.Ctx) error {
	userId := serverutils.UserId(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.GetSession(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatController) RenameSession(ctx *fiber.Ctx) error {
	userId := serverutils.UserId(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.RenameSession(ctx.UserContext(), userId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success rename session", res))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	userId := serverutils.UserId(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	if err := c.sessionService.DeleteSession(ctx.UserContext(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

func (c *chatController) Providers(ctx *fiber.Ctx) error {
	res := c.chatStreamService.Providers(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Success get providers", res))
}

// Stream answers with text/event-stream. Every outcome after the body has
// been parsed, rejections included, is reported as an SSE error event.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	userId := serverutils.UserId(ctx)

	var req dto.StreamChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	validationErr := serverutils.ValidateRequest(req)

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	parent := ctx.UserContext()
	heartbeat := c.heartbeat

	var writer fasthttp.StreamWriter = func(w *bufio.Writer) {
		if validationErr != nil {
			writeSSE(w, service.ErrorEvent(validationErr))
			w.Flush()
			return
		}

		turnCtx, cancel := context.WithCancel(parent)
		defer cancel()

		events := c.chatStreamService.Stream(turnCtx, userId, &req)

		var ticks <-chan time.Time
		if heartbeat > 0 {
			ticker := time.NewTicker(heartbeat)
			defer ticker.Stop()
			ticks = ticker.C
		}

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				writeSSE(w, event)
				if err := w.Flush(); err != nil {
					// Client went away; cancel propagates to the provider.
					c.logger.Info("CHAT_CONTROLLER", "Stream client disconnected", map[string]interface{}{
						"session_id": req.SessionId,
						"error":      err.Error(),
					})
					return
				}
			case <-ticks:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}

	ctx.Context().SetBodyStreamWriter(writer)
	return nil
}

func (c *chatController) upgradeWebsocket(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	if c.hub.Connections(serverutils.UserId(ctx)) >= maxSocketsPerUser {
		return apperror.New(apperror.CodeRateLimited, "too many open chat connections")
	}
	return ctx.Next()
}

func (c *chatController) serveWebsocket(conn *websocket.Conn) {
	userIdStr, _ := conn.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		conn.Close()
		return
	}

	internalWS.ServeWs(c.hub, conn, userId, c.chatStreamService.Stream, func(req *dto.StreamChatRequest) error {
		return serverutils.ValidateRequest(req)
	})
}

func writeSSE(w *bufio.Writer, event dto.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
}

// sessionIdParam treats an unparsable id like a missing session.
func sessionIdParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, apperror.NotFound("chat session")
	}
	return id, nil
}
