// FILE: repertoire/internal/server/http/handler.go
package http

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"repertoire/internal/server/core"
	"repertoire/internal/server/processor"
	"repertoire/internal/server/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

const defaultRateLimit = 10 // req/sec

// Options tunes the transport
type Options struct {
	RateLimit int // requests per second per client, 0 uses the default
	DevMode   bool
}

// HTTPHandler handles HTTP requests and routes them to the processor
type HTTPHandler struct {
	proc *processor.Processor
	svc  *service.Service
	log  zerolog.Logger
}

func NewHTTPHandler(proc *processor.Processor, svc *service.Service, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{proc: proc, svc: svc, log: log}
}

func NewFiberApp(proc *processor.Processor, svc *service.Service, opts Options, log zerolog.Logger) *fiber.App {
	h := NewHTTPHandler(proc, svc, log.With().Str("component", "http").Logger())

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          35 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(requestID)
	app.Use(accessLog(h.log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept," + sessionHeader + "," + requestIDHeader,
		ExposeHeaders: requestIDHeader,
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")

	maxReq := opts.RateLimit
	if maxReq <= 0 {
		maxReq = defaultRateLimit
	}
	if opts.DevMode {
		maxReq *= 2
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	// Content-Type validation for POST and PUT requests
	api.Use(contentTypeValidator)

	// Middleware validation for sanitization
	api.Use(validationMiddleware)

	api.Get("/repertoires", h.ListRepertoires)
	api.Post("/repertoires", h.CreateRepertoire)
	api.Get("/repertoires/:id", h.GetRepertoire)
	api.Put("/repertoires/:id", h.UpdateRepertoire)
	api.Delete("/repertoires/:id", h.DeleteRepertoire)
	api.Get("/repertoires/:id/due-count", h.CountDue)
	api.Get("/repertoires/:id/stats", h.ReviewStats)
	api.Post("/repertoires/:id/sweep", h.Sweep)
	api.Get("/repertoires/:id/export", h.Export)

	api.Post("/sessions", h.CreateSession)
	api.Delete("/sessions/:id", h.DeleteSession)

	// Cursor routes act on the session named by X-Session-ID, or the default cursor
	sess := api.Group("/session", sessionScope)
	sess.Post("/select", h.SelectRepertoire)
	sess.Get("/cursor", h.GetCursor)
	sess.Put("/fen", h.SetFEN)
	sess.Get("/winrates", h.GetWinrates)
	sess.Get("/edges", h.ListEdges)
	sess.Post("/edges", h.AddEdge)
	sess.Delete("/edges", h.DeleteEdge)
	sess.Post("/play", h.PlayMove)
	sess.Post("/back", h.Back)
	sess.Get("/due", h.GetDue)
	sess.Post("/test", h.TestMove)
	sess.Post("/drill", h.DrillMove)
	sess.Get("/board", h.GetBoard)

	return app
}

// contentTypeValidator ensures POST and PUT requests have application/json
func contentTypeValidator(c *fiber.Ctx) error {
	method := c.Method()
	if method == fiber.MethodPost || method == fiber.MethodPut {
		contentType := c.Get("Content-Type")
		if contentType != "application/json" && contentType != "" {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrNotFound
		case fiber.StatusBadRequest, fiber.StatusMethodNotAllowed:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// statusFor maps a wire error code to its HTTP status
func statusFor(code string) int {
	switch code {
	case core.ErrNotFound, core.ErrRepertoireNotFound, core.ErrSessionNotFound:
		return fiber.StatusNotFound
	case core.ErrConflict:
		return fiber.StatusConflict
	case core.ErrCorpusUnavailable:
		return fiber.StatusServiceUnavailable
	case core.ErrInternalError:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}

// respond writes resp with the success status, or the mapped error status
func respond(c *fiber.Ctx, resp processor.ProcessorResponse, status int) error {
	if !resp.Success {
		return c.Status(statusFor(resp.Error.Code)).JSON(resp.Error)
	}
	if status == fiber.StatusNoContent || resp.Data == nil {
		return c.SendStatus(status)
	}
	return c.Status(status).JSON(resp.Data)
}

// validatedBody returns the request parsed by validationMiddleware
func validatedBody[T any](c *fiber.Ctx) (T, error) {
	var zero T

	// Ensure middleware validation ran
	validated, ok := c.Locals("validated").(bool)
	if !ok || !validated {
		return zero, fiber.NewError(fiber.StatusInternalServerError, "validation bypass detected")
	}

	req, ok := c.Locals("validatedBody").(*T)
	if !ok || req == nil {
		return zero, fiber.NewError(fiber.StatusInternalServerError, "validation data missing")
	}
	return *req, nil
}

// repertoireID parses the :id route parameter
func repertoireID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func invalidRepertoireID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
		Error:   "invalid repertoire ID format",
		Code:    core.ErrInvalidRequest,
		Details: "repertoire ID must be a positive integer",
	})
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Unix(),
		"storage":  h.svc.GetStorageHealth(),
		"sessions": h.svc.Sessions().Len(),
	})
}

func (h *HTTPHandler) ListRepertoires(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewListRepertoiresCommand())
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) CreateRepertoire(c *fiber.Ctx) error {
	req, err := validatedBody[core.CreateRepertoireRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewCreateRepertoireCommand(req))
	return respond(c, resp, fiber.StatusCreated)
}

func (h *HTTPHandler) GetRepertoire(c *fiber.Ctx) error {
	id, ok := repertoireID(c)
	if !ok {
		return invalidRepertoireID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewGetRepertoireCommand(id))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) UpdateRepertoire(c *fiber.Ctx) error {
	id, ok := repertoireID(c)
	if !ok {
		return invalidRepertoireID(c)
	}
	req, err := validatedBody[core.UpdateRepertoireRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewUpdateRepertoireCommand(id, req))
	return respond(c, resp, fiber.StatusOK)
}

// DeleteRepertoire removes the repertoire and resets every cursor that had it selected
func (h *HTTPHandler) DeleteRepertoire(c *fiber.Ctx) error {
	id, ok := repertoireID(c)
	if !ok {
		return invalidRepertoireID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewDeleteRepertoireCommand(id))
	return respond(c, resp, fiber.StatusNoContent)
}

func (h *HTTPHandler) CountDue(c *fiber.Ctx) error {
	id, ok := repertoireID(c)
	if !ok {
		return invalidRepertoireID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewCountDueCommand(id))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) ReviewStats(c *fiber.Ctx) error {
	id, ok := repertoireID(c)
	if !ok {
		return invalidRepertoireID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewReviewStatsCommand(id))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) Sweep(c *fiber.Ctx) error {
	id, ok := repertoireID(c)
	if !ok {
		return invalidRepertoireID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewSweepCommand(id))
	return respond(c, resp, fiber.StatusOK)
}

// Export streams the compressed backup of one repertoire
func (h *HTTPHandler) Export(c *fiber.Ctx) error {
	id, ok := repertoireID(c)
	if !ok {
		return invalidRepertoireID(c)
	}

	var buf bytes.Buffer
	n, err := h.svc.Export(c.UserContext(), id, &buf)
	if err != nil {
		code := core.CodeFor(err)
		msg := err.Error()
		if code == core.ErrInternalError {
			h.log.Error().Err(err).Int64("repertoire", id).Msg("export failed")
			msg = "internal error"
		}
		return c.Status(statusFor(code)).JSON(core.ErrorResponse{Error: msg, Code: code})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="repertoire-%d.json.zst"`, id))
	c.Set("X-Edge-Count", strconv.Itoa(n))
	return c.Send(buf.Bytes())
}

func (h *HTTPHandler) CreateSession(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewCreateSessionCommand())
	return respond(c, resp, fiber.StatusCreated)
}

func (h *HTTPHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewDeleteSessionCommand(sessionID))
	return respond(c, resp, fiber.StatusNoContent)
}

func (h *HTTPHandler) SelectRepertoire(c *fiber.Ctx) error {
	req, err := validatedBody[core.SelectRepertoireRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewSelectRepertoireCommand(sessionID(c), req))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) GetCursor(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewGetCursorCommand(sessionID(c)))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) SetFEN(c *fiber.Ctx) error {
	req, err := validatedBody[core.SetFENRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewSetFENCommand(sessionID(c), req))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) GetWinrates(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewGetWinratesCommand(sessionID(c)))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) ListEdges(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewListEdgesCommand(sessionID(c)))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) AddEdge(c *fiber.Ctx) error {
	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewAddEdgeCommand(sessionID(c), req))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) DeleteEdge(c *fiber.Ctx) error {
	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewDeleteEdgeCommand(sessionID(c), req))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) PlayMove(c *fiber.Ctx) error {
	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewPlayMoveCommand(sessionID(c), req))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) Back(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewBackCommand(sessionID(c)))
	return respond(c, resp, fiber.StatusOK)
}

func (h *HTTPHandler) GetDue(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewGetDueCommand(sessionID(c)))
	return respond(c, resp, fiber.StatusOK)
}

// TestMove answers the practice prompt at the cursor and updates schedules
func (h *HTTPHandler) TestMove(c *fiber.Ctx) error {
	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewTestMoveCommand(sessionID(c), req))
	return respond(c, resp, fiber.StatusOK)
}

// DrillMove checks an answer without touching schedules
func (h *HTTPHandler) DrillMove(c *fiber.Ctx) error {
	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewDrillMoveCommand(sessionID(c), req))
	return respond(c, resp, fiber.StatusOK)
}

// GetBoard returns ASCII representation of the board
func (h *HTTPHandler) GetBoard(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewGetBoardCommand(sessionID(c)))
	return respond(c, resp, fiber.StatusOK)
}
