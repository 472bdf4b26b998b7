package http

import (
	"crypto/rand"
	"time"

	"repertoire/internal/server/core"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const (
	sessionHeader   = "X-Session-ID"
	requestIDHeader = "X-Request-ID"
)

var alphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func newRequestID() string {
	b := make([]byte, 8)
	rnd := make([]byte, 8)
	_, _ = rand.Read(rnd)
	for i := range b {
		b[i] = alphabet[int(rnd[i])%len(alphabet)]
	}
	return string(b)
}

// requestID echoes a well-formed client request ID or assigns a new one
func requestID(c *fiber.Ctx) error {
	rid := c.Get(requestIDHeader)
	if len(rid) != 8 {
		rid = newRequestID()
	}
	c.Set(requestIDHeader, rid)
	c.Locals("requestID", rid)
	return c.Next()
}

// accessLog writes one line per request. Chain errors are rendered here so
// the logged status is the one the client sees.
func accessLog(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		rid, _ := c.Locals("requestID").(string)

		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("rid", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("dur", time.Since(start)).
			Msg("request completed")
		return nil
	}
}

// sessionScope accepts an absent session header (default cursor) or a UUID
func sessionScope(c *fiber.Ctx) error {
	id := c.Get(sessionHeader)
	if id != "" && !isValidUUID(id) {
		return invalidSessionID(c)
	}
	c.Locals("sessionID", id)
	return c.Next()
}

func sessionID(c *fiber.Ctx) string {
	id, _ := c.Locals("sessionID").(string)
	return id
}

func invalidSessionID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
		Error:   "invalid session ID format",
		Code:    core.ErrInvalidRequest,
		Details: "session ID must be a valid UUID",
	})
}
