package middleware

import (
	"time"

	"classflow/logger"
	"classflow/types"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger records every request/response pair through the async
// logger. The write to the database happens off the request path.
func RequestLogger(asyncLogger *logger.AsyncLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		asyncLogger.Log(types.LogEntry{
			Method:          c.Method(),
			URL:             c.OriginalURL(),
			RequestBody:     string(c.Body()),
			RequestHeaders:  string(c.Request().Header.Header()),
			ResponseBody:    string(c.Response().Body()),
			ResponseHeaders: string(c.Response().Header.Header()),
			StatusCode:      c.Response().StatusCode(),
			CreatedAt:       time.Now(),
		})

		return err
	}
}
