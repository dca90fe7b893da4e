package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Roberto640Alvarado/sae-LTI/internal/middleware"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// requestParam reads a parameter from the query string, falling back to the form body.
// Platforms may send login initiation as either GET or POST.
func requestParam(c *fiber.Ctx, key string) string {
	if value := strings.TrimSpace(c.Query(key)); value != "" {
		return value
	}
	return strings.TrimSpace(c.FormValue(key))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.RequestLogger(base, c)
	return &logger
}
