package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Roberto640Alvarado/sae-LTI/internal/lti"
	"github.com/Roberto640Alvarado/sae-LTI/internal/middleware"
)

func TestCorrelationIDGeneratedAndPropagated(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.CorrelationIDFromContext(c.UserContext()))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	generated := resp.Header.Get(middleware.HeaderCorrelationID)
	require.NotEmpty(t, generated)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, generated, string(body))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderCorrelationID, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "abc-123", resp.Header.Get(middleware.HeaderCorrelationID))
}

func TestRegisterRecoversPanics(t *testing.T) {
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: "https://front.example.com"})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(middleware.HeaderCorrelationID))
}

func TestRateLimitRejectsBurst(t *testing.T) {
	app := fiber.New()
	app.Post("/sync", middleware.RateLimit("grades", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sync", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sync", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimitSharesBucketAcrossTokensFromOneClient(t *testing.T) {
	app := fiber.New()
	app.Post("/sync", middleware.RateLimit("grades", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	first := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(`{"token":"ltik-a"}`))
	first.Header.Set(fiber.HeaderAuthorization, "Bearer ltik-a")
	resp, err := app.Test(first)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	second := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(`{"token":"ltik-b"}`))
	second.Header.Set(fiber.HeaderAuthorization, "Bearer ltik-b")
	resp, err = app.Test(second)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

type resolverFunc func(ctx context.Context, ltik string) (lti.Launch, error)

func (f resolverFunc) Resolve(ctx context.Context, ltik string) (lti.Launch, error) {
	return f(ctx, ltik)
}

func TestLaunchSessionProtected(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, ltik string) (lti.Launch, error) {
		switch ltik {
		case "staff":
			return lti.Launch{ID: "s", Token: lti.LaunchToken{PlatformContext: lti.PlatformContext{Roles: []string{"http://purl.imsglobal.org/vocab/lis/v2/membership#Instructor"}}}}, nil
		case "learner":
			return lti.Launch{ID: "l", Token: lti.LaunchToken{PlatformContext: lti.PlatformContext{Roles: []string{"http://purl.imsglobal.org/vocab/lis/v2/membership#Learner"}}}}, nil
		default:
			return lti.Launch{}, lti.ErrInvalidLtik
		}
	})

	app := fiber.New()
	app.Get("/runs", middleware.LaunchSessionProtected(resolver), func(c *fiber.Ctx) error {
		launch, ok := middleware.LaunchFromContext(c)
		require.True(t, ok)
		return c.SendString(launch.ID)
	})

	cases := map[string]int{
		"":               fiber.StatusUnauthorized,
		"Basic abc":      fiber.StatusUnauthorized,
		"Bearer ":        fiber.StatusUnauthorized,
		"Bearer nope":    fiber.StatusUnauthorized,
		"Bearer learner": fiber.StatusForbidden,
		"bearer staff":   fiber.StatusOK,
	}
	for header, status := range cases {
		req := httptest.NewRequest(http.MethodGet, "/runs", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode, header)
	}
}
