package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Roberto640Alvarado/sae-LTI/internal/lti"
	"github.com/Roberto640Alvarado/sae-LTI/internal/utils"
)

const launchLocalsKey = "lti_launch"

// LaunchResolver turns an ltik into the launch it was issued for.
type LaunchResolver interface {
	Resolve(ctx context.Context, ltik string) (lti.Launch, error)
}

// LaunchSessionProtected requires a bearer ltik from an instructor or administrator launch.
func LaunchSessionProtected(resolver LaunchResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get(fiber.HeaderAuthorization)
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		ltik := strings.TrimSpace(authorization[len(bearer):])
		if ltik == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		launch, err := resolver.Resolve(c.UserContext(), ltik)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}
		if launch.Token.Bucket() != lti.BucketStaff {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		c.Locals(launchLocalsKey, launch)
		return c.Next()
	}
}

// LaunchFromContext returns the launch bound by LaunchSessionProtected.
func LaunchFromContext(c *fiber.Ctx) (lti.Launch, bool) {
	launch, ok := c.Locals(launchLocalsKey).(lti.Launch)
	return launch, ok
}
