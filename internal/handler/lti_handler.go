package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Roberto640Alvarado/sae-LTI/internal/dto"
	"github.com/Roberto640Alvarado/sae-LTI/internal/lti"
	"github.com/Roberto640Alvarado/sae-LTI/internal/service"
	"github.com/Roberto640Alvarado/sae-LTI/internal/utils"
)

// StateCookie carries the login state between login initiation and launch.
const StateCookie = "lti_state"

// LaunchProvider validates the LTI login and launch exchange.
type LaunchProvider interface {
	Login(ctx context.Context, req lti.LoginRequest) (lti.LoginRedirect, error)
	Launch(ctx context.Context, req lti.LaunchRequest) (lti.Launch, error)
	StateTTL() time.Duration
}

// LTIHandlerConfig configures the LTI endpoints.
type LTIHandlerConfig struct {
	FrontendURL   string
	SecureCookies bool
}

// LTIHandler serves the tool side of the LTI 1.3 launch flow.
type LTIHandler struct {
	provider LaunchProvider
	router   service.LaunchService
	key      lti.ToolKey
	cfg      LTIHandlerConfig
	logger   zerolog.Logger
}

// NewLTIHandler constructs the LTI handler.
func NewLTIHandler(provider LaunchProvider, router service.LaunchService, key lti.ToolKey, cfg LTIHandlerConfig, logger zerolog.Logger) *LTIHandler {
	return &LTIHandler{
		provider: provider,
		router:   router,
		key:      key,
		cfg:      cfg,
		logger:   logger.With().Str("component", "lti_handler").Logger(),
	}
}

// Register wires the login, launch and key set routes.
func (h *LTIHandler) Register(router fiber.Router) {
	router.Get("/login", h.login)
	router.Post("/login", h.login)
	router.Post("/", h.launch)
	router.Get("/keys", h.keys)
}

func (h *LTIHandler) login(c *fiber.Ctx) error {
	req := lti.LoginRequest{
		Issuer:         requestParam(c, "iss"),
		LoginHint:      requestParam(c, "login_hint"),
		TargetLinkURI:  requestParam(c, "target_link_uri"),
		LTIMessageHint: requestParam(c, "lti_message_hint"),
		ClientID:       requestParam(c, "client_id"),
		DeploymentID:   requestParam(c, "lti_deployment_id"),
	}

	redirect, err := h.provider.Login(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, lti.ErrInvalidLogin), errors.Is(err, lti.ErrUnknownPlatform):
			requestLogger(h.logger, c).Warn().Err(err).Str("issuer", req.Issuer).Msg("login initiation rejected")
			return utils.SendError(c, fiber.StatusBadRequest, "invalid login request")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("login initiation failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to start launch")
		}
	}

	c.Cookie(h.stateCookie(redirect.State, time.Now().Add(h.provider.StateTTL())))
	return c.Redirect(redirect.URL, fiber.StatusFound)
}

func (h *LTIHandler) launch(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	launch, err := h.provider.Launch(c.UserContext(), lti.LaunchRequest{
		IDToken:       c.FormValue("id_token"),
		State:         c.FormValue("state"),
		CookieState:   c.Cookies(StateCookie),
		RequireCookie: h.cfg.SecureCookies,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("launch rejected")
		return utils.SendError(c, fiber.StatusUnauthorized, "invalid launch")
	}

	c.Cookie(h.stateCookie("", time.Unix(0, 0)))

	redirect, err := h.router.Route(c.UserContext(), launch)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedRole) {
			logger.Info().Strs("roles", launch.Token.PlatformContext.Roles).Msg("launch role not routed")
			return utils.SendError(c, fiber.StatusForbidden, "role not supported")
		}
		logger.Error().Err(err).Str("launch_id", launch.ID).Msg("launch routing failed")
		if redirect.Destination == "" {
			redirect = dto.LaunchRedirect{Destination: dto.DestinationError}
		}
	}

	return c.Redirect(redirect.URL(h.cfg.FrontendURL), fiber.StatusFound)
}

func (h *LTIHandler) keys(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.JSON(h.key.JWKS())
}

func (h *LTIHandler) stateCookie(value string, expires time.Time) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     StateCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if h.cfg.SecureCookies {
		cookie.Secure = true
		cookie.SameSite = fiber.CookieSameSiteNoneMode
	}
	return cookie
}
