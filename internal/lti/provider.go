package lti

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// ErrInvalidLogin indicates the login initiation request is missing required parameters.
var ErrInvalidLogin = errors.New("invalid login initiation request")

const idTokenLeeway = 30 * time.Second

// PlatformStore looks up platform registrations.
type PlatformStore interface {
	FindByIssuer(ctx context.Context, issuer, clientID string) (models.Platform, error)
}

// ProviderConfig configures launch handling.
type ProviderConfig struct {
	// Key signs ltik session tokens.
	Key        string
	StateTTL   time.Duration
	SessionTTL time.Duration
}

// LoginRequest is the third-party initiated login sent by the platform.
type LoginRequest struct {
	Issuer         string
	LoginHint      string
	TargetLinkURI  string
	LTIMessageHint string
	ClientID       string
	DeploymentID   string
}

// LoginRedirect tells the browser where to authenticate.
type LoginRedirect struct {
	URL   string
	State string
}

// LaunchRequest is the form post the platform sends back after authentication.
type LaunchRequest struct {
	IDToken     string
	State       string
	CookieState string
	// RequireCookie enforces that the browser carries the state set at login.
	RequireCookie bool
}

// Provider validates LTI 1.3 launches and manages launch sessions.
type Provider struct {
	platforms  PlatformStore
	keys       KeySource
	store      *Store
	ltikKey    []byte
	stateTTL   time.Duration
	sessionTTL time.Duration
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

// NewProvider constructs the launch provider.
func NewProvider(cfg ProviderConfig, platforms PlatformStore, keys KeySource, store *Store, logger zerolog.Logger) *Provider {
	stateTTL := cfg.StateTTL
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}

	return &Provider{
		platforms:  platforms,
		keys:       keys,
		store:      store,
		ltikKey:    []byte(cfg.Key),
		stateTTL:   stateTTL,
		sessionTTL: sessionTTL,
		logger:     logger.With().Str("component", "lti_provider").Logger(),
		tracer:     otel.Tracer("github.com/Roberto640Alvarado/sae-LTI/internal/lti"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// StateTTL is how long a login state stays valid.
func (p *Provider) StateTTL() time.Duration {
	return p.stateTTL
}

// Login answers the platform's OIDC login initiation with an authentication redirect.
func (p *Provider) Login(ctx context.Context, req LoginRequest) (LoginRedirect, error) {
	ctx, span := p.tracer.Start(ctx, "lti.login", trace.WithAttributes(attribute.String("lti.issuer", req.Issuer)))
	defer span.End()

	if strings.TrimSpace(req.Issuer) == "" || strings.TrimSpace(req.LoginHint) == "" || strings.TrimSpace(req.TargetLinkURI) == "" {
		span.SetStatus(codes.Error, "invalid_login")
		return LoginRedirect{}, ErrInvalidLogin
	}

	platform, err := p.platform(ctx, req.Issuer, req.ClientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "platform_lookup_failed")
		return LoginRedirect{}, err
	}

	authURL, err := url.Parse(platform.AuthenticationEndpoint)
	if err != nil {
		return LoginRedirect{}, fmt.Errorf("parse authentication endpoint: %w", err)
	}

	state := p.newID()
	nonce := p.newID()
	if err := p.store.saveState(ctx, state, loginState{Nonce: nonce, Issuer: platform.URL, ClientID: platform.ClientID}, p.stateTTL); err != nil {
		span.RecordError(err)
		return LoginRedirect{}, fmt.Errorf("store login state: %w", err)
	}

	query := authURL.Query()
	query.Set("scope", "openid")
	query.Set("response_type", "id_token")
	query.Set("response_mode", "form_post")
	query.Set("prompt", "none")
	query.Set("client_id", platform.ClientID)
	query.Set("redirect_uri", req.TargetLinkURI)
	query.Set("login_hint", req.LoginHint)
	query.Set("state", state)
	query.Set("nonce", nonce)
	if req.LTIMessageHint != "" {
		query.Set("lti_message_hint", req.LTIMessageHint)
	}
	authURL.RawQuery = query.Encode()

	p.logger.Debug().Str("issuer", platform.URL).Str("client_id", platform.ClientID).Msg("login initiated")

	return LoginRedirect{URL: authURL.String(), State: state}, nil
}

// Launch validates a resource link launch and opens a launch session.
func (p *Provider) Launch(ctx context.Context, req LaunchRequest) (Launch, error) {
	ctx, span := p.tracer.Start(ctx, "lti.launch")
	defer span.End()

	launch, err := p.launch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch_rejected")
		return Launch{}, err
	}

	span.SetAttributes(
		attribute.String("lti.issuer", launch.Token.Issuer),
		attribute.String("lti.resource_id", launch.Token.PlatformContext.Resource.ID),
	)
	return launch, nil
}

func (p *Provider) launch(ctx context.Context, req LaunchRequest) (Launch, error) {
	if req.IDToken == "" {
		return Launch{}, invalidIDToken("missing id_token")
	}
	if req.State == "" {
		return Launch{}, ErrUnknownState
	}

	state, err := p.store.takeState(ctx, req.State)
	if err != nil {
		return Launch{}, err
	}
	if req.RequireCookie && req.CookieState != req.State {
		return Launch{}, ErrStateMismatch
	}

	var unverified idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(req.IDToken, &unverified); err != nil {
		return Launch{}, invalidIDToken(err.Error())
	}
	if unverified.Issuer != state.Issuer {
		return Launch{}, invalidIDToken("issuer does not match login")
	}

	platform, err := p.platform(ctx, state.Issuer, state.ClientID)
	if err != nil {
		return Launch{}, err
	}

	keyfunc, err := p.keys.Keyfunc(ctx, platform)
	if err != nil {
		return Launch{}, err
	}

	var claims idTokenClaims
	token, err := jwt.ParseWithClaims(req.IDToken, &claims, keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(platform.URL),
		jwt.WithAudience(platform.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(idTokenLeeway),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return Launch{}, invalidIDToken(fmt.Sprint(err))
	}

	if len(claims.Audience) > 1 && claims.AuthorizedParty != platform.ClientID {
		return Launch{}, invalidIDToken("azp does not match client id")
	}
	if claims.Nonce == "" || claims.Nonce != state.Nonce {
		return Launch{}, invalidIDToken("nonce does not match login")
	}
	if claims.MessageType != MessageTypeResourceLink {
		return Launch{}, invalidIDToken(fmt.Sprintf("unsupported message type %q", claims.MessageType))
	}
	if claims.Version != Version13 {
		return Launch{}, invalidIDToken(fmt.Sprintf("unsupported lti version %q", claims.Version))
	}
	if claims.ResourceLink.ID == "" {
		return Launch{}, invalidIDToken("missing resource link")
	}
	if err := p.store.claimNonce(ctx, claims.Nonce, p.sessionTTL); err != nil {
		return Launch{}, err
	}

	launchToken := claims.launchToken(platform.ClientID)
	id := p.newID()
	if err := p.store.saveSession(ctx, id, launchToken, p.sessionTTL); err != nil {
		return Launch{}, fmt.Errorf("store launch session: %w", err)
	}

	ltik, err := p.signLtik(id, launchToken)
	if err != nil {
		return Launch{}, err
	}

	p.logger.Info().
		Str("issuer", launchToken.Issuer).
		Str("resource_id", launchToken.PlatformContext.Resource.ID).
		Str("user_id", launchToken.UserID).
		Msg("launch validated")

	return Launch{ID: id, Ltik: ltik, Token: launchToken}, nil
}

// Resolve returns the launch a session token refers to.
func (p *Provider) Resolve(ctx context.Context, ltik string) (Launch, error) {
	var claims ltikClaims
	token, err := jwt.ParseWithClaims(ltik, &claims, func(*jwt.Token) (interface{}, error) {
		return p.ltikKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return Launch{}, ErrInvalidLtik
	}

	launchToken, err := p.store.loadSession(ctx, claims.ID)
	if err != nil {
		return Launch{}, err
	}

	return Launch{ID: claims.ID, Ltik: ltik, Token: launchToken}, nil
}

func (p *Provider) signLtik(id string, token LaunchToken) (string, error) {
	issuedAt := p.now()
	claims := ltikClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    token.Issuer,
			Subject:   token.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(p.sessionTTL)),
		},
		ContextID: token.PlatformContext.Context.ID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.ltikKey)
	if err != nil {
		return "", fmt.Errorf("sign ltik: %w", err)
	}
	return signed, nil
}

func (p *Provider) platform(ctx context.Context, issuer, clientID string) (models.Platform, error) {
	platform, err := p.platforms.FindByIssuer(ctx, strings.TrimRight(issuer, "/"), clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Platform{}, ErrUnknownPlatform
		}
		return models.Platform{}, fmt.Errorf("lookup platform: %w", err)
	}
	return platform, nil
}
