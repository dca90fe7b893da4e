package lti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	mediaTypeMembership         = "application/vnd.ims.lti-nrps.v2.membershipcontainer+json"
	mediaTypeLineItem           = "application/vnd.ims.lis.v2.lineitem+json"
	mediaTypeLineItemContainer  = "application/vnd.ims.lis.v2.lineitemcontainer+json"
	mediaTypeScore              = "application/vnd.ims.lis.v1.score+json"
	clientAssertionType         = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	clientAssertionLifetime     = 5 * time.Minute
	accessTokenRefreshMargin    = 30 * time.Second
	maxMembershipPages          = 100
	serviceErrorBodyExcerptSize = 512
)

// Score progress values used by the tool.
const (
	ActivityProgressCompleted  = "Completed"
	GradingProgressFullyGraded = "FullyGraded"
)

// Member is one entry of a context membership roster.
type Member struct {
	UserID     string   `json:"user_id"`
	Name       string   `json:"name,omitempty"`
	GivenName  string   `json:"given_name,omitempty"`
	FamilyName string   `json:"family_name,omitempty"`
	Email      string   `json:"email,omitempty"`
	Status     string   `json:"status,omitempty"`
	Roles      []string `json:"roles"`
}

// IsLearner reports whether any roster role is the learner role.
func (m Member) IsLearner() bool {
	for _, role := range m.Roles {
		if IsLearnerRole(role) {
			return true
		}
	}
	return false
}

type membershipContainer struct {
	ID      string   `json:"id"`
	Members []Member `json:"members"`
}

// LineItem is a gradebook column.
type LineItem struct {
	ID             string  `json:"id,omitempty"`
	ScoreMaximum   float64 `json:"scoreMaximum"`
	Label          string  `json:"label"`
	Tag            string  `json:"tag,omitempty"`
	ResourceID     string  `json:"resourceId,omitempty"`
	ResourceLinkID string  `json:"resourceLinkId,omitempty"`
}

// Score is a result posted to a line item.
type Score struct {
	UserID           string  `json:"userId"`
	ScoreGiven       float64 `json:"scoreGiven"`
	ScoreMaximum     float64 `json:"scoreMaximum"`
	ActivityProgress string  `json:"activityProgress"`
	GradingProgress  string  `json:"gradingProgress"`
	Timestamp        string  `json:"timestamp"`
	Comment          string  `json:"comment,omitempty"`
}

// ServiceClient calls the platform's NRPS and AGS endpoints on behalf of a launch.
type ServiceClient struct {
	platforms  PlatformStore
	store      *Store
	key        ToolKey
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewServiceClient constructs the client. A nil httpClient uses a 30 second timeout client.
func NewServiceClient(platforms PlatformStore, store *Store, key ToolKey, httpClient *http.Client, logger zerolog.Logger) *ServiceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &ServiceClient{
		platforms:  platforms,
		store:      store,
		key:        key,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "lti_services").Logger(),
		now:        time.Now,
	}
}

// GetMembers fetches the whole roster, following Link rel="next" pages.
func (c *ServiceClient) GetMembers(ctx context.Context, launch LaunchToken, membershipsURL string) ([]Member, error) {
	if membershipsURL == "" {
		return nil, fmt.Errorf("%w: context_memberships_url", ErrMissingEndpoint)
	}

	members := make([]Member, 0)
	next := membershipsURL
	for page := 0; next != "" && page < maxMembershipPages; page++ {
		var container membershipContainer
		header, err := c.do(ctx, launch, "get members", http.MethodGet, next, mediaTypeMembership, "", nil, &container, ScopeMemberships)
		if err != nil {
			return nil, err
		}
		members = append(members, container.Members...)
		next = nextLink(header.Get("Link"))
	}
	if next != "" {
		c.logger.Warn().Int("pages", maxMembershipPages).Int("members", len(members)).Msg("membership listing truncated")
		return nil, fmt.Errorf("%w: stopped after %d pages", ErrRosterTruncated, maxMembershipPages)
	}

	return members, nil
}

// GetLineItems lists line items, filtered to a resource link when one is given.
func (c *ServiceClient) GetLineItems(ctx context.Context, launch LaunchToken, resourceLinkID string) ([]LineItem, error) {
	endpoint := launch.PlatformContext.Endpoint.LineItems
	if endpoint == "" {
		return nil, fmt.Errorf("%w: lineitems", ErrMissingEndpoint)
	}

	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse lineitems url: %w", err)
	}
	if resourceLinkID != "" {
		query := target.Query()
		query.Set("resource_link_id", resourceLinkID)
		target.RawQuery = query.Encode()
	}

	var items []LineItem
	if _, err := c.do(ctx, launch, "get line items", http.MethodGet, target.String(), mediaTypeLineItemContainer, "", nil, &items, ScopeLineItem, ScopeLineItemReadOnly); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateLineItem adds a gradebook column.
func (c *ServiceClient) CreateLineItem(ctx context.Context, launch LaunchToken, item LineItem) (LineItem, error) {
	endpoint := launch.PlatformContext.Endpoint.LineItems
	if endpoint == "" {
		return LineItem{}, fmt.Errorf("%w: lineitems", ErrMissingEndpoint)
	}

	var created LineItem
	if _, err := c.do(ctx, launch, "create line item", http.MethodPost, endpoint, mediaTypeLineItem, mediaTypeLineItem, item, &created, ScopeLineItem); err != nil {
		return LineItem{}, err
	}
	return created, nil
}

// SubmitScore posts a score to a line item. A missing timestamp is filled with the current time.
func (c *ServiceClient) SubmitScore(ctx context.Context, launch LaunchToken, lineItemID string, score Score) error {
	target, err := scoresURL(lineItemID)
	if err != nil {
		return err
	}
	if score.Timestamp == "" {
		score.Timestamp = c.now().UTC().Format(time.RFC3339Nano)
	}

	_, err = c.do(ctx, launch, "submit score", http.MethodPost, target, "", mediaTypeScore, score, nil, ScopeScore)
	return err
}

func (c *ServiceClient) do(ctx context.Context, launch LaunchToken, operation, method, target, accept, contentType string, body, out any, scopes ...string) (http.Header, error) {
	token, err := c.accessToken(ctx, launch, scopes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, serviceErrorBodyExcerptSize))
		return nil, &ServiceError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}

	return resp.Header, nil
}

// accessToken returns a cached platform token for the scopes or requests a new one.
func (c *ServiceClient) accessToken(ctx context.Context, launch LaunchToken, scopes []string) (*oauth2.Token, error) {
	platform, err := c.platforms.FindByIssuer(ctx, launch.Issuer, launch.ClientID)
	if err != nil {
		return nil, fmt.Errorf("lookup platform: %w", err)
	}

	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	cacheKey := tokenKeyPrefix + platform.URL + ":" + platform.ClientID + ":" + strings.Join(sorted, " ")

	var cached oauth2.Token
	if found, err := c.store.getJSON(ctx, cacheKey, &cached); err != nil {
		c.logger.Warn().Err(err).Msg("failed to read access token cache")
	} else if found && cached.AccessToken != "" {
		return &cached, nil
	}

	assertion, err := c.clientAssertion(platform.ClientID, platform.AccessTokenEndpoint)
	if err != nil {
		return nil, err
	}

	cfg := clientcredentials.Config{
		ClientID: platform.ClientID,
		TokenURL: platform.AccessTokenEndpoint,
		Scopes:   sorted,
		EndpointParams: url.Values{
			"client_assertion_type": {clientAssertionType},
			"client_assertion":      {assertion},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}

	token, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		return nil, fmt.Errorf("request access token: %w", err)
	}

	ttl := time.Until(token.Expiry) - accessTokenRefreshMargin
	if !token.Expiry.IsZero() && ttl > 0 {
		if err := c.store.setJSON(ctx, cacheKey, token, ttl); err != nil {
			c.logger.Warn().Err(err).Msg("failed to cache access token")
		}
	}

	return token, nil
}

func (c *ServiceClient) clientAssertion(clientID, tokenURL string) (string, error) {
	if c.key.Private == nil {
		return "", fmt.Errorf("tool key not configured")
	}

	issuedAt := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    clientID,
		Subject:   clientID,
		Audience:  jwt.ClaimStrings{tokenURL},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(clientAssertionLifetime)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = c.key.ID

	signed, err := token.SignedString(c.key.Private)
	if err != nil {
		return "", fmt.Errorf("sign client assertion: %w", err)
	}
	return signed, nil
}

func scoresURL(lineItemID string) (string, error) {
	if lineItemID == "" {
		return "", fmt.Errorf("%w: lineitem", ErrMissingEndpoint)
	}

	target, err := url.Parse(lineItemID)
	if err != nil {
		return "", fmt.Errorf("parse lineitem url: %w", err)
	}
	target.Path = strings.TrimSuffix(target.Path, "/") + "/scores"

	return target.String(), nil
}

// nextLink extracts the rel="next" target of an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
			if strings.EqualFold(param, `rel="next"`) || strings.EqualFold(param, "rel=next") {
				return strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
			}
		}
	}
	return ""
}
