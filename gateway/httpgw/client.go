// Package httpgw implements the auth gateway against the platform REST API.
// It owns the raw session tokens; the session core only ever sees the
// resulting identity projection.
package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	"github.com/evzone-io/go-session-core/expiry"
	"github.com/evzone-io/go-session-core/gateway"
	"github.com/evzone-io/go-session-core/identity"
	"github.com/evzone-io/go-session-core/internal/utils"
)

var _ gateway.Gateway = (*Client)(nil)

// Client calls the platform auth API. Requests run behind a circuit breaker
// so a flapping auth service degrades to fast ErrUnavailable failures
// instead of piling up timeouts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	logger     zerolog.Logger
	notifier   *expiry.Notifier

	mu    sync.Mutex
	token *oauth2.Token
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithNotifier sets the notifier the client raises the credential-expired
// signal on. Defaults to the process-wide notifier.
func WithNotifier(n *expiry.Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// New creates a gateway client against baseURL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		logger:     zerolog.Nop(),
		notifier:   expiry.Default(),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "auth-gateway",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
		}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// tokenResponse is the auth API token payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// identityClaims is the projection the auth API embeds in the access token.
// The signature is not verified here: token verification is the server's
// job, this client only reads the projection it was handed.
type identityClaims struct {
	jwt.RegisteredClaims
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	OwnerCapability *string `json:"owner_capability,omitempty"`
	Email           *string `json:"email,omitempty"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	ProviderID      *string `json:"provider_id,omitempty"`
	OrgID           *string `json:"org_id,omitempty"`
	Region          *string `json:"region,omitempty"`
	ZoneID          *string `json:"zone_id,omitempty"`
	Status          *string `json:"status,omitempty"`
}

// Login exchanges credentials for tokens and decodes the identity projection
// from the access-token claims.
func (c *Client) Login(ctx context.Context, creds gateway.Credentials) (*gateway.LoginResult, error) {
	body, status, err := c.post(ctx, "/api/v1/auth/login", creds, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, gateway.ErrInvalidCredentials
	}
	if status < 200 || status >= 300 {
		return nil, errors.Wrapf(gateway.ErrUnavailable, "[httpgw.Login] status %d", status)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, errors.Wrap(err, "[httpgw.Login] decode token response")
	}

	id, err := identityFromToken(tr.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[httpgw.Login] identity claims")
	}

	token := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	c.logger.Debug().Str("user", id.ID).Msg("httpgw: login succeeded")
	return &gateway.LoginResult{Identity: *id, Token: token}, nil
}

// Logout revokes the server-side session. The stored tokens are dropped
// whatever the server answers.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	accessToken := ""
	if c.token != nil {
		accessToken = c.token.AccessToken
	}
	c.token = nil
	c.mu.Unlock()

	if accessToken == "" {
		return nil
	}
	_, status, err := c.post(ctx, "/api/v1/auth/logout", struct{}{}, accessToken)
	if err != nil {
		return errors.Wrap(err, "[httpgw.Logout]")
	}
	if status < 200 || status >= 300 {
		return errors.Errorf("[httpgw.Logout] status %d", status)
	}
	return nil
}

// Refresh exchanges the refresh token for a new token pair. A definitive
// rejection raises the credential-expired signal: the session core reacts by
// forcing a logout.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := ""
	if c.token != nil {
		refreshToken = c.token.RefreshToken
	}
	c.mu.Unlock()

	if refreshToken == "" {
		c.notifier.Notify()
		return errors.Wrap(gateway.ErrInvalidCredentials, "[httpgw.Refresh] no refresh token")
	}

	payload := map[string]string{"refresh_token": refreshToken}
	body, status, err := c.post(ctx, "/api/v1/auth/refresh", payload, "")
	if err != nil {
		return errors.Wrap(err, "[httpgw.Refresh]")
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.logger.Info().Msg("httpgw: refresh rejected, raising credential-expired")
		c.notifier.Notify()
		return errors.Wrap(gateway.ErrInvalidCredentials, "[httpgw.Refresh] rejected")
	}
	if status < 200 || status >= 300 {
		return errors.Wrapf(gateway.ErrUnavailable, "[httpgw.Refresh] status %d", status)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return errors.Wrap(err, "[httpgw.Refresh] decode token response")
	}
	c.mu.Lock()
	c.token = &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	c.mu.Unlock()
	return nil
}

// post runs one JSON request through the circuit breaker and returns the
// response body and status. Transport failures surface as ErrUnavailable.
func (c *Client) post(ctx context.Context, path string, payload any, bearer string) ([]byte, int, error) {
	type response struct {
		body   []byte
		status int
	}

	result, err := c.cb.Execute(func() (any, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return response{body: body, status: resp.StatusCode}, nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("httpgw: request failed")
		return nil, 0, errors.Wrap(gateway.ErrUnavailable, err.Error())
	}

	r := result.(response)
	c.logger.Debug().Str("path", path).Int("status", r.status).Msg("httpgw: request done")
	return r.body, r.status, nil
}

// identityFromToken decodes the identity projection from the access token
// claims without verifying the signature.
func identityFromToken(accessToken string) (*identity.Identity, error) {
	var claims identityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, errors.Wrap(err, "parse access token")
	}

	id := &identity.Identity{
		ID:              claims.Subject,
		Name:            claims.Name,
		Role:            identity.Role(claims.Role),
		OwnerCapability: identity.OwnerCapability(utils.Value(claims.OwnerCapability)),
		Email:           utils.Value(claims.Email),
		AvatarURL:       utils.Value(claims.AvatarURL),
		ProviderID:      utils.Value(claims.ProviderID),
		OrgID:           utils.Value(claims.OrgID),
		Region:          utils.Value(claims.Region),
		ZoneID:          utils.Value(claims.ZoneID),
		Status:          utils.Value(claims.Status),
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}
