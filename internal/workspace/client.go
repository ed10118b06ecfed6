package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/httpclient"
	"github.com/Checker-Finance/qa-suite/internal/metrics"
	"github.com/Checker-Finance/qa-suite/internal/rate"
	"github.com/Checker-Finance/qa-suite/internal/session"
	"github.com/Checker-Finance/qa-suite/pkg/utils"
)

const clientTag = "workspace"

// Client is an authenticated GraphQL client. It logs in lazily on the first data
// operation and reuses the token for the lifetime of the instance.
type Client struct {
	creds     Credentials
	endpoints Endpoints

	logger     *zap.Logger
	httpClient *http.Client
	rateMgr    *rate.Manager
	exec       *httpclient.Executor
	tokens     *session.TokenCache
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRateManager(m *rate.Manager) Option {
	return func(c *Client) { c.rateMgr = m }
}

// New validates the endpoints and returns a client. No network I/O happens here.
func New(creds Credentials, endpoints Endpoints, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoints.AuthBaseURL) == "" {
		return nil, &ConfigurationError{Field: "AUTH_BASE_URL"}
	}
	if strings.TrimSpace(endpoints.APIBaseURL) == "" {
		return nil, &ConfigurationError{Field: "API_BASE_URL"}
	}

	c := &Client{
		creds:     creds,
		endpoints: endpoints,
		logger:    zap.NewNop(),
		tokens:    session.NewTokenCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	// No internal retry: every failure surfaces to the caller on first sight.
	c.exec = httpclient.New(c.logger, c.rateMgr, c.httpClient, 0, clientTag)
	return c, nil
}

// Token returns the cached session token, if any.
func (c *Client) Token() (string, bool) {
	return c.tokens.Get()
}

// Login authenticates explicitly and overwrites any cached token.
func (c *Client) Login(ctx context.Context) (*httpclient.Response, error) {
	resp, _, err := c.login(ctx)
	return resp, err
}

func (c *Client) login(ctx context.Context) (*httpclient.Response, string, error) {
	start := time.Now()
	resp, err := c.post(ctx, c.endpoints.AuthBaseURL, "", Request{Query: loginMutation(c.creds)})
	if err != nil {
		metrics.IncLogin(clientTag, err)
		c.logger.Warn("workspace.login_failed", zap.Error(err))
		return nil, "", err
	}

	if !resp.OK() {
		authErr := &AuthenticationError{StatusCode: resp.StatusCode, Reason: resp.Status}
		metrics.IncLogin(clientTag, authErr)
		c.logger.Warn("workspace.login_failed",
			zap.Int("status", resp.StatusCode),
			zap.String("identifier", c.creds.Identifier))
		return resp, "", authErr
	}

	var body struct {
		Data struct {
			PasswordLogin *struct {
				AccessToken string `json:"accessToken"`
			} `json:"passwordLogin"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil ||
		body.Data.PasswordLogin == nil || body.Data.PasswordLogin.AccessToken == "" {
		authErr := &AuthenticationError{
			StatusCode: resp.StatusCode,
			Reason:     "no accessToken returned by login mutation",
		}
		metrics.IncLogin(clientTag, authErr)
		c.logger.Warn("workspace.login_missing_token", zap.Int("status", resp.StatusCode))
		return resp, "", authErr
	}

	token := body.Data.PasswordLogin.AccessToken
	c.tokens.Set(token)
	metrics.IncLogin(clientTag, nil)
	c.logger.Info("workspace.login_ok",
		zap.String("identifier", c.creds.Identifier),
		zap.String("token", utils.MaskSecret(token)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, token, nil
}

// ensureAuthenticated returns the cached token, logging in first when there is none.
func (c *Client) ensureAuthenticated(ctx context.Context) (string, error) {
	return c.tokens.Ensure(ctx, func(ctx context.Context) (string, error) {
		_, token, err := c.login(ctx)
		return token, err
	})
}

// Execute runs op against the API endpoint and returns the raw response.
// The response body is not inspected.
func (c *Client) Execute(ctx context.Context, op Operation) (*httpclient.Response, error) {
	token, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, c.endpoints.APIBaseURL, token, op.request())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}
	c.logger.Debug("workspace.operation",
		zap.String("operation", op.Name),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

func (c *Client) GetCurrentWorkspace(ctx context.Context) (*httpclient.Response, error) {
	return c.Execute(ctx, opCurrentWorkspace)
}

func (c *Client) HasAccessToWorkspace(ctx context.Context) (*httpclient.Response, error) {
	return c.Execute(ctx, opHasAccessToWorkspace)
}

func (c *Client) GetRecentlyModifiedFiles(ctx context.Context) (*httpclient.Response, error) {
	return c.Execute(ctx, opRecentlyModifiedFiles)
}

func (c *Client) SetupInitialWorkspace(ctx context.Context) (*httpclient.Response, error) {
	return c.Execute(ctx, opSetupInitialWorkspace)
}

func (c *Client) GetWorkspaces(ctx context.Context) (*httpclient.Response, error) {
	return c.Execute(ctx, opWorkspaces)
}

func (c *Client) GetWorkspaceDraftProject(ctx context.Context, workspaceID string) (*httpclient.Response, error) {
	return c.Execute(ctx, opWorkspaceDraftProject(workspaceID))
}

func (c *Client) GetViewer(ctx context.Context) (*httpclient.Response, error) {
	return c.Execute(ctx, opViewer)
}

func (c *Client) post(ctx context.Context, url, token string, body Request) (*httpclient.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.exec.Do(ctx, req)
}
