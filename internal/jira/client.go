package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/httpclient"
	"github.com/Checker-Finance/qa-suite/internal/rate"
)

const (
	clientTag        = "jira"
	defaultUserAgent = "qa-suite/1.0"
)

var (
	ErrMissingBaseURL = errors.New("jira: base url is not defined")
	ErrMissingToken   = errors.New("jira: basic auth token is not defined")
)

// Client talks to the Jira Cloud REST API v3 with basic auth. Every method
// returns the raw response; status interpretation is left to the caller.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	retryMax  int

	logger     *zap.Logger
	httpClient *http.Client
	rateMgr    *rate.Manager
	exec       *httpclient.Executor
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }
func WithRateManager(m *rate.Manager) Option { return func(c *Client) { c.rateMgr = m } }
func WithRetryMax(n int) Option { return func(c *Client) { c.retryMax = n } }
func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

// New returns a client for baseURL authenticating with a pre-encoded basic token.
func New(baseURL, basicToken string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if basicToken == "" {
		return nil, ErrMissingToken
	}

	c := &Client{
		baseURL:   baseURL,
		token:     basicToken,
		userAgent: defaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c.exec = httpclient.New(c.logger, c.rateMgr, c.httpClient, c.retryMax, clientTag)
	return c, nil
}

func (c *Client) CreateIssue(ctx context.Context, in IssueInput) (*httpclient.Response, error) {
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue", in.payload())
}

func (c *Client) GetIssue(ctx context.Context, key string) (*httpclient.Response, error) {
	return c.do(ctx, http.MethodGet, issuePath(key), nil)
}

// UpdateIssue sends fields as {"fields": fields}. Jira replies 204 on success.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) (*httpclient.Response, error) {
	return c.do(ctx, http.MethodPut, issuePath(key), map[string]any{"fields": fields})
}

func (c *Client) DeleteIssue(ctx context.Context, key string) (*httpclient.Response, error) {
	return c.do(ctx, http.MethodDelete, issuePath(key), nil)
}

func (c *Client) BulkFetchIssues(ctx context.Context, in BulkFetchInput) (*httpclient.Response, error) {
	if in.IssueIDsOrKeys == nil {
		in.IssueIDsOrKeys = []string{}
	}
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue/bulkfetch", in)
}

func (c *Client) GetMyself(ctx context.Context) (*httpclient.Response, error) {
	return c.do(ctx, http.MethodGet, "/rest/api/3/myself", nil)
}

func issuePath(key string) string {
	return "/rest/api/3/issue/" + url.PathEscape(key)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*httpclient.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("jira: marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("jira: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.token)
	req.Header.Set("X-Atlassian-Token", "no-check")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("jira.request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}
