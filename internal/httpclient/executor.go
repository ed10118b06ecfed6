package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/metrics"
	"github.com/Checker-Finance/qa-suite/internal/rate"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Response is the raw envelope handed back to callers. The body is fully read so the
// caller can inspect it any number of times.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into out.
func (r *Response) JSON(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Executor performs rate-limited HTTP requests and returns raw responses.
// Status codes are never turned into errors; only transport failures are.
type Executor struct {
	logger    *zap.Logger
	rateMgr   *rate.Manager
	http      *http.Client
	retryMax  int
	clientTag string
}

// New creates an Executor. retryMax is the number of extra attempts made after a
// transport error or 5xx; 0 gives exactly one attempt.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	clientTag string,
) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:    logger,
		rateMgr:   rateMgr,
		http:      httpClient,
		retryMax:  retryMax,
		clientTag: clientTag,
	}
}

// Do executes req. Requests with a body must be built with http.NewRequest* from a
// bytes/strings reader so the body can be replayed on retry.
func (e *Executor) Do(ctx context.Context, req *http.Request) (*Response, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, req.URL.Host); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, Backoff(attempt-1)); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		start := time.Now()
		resp, err := e.http.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			metrics.IncAPIRequest(e.clientTag, req.Method, 0)
			e.logger.Warn(e.clientTag+".http_failed",
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		metrics.IncAPIRequest(e.clientTag, req.Method, resp.StatusCode)
		metrics.APIRequestDuration.WithLabelValues(e.clientTag, req.Method).Observe(elapsed.Seconds())

		if readErr != nil {
			lastErr = fmt.Errorf("read response body: %w", readErr)
			continue
		}

		out := &Response{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       body,
		}

		if resp.StatusCode >= 500 && attempt < e.retryMax {
			e.logger.Warn(e.clientTag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Duration("latency", elapsed))
			continue
		}

		e.logger.Debug(e.clientTag+".http_done",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))
		return out, nil
	}

	return nil, fmt.Errorf("%s %s %s: %w", e.clientTag, req.Method, req.URL.Redacted(), lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
