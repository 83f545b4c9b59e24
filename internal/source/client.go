// Package source pulls trip snapshots from the Transdata and Globus HTTP APIs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// maxBodyBytes caps one upstream response; a full day of a large operator stays well below it.
const maxBodyBytes = 64 << 20

// ErrNotConfigured is returned when a source has no API URL.
var ErrNotConfigured = errors.New("source api url not configured")

// Endpoint locates one upstream API and where its rows sit inside the JSON body.
type Endpoint struct {
	URL         string
	RecordsPath string
}

// ClientConfig tunes the HTTP client.
type ClientConfig struct {
	Timeout  time.Duration
	RetryMax int
	Token    string
}

// Client fetches raw trip payloads with retries on transient failures.
type Client struct {
	http   *retryablehttp.Client
	token  string
	logger *zap.Logger
}

// NewClient builds a Client backed by go-retryablehttp.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = leveledLogger{logger.Named("source")}
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = cfg.Timeout
	return &Client{http: retryClient, token: cfg.Token, logger: logger}
}

// Fetch downloads the payload of one reference date (YYYY-MM-DD).
func (c *Client) Fetch(ctx context.Context, endpoint Endpoint, date string) ([]byte, error) {
	if endpoint.URL == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	q := u.Query()
	q.Set("data", date)
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", u.Host, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", u.Host, resp.StatusCode)
	}
	c.logger.Debug("source payload fetched", zap.String("host", u.Host), zap.String("date", date), zap.Int("bytes", len(body)))
	return body, nil
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l *zap.Logger
}

func (z leveledLogger) Error(msg string, kv ...interface{}) { z.l.Sugar().Errorw(msg, kv...) }
func (z leveledLogger) Info(msg string, kv ...interface{})  { z.l.Sugar().Infow(msg, kv...) }
func (z leveledLogger) Debug(msg string, kv ...interface{}) { z.l.Sugar().Debugw(msg, kv...) }
func (z leveledLogger) Warn(msg string, kv ...interface{})  { z.l.Sugar().Warnw(msg, kv...) }
