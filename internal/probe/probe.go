// Package probe checks outbound connectivity for the health endpoint.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

var errMissingTarget = errors.New("probe: target url required")

// Result describes one probe attempt.
type Result struct {
	Reachable  bool
	StatusCode int
	Latency    time.Duration
}

// Config configures a Client.
type Config struct {
	TargetURL  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client issues HEAD requests against a fixed target and logs each exchange.
type Client struct {
	targetURL string
	client    *http.Client
	logger    *zap.Logger
	now       func() time.Time
}

// NewClient constructs a probe client. A nil HTTPClient gets one with the
// configured timeout.
func NewClient(cfg Config) (*Client, error) {
	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return nil, errMissingTarget
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		targetURL: target,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Check sends a HEAD request to the target. Any response, whatever its
// status, counts as reachable; transport failures are returned as errors.
func (c *Client) Check(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.targetURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build probe request: %w", err)
	}

	c.logger.Debug("outgoing request", zap.String("method", req.Method), zap.String("url", c.targetURL))
	started := c.now()
	resp, err := c.client.Do(req)
	latency := c.now().Sub(started)
	if err != nil {
		c.logger.Error("outgoing request failed",
			zap.String("url", c.targetURL),
			zap.Duration("latency", latency),
			zap.Error(err))
		return Result{Latency: latency}, fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("incoming response",
		zap.Int("status", resp.StatusCode),
		zap.String("url", c.targetURL),
		zap.Duration("latency", latency))
	return Result{Reachable: true, StatusCode: resp.StatusCode, Latency: latency}, nil
}
