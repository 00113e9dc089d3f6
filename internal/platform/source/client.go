package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen signals the breaker is open after repeated failed fetches.
	ErrCircuitOpen = errors.New("source circuit open after repeated fetch failures")
	// ErrTooLarge is returned when a dataset exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("dataset exceeds size limit")
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines settings for the dataset client.
type Config struct {
	BaseDir    string
	MaxRetries int
	BreakerMax int
	Backoff    time.Duration
	Cooldown   time.Duration
	MaxBytes   int64
}

// Client reads datasets from the local filesystem or over HTTP, with retry
// and circuit breaker support for remote references.
type Client struct {
	baseDir    string
	httpClient HTTPClient

	maxRetries       int
	breakerThreshold int
	backoff          time.Duration
	cooldown         time.Duration
	maxBytes         int64

	mu               sync.Mutex
	consecutiveFails int
	openedAt         time.Time
	now              func() time.Time
}

// New creates a dataset client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	breaker := cfg.BreakerMax
	if breaker <= 0 {
		breaker = 5
	}
	backoff := cfg.Backoff
	if backoff < 0 {
		backoff = 0
	} else if backoff == 0 {
		backoff = 500 * time.Millisecond
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 256 << 20
	}

	return &Client{
		baseDir:          cfg.BaseDir,
		httpClient:       httpClient,
		maxRetries:       maxRetries,
		breakerThreshold: breaker,
		backoff:          backoff,
		cooldown:         cooldown,
		maxBytes:         maxBytes,
		now:              time.Now,
	}
}

// IsRemote reports whether ref is fetched over HTTP.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Open returns the bytes behind ref. Relative paths resolve against BaseDir.
func (c *Client) Open(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errors.New("empty dataset reference")
	}
	if IsRemote(ref) {
		return c.fetch(ctx, ref)
	}
	return c.readFile(ctx, ref)
}

// Path resolves a local reference against BaseDir.
func (c *Client) Path(ref string) string {
	if filepath.IsAbs(ref) || c.baseDir == "" {
		return ref
	}
	return filepath.Join(c.baseDir, ref)
}

func (c *Client) readFile(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.Path(ref))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	defer f.Close()
	return c.readLimited(f, ref)
}

func (c *Client) fetch(ctx context.Context, ref string) ([]byte, error) {
	if c.breakerOpen() {
		return nil, ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 && c.backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "district-stats/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request %s: %w", ref, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			data, err := c.readLimited(resp.Body, ref)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			c.recordSuccess()
			return data, nil
		}

		// For other statuses, keep a little of the body for context.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		lastErr = fmt.Errorf("fetch %s: status %d: %s", ref, resp.StatusCode, strings.TrimSpace(string(body)))

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			continue
		}
		// other 4xx will not get better on retry
		return nil, lastErr
	}

	if c.recordFailure() {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, lastErr)
	}
	return nil, lastErr
}

func (c *Client) readLimited(r io.Reader, ref string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", ref, ErrTooLarge, c.maxBytes)
	}
	return data, nil
}

func (c *Client) breakerOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consecutiveFails < c.breakerThreshold {
		return false
	}
	if c.now().Sub(c.openedAt) >= c.cooldown {
		// half-open: allow one attempt through
		c.consecutiveFails = c.breakerThreshold - 1
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFails = 0
}

// recordFailure counts an exhausted fetch and reports whether the breaker
// just opened.
func (c *Client) recordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFails++
	if c.consecutiveFails >= c.breakerThreshold {
		c.openedAt = c.now()
		return true
	}
	return false
}
