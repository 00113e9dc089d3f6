package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestClientReadsLocalFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "area.txt"), []byte("a\tb\t1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := New(nil, Config{BaseDir: dir})

	got, err := c.Open(context.Background(), "area.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != "a\tb\t1\n" {
		t.Fatalf("unexpected content %q", got)
	}

	if _, err := c.Open(context.Background(), "missing.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestClientSizeLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(strings.Repeat("x", 64)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := New(nil, Config{BaseDir: dir, MaxBytes: 16})
	if _, err := c.Open(context.Background(), "big.txt"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestClientFetchSuccess(t *testing.T) {
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", req.Method)
		}
		return respond(http.StatusOK, `{"DATA":[]}`), nil
	})
	c := New(rt, Config{Backoff: -1})

	got, err := c.Open(context.Background(), "https://example.com/cases.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != `{"DATA":[]}` {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	calls := 0
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return respond(http.StatusServiceUnavailable, "busy"), nil
		}
		return respond(http.StatusOK, "ok"), nil
	})
	c := New(rt, Config{MaxRetries: 3, Backoff: -1})

	got, err := c.Open(context.Background(), "https://example.com/area.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != "ok" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return respond(http.StatusNotFound, "no such file"), nil
	})
	c := New(rt, Config{MaxRetries: 3, Backoff: -1})

	_, err := c.Open(context.Background(), "https://example.com/missing.txt")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestClientCircuitBreaker(t *testing.T) {
	calls := 0
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return respond(http.StatusTooManyRequests, "429"), nil
	})
	now := time.Date(2020, 11, 22, 0, 0, 0, 0, time.UTC)
	c := New(rt, Config{MaxRetries: 1, BreakerMax: 2, Backoff: -1, Cooldown: time.Minute})
	c.now = func() time.Time { return now }

	ref := "https://example.com/cases.json"
	if _, err := c.Open(context.Background(), ref); err == nil || errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("first failure should not open the breaker, got %v", err)
	}
	if _, err := c.Open(context.Background(), ref); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected breaker to open, got %v", err)
	}
	before := calls
	if _, err := c.Open(context.Background(), ref); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != before {
		t.Fatalf("open breaker still made %d requests", calls-before)
	}

	// after the cooldown one request goes through again
	now = now.Add(2 * time.Minute)
	if _, err := c.Open(context.Background(), ref); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("failed half-open attempt should reopen the breaker, got %v", err)
	}
	if calls != before+1 {
		t.Fatalf("expected one half-open request, got %d", calls-before)
	}
}

func TestClientTransportErrorHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		cancel()
		return nil, errors.New("connection reset")
	})
	c := New(rt, Config{MaxRetries: 3, Backoff: -1})

	if _, err := c.Open(ctx, "http://example.com/x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
