// Package seedsource fetches listing fixtures for the seeder, either from a
// remote JSON document or from the sample bundled into the binary.
package seedsource

import (
	"bytes"
	"context"
	crand "crypto/rand"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"wanderlust/internal/adapters/observability"
)

const (
	maxAttempts  = 4
	maxRetryWait = 5 * time.Second
)

var (
	ErrNotFound = errors.New("seedsource: not found")
	ErrDenied   = errors.New("seedsource: access denied")
)

//go:embed sample.json
var sample []byte

type Client struct {
	hc *http.Client
	rl *rate.Limiter
}

func New(rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		hc: &http.Client{Timeout: 20 * time.Second},
		rl: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Embedded returns the bundled sample fixtures.
func Embedded() ([]map[string]any, error) {
	return decodeFixtures(sample)
}

// Fetch downloads fixtures from url. The document may be a bare array or an
// object with a "data" array.
func (c *Client) Fetch(ctx context.Context, url string) ([]map[string]any, error) {
	start := time.Now()
	body, status, err := c.get(ctx, url)
	observability.ObserveExternal("seedsource", "fixtures", status, time.Since(start))
	if err != nil {
		return nil, err
	}
	return decodeFixtures(body)
}

func decodeFixtures(b []byte) ([]map[string]any, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var arr []map[string]any
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, fmt.Errorf("decode fixtures: %w", err)
		}
		return arr, nil
	}
	var wrapped struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if wrapped.Data == nil {
		return nil, errors.New("decode fixtures: no data array")
	}
	return wrapped.Data, nil
}

// get performs a paced GET and retries 429 and transient 5xx responses,
// honoring Retry-After when the server sends one. status is the last HTTP
// status seen, 0 when no response arrived.
func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, 0, err
	}

	var (
		lastErr error
		status  int
	)
	for i := 0; i < maxAttempts; i++ {
		last := i == maxAttempts-1
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, status, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "wanderlust-seed/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, status, ctx.Err()
			}
			lastErr = err
			if !last && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, status, ctx.Err()
			}
			return nil, status, lastErr
		}

		status = resp.StatusCode
		switch status {
		case http.StatusOK:
			b, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, status, err
			}
			return b, status, nil

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, status, ErrNotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return nil, status, ErrDenied

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", status)
			if !last && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, status, ctx.Err()
			}
			return nil, status, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, status, fmt.Errorf("bad status %d: %s", status, strings.TrimSpace(string(b)))
		}
	}
	return nil, status, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses seconds or an HTTP-date, capped at maxRetryWait; 0 when
// absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if h == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		if secs > int(maxRetryWait/time.Second) {
			return maxRetryWait
		}
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(h); err == nil {
		d = time.Until(t)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxRetryWait)
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	return base + time.Duration(0.5*float64(b[0])/255.0*float64(base))
}
