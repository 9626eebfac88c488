package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultBase = "https://euw1.api.riotgames.com"

// Client talks to the Riot API over a shared connection pool. Requests are
// self-throttled with a minimum spacing so bursts never hit the remote rate
// limiter, and retried once on transport errors or 429s.
type Client struct {
	apiKey  string
	http    *http.Client
	baseURL string

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		http:        &http.Client{Timeout: 10 * time.Second},
		baseURL:     defaultBase,
		minInterval: 50 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// throttle spaces requests at least minInterval apart. Safe for concurrent
// use; sessions for different guilds share one client.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	next := c.lastRequest.Add(c.minInterval)
	wait := next.Sub(now)
	if wait > 0 {
		c.lastRequest = next
	} else {
		c.lastRequest = now
	}
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doJSON builds the URL, injects auth headers, and decodes the response.
// 404 maps to ErrNotFound, other non-2xx statuses to *APIError. Transport
// errors and 429 (honoring Retry-After when present) get a single retry.
func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.throttle(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Riot-Token", c.apiKey)
		req.Header.Set("Accept", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("riot http: %w", err))
		}
		defer res.Body.Close()

		if res.StatusCode == http.StatusTooManyRequests {
			if ra := res.Header.Get("Retry-After"); ra != "" {
				if sec, _ := strconv.Atoi(ra); sec > 0 {
					select {
					case <-time.After(time.Duration(sec) * time.Second):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			return retry.RetryableError(&APIError{Status: res.StatusCode})
		}

		if res.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
		}

		return json.NewDecoder(res.Body).Decode(out)
	})
}
