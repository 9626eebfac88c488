package riot

import (
	"net/http"
	"time"
)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithMinInterval overrides the minimum spacing between outbound requests.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.minInterval = d }
}
