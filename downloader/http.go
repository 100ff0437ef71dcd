package downloader

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"
)

const (
	// DefaultConnectTimeout bounds dialing.
	DefaultConnectTimeout = 15 * time.Second
	// DefaultReadTimeout bounds the wait for response headers.
	DefaultReadTimeout = 10 * time.Second
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "imgcache/1.0"
)

// HTTPOption configures an HTTP downloader.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the HTTP client. Timeouts and transport options
// are not applied to it.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) {
		h.userAgent = ua
	}
}

// WithTimeouts sets the connect and read timeouts.
func WithTimeouts(connect, read time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.connectTimeout = connect
		h.readTimeout = read
	}
}

// WithRateLimit limits requests per second across all callers.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(h *HTTP) {
		if perSecond <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// HTTP downloads http and https addresses. Responses are transparently
// decompressed when the server applies gzip or zstd content encoding.
type HTTP struct {
	client         *http.Client
	userAgent      string
	connectTimeout time.Duration
	readTimeout    time.Duration
	limiter        *rate.Limiter
}

// NewHTTP creates an HTTP downloader.
func NewHTTP(optFns ...HTTPOption) *HTTP {
	h := &HTTP{
		userAgent:      DefaultUserAgent,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(h)
		}
	}
	if h.client == nil {
		h.client = &http.Client{
			Transport: gzhttp.Transport(&http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: h.connectTimeout}).DialContext,
				ResponseHeaderTimeout: h.readTimeout,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
			}),
		}
	}
	return h
}

// FetchBytes implements Downloader.
func (h *HTTP) FetchBytes(ctx context.Context, address string) ([]byte, error) {
	return fetchBytes(ctx, h, address)
}

// FetchToStream implements Downloader. Only status 200 is accepted.
func (h *HTTP) FetchToStream(ctx context.Context, address string, w io.Writer) error {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return fmt.Errorf("downloader: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &StatusError{URL: address, StatusCode: resp.StatusCode}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
