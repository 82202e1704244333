// Package transport issues the HTTP requests a Roundcube browser client
// would issue and hands back the raw response text.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/nhle/roundmail/internal/model"
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Logger     *slog.Logger

	// HTTPClient replaces the default client. Its redirect policy is
	// overridden so that redirects are never followed.
	HTTPClient *http.Client
}

// Request is one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header

	// Cookie is sent verbatim as the Cookie header when not empty.
	Cookie string

	// Form is sent form-encoded. It takes precedence over Body.
	Form url.Values
	Body []byte

	// Raw disables charset transcoding, for binary downloads.
	Raw bool
}

// Response is the status, headers and decoded body of a call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	SetCookies []string
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// Location returns the redirect target, if any.
func (r *Response) Location() string { return r.Header.Get("Location") }

// IsRedirect reports a 3xx status.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client sends requests with a fixed User-Agent, paced by a token bucket.
// It never follows redirects and never retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
}

// New creates a Client from opts.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	} else {
		copied := *hc
		hc = &copied
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	limit := rate.Limit(opts.RatePerSec)
	if opts.RatePerSec <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = model.DefaultUserAgent
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, burst),
		userAgent:  ua,
		logger:     logger,
	}
}

// Send performs req. Any status code is returned as a Response; only
// network, context and body read failures are errors.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting to send %s %s: %w", req.Method, req.URL, err)
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Cookie != "" {
		httpReq.Header.Set("Cookie", req.Cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if !req.Raw {
		data, err = toUTF8(data, resp.Header.Get("Content-Type"))
		if err != nil {
			return nil, fmt.Errorf("decoding response charset: %w", err)
		}
	}

	c.logger.Debug("http request",
		"method", method,
		"url", req.URL,
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		SetCookies: resp.Header.Values("Set-Cookie"),
	}, nil
}

// toUTF8 transcodes body to UTF-8. A declared charset always wins. Without
// one, JSON and bodies that already are valid UTF-8 are kept as is; only
// the rest go through the HTML meta prescan.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	mediaType, params, _ := mime.ParseMediaType(contentType)
	if params["charset"] == "" && (mediaType == "application/json" || utf8.Valid(body)) {
		return body, nil
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
