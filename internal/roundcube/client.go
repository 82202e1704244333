// Package roundcube drives a Roundcube webmail server through the same
// requests its browser client issues, turning the scraped responses into
// model records.
package roundcube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/scrape"
	"github.com/nhle/roundmail/internal/session"
	"github.com/nhle/roundmail/internal/transport"
)

// maxRedirects bounds the redirects followed by page fetches.
const maxRedirects = 3

// Sender sends one HTTP request. *transport.Client implements it.
type Sender interface {
	Send(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL overrides https://<server>.
	BaseURL string

	// Detection is model.DetectMarker (default) or model.DetectRedirect.
	Detection string

	// Timezone is sent with the login form. Defaults to UTC.
	Timezone string

	Logger *slog.Logger
}

// Client runs the Roundcube flows for the session owned by a
// session.Manager.
type Client struct {
	sender    Sender
	session   *session.Manager
	baseURL   string
	detection string
	timezone  string
	logger    *slog.Logger
	now       func() time.Time
}

// NewClient creates a Client sending through sender on behalf of sess.
func NewClient(sender Sender, sess *session.Manager, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = "https://" + sess.Server()
	}

	detection := opts.Detection
	if detection == "" {
		detection = model.DetectMarker
	}

	tz := opts.Timezone
	if tz == "" {
		tz = "UTC"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		sender:    sender,
		session:   sess,
		baseURL:   strings.TrimRight(base, "/"),
		detection: detection,
		timezone:  tz,
		logger:    logger,
		now:       time.Now,
	}
}

// Session returns the session manager the client reads and updates.
func (c *Client) Session() *session.Manager {
	return c.session
}

// BaseURL returns the server root all paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the JSON wrapper of Roundcube AJAX responses.
type envelope struct {
	Action string          `json:"action"`
	Unlock json.RawMessage `json:"unlock"`
	Env    json.RawMessage `json:"env"`
	Exec   string          `json:"exec"`
}

// do sends req with the session cookie attached and folds any cookies the
// server rotates back into the session.
func (c *Client) do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Cookie == "" {
		req.Cookie = c.session.Current().Cookie
	}

	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.SetCookies) > 0 && c.session.Current().Authenticated() {
		_, err := c.session.Update(ctx, func(cur model.SessionCredential) model.SessionCredential {
			cur.Cookie = transport.MergeCookies(cur.Cookie, resp.SetCookies)
			return cur
		})
		if err != nil {
			c.logger.Warn("storing rotated cookies", "error", err)
		}
	}

	return resp, nil
}

// getPage fetches a page, following up to maxRedirects redirects. Landing
// on the login task means the session is gone.
func (c *Client) getPage(ctx context.Context, target string, raw bool) (*transport.Response, error) {
	for hop := 0; ; hop++ {
		resp, err := c.do(ctx, &transport.Request{Method: http.MethodGet, URL: target, Raw: raw})
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", target, err)
		}

		if !resp.IsRedirect() {
			if err := requireOK(http.MethodGet, target, resp); err != nil {
				return nil, err
			}
			return resp, nil
		}

		next, err := resolve(target, resp.Location())
		if err != nil {
			return nil, fmt.Errorf("following redirect from %s: %w", target, err)
		}
		if isLoginURL(next) {
			return nil, c.expire(ctx)
		}
		if hop+1 >= maxRedirects {
			return nil, fmt.Errorf("too many redirects fetching %s", target)
		}
		c.logger.Debug("following redirect", "from", target, "to", next)
		target = next
	}
}

// decodeEnvelope checks an AJAX response and decodes its envelope, mapping
// the in-band expiry marker to ErrSessionExpired.
func (c *Client) decodeEnvelope(ctx context.Context, method, target string, resp *transport.Response) (*envelope, error) {
	if resp.IsRedirect() && isLoginURL(resp.Location()) {
		return nil, c.expire(ctx)
	}
	if err := requireOK(method, target, resp); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decoding response from %s %s: %w", method, target, err)
	}
	if scrape.SessionExpired(env.Exec) {
		return nil, c.expire(ctx)
	}
	return &env, nil
}

// expire clears the session and returns ErrSessionExpired.
func (c *Client) expire(ctx context.Context) error {
	c.logger.Info("session expired", "server", c.session.Server())
	if err := c.session.Clear(ctx); err != nil {
		return errors.Join(ErrSessionExpired, err)
	}
	return ErrSessionExpired
}

func requireOK(method, target string, resp *transport.Response) error {
	if resp.OK() {
		return nil
	}
	return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode}
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func isLoginURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Query().Get("_task") == "login"
}
