package roundcube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/scrape"
	"github.com/nhle/roundmail/internal/transport"
)

// loginSuccessMarker appears in the header of every logged-in page.
const loginSuccessMarker = `span class="header-title username">`

// LoginPage is the parsed login form plus the cookie the page set, which
// has to accompany the login POST.
type LoginPage struct {
	model.LoginForm
	Cookie string
}

// FetchLoginForm loads the login page and returns its hidden fields and
// absolute logo URL.
func (c *Client) FetchLoginForm(ctx context.Context) (*LoginPage, error) {
	target := c.loginPageURL()
	resp, err := c.sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    target,
		Header: http.Header{"Accept": {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching login page: %w", err)
	}
	if err := requireOK(http.MethodGet, target, resp); err != nil {
		return nil, err
	}

	form := scrape.ParseLoginForm(resp.Text(), scrape.LoginFieldNames)
	form.LogoURL = c.resolveLogo(form.LogoURL)

	c.logger.Debug("login form fetched", "fields", len(form.Fields), "logo", form.LogoURL)

	return &LoginPage{
		LoginForm: form,
		Cookie:    transport.MergeCookies("", resp.SetCookies),
	}, nil
}

// Login authenticates username and installs the resulting credential in
// the session. A rejected login is an *AuthError.
func (c *Client) Login(ctx context.Context, username, password string) (model.SessionCredential, error) {
	before := c.session.Current()

	page, err := c.FetchLoginForm(ctx)
	if err != nil {
		return model.SessionCredential{}, err
	}

	token, ok := page.Fields.Lookup("_token")
	if !ok || token == "" {
		return model.SessionCredential{}, ErrMissingToken
	}

	form := url.Values{}
	form.Set("_token", token)
	form.Set("_task", "login")
	form.Set("_action", "login")
	form.Set("_timezone", c.timezone)
	form.Set("_url", page.Fields["_url"])
	form.Set("_user", username)
	form.Set("_pass", password)

	target := c.loginPostURL()
	resp, err := c.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    target,
		Cookie: page.Cookie,
		Form:   form,
	})
	if err != nil {
		return model.SessionCredential{}, fmt.Errorf("posting login form: %w", err)
	}

	cookie := transport.MergeCookies(page.Cookie, resp.SetCookies)

	var landing string
	switch c.detection {
	case model.DetectRedirect:
		landing, cookie, err = c.checkRedirectLogin(ctx, target, resp, cookie)
	default:
		landing, cookie, err = c.checkMarkerLogin(ctx, target, resp, cookie)
	}
	if err != nil {
		return model.SessionCredential{}, err
	}

	next := model.SessionCredential{
		Server:   before.Server,
		Username: username,
		Token:    token,
		Cookie:   cookie,
	}
	fresh, hasFresh := scrape.RequestToken(landing)
	if hasFresh {
		next.Token = fresh
	}

	swapped, err := c.session.CompareAndSwap(ctx, before, next)
	if err != nil {
		return model.SessionCredential{}, err
	}
	if !swapped {
		return model.SessionCredential{}, ErrConcurrentLogin
	}

	c.logger.Info("logged in", "server", next.Server, "username", username, "detection", c.detection)

	if !hasFresh {
		if _, err := c.RefreshToken(ctx); err != nil {
			c.logger.Warn("refreshing request token after login", "error", err)
		}
	}

	return c.session.Current(), nil
}

// checkMarkerLogin accepts the login when the landing page shows the
// username header and a quota block. A redirect is followed once with the
// new cookie.
func (c *Client) checkMarkerLogin(ctx context.Context, target string, resp *transport.Response, cookie string) (string, string, error) {
	server := c.session.Server()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", "", &AuthError{Server: server, Message: "invalid username or password"}
	}

	method := http.MethodPost
	if resp.IsRedirect() {
		next, err := resolve(target, resp.Location())
		if err != nil {
			return "", "", fmt.Errorf("following login redirect: %w", err)
		}
		if isLoginURL(next) {
			return "", "", &AuthError{Server: server, Message: "redirected back to the login page"}
		}

		landing, err := c.sender.Send(ctx, &transport.Request{Method: http.MethodGet, URL: next, Cookie: cookie})
		if err != nil {
			return "", "", fmt.Errorf("fetching login landing page: %w", err)
		}
		cookie = transport.MergeCookies(cookie, landing.SetCookies)
		resp = landing
		target = next
		method = http.MethodGet
	}

	if err := requireOK(method, target, resp); err != nil {
		return "", "", err
	}

	body := resp.Text()
	if !strings.Contains(body, loginSuccessMarker) || scrape.ParseQuota(body) == nil {
		return "", "", &AuthError{Server: server, Message: "landing page lacks the account header or quota"}
	}
	return body, cookie, nil
}

// checkRedirectLogin accepts the login when the POST answers with a
// redirect that sets a cookie. The landing page is fetched only to pick up
// the new request token.
func (c *Client) checkRedirectLogin(ctx context.Context, target string, resp *transport.Response, cookie string) (string, string, error) {
	server := c.session.Server()

	if !resp.IsRedirect() {
		return "", "", &AuthError{Server: server, Message: fmt.Sprintf("expected a redirect, got status %d", resp.StatusCode)}
	}
	if len(resp.SetCookies) == 0 {
		return "", "", &AuthError{Server: server, Message: "redirect carried no session cookie"}
	}

	next, err := resolve(target, resp.Location())
	if err != nil {
		return "", cookie, nil
	}
	if isLoginURL(next) {
		return "", "", &AuthError{Server: server, Message: "redirected back to the login page"}
	}

	landing, err := c.sender.Send(ctx, &transport.Request{Method: http.MethodGet, URL: next, Cookie: cookie})
	if err != nil || !landing.OK() {
		c.logger.Debug("login landing page unavailable", "url", next)
		return "", cookie, nil
	}
	return landing.Text(), transport.MergeCookies(cookie, landing.SetCookies), nil
}
