package roundcube

import (
	"context"
	"fmt"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/scrape"
)

// ComposeSession opens a compose screen and returns its environment. The
// server redirects to a URL carrying the compose id, which is followed.
func (c *Client) ComposeSession(ctx context.Context) (*model.ComposeSessionConfig, error) {
	resp, err := c.getPage(ctx, c.composeURL(), false)
	if err != nil {
		return nil, err
	}

	page := resp.Text()
	if isLoginPage(page) {
		return nil, c.expire(ctx)
	}

	cfg, err := scrape.ParseComposeSession(page)
	if err != nil {
		return nil, fmt.Errorf("reading compose session: %w", err)
	}
	return cfg, nil
}

// RefreshToken reads the current request token from a compose session and
// stores it in the session.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	cfg, err := c.ComposeSession(ctx)
	if err != nil {
		return "", err
	}

	_, err = c.session.Update(ctx, func(cur model.SessionCredential) model.SessionCredential {
		cur.Token = cfg.RequestToken
		return cur
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("request token refreshed")
	return cfg.RequestToken, nil
}
