package roundcube

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nhle/roundmail/internal/transport"
)

// Logout ends the server session and clears the local credential. The
// credential is cleared even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	cred := c.session.Current()

	var sendErr error
	if cred.Authenticated() {
		_, err := c.sender.Send(ctx, &transport.Request{
			Method: http.MethodGet,
			URL:    c.logoutURL(cred.Token),
			Cookie: cred.Cookie,
		})
		if err != nil {
			sendErr = fmt.Errorf("logging out: %w", err)
		}
	}

	if err := c.session.Clear(ctx); err != nil {
		return err
	}
	return sendErr
}
