package roundcube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/scrape"
	"github.com/nhle/roundmail/internal/transport"
)

// MinSearchLength is the shortest term sent to autocomplete.
const MinSearchLength = 2

// Search queries the address book autocomplete. Terms shorter than
// MinSearchLength return nil without a request. A nil result with a nil
// error also means the response carried no result list.
func (c *Client) Search(ctx context.Context, term string) (*model.SearchResult, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < MinSearchLength {
		return nil, nil
	}

	token := c.session.Current().Token
	if token == "" {
		return nil, ErrMissingToken
	}

	form := url.Values{}
	form.Set("_search", term)
	form.Set("_source", "")
	form.Set("_reqid", strconv.FormatInt(c.now().Unix(), 10))
	form.Set("_remote", "1")
	form.Set("_unlock", "0")

	target := c.autocompleteURL()
	resp, err := c.do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    target,
		Header: http.Header{
			"X-Roundcube-Request": {token},
			"X-Requested-With":    {"XMLHttpRequest"},
		},
		Form: form,
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", term, err)
	}

	env, err := c.decodeEnvelope(ctx, http.MethodPost, target, resp)
	if err != nil {
		return nil, err
	}

	result := scrape.ParseSearchResult(env.Exec, c.logger)
	if result != nil {
		c.logger.Debug("autocomplete", "term", term, "results", len(result.Results))
	}
	return result, nil
}
