package roundcube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/scrape"
	"github.com/nhle/roundmail/internal/transport"
)

// ListMailbox fetches the first page of a mailbox listing. The snapshot is
// returned together with the paging env the server sent alongside it.
func (c *Client) ListMailbox(ctx context.Context, mailbox string) (*model.MailboxListing, error) {
	mailbox = model.NormalizeMailbox(mailbox)
	target := c.listURL(mailbox)

	cred := c.session.Current()
	header := http.Header{"X-Requested-With": {"XMLHttpRequest"}}
	if cred.Token != "" {
		header.Set("X-Roundcube-Request", cred.Token)
	}

	resp, err := c.do(ctx, &transport.Request{Method: http.MethodGet, URL: target, Header: header})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", mailbox, err)
	}

	env, err := c.decodeEnvelope(ctx, http.MethodGet, target, resp)
	if err != nil {
		return nil, err
	}

	snap := scrape.ParseMailbox(env.Exec, c.logger.With("mailbox", mailbox))
	if snap.Mailbox == "" {
		snap.Mailbox = mailbox
	}

	listing := &model.MailboxListing{
		Snapshot: snap,
		Env:      decodeListEnv(env.Env),
	}
	if listing.Env.Mailbox == "" {
		listing.Env.Mailbox = mailbox
	}

	c.logger.Debug("mailbox listed",
		"mailbox", mailbox,
		"rows", len(snap.Messages),
		"unread", snap.UnreadCount)

	return listing, nil
}

// FetchMailboxes lists several mailboxes concurrently. The first failure
// cancels the remaining fetches and is returned.
func (c *Client) FetchMailboxes(ctx context.Context, mailboxes ...string) (map[string]*model.MailboxListing, error) {
	var mu sync.Mutex
	out := make(map[string]*model.MailboxListing, len(mailboxes))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range mailboxes {
		name := model.NormalizeMailbox(name)
		g.Go(func() error {
			listing, err := c.ListMailbox(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = listing
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeListEnv reads the paging keys of a list env. PHP may send numbers
// as strings, and an empty env as [].
func decodeListEnv(raw json.RawMessage) model.ListEnv {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.ListEnv{}
	}

	return model.ListEnv{
		Mailbox:      jsonText(fields["mailbox"]),
		MessageCount: jsonInt(fields["messagecount"]),
		PageCount:    jsonInt(fields["pagecount"]),
		CurrentPage:  jsonInt(fields["current_page"]),
		PageSize:     jsonInt(fields["pagesize"]),
	}
}

func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func jsonInt(raw json.RawMessage) int {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	if n, err := strconv.Atoi(jsonText(raw)); err == nil {
		return n
	}
	return 0
}
