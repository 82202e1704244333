package roundcube

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/scrape"
)

// Preview fetches the framed preview of one message and extracts its body
// and attachment list. A page with no body container yields a nil Content.
func (c *Client) Preview(ctx context.Context, mailbox string, uid int64) (model.MessagePreview, error) {
	mailbox = model.NormalizeMailbox(mailbox)

	resp, err := c.getPage(ctx, c.previewURL(mailbox, uid), false)
	if err != nil {
		return model.MessagePreview{}, err
	}

	page := resp.Text()
	if isLoginPage(page) {
		return model.MessagePreview{}, c.expire(ctx)
	}

	preview := scrape.ParsePreview(page)
	c.logger.Debug("message previewed",
		"mailbox", mailbox,
		"uid", uid,
		"has_content", preview.HasContent(),
		"attachments", len(preview.Attachments))

	return preview, nil
}

// DownloadAttachment streams the attachment at the server-relative url
// into w and returns the number of bytes written.
func (c *Client) DownloadAttachment(ctx context.Context, rel string, w io.Writer) (int64, error) {
	resp, err := c.getPage(ctx, c.downloadURL(rel), true)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(resp.Body)
	if err != nil {
		return int64(n), fmt.Errorf("writing attachment: %w", err)
	}
	return int64(n), nil
}

// FetchSource returns the raw RFC 5322 source of one message.
func (c *Client) FetchSource(ctx context.Context, mailbox string, uid int64) ([]byte, error) {
	mailbox = model.NormalizeMailbox(mailbox)

	resp, err := c.getPage(ctx, c.sourceURL(mailbox, uid), true)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") && isLoginPage(resp.Text()) {
		return nil, c.expire(ctx)
	}
	return resp.Body, nil
}

// isLoginPage reports whether a page is the login screen served in place
// of the requested one.
func isLoginPage(page string) bool {
	if _, ok := scrape.ParseMessageBody(page); ok {
		return false
	}
	form := scrape.ParseLoginForm(page, []string{"_task", "_user"})
	task, _ := form.Fields.Lookup("_task")
	return task == "login"
}
