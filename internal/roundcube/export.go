package roundcube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// unknownSender is the envelope sender used when From cannot be parsed.
const unknownSender = "MAILER-DAEMON"

// ExportResult summarises an ExportMailbox run.
type ExportResult struct {
	Exported int
	Skipped  int
}

// ExportMailbox writes the raw source of every message in the current
// listing of mailbox to w in mbox format. Messages whose source cannot be
// fetched are skipped and counted; session expiry aborts the export.
func (c *Client) ExportMailbox(ctx context.Context, mailbox string, w io.Writer) (ExportResult, error) {
	listing, err := c.ListMailbox(ctx, mailbox)
	if err != nil {
		return ExportResult{}, err
	}

	mw := mbox.NewWriter(w)
	var res ExportResult

	for _, row := range listing.Snapshot.Messages {
		folder := row.Mbox
		if folder == "" {
			folder = listing.Snapshot.Mailbox
		}

		raw, err := c.FetchSource(ctx, folder, row.ID)
		if IsSessionExpired(err) || ctx.Err() != nil {
			return res, firstErr(ctx.Err(), err)
		}
		if err != nil {
			c.logger.Warn("skipping message in export", "mailbox", folder, "uid", row.ID, "error", err)
			res.Skipped++
			continue
		}

		from, date := envelopeOf(raw, c.now())
		msg, err := mw.CreateMessage(from, date)
		if err != nil {
			return res, fmt.Errorf("starting mbox entry for %s: %w", row.Key(), err)
		}
		if _, err := msg.Write(raw); err != nil {
			return res, fmt.Errorf("writing mbox entry for %s: %w", row.Key(), err)
		}
		res.Exported++
	}

	if err := mw.Close(); err != nil {
		return res, fmt.Errorf("closing mbox: %w", err)
	}

	c.logger.Info("mailbox exported",
		"mailbox", listing.Snapshot.Mailbox,
		"exported", res.Exported,
		"skipped", res.Skipped)

	return res, nil
}

// envelopeOf reads the sender address and date for the mbox "From " line.
func envelopeOf(raw []byte, fallback time.Time) (string, time.Time) {
	from, date := unknownSender, fallback

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return from, date
	}
	defer mr.Close()

	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		from = addrs[0].Address
	}
	if d, err := mr.Header.Date(); err == nil && !d.IsZero() {
		date = d
	}
	return from, date
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
