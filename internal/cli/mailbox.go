package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/store"
	"github.com/nhle/roundmail/internal/term"
	"github.com/nhle/roundmail/internal/ui"
	"github.com/nhle/roundmail/internal/watch"
)

// tabMailboxes are the folders shown side by side by `tabs` and `browse`.
var tabMailboxes = []string{model.MailboxInbox, model.MailboxSent, model.MailboxDrafts}

// fetchListing lists mailbox on the server and caches the result.
func (e *env) fetchListing(ctx context.Context, mailbox string) (*model.MailboxListing, error) {
	listing, err := e.client.ListMailbox(ctx, mailbox)
	if err != nil {
		return nil, err
	}
	e.cache(ctx, listing.Snapshot)
	return listing, nil
}

// cache stores snap, logging rather than failing: the listing itself
// was fetched fine.
func (e *env) cache(ctx context.Context, snap model.MailboxSnapshot) {
	if _, err := e.store.ReplaceSnapshot(ctx, e.cfg.Server, snap); err != nil {
		e.logger.Warn("caching listing failed", "mailbox", snap.Mailbox, "error", err)
	}
}

func (r *root) listCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "list [mailbox]",
		Short: "List the messages of a mailbox (INBOX by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mailbox := model.MailboxInbox
			if len(args) == 1 {
				mailbox = model.NormalizeMailbox(args[0])
			}

			return r.withEnv(cmd.Context(), !offline, func(e *env) error {
				var snap model.MailboxSnapshot

				if offline {
					cached, err := e.store.LoadSnapshot(cmd.Context(), e.cfg.Server, mailbox)
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("%s has not been fetched yet; run `roundmail list %s` online first", mailbox, mailbox)
					}
					if err != nil {
						return err
					}
					term.Debugf("Showing %s as cached at %s.", mailbox, cached.FetchedAt.Local().Format(time.DateTime))
					snap = cached.Snapshot
				} else {
					err := ui.WithSpinner(cmd.Context(), r.spinnerOut(), "Fetching "+mailbox, func(ctx context.Context) error {
						listing, err := e.fetchListing(ctx, mailbox)
						if err != nil {
							return err
						}
						snap = listing.Snapshot
						return nil
					})
					if err != nil {
						return err
					}
				}

				return r.render(cmd.OutOrStdout(), snap, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, ui.RenderSnapshot(snap, 0))
					return err
				})
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "show the last fetched listing without contacting the server")
	return cmd
}

func (r *root) tabsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "Fetch INBOX, Sent and Drafts at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withEnv(cmd.Context(), true, func(e *env) error {
				var listings map[string]*model.MailboxListing
				err := ui.WithSpinner(cmd.Context(), r.spinnerOut(), "Fetching mailboxes", func(ctx context.Context) error {
					var err error
					listings, err = e.client.FetchMailboxes(ctx, tabMailboxes...)
					return err
				})
				if err != nil {
					return err
				}

				snaps := make([]model.MailboxSnapshot, 0, len(tabMailboxes))
				for _, name := range tabMailboxes {
					if l, ok := listings[name]; ok {
						e.cache(cmd.Context(), l.Snapshot)
						snaps = append(snaps, l.Snapshot)
					}
				}

				return r.render(cmd.OutOrStdout(), snaps, func(w io.Writer) error {
					for _, s := range snaps {
						if _, err := fmt.Fprintln(w, ui.RenderSnapshot(s, 0)+"\n"); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func (r *root) browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse INBOX, Sent and Drafts interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !r.opts.Interactive {
				return errors.New("browse needs a terminal; use `list` instead")
			}

			return r.withEnv(cmd.Context(), true, func(e *env) error {
				load := func(ctx context.Context, mailbox string) (model.MailboxSnapshot, error) {
					listing, err := e.fetchListing(ctx, mailbox)
					if err != nil {
						return model.MailboxSnapshot{}, err
					}
					return listing.Snapshot, nil
				}

				row, mailbox, err := ui.Browse(cmd.Context(), load, tabMailboxes)
				if err != nil || row == nil {
					return err
				}
				if row.Mbox != "" {
					mailbox = row.Mbox
				}
				return r.showMessage(cmd.Context(), cmd.OutOrStdout(), e, mailbox, row.ID)
			})
		},
	}
}

func (r *root) watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch [mailbox...]",
		Short: "Poll mailboxes and print messages as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			boxes := []string{model.MailboxInbox}
			if len(args) > 0 {
				boxes = boxes[:0]
				for _, a := range args {
					boxes = append(boxes, model.NormalizeMailbox(a))
				}
			}

			return r.withEnv(cmd.Context(), true, func(e *env) error {
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()

				p := watch.New(e.client, e.store, e.cfg.Server, boxes, interval, e.logger)
				results := make(chan watch.Result)
				done := make(chan error, 1)
				go func() {
					done <- p.Run(ctx, results)
					close(results)
				}()

				term.Infof("Watching %s every %s. Press Ctrl+C to stop.", strings.Join(boxes, ", "), interval)
				w := cmd.OutOrStdout()
				for res := range results {
					if res.Err != nil {
						term.Warnf("%s: %v", res.Mailbox, res.Err)
						continue
					}
					for _, m := range res.New {
						if err := r.writeNewMessage(w, m); err != nil {
							return err
						}
					}
				}

				err := <-done
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", watch.DefaultInterval, "time between polls")
	return cmd
}

// writeNewMessage prints one arrival: a JSON line with -o json, a tab
// separated line otherwise.
func (r *root) writeNewMessage(w io.Writer, m model.MessageRow) error {
	if r.output == formatJSON {
		return json.NewEncoder(w).Encode(m)
	}
	_, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", m.Mbox, m.ID, m.Date, m.FromTo, m.Subject)
	return err
}
