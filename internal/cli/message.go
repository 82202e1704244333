package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/term"
	"github.com/nhle/roundmail/internal/theme"
	"github.com/nhle/roundmail/internal/ui"
)

// messageView is the machine-readable form of `show`.
type messageView struct {
	Mailbox string               `json:"mailbox" yaml:"mailbox"`
	UID     int64                `json:"uid" yaml:"uid"`
	Row     *model.MessageRow    `json:"row,omitempty" yaml:"row,omitempty"`
	Preview model.MessagePreview `json:"preview" yaml:"preview"`
}

func parseUID(s string) (int64, error) {
	uid, err := strconv.ParseInt(s, 10, 64)
	if err != nil || uid <= 0 {
		return 0, fmt.Errorf("invalid message uid %q", s)
	}
	return uid, nil
}

func (r *root) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <mailbox> <uid>",
		Short: "Show the body and attachments of a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUID(args[1])
			if err != nil {
				return err
			}
			return r.withEnv(cmd.Context(), true, func(e *env) error {
				return r.showMessage(cmd.Context(), cmd.OutOrStdout(), e, model.NormalizeMailbox(args[0]), uid)
			})
		},
	}
}

func (r *root) showMessage(ctx context.Context, w io.Writer, e *env, mailbox string, uid int64) error {
	var preview model.MessagePreview
	err := ui.WithSpinner(ctx, r.spinnerOut(), "Opening message", func(ctx context.Context) error {
		var err error
		preview, err = e.client.Preview(ctx, mailbox, uid)
		return err
	})
	if err != nil {
		return err
	}

	view := messageView{Mailbox: mailbox, UID: uid, Preview: preview}
	if cached, err := e.store.LoadSnapshot(ctx, e.cfg.Server, mailbox); err == nil {
		for _, m := range cached.Snapshot.Messages {
			if m.ID == uid {
				row := m
				view.Row = &row
				break
			}
		}
	}

	return r.render(w, view, func(w io.Writer) error {
		return writeMessage(w, view)
	})
}

func writeMessage(w io.Writer, v messageView) error {
	label := theme.LabelStyle.Render
	if v.Row != nil {
		fmt.Fprintf(w, "%s %s\n", label("From/To:"), v.Row.FromTo)
		fmt.Fprintf(w, "%s %s\n", label("Subject:"), v.Row.Subject)
		fmt.Fprintf(w, "%s %s\n", label("Date:   "), v.Row.Date)
	} else {
		fmt.Fprintf(w, "%s %s/%d\n", label("Message:"), v.Mailbox, v.UID)
	}

	body := theme.HelpStyle.Render("(no message body)")
	if v.Preview.HasContent() {
		body = *v.Preview.Content
	}
	fmt.Fprintln(w, theme.PanelStyle.Render(body))

	for _, a := range v.Preview.Attachments {
		fmt.Fprintf(w, "  [%s] %s  %s  %s\n", a.ID, a.Name, a.Size, theme.HelpStyle.Render(a.Type))
	}
	return nil
}

func (r *root) downloadCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "download <mailbox> <uid> <attachment-id>",
		Short: "Save an attachment of a message",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUID(args[1])
			if err != nil {
				return err
			}
			mailbox := model.NormalizeMailbox(args[0])

			return r.withEnv(cmd.Context(), true, func(e *env) error {
				preview, err := e.client.Preview(cmd.Context(), mailbox, uid)
				if err != nil {
					return err
				}

				var att *model.AttachmentInfo
				for i := range preview.Attachments {
					if preview.Attachments[i].ID == args[2] {
						att = &preview.Attachments[i]
						break
					}
				}
				if att == nil {
					return fmt.Errorf("message %s/%d has no attachment %q", mailbox, uid, args[2])
				}
				if att.URL == "" {
					return fmt.Errorf("attachment %q has no download link", att.Name)
				}

				path := outPath
				if path == "" {
					path = filepath.Base(att.Name)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				defer f.Close()

				n, err := e.client.DownloadAttachment(cmd.Context(), att.URL, f)
				if err != nil {
					os.Remove(path)
					return err
				}
				term.Infof("Saved %s (%d bytes).", path, n)
				return f.Close()
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "O", "", "file to write (defaults to the attachment name)")
	return cmd
}

func (r *root) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <mailbox> <file>",
		Short: "Write the listed messages of a mailbox to an mbox file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mailbox := model.NormalizeMailbox(args[0])
			path := args[1]

			return r.withEnv(cmd.Context(), true, func(e *env) error {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				defer f.Close()

				var res exportSummary
				err = ui.WithSpinner(cmd.Context(), r.spinnerOut(), "Exporting "+mailbox, func(ctx context.Context) error {
					out, err := e.client.ExportMailbox(ctx, mailbox, f)
					res = exportSummary{Mailbox: mailbox, File: path, Exported: out.Exported, Skipped: out.Skipped}
					return err
				})
				if err != nil {
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing %s: %w", path, err)
				}

				if res.Skipped > 0 {
					term.Warnf("%d messages could not be fetched and were skipped.", res.Skipped)
				}
				return r.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Exported %d messages from %s to %s.\n", res.Exported, mailbox, path)
					return err
				})
			})
		},
	}
}

type exportSummary struct {
	Mailbox  string `json:"mailbox" yaml:"mailbox"`
	File     string `json:"file" yaml:"file"`
	Exported int    `json:"exported" yaml:"exported"`
	Skipped  int    `json:"skipped" yaml:"skipped"`
}
