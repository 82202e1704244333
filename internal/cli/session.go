package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/roundmail/internal/credential"
	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/store"
	"github.com/nhle/roundmail/internal/term"
	"github.com/nhle/roundmail/internal/theme"
	"github.com/nhle/roundmail/internal/ui"
)

func (r *root) loginCmd() *cobra.Command {
	var (
		passwordStdin bool
		remember      bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			answers := ui.LoginAnswers{
				Server:   r.cfg.Server,
				Username: r.cfg.Username,
				Remember: remember,
			}
			if passwordStdin {
				pw, err := readPassword(r.opts.Stdin)
				if err != nil {
					return err
				}
				answers.Password = pw
			}

			if err := r.completeLogin(&answers); err != nil {
				return err
			}

			server, err := model.NormalizeServer(answers.Server)
			if err != nil {
				return err
			}
			r.cfg.Server = server
			r.cfg.Username = answers.Username

			return r.withEnv(ctx, false, func(e *env) error {
				if answers.Password == "" {
					pw, err := e.vault.Get(credential.PasswordKey(server, answers.Username))
					if err != nil {
						return fmt.Errorf("no password given and none remembered for %s: %w", answers.Username, err)
					}
					answers.Password = pw
				}

				var cred model.SessionCredential
				err := ui.WithSpinner(ctx, r.spinnerOut(), "Signing in to "+server, func(ctx context.Context) error {
					var err error
					cred, err = e.client.Login(ctx, answers.Username, answers.Password)
					return err
				})
				if err != nil {
					return err
				}

				if answers.Remember {
					if err := e.vault.Set(credential.PasswordKey(server, answers.Username), answers.Password); err != nil {
						return err
					}
				}
				if err := r.saveIdentity(server, answers.Username); err != nil {
					e.logger.Warn("could not save server in config", "error", err)
				}

				term.Infof("Logged in to %s as %s.", cred.Server, cred.Username)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVar(&remember, "remember", false, "store the password in the keyring")
	return cmd
}

// completeLogin prompts for whatever the flags and config left out. A
// remembered password is looked up later, so a missing one is not an
// error here.
func (r *root) completeLogin(answers *ui.LoginAnswers) error {
	if answers.Server != "" && answers.Username != "" && (answers.Password != "" || !r.opts.Interactive) {
		return nil
	}
	if !r.opts.Interactive {
		return errors.New("server and username are required; pass --server and --username")
	}

	filled, err := ui.PromptLogin(*answers)
	if err != nil {
		return err
	}
	*answers = filled
	return nil
}

// saveIdentity remembers server and username in the config file when
// they changed.
func (r *root) saveIdentity(server, username string) error {
	saved, err := model.LoadConfig(nil, r.cfgPath)
	if err != nil {
		return err
	}
	if saved.Server == server && saved.Username == username {
		return nil
	}
	saved.Server, saved.Username = server, username
	return model.SaveConfig(r.cfgPath, saved)
}

func readPassword(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password on stdin")
	}
	return pw, nil
}

func (r *root) logoutCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withEnv(cmd.Context(), false, func(e *env) error {
				username := e.session.Current().Username
				logoutErr := e.client.Logout(cmd.Context())
				if logoutErr != nil {
					term.Warnf("Server logout failed: %v", logoutErr)
				}

				if forget {
					n, err := e.store.DeleteSnapshots(cmd.Context(), e.cfg.Server)
					if err != nil {
						return err
					}
					if username == "" {
						username = e.cfg.Username
					}
					if err := e.vault.Delete(credential.PasswordKey(e.cfg.Server, username)); err != nil {
						return err
					}
					term.Infof("Removed %d cached mailbox listings.", n)
				}

				term.Infof("Logged out of %s.", e.cfg.Server)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&forget, "forget", false, "also drop cached listings and the remembered password")
	return cmd
}

// statusReport is the machine-readable form of `status`.
type statusReport struct {
	Server        string             `json:"server" yaml:"server"`
	Username      string             `json:"username" yaml:"username"`
	Authenticated bool               `json:"authenticated" yaml:"authenticated"`
	HasToken      bool               `json:"has_token" yaml:"has_token"`
	UpdatedAt     *time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Cached        []cachedListingRow `json:"cached" yaml:"cached"`
}

type cachedListingRow struct {
	Mailbox   string    `json:"mailbox" yaml:"mailbox"`
	Messages  int       `json:"messages" yaml:"messages"`
	Unread    int       `json:"unread" yaml:"unread"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

func (r *root) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved session and cached listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withEnv(cmd.Context(), false, func(e *env) error {
				cur := e.session.Current()
				report := statusReport{
					Server:        cur.Server,
					Username:      cur.Username,
					Authenticated: cur.Authenticated(),
					HasToken:      cur.Token != "",
					Cached:        []cachedListingRow{},
				}
				if !cur.UpdatedAt.IsZero() {
					report.UpdatedAt = &cur.UpdatedAt
				}

				sums, err := e.store.ListSnapshots(cmd.Context(), cur.Server)
				if err != nil {
					return err
				}
				for _, s := range sums {
					report.Cached = append(report.Cached, cachedListingRow{
						Mailbox:   s.Mailbox,
						Messages:  s.Messages,
						Unread:    s.UnreadCount,
						FetchedAt: s.FetchedAt,
					})
				}

				return r.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
					return writeStatus(w, report, sums)
				})
			})
		},
	}
}

func writeStatus(w io.Writer, report statusReport, sums []store.SnapshotSummary) error {
	state := "logged out"
	if report.Authenticated {
		state = "logged in as " + report.Username
	}
	fmt.Fprintf(w, "%s %s\n", theme.HeaderStyle.Render(report.Server), state)
	if report.UpdatedAt != nil {
		fmt.Fprintf(w, "%s %s\n", theme.LabelStyle.Render("session updated"), report.UpdatedAt.Local().Format(time.DateTime))
	}
	for _, s := range sums {
		fmt.Fprintf(w, "  %-12s %4d messages %4d unread  %s\n",
			s.Mailbox, s.Messages, s.UnreadCount, s.FetchedAt.Local().Format(time.DateTime))
	}
	return nil
}

type tokenReport struct {
	RequestToken string `json:"request_token" yaml:"request_token"`
}

func (r *root) tokenCmd() *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Refresh the request token through the compose screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withEnv(cmd.Context(), true, func(e *env) error {
				token, err := e.client.RefreshToken(cmd.Context())
				if err != nil {
					return err
				}
				if !details {
					return r.render(cmd.OutOrStdout(), tokenReport{RequestToken: token}, func(w io.Writer) error {
						_, err := fmt.Fprintln(w, token)
						return err
					})
				}

				cfg, err := e.client.ComposeSession(cmd.Context())
				if err != nil {
					return err
				}
				return r.render(cmd.OutOrStdout(), cfg, func(w io.Writer) error {
					return writeCompose(w, cfg)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "show the whole compose environment")
	return cmd
}

func writeCompose(w io.Writer, cfg *model.ComposeSessionConfig) error {
	label := theme.LabelStyle.Render
	fmt.Fprintf(w, "%s %s\n", label("request token"), cfg.RequestToken)
	if cfg.ComposeID != "" {
		fmt.Fprintf(w, "%s %s\n", label("compose id"), cfg.ComposeID)
	}
	fmt.Fprintf(w, "%s %d bytes\n", label("max upload"), cfg.MaxFilesize)
	fmt.Fprintf(w, "%s %s\n", label("drafts"), cfg.DraftsMailbox)

	ids := make([]string, 0, len(cfg.Identities))
	for id := range cfg.Identities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ident := cfg.Identities[id]
		fmt.Fprintf(w, "%s %s <%s>\n", label("identity "+id), ident.Name, ident.Email)
	}
	return nil
}
