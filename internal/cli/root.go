// Package cli is the roundmail command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/roundmail/internal/credential"
	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/roundcube"
	"github.com/nhle/roundmail/internal/term"
)

// Options carries what the commands need from the process. Zero values
// fall back to the real terminal, keyring and HTTP client.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive enables prompts, spinners and the browser.
	Interactive bool

	// Vault replaces the system keyring.
	Vault *credential.Vault

	HTTPClient *http.Client
}

// root holds the state shared by every subcommand of one invocation.
type root struct {
	opts    Options
	v       *viper.Viper
	cfgPath string
	output  string

	cfg      *model.AppConfig
	logger   *slog.Logger
	logLevel *slog.LevelVar
}

// NewRootCmd builds the command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	r := &root{opts: opts, v: model.NewViper(), logLevel: new(slog.LevelVar)}

	cmd := &cobra.Command{
		Use:           "roundmail",
		Short:         "Read a Roundcube webmail account from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return r.init()
		},
	}
	cmd.SetIn(opts.Stdin)
	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&r.cfgPath, "config", "c", model.DefaultConfigPath(), "configuration file")
	flags.StringVarP(&r.output, "output", "o", "table", "output format: table, json or yaml")
	flags.String("server", "", "Roundcube host or URL")
	flags.String("username", "", "login name")
	flags.String("log-level", "", "debug, info, warn or error")

	for key, flag := range map[string]string{
		"server":    "server",
		"username":  "username",
		"log.level": "log-level",
	} {
		if err := r.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}

	cmd.AddCommand(
		r.loginCmd(),
		r.logoutCmd(),
		r.listCmd(),
		r.tabsCmd(),
		r.browseCmd(),
		r.showCmd(),
		r.searchCmd(),
		r.tokenCmd(),
		r.downloadCmd(),
		r.exportCmd(),
		r.statusCmd(),
		r.watchCmd(),
	)
	return cmd
}

func (r *root) init() error {
	switch r.output {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", r.output)
	}

	cfg, err := model.LoadConfig(r.v, r.cfgPath)
	if err != nil {
		return err
	}
	r.cfg = cfg
	r.logger = setupLogger(r.opts.Stderr, r.logLevel, cfg.Log.Level)
	term.SetOutput(r.opts.Stderr)
	term.SetLevel(term.ParseLevel(cfg.Log.Level))
	return nil
}

// setupLogger builds a text handler on w whose level follows name.
func setupLogger(w io.Writer, level *slog.LevelVar, name string) *slog.Logger {
	switch name {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	opts := Options{
		Interactive: isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd()),
	}

	cmd := NewRootCmd(opts)
	if err := cmd.ExecuteContext(ctx); err != nil {
		term.SetOutput(os.Stderr)
		reportError(err)
		return 1
	}
	return 0
}

func reportError(err error) {
	var authErr *roundcube.AuthError
	switch {
	case roundcube.IsSessionExpired(err):
		term.Error("Your session has expired.")
		term.Warn("Run `roundmail login` to sign in again.")
	case errors.As(err, &authErr):
		term.Errorf("Login failed: %s", authErr.Message)
	case errors.Is(err, context.Canceled):
		term.Warn("Interrupted.")
	default:
		term.Error(err)
	}
}
