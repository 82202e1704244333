package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nhle/roundmail/internal/credential"
	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/roundcube"
	"github.com/nhle/roundmail/internal/session"
	"github.com/nhle/roundmail/internal/store"
	"github.com/nhle/roundmail/internal/transport"
)

// env is everything a command needs to talk to one server.
type env struct {
	cfg     *model.AppConfig
	logger  *slog.Logger
	store   *store.SQLiteStore
	vault   *credential.Vault
	session *session.Manager
	client  *roundcube.Client
}

// errNoServer is returned when neither the flags nor the configuration
// name a server.
var errNoServer = errors.New("no server configured; pass --server or run `roundmail login`")

// open wires store, keyring, session and client for the configured
// server and restores the saved session.
func (r *root) open(ctx context.Context) (*env, error) {
	cfg := r.cfg
	if cfg.Server == "" {
		return nil, errNoServer
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	vault := r.opts.Vault
	if vault == nil {
		vault, err = credential.Open(cfg.Keyring.FileDir)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	sess := session.NewManager(cfg.Server, session.NewStoredPersister(st, vault), r.logger)
	if err := sess.Restore(ctx); err != nil {
		r.logger.Warn("ignoring unreadable saved session", "server", cfg.Server, "error", err)
	}

	sender := transport.New(transport.Options{
		UserAgent:  cfg.UserAgent,
		Timeout:    time.Duration(cfg.HTTP.TimeoutSec) * time.Second,
		RatePerSec: cfg.HTTP.RatePerSec,
		Burst:      cfg.HTTP.Burst,
		Logger:     r.logger,
		HTTPClient: r.opts.HTTPClient,
	})

	client := roundcube.NewClient(sender, sess, roundcube.Options{
		BaseURL:   cfg.BaseURL,
		Detection: cfg.Login.Detection,
		Timezone:  cfg.Timezone,
		Logger:    r.logger,
	})

	return &env{
		cfg:     cfg,
		logger:  r.logger,
		store:   st,
		vault:   vault,
		session: sess,
		client:  client,
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// requireLogin fails early when there is no saved session to use.
func (e *env) requireLogin() error {
	if !e.session.Current().Authenticated() {
		return fmt.Errorf("not logged in to %s; run `roundmail login`", e.cfg.Server)
	}
	return nil
}

// withEnv opens an env for fn and closes it afterwards.
func (r *root) withEnv(ctx context.Context, needLogin bool, fn func(*env) error) error {
	e, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if needLogin {
		if err := e.requireLogin(); err != nil {
			return err
		}
	}
	return fn(e)
}

// spinnerOut is where progress spinners draw, or nil when there is no
// terminal to draw on.
func (r *root) spinnerOut() io.Writer {
	if !r.opts.Interactive {
		return nil
	}
	return r.opts.Stderr
}
