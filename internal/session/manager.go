// Package session owns the credential shared by every request of one
// Roundcube account.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/roundmail/internal/model"
)

// ErrNotFound is returned by a Persister that holds nothing for a server.
var ErrNotFound = errors.New("no stored session")

// Persister stores the credential between runs.
type Persister interface {
	LoadSession(ctx context.Context, server string) (model.SessionCredential, error)
	SaveSession(ctx context.Context, cred model.SessionCredential) error
	DeleteSession(ctx context.Context, server string) error
}

// Manager is the single writer of the session credential. Reads return a
// copy; writes happen under its lock and are persisted before the lock is
// released, so stored and in-memory state never diverge.
type Manager struct {
	mu        sync.Mutex
	cred      model.SessionCredential
	persister Persister
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a Manager for server. persister may be nil, in which
// case the credential lives in memory only.
func NewManager(server string, persister Persister, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		cred:      model.SessionCredential{Server: server},
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
}

// Restore loads the stored credential for the manager's server. A missing
// credential is not an error.
func (m *Manager) Restore(ctx context.Context) error {
	if m.persister == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.persister.LoadSession(ctx, m.cred.Server)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restoring session for %s: %w", m.cred.Server, err)
	}

	cred.Server = m.cred.Server
	m.cred = cred
	m.logger.Debug("session restored", "server", cred.Server, "username", cred.Username)
	return nil
}

// Current returns a copy of the credential.
func (m *Manager) Current() model.SessionCredential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// Server returns the host the credential belongs to.
func (m *Manager) Server() string {
	return m.Current().Server
}

// CompareAndSwap replaces the credential with next only if it still
// equals old. It reports whether the swap happened.
func (m *Manager) CompareAndSwap(ctx context.Context, old, next model.SessionCredential) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cred.Equal(old) {
		return false, nil
	}
	if err := m.store(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// Update applies fn to the current credential and stores the result.
func (m *Manager) Update(ctx context.Context, fn func(model.SessionCredential) model.SessionCredential) (model.SessionCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := fn(m.cred)
	if err := m.store(ctx, next); err != nil {
		return m.cred, err
	}
	return m.cred, nil
}

// Clear drops everything but the server, in memory and in storage.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	server := m.cred.Server
	m.cred = model.SessionCredential{Server: server, UpdatedAt: m.now()}
	m.logger.Info("session cleared", "server", server)

	if m.persister == nil {
		return nil
	}
	if err := m.persister.DeleteSession(ctx, server); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting stored session for %s: %w", server, err)
	}
	return nil
}

// store must be called with mu held.
func (m *Manager) store(ctx context.Context, next model.SessionCredential) error {
	next.Server = m.cred.Server
	next.UpdatedAt = m.now()

	if m.persister != nil {
		if err := m.persister.SaveSession(ctx, next); err != nil {
			return fmt.Errorf("saving session for %s: %w", next.Server, err)
		}
	}
	m.cred = next
	return nil
}
