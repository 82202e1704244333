package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/roundmail/internal/credential"
	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/store"
)

// RowStore keeps the non-secret part of a session.
type RowStore interface {
	SaveSessionRow(ctx context.Context, row store.SessionRow) error
	LoadSessionRow(ctx context.Context, server string) (store.SessionRow, error)
	DeleteSessionRow(ctx context.Context, server string) error
}

// SecretStore keeps the session cookie.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// StoredPersister splits a credential between a RowStore (server,
// username, token) and a SecretStore (cookie).
type StoredPersister struct {
	rows    RowStore
	secrets SecretStore
}

var _ Persister = (*StoredPersister)(nil)

// NewStoredPersister returns a Persister over rows and secrets.
func NewStoredPersister(rows RowStore, secrets SecretStore) *StoredPersister {
	return &StoredPersister{rows: rows, secrets: secrets}
}

// LoadSession reads both halves. A session without its cookie is treated
// as missing.
func (p *StoredPersister) LoadSession(ctx context.Context, server string) (model.SessionCredential, error) {
	row, err := p.rows.LoadSessionRow(ctx, server)
	if errors.Is(err, store.ErrNotFound) {
		return model.SessionCredential{}, ErrNotFound
	}
	if err != nil {
		return model.SessionCredential{}, err
	}

	cookie, err := p.secrets.Get(credential.CookieKey(server))
	if errors.Is(err, credential.ErrNotFound) {
		return model.SessionCredential{}, ErrNotFound
	}
	if err != nil {
		return model.SessionCredential{}, err
	}

	return model.SessionCredential{
		Server:    row.Server,
		Username:  row.Username,
		Token:     row.Token,
		Cookie:    cookie,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// SaveSession writes the cookie first so a stored row always has one.
func (p *StoredPersister) SaveSession(ctx context.Context, cred model.SessionCredential) error {
	key := credential.CookieKey(cred.Server)
	if cred.Cookie == "" {
		if err := p.secrets.Delete(key); err != nil {
			return err
		}
	} else if err := p.secrets.Set(key, cred.Cookie); err != nil {
		return err
	}

	err := p.rows.SaveSessionRow(ctx, store.SessionRow{
		Server:    cred.Server,
		Username:  cred.Username,
		Token:     cred.Token,
		UpdatedAt: cred.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("saving session row: %w", err)
	}
	return nil
}

// DeleteSession removes both halves and joins their errors.
func (p *StoredPersister) DeleteSession(ctx context.Context, server string) error {
	rowErr := p.rows.DeleteSessionRow(ctx, server)
	secretErr := p.secrets.Delete(credential.CookieKey(server))
	return errors.Join(rowErr, secretErr)
}
