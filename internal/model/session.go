package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SessionCredential is the state threaded through every request after
// the login page has been fetched.
type SessionCredential struct {
	// Server is the host (and optional port) of the webmail installation.
	Server string `json:"server"`

	// Username is the authenticated identity; empty before login.
	Username string `json:"username"`

	// Token is the CSRF request token.
	Token string `json:"token"`

	// Cookie is a Cookie header value; empty means no cookie.
	Cookie string `json:"cookie"`

	// UpdatedAt is when the credential was last replaced.
	UpdatedAt time.Time `json:"updated_at"`
}

// Authenticated reports whether the credential came out of a successful
// login.
func (c SessionCredential) Authenticated() bool {
	return c.Username != "" && c.Cookie != ""
}

// Equal compares everything but UpdatedAt.
func (c SessionCredential) Equal(o SessionCredential) bool {
	return c.Server == o.Server && c.Username == o.Username &&
		c.Token == o.Token && c.Cookie == o.Cookie
}

// FormInput is a named input element found in a page.
type FormInput struct {
	Name  string
	Value string
}

// FormFields maps input names to values. A name missing from the map
// never appeared in the page; an empty value did appear.
type FormFields map[string]string

// Lookup returns the value for name and whether the input was present.
func (f FormFields) Lookup(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// LoginForm is what the login page yields: the hidden fields and the
// logo URL, resolved against the server when it was relative.
type LoginForm struct {
	Fields  FormFields
	LogoURL string
}

// NormalizeServer accepts either a bare host ("mail.example.com:8443")
// or a URL and returns the host part.
func NormalizeServer(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("server is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing server %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server %q has no host", raw)
	}
	return u.Host, nil
}
