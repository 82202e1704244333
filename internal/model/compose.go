package model

import "encoding/json"

// ComposeSessionConfig is the environment the compose screen embeds.
// It is mostly consumed for RequestToken, the CSRF token for later
// mutating calls.
type ComposeSessionConfig struct {
	Task         string `json:"task" yaml:"task"`
	Action       string `json:"action" yaml:"action"`
	RequestToken string `json:"request_token" yaml:"request_token"`
	ComposeID    string `json:"compose_id,omitempty" yaml:"compose_id,omitempty"`

	// MaxFilesize is the upload limit in bytes.
	MaxFilesize int64 `json:"max_filesize" yaml:"max_filesize"`

	Identities map[string]Identity  `json:"identities,omitempty" yaml:"identities,omitempty"`
	Signatures map[string]Signature `json:"signatures,omitempty" yaml:"signatures,omitempty"`

	DraftsMailbox string `json:"drafts_mailbox" yaml:"drafts_mailbox"`
	Locale        string `json:"locale" yaml:"locale"`
	Mailbox       string `json:"mailbox" yaml:"mailbox"`
	DefaultFont   string `json:"default_font" yaml:"default_font"`

	// DraftAutosave is the autosave interval in seconds.
	DraftAutosave int `json:"draft_autosave" yaml:"draft_autosave"`

	// Extra keeps every other env key verbatim.
	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

// Identity is one sender identity offered by the compose form.
type Identity struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	Bcc   string `json:"bcc,omitempty" yaml:"bcc,omitempty"`
}

// Signature is the signature bound to an identity.
type Signature struct {
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	HTML string `json:"html,omitempty" yaml:"html,omitempty"`
}
