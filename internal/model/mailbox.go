package model

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Well-known Roundcube mailbox names.
const (
	MailboxInbox  = "INBOX"
	MailboxSent   = "Sent"
	MailboxDrafts = "Drafts"
)

// MailboxSnapshot is one listing fetch of a single mailbox. A refetch
// replaces the whole snapshot; rows are never merged incrementally.
type MailboxSnapshot struct {
	// Mailbox is the folder the listing was requested for.
	Mailbox string `json:"mailbox" yaml:"mailbox"`

	// PageTitle is the value of the set_pagetitle call.
	PageTitle string `json:"page_title" yaml:"page_title"`

	// UnreadCount is the unread counter reported for the mailbox.
	UnreadCount int `json:"unread_count" yaml:"unread_count"`

	// RowCount is the human-readable row counter text
	// (e.g. "Messages 1 to 50 of 120").
	RowCount string `json:"row_count" yaml:"row_count"`

	// ColumnTypes lists the listing columns in display order.
	ColumnTypes []string `json:"column_types" yaml:"column_types"`

	// Messages holds the rows in the server's own sort order.
	Messages []MessageRow `json:"messages" yaml:"messages"`

	// Quota is nil when the server omitted the quota call.
	Quota *QuotaInfo `json:"quota,omitempty" yaml:"quota,omitempty"`
}

// Empty reports whether nothing at all was recognized in the listing.
func (s MailboxSnapshot) Empty() bool {
	return s.PageTitle == "" && s.RowCount == "" && s.UnreadCount == 0 &&
		len(s.ColumnTypes) == 0 && len(s.Messages) == 0 && s.Quota == nil
}

// MessageRow is a single row of a mailbox listing.
type MessageRow struct {
	// ID is the server-assigned UID, unique only within Mbox.
	ID int64 `json:"id" yaml:"id"`

	Subject string `json:"subject" yaml:"subject"`

	// FromTo is the normalized sender (or recipient, in Sent/Drafts).
	FromTo string `json:"fromto" yaml:"fromto"`

	Date string `json:"date" yaml:"date"`
	Size string `json:"size" yaml:"size"`

	// Seen is 1 when the message has been read, 0 otherwise.
	Seen int `json:"seen" yaml:"seen"`

	Flagged bool   `json:"flagged,omitempty" yaml:"flagged,omitempty"`
	CType   string `json:"ctype" yaml:"ctype"`
	Mbox    string `json:"mbox" yaml:"mbox"`
}

// Key returns the row identity, which is only unique per mailbox.
func (r MessageRow) Key() string {
	return fmt.Sprintf("%s/%d", r.Mbox, r.ID)
}

// QuotaInfo is the usage snapshot reported by set_quota.
type QuotaInfo struct {
	Used    int64   `json:"used" yaml:"used"`
	Total   int64   `json:"total" yaml:"total"`
	Percent float64 `json:"percent" yaml:"percent"`
	Free    int64   `json:"free" yaml:"free"`
	Type    string  `json:"type" yaml:"type"`
	Folder  string  `json:"folder" yaml:"folder"`
	Title   string  `json:"title" yaml:"title"`
}

// ListEnv is the subset of the list response "env" object that callers
// use for paging and display.
type ListEnv struct {
	Mailbox      string `json:"mailbox"`
	MessageCount int    `json:"messagecount"`
	PageCount    int    `json:"pagecount"`
	CurrentPage  int    `json:"current_page"`
	PageSize     int    `json:"pagesize"`
}

// MailboxListing is what a list fetch returns: the parsed snapshot plus
// the configuration the server sent alongside it.
type MailboxListing struct {
	Snapshot MailboxSnapshot
	Env      ListEnv
}

// NormalizeMailbox maps user input onto Roundcube folder names:
// "inbox" in any case becomes INBOX, everything else is capitalized.
func NormalizeMailbox(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return MailboxInbox
	}
	lower := strings.ToLower(name)
	if lower == "inbox" {
		return MailboxInbox
	}
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}
