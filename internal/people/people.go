// Package people turns autocomplete results into recipients.
package people

import (
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/roundmail/internal/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail reports whether s, trimmed, looks like a bare email address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// Manual builds the locally synthesized entry for a typed address.
func Manual(addr string) model.SearchResultItem {
	addr = strings.TrimSpace(addr)
	return model.SearchResultItem{
		ID:      "email_" + addr,
		Name:    addr,
		Display: addr,
		Type:    "email",
		Source:  model.SourceManual,
	}
}

// WithTypedAddress prepends a manual entry for typed when it is an email
// address none of the results already stands for. The input is not
// modified. A nil result is treated as an empty one.
func WithTypedAddress(result *model.SearchResult, typed string) *model.SearchResult {
	typed = strings.TrimSpace(typed)
	if !IsEmail(typed) {
		return result
	}

	out := model.SearchResult{Query: typed}
	if result != nil {
		out = *result
	}

	for _, item := range out.Results {
		if strings.EqualFold(item.Name, typed) || strings.EqualFold(item.Display, typed) ||
			strings.EqualFold(Address(item), typed) {
			return result
		}
	}

	out.Results = append([]model.SearchResultItem{Manual(typed)}, out.Results...)
	return &out
}

// Address extracts the email address an item stands for, or "" for
// groups and names without one.
func Address(item model.SearchResultItem) string {
	if item.Source == model.SourceManual {
		return item.Name
	}
	if addr, err := mail.ParseAddress(item.Name); err == nil {
		return addr.Address
	}
	if IsEmail(item.Name) {
		return strings.TrimSpace(item.Name)
	}
	return ""
}

// FormatRecipients renders items as an RFC 5322 address list, skipping
// entries without an address.
func FormatRecipients(items []model.SearchResultItem) string {
	var parts []string
	for _, item := range items {
		addr := Address(item)
		if addr == "" {
			continue
		}
		a := &mail.Address{Address: addr}
		if parsed, err := mail.ParseAddress(item.Name); err == nil {
			a.Name = parsed.Name
		}
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
