package scrape

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nhle/roundmail/internal/model"
)

// ErrIncompleteCompose is returned when the compose page lacks one of the
// env keys every follow-up request depends on.
var ErrIncompleteCompose = errors.New("compose environment incomplete")

var setEnvPattern = regexp.MustCompile(`(?:rcmail|this)\.set_env\(\s*\{`)

// Compose env defaults applied when the page leaves a key out.
const (
	DefaultLocale        = "en_US"
	DefaultMailbox       = model.MailboxInbox
	DefaultDraftAutosave = 300
	DefaultFont          = "Verdana"
	DefaultDraftsMailbox = model.MailboxDrafts
)

var composeKnownKeys = map[string]bool{
	"task": true, "action": true, "request_token": true, "compose_id": true,
	"max_filesize": true, "identities": true, "signatures": true,
	"drafts_mailbox": true, "locale": true, "mailbox": true,
	"default_font": true, "draft_autosave": true,
}

// ParseEnv merges the objects of every set_env call in page, later keys
// overriding earlier ones. Calls whose argument is not a JSON object are
// ignored.
func ParseEnv(page string) map[string]json.RawMessage {
	env := map[string]json.RawMessage{}

	for _, loc := range setEnvPattern.FindAllStringIndex(page, -1) {
		lit, _, ok := balancedAt(page, loc[1]-1)
		if !ok {
			continue
		}
		var part map[string]json.RawMessage
		if err := json.Unmarshal([]byte(lit), &part); err != nil {
			continue
		}
		for k, v := range part {
			env[k] = v
		}
	}

	return env
}

// RequestToken returns the request_token a page publishes through
// set_env, as the post-login landing page does.
func RequestToken(page string) (string, bool) {
	token := scalarString(ParseEnv(page)["request_token"])
	return token, token != ""
}

// ParseComposeSession reads the compose page environment. The task,
// action and request_token keys are mandatory.
func ParseComposeSession(page string) (*model.ComposeSessionConfig, error) {
	env := ParseEnv(page)

	cfg := &model.ComposeSessionConfig{
		Task:          scalarString(env["task"]),
		Action:        scalarString(env["action"]),
		RequestToken:  scalarString(env["request_token"]),
		ComposeID:     scalarString(env["compose_id"]),
		MaxFilesize:   int64(numberOr(env["max_filesize"], 0)),
		DraftsMailbox: stringOr(env["drafts_mailbox"], DefaultDraftsMailbox),
		Locale:        stringOr(env["locale"], DefaultLocale),
		Mailbox:       stringOr(env["mailbox"], DefaultMailbox),
		DefaultFont:   stringOr(env["default_font"], DefaultFont),
		DraftAutosave: int(numberOr(env["draft_autosave"], DefaultDraftAutosave)),
	}

	var missing []string
	for _, f := range []struct{ key, value string }{
		{"task", cfg.Task},
		{"action", cfg.Action},
		{"request_token", cfg.RequestToken},
	} {
		if f.value == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteCompose, strings.Join(missing, ", "))
	}

	if err := decodeObjectMap(env["identities"], &cfg.Identities); err != nil {
		return nil, fmt.Errorf("decoding identities: %w", err)
	}
	if err := decodeObjectMap(env["signatures"], &cfg.Signatures); err != nil {
		return nil, fmt.Errorf("decoding signatures: %w", err)
	}

	for k, v := range env {
		if composeKnownKeys[k] {
			continue
		}
		if cfg.Extra == nil {
			cfg.Extra = map[string]json.RawMessage{}
		}
		cfg.Extra[k] = v
	}

	return cfg, nil
}

// decodeObjectMap decodes a JSON object into dst. PHP encodes an empty
// associative array as [], which is accepted as an empty map.
func decodeObjectMap[T any](raw json.RawMessage, dst *map[string]T) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "[]" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func stringOr(raw json.RawMessage, def string) string {
	if s := scalarString(raw); s != "" {
		return s
	}
	return def
}

// numberOr reads a number that may be sent as a JSON number or string.
func numberOr(raw json.RawMessage, def float64) float64 {
	s := scalarString(raw)
	if s == "" {
		return def
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return n
}
