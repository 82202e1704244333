package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const composePage = `<script type="text/javascript">
var rcmail = new rcube_webmail();
rcmail.set_env({"task":"mail","action":"compose","request_token":"tok1","compose_id":"5f1c","max_filesize":5242880,` +
	`"identities":{"1":{"name":"Me","email":"me@example.com","bcc":""}},"signatures":[],"skin":"elastic","signature_note":"{ braces } in a string"});
rcmail.gui_container("toolbar","messagetoolbar");
rcmail.set_env({"request_token":"tok2","draft_autosave":"120"});
</script>`

func TestParseComposeSession(t *testing.T) {
	cfg, err := ParseComposeSession(composePage)
	require.NoError(t, err)

	assert.Equal(t, "mail", cfg.Task)
	assert.Equal(t, "compose", cfg.Action)
	assert.Equal(t, "tok2", cfg.RequestToken, "later set_env wins")
	assert.Equal(t, "5f1c", cfg.ComposeID)
	assert.Equal(t, int64(5242880), cfg.MaxFilesize)
	assert.Equal(t, 120, cfg.DraftAutosave)

	require.Contains(t, cfg.Identities, "1")
	assert.Equal(t, "me@example.com", cfg.Identities["1"].Email)
	assert.Empty(t, cfg.Signatures)

	assert.Equal(t, DefaultLocale, cfg.Locale)
	assert.Equal(t, "INBOX", cfg.Mailbox)
	assert.Equal(t, "Verdana", cfg.DefaultFont)
	assert.Equal(t, "Drafts", cfg.DraftsMailbox)

	assert.Contains(t, cfg.Extra, "skin")
	assert.JSONEq(t, `"{ braces } in a string"`, string(cfg.Extra["signature_note"]))
}

func TestParseComposeSessionDefaults(t *testing.T) {
	cfg, err := ParseComposeSession(`rcmail.set_env({"task":"mail","action":"compose","request_token":"t"});`)
	require.NoError(t, err)

	assert.Equal(t, "en_US", cfg.Locale)
	assert.Equal(t, 300, cfg.DraftAutosave)
	assert.Nil(t, cfg.Extra)
}

func TestParseComposeSessionIncomplete(t *testing.T) {
	pages := []string{
		``,
		`rcmail.set_env({"task":"mail","action":"compose"});`,
		`rcmail.set_env({"task":"mail","request_token":"t"});`,
		`rcmail.set_env({"task": broken});`,
	}

	for _, page := range pages {
		cfg, err := ParseComposeSession(page)
		assert.ErrorIs(t, err, ErrIncompleteCompose)
		assert.Nil(t, cfg)
	}
}

func TestRequestToken(t *testing.T) {
	token, ok := RequestToken(`<script>rcmail.set_env({"task":"mail","request_token":"landing-tok"});</script>`)
	assert.True(t, ok)
	assert.Equal(t, "landing-tok", token)

	_, ok = RequestToken(`<html>no env here</html>`)
	assert.False(t, ok)
}
