package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nhle/roundmail/internal/credential"
	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/tests/testutil"
)

const inboxExec = `this.set_pagetitle("Inbox");
this.set_unread_count("INBOX",1,true);
this.set_rowcount("Messages 1 to 2 of 2");
this.add_message_row(2,{"subject":"Second","fromto":"bob@example.com","date":"Today","size":"1 KB"},{"mbox":"INBOX"});
this.add_message_row(1,{"subject":"First","fromto":"alice@example.com","date":"Mon","size":"2 KB"},{"seen":1,"mbox":"INBOX"});`

type harness struct {
	t       *testing.T
	fake    *testutil.FakeRoundcube
	vault   *credential.Vault
	cfgPath string
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	f := testutil.NewFakeRoundcube(t)
	f.ListExec["INBOX"] = inboxExec

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "base_url: " + f.URL + "\n" +
		"username: " + testutil.FakeUsername + "\n" +
		"store:\n  path: " + filepath.Join(dir, "roundmail.db") + "\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &harness{
		t:       t,
		fake:    f,
		vault:   credential.New(keyring.NewArrayKeyring(nil)),
		cfgPath: cfgPath,
		dir:     dir,
	}
}

// run executes one invocation and returns stdout.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(Options{
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
		Vault:  h.vault,
	})
	cmd.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	_, err := h.run(testutil.FakePassword+"\n", "login", "--password-stdin")
	require.NoError(h.t, err)
}

func TestLoginThenListJSON(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "list", "inbox", "--output", "json")
	require.NoError(t, err)

	var snap model.MailboxSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "INBOX", snap.Mailbox)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, int64(2), snap.Messages[0].ID)

	offline, err := h.run("", "list", "--offline", "-o", "json")
	require.NoError(t, err)
	var cached model.MailboxSnapshot
	require.NoError(t, json.Unmarshal([]byte(offline), &cached))
	assert.Equal(t, snap, cached)
}

func TestListRequiresLogin(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestListOfflineNeverFetched(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "list", "sent", "--offline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sent has not been fetched")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("nope\n", "login", "--password-stdin")
	require.Error(t, err)

	out, err := h.run("", "status", "-o", "json")
	require.NoError(t, err)
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Authenticated)
}

func TestLoginRemembersPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(testutil.FakePassword+"\n", "login", "--password-stdin", "--remember")
	require.NoError(t, err)
	_, err = h.run("", "logout")
	require.NoError(t, err)
	assert.True(t, h.fake.LoggedOut())

	_, err = h.run("", "login")
	require.NoError(t, err, "remembered password is used")

	_, err = h.run("", "logout", "--forget")
	require.NoError(t, err)
	_, err = h.run("", "login")
	require.Error(t, err)
}

func TestStatusYAML(t *testing.T) {
	h := newHarness(t)
	h.login()
	_, err := h.run("", "tabs")
	require.NoError(t, err)

	out, err := h.run("", "status", "--output", "yaml")
	require.NoError(t, err)

	var report statusReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.True(t, report.Authenticated)
	assert.Equal(t, testutil.FakeUsername, report.Username)
	assert.Equal(t, h.fake.Host(), report.Server)
	require.Len(t, report.Cached, 3)
	assert.Equal(t, "Drafts", report.Cached[0].Mailbox)
	assert.Equal(t, "INBOX", report.Cached[1].Mailbox)
	assert.Equal(t, 2, report.Cached[1].Messages)
}

func TestSessionExpiredClearsStoredSession(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fake.Expire()

	_, err := h.run("", "list")
	require.Error(t, err)

	_, err = h.run("", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestSearchAddsTypedAddress(t *testing.T) {
	h := newHarness(t)
	h.fake.SearchExec = `this.ksearch_query_results([{"name":"Alice <alice@example.com>","type":"person","id":"1","source":"0"}],"al","1");`
	h.login()

	out, err := h.run("", "search", "dave@example.com", "-o", "json")
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Results, 2)
	assert.Equal(t, model.SourceManual, res.Results[0].Source)
	assert.Equal(t, "dave@example.com", res.Results[0].Name)
}

func TestShowAndDownload(t *testing.T) {
	h := newHarness(t)
	h.fake.Previews[2] = `<html><body><div id="messagebody"><div class="message-part">Hi there</div></div>
<ul id="attachment-list"><li id="attach3" class="application/pdf"><a href="./?_task=mail&_action=get&_mbox=INBOX&_uid=2&_part=3" title="report.pdf (~1 KB)">report.pdf</a></li></ul>
</body></html>`
	h.fake.Attachments["3"] = []byte("%PDF-1.4")
	h.login()

	_, err := h.run("", "list")
	require.NoError(t, err)

	out, err := h.run("", "show", "inbox", "2", "-o", "json")
	require.NoError(t, err)
	var view messageView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.NotNil(t, view.Preview.Content)
	assert.Equal(t, "Hi there", *view.Preview.Content)
	require.NotNil(t, view.Row, "listing row comes from the cache")
	assert.Equal(t, "Second", view.Row.Subject)
	require.Len(t, view.Preview.Attachments, 1)

	target := filepath.Join(h.dir, "out.pdf")
	_, err = h.run("", "download", "INBOX", "2", "3", "--out", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	_, err = h.run("", "download", "INBOX", "2", "99")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.fake.Sources[2] = "From: Bob <bob@example.com>\r\nSubject: Second\r\n\r\nbody\r\n"
	h.login()

	target := filepath.Join(h.dir, "inbox.mbox")
	out, err := h.run("", "export", "inbox", target, "-o", "json")
	require.NoError(t, err)

	var sum exportSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum.Exported)
	assert.Equal(t, 1, sum.Skipped)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "From bob@example.com "))
}

func TestTokenRefresh(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "token")
	require.NoError(t, err)
	assert.Equal(t, testutil.FakeSessionToken+"\n", out)

	out, err = h.run("", "token", "--details", "-o", "yaml")
	require.NoError(t, err)
	var cfg model.ComposeSessionConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, testutil.FakeComposeID, cfg.ComposeID)
}

func TestUnknownOutputFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "status", "-o", "xml")
	assert.Error(t, err)
}
