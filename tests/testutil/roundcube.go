package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Fake server defaults.
const (
	FakeLoginToken   = "abc123"
	FakeSessionToken = "sess-tok"
	FakeUsername     = "me@example.com"
	FakePassword     = "secret"
	FakeComposeID    = "c0ffee"
)

// FakeRoundcube is an httptest server that answers the subset of the
// Roundcube protocol the client speaks. Tests set the exported fields
// before issuing requests.
type FakeRoundcube struct {
	*httptest.Server

	mu sync.Mutex

	// RedirectLogin makes a successful login answer 302 instead of 200.
	RedirectLogin bool

	// ListExec maps a mailbox to the exec string of its list response.
	ListExec map[string]string

	// Previews maps a uid to its preview page.
	Previews map[int64]string

	// Sources maps a uid to its raw message source.
	Sources map[int64]string

	// SearchExec is the exec string of every autocomplete response.
	SearchExec string

	// Attachments maps a _part value to the downloaded bytes.
	Attachments map[string][]byte

	loginBodies []string
	searchForms []url.Values
	expired     bool
	loggedOut   bool
	sessionAuth string
}

// NewFakeRoundcube starts a fake server that is closed with the test.
func NewFakeRoundcube(t *testing.T) *FakeRoundcube {
	t.Helper()

	f := &FakeRoundcube{
		ListExec:    map[string]string{},
		Previews:    map[int64]string{},
		Sources:     map[int64]string{},
		Attachments: map[string][]byte{},
		sessionAuth: "auth1",
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Host returns the host:port of the server.
func (f *FakeRoundcube) Host() string {
	return strings.TrimPrefix(f.URL, "http://")
}

// AuthCookie is the cookie value a logged-in client carries.
func (f *FakeRoundcube) AuthCookie() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return "roundcube_sessid=pre; roundcube_sessauth=" + f.sessionAuth
}

// Expire makes every following authenticated request report an expired
// session.
func (f *FakeRoundcube) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = true
}

// LoginBodies returns the raw bodies of every login POST received.
func (f *FakeRoundcube) LoginBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loginBodies...)
}

// SearchForms returns the forms of every autocomplete POST received.
func (f *FakeRoundcube) SearchForms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.searchForms...)
}

// LoggedOut reports whether the logout task was requested.
func (f *FakeRoundcube) LoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

// LandingPage is the page served after a successful login.
func LandingPage() string {
	return `<!DOCTYPE html><html><body>
<span class="header-title username">` + FakeUsername + `</span>
<script>
rcmail.set_env({"task":"mail","action":"","request_token":"` + FakeSessionToken + `"});
rcmail.set_quota({"used":10,"total":100,"percent":10,"free":90,"type":"text","folder":"ROOT","title":"10 KB of 100 KB"});
</script></body></html>`
}

// LoginPage is the login form the server serves.
func LoginPage() string {
	return `<!DOCTYPE html><html><body>
<img src="skins/elastic/images/logo.svg?s=1" id="logo" alt="Logo">
<form name="login" method="post" action="./?_task=login">
<input type="hidden" name="_token" value="` + FakeLoginToken + `">
<input type="hidden" name="_task" value="login">
<input type="hidden" name="_action" value="login">
<input type="hidden" name="_timezone" id="rcmlogintz" value="_default_">
<input type="hidden" name="_url" id="rcmloginurl" value="">
<input name="_user" id="rcmloginuser" required size="40" autocomplete="off" type="text">
<input name="_pass" id="rcmloginpwd" required size="40" autocomplete="off" type="password">
</form></body></html>`
}

// ComposePage is the compose screen for FakeComposeID.
func ComposePage() string {
	return `<html><body><script>
rcmail.set_env({"task":"mail","action":"compose","request_token":"` + FakeSessionToken + `","compose_id":"` + FakeComposeID + `","max_filesize":5242880,"identities":{"1":{"name":"Me","email":"` + FakeUsername + `"}}});
</script></body></html>`
}

func (f *FakeRoundcube) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	task, action := q.Get("_task"), q.Get("_action")

	switch {
	case task == "login" && r.Method == http.MethodPost:
		f.serveLogin(w, r)
		return
	case task == "login":
		http.SetCookie(w, &http.Cookie{Name: "roundcube_sessid", Value: "pre"})
		writeHTML(w, LoginPage())
		return
	}

	if !f.authorized(r) {
		if action == "list" || action == "autocomplete" {
			writeJSON(w, map[string]any{
				"action": action,
				"exec":   `this.display_message("Your session is invalid or expired.","error",0);`,
			})
			return
		}
		http.Redirect(w, r, "./?_task=login", http.StatusFound)
		return
	}

	switch {
	case task == "logout":
		f.mu.Lock()
		f.loggedOut = true
		f.mu.Unlock()
		http.Redirect(w, r, "./?_task=login", http.StatusFound)
	case action == "list":
		f.serveList(w, r)
	case action == "preview":
		uid, _ := strconv.ParseInt(q.Get("_uid"), 10, 64)
		page, ok := f.Previews[uid]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeHTML(w, page)
	case action == "compose" && q.Get("_id") == "":
		http.Redirect(w, r, "./?_task=mail&_action=compose&_id="+FakeComposeID, http.StatusFound)
	case action == "compose":
		writeHTML(w, ComposePage())
	case action == "autocomplete":
		f.serveSearch(w, r)
	case action == "get" && q.Get("_download") == "1":
		data, ok := f.Attachments[q.Get("_part")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	case action == "viewsource":
		uid, _ := strconv.ParseInt(q.Get("_uid"), 10, 64)
		src, ok := f.Sources[uid]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, src)
	case task == "mail":
		writeHTML(w, LandingPage())
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeRoundcube) serveLogin(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.loginBodies = append(f.loginBodies, string(raw))
	redirect := f.RedirectLogin
	auth := f.sessionAuth
	f.mu.Unlock()

	form, _ := url.ParseQuery(string(raw))
	cookie, _ := r.Cookie("roundcube_sessid")
	if form.Get("_token") != FakeLoginToken || cookie == nil ||
		form.Get("_user") != FakeUsername || form.Get("_pass") != FakePassword {
		w.WriteHeader(http.StatusUnauthorized)
		writeHTML(w, LoginPage())
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "roundcube_sessauth", Value: auth})
	if redirect {
		http.Redirect(w, r, "./?_task=mail&_mbox=INBOX", http.StatusFound)
		return
	}
	writeHTML(w, LandingPage())
}

func (f *FakeRoundcube) serveList(w http.ResponseWriter, r *http.Request) {
	mailbox := r.URL.Query().Get("_mbox")

	f.mu.Lock()
	exec := f.ListExec[mailbox]
	f.mu.Unlock()

	writeJSON(w, map[string]any{
		"action": "list",
		"unlock": r.URL.Query().Get("_unlock"),
		"env": map[string]any{
			"mailbox":      mailbox,
			"messagecount": strings.Count(exec, "add_message_row("),
			"pagecount":    1,
			"current_page": 1,
			"pagesize":     "50",
		},
		"exec": exec,
	})
}

func (f *FakeRoundcube) serveSearch(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Roundcube-Request") != FakeSessionToken {
		http.Error(w, "Request check failed", http.StatusForbidden)
		return
	}
	_ = r.ParseForm()

	f.mu.Lock()
	f.searchForms = append(f.searchForms, r.PostForm)
	exec := f.SearchExec
	f.mu.Unlock()

	writeJSON(w, map[string]any{"action": "autocomplete", "exec": exec})
}

func (f *FakeRoundcube) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.expired {
		return false
	}
	c, err := r.Cookie("roundcube_sessauth")
	return err == nil && c.Value == f.sessionAuth
}

func writeHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, page)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding: %v", err), http.StatusInternalServerError)
	}
}
