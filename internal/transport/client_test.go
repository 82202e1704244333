package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/roundmail/internal/model"
)

func TestSendSetsHeadersAndForm(t *testing.T) {
	var got *http.Request
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Options{})
	resp, err := c.Send(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/?_task=login",
		Header: http.Header{"X-Roundcube-Request": {"tok"}},
		Cookie: "roundcube_sessid=abc",
		Form:   url.Values{"_user": {"me"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, model.DefaultUserAgent, got.Header.Get("User-Agent"))
	assert.Equal(t, "tok", got.Header.Get("X-Roundcube-Request"))
	assert.Equal(t, "roundcube_sessid=abc", got.Header.Get("Cookie"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "_user=me", gotBody)
}

func TestSendDoesNotFollowRedirects(t *testing.T) {
	followed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/landing" {
			followed = true
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "roundcube_sessauth", Value: "s1"})
		http.Redirect(w, r, "/landing", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := New(Options{}).Send(context.Background(), &Request{URL: srv.URL + "/"})
	require.NoError(t, err)

	assert.False(t, followed)
	assert.True(t, resp.IsRedirect())
	assert.Equal(t, "/landing", resp.Location())
	require.Len(t, resp.SetCookies, 1)
	assert.Contains(t, resp.SetCookies[0], "roundcube_sessauth=s1")
}

func TestSendTranscodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xE9})
	}))
	defer srv.Close()

	c := New(Options{})

	resp, err := c.Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "café", resp.Text())

	raw, err := c.Send(context.Background(), &Request{URL: srv.URL, Raw: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xE9}, raw.Body)
}

func TestSendKeepsUTF8WithoutDeclaredCharset(t *testing.T) {
	pad := strings.Repeat("a", 1100)
	body := `{"pad":"` + pad + `","exec":"Café"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
		default:
			w.Header().Set("Content-Type", "text/html")
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(Options{})
	for _, path := range []string{"/json", "/html"} {
		resp, err := c.Send(context.Background(), &Request{URL: srv.URL + path})
		require.NoError(t, err)
		assert.Equal(t, body, resp.Text(), path)
	}
}

func TestSendPrescansUndeclaredLegacyCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(append([]byte(`<meta charset="iso-8859-1">caf`), 0xE9))
	}))
	defer srv.Close()

	resp, err := New(Options{}).Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, `<meta charset="iso-8859-1">café`, resp.Text())
}

func TestSendReturnsErrorStatusAsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := New(Options{}).Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Options{Timeout: time.Second}).Send(context.Background(), &Request{URL: addr})
	assert.Error(t, err)
}

func TestSendCancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(Options{RatePerSec: 0.001, Burst: 1})
	_, err := c.Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Send(ctx, &Request{URL: srv.URL})
	assert.Error(t, err)
}
