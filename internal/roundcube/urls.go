package roundcube

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// previewCaps is the browser capability list the preview action expects.
const previewCaps = "pdf%3D1%2Cflash%3D0%2Ctiff%3D0%2Cwebp%3D1%2Cpgpmime%3D0"

func (c *Client) loginPageURL() string {
	return c.baseURL + "/?_task=login"
}

func (c *Client) loginPostURL() string {
	return c.baseURL + "/?_task=login&_action=login"
}

func (c *Client) listURL(mailbox string) string {
	ms := strconv.FormatInt(c.now().UnixMilli(), 10)
	return fmt.Sprintf("%s/?_task=mail&_action=list&_mbox=%s&_remote=1&_unlock=loading%s&_=%s",
		c.baseURL, url.QueryEscape(mailbox), ms, ms)
}

func (c *Client) previewURL(mailbox string, uid int64) string {
	return fmt.Sprintf("%s/?_task=mail&_caps=%s&_uid=%d&_mbox=%s&_framed=1&_action=preview",
		c.baseURL, previewCaps, uid, url.QueryEscape(mailbox))
}

func (c *Client) composeURL() string {
	return c.baseURL + "/?_task=mail&_action=compose"
}

func (c *Client) autocompleteURL() string {
	return c.baseURL + "/?_task=mail&_action=autocomplete"
}

func (c *Client) logoutURL(token string) string {
	return c.baseURL + "/?_task=logout&_token=" + url.QueryEscape(token)
}

func (c *Client) sourceURL(mailbox string, uid int64) string {
	return fmt.Sprintf("%s/?_task=mail&_uid=%d&_mbox=%s&_action=viewsource",
		c.baseURL, uid, url.QueryEscape(mailbox))
}

// downloadURL turns a server-relative attachment URL into an absolute
// download link.
func (c *Client) downloadURL(rel string) string {
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	sep := "&"
	if !strings.Contains(rel, "?") {
		sep = "?"
	}
	return c.baseURL + rel + sep + "_download=1"
}

// resolveLogo makes a logo src from the login page absolute.
func (c *Client) resolveLogo(src string) string {
	if src == "" {
		return ""
	}
	resolved, err := resolve(c.baseURL+"/", src)
	if err != nil {
		return ""
	}
	return resolved
}
