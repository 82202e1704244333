package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoginFormAttributeOrder(t *testing.T) {
	pages := map[string]string{
		"name first":  `<form><input type="hidden" name="_token" value="abc123"></form>`,
		"value first": `<form><input value="abc123" type="hidden" name="_token"/></form>`,
		"single":      `<form><input type='hidden' value='abc123' name='_token'></form>`,
	}

	for label, page := range pages {
		t.Run(label, func(t *testing.T) {
			form := ParseLoginForm(page, LoginFieldNames)
			token, ok := form.Fields.Lookup("_token")
			require.True(t, ok)
			assert.Equal(t, "abc123", token)
		})
	}
}

func TestParseLoginFormAllowList(t *testing.T) {
	page := `
<form name="login" method="post" action="./?_task=login">
<input type="hidden" name="_token" value="tok">
<input type="hidden" name="_task" value="login">
<input type="hidden" name="_action" value="login">
<input type="hidden" name="_timezone" id="rcmlogintz">
<input type="hidden" name="_url" value="_task=mail&amp;_mbox=INBOX">
<input name="_user" id="rcmloginuser" data-name="ignored" autocomplete="username">
<input name="_pass" type="password">
</form>
<img src="skins/elastic/images/logo.svg?s=1" id="logo" alt="Logo">`

	form := ParseLoginForm(page, LoginFieldNames)

	assert.Equal(t, "tok", form.Fields["_token"])
	assert.Equal(t, "login", form.Fields["_task"])
	assert.Equal(t, "login", form.Fields["_action"])
	assert.Equal(t, "_task=mail&_mbox=INBOX", form.Fields["_url"])

	tz, ok := form.Fields.Lookup("_timezone")
	assert.True(t, ok, "input without value is still present")
	assert.Empty(t, tz)

	_, ok = form.Fields.Lookup("_user")
	assert.False(t, ok)
	_, ok = form.Fields.Lookup("_pass")
	assert.False(t, ok)

	assert.Equal(t, "skins/elastic/images/logo.svg?s=1", form.LogoURL)
}

func TestParseLoginFormNoToken(t *testing.T) {
	form := ParseLoginForm(`<html><body>maintenance</body></html>`, LoginFieldNames)
	_, ok := form.Fields.Lookup("_token")
	assert.False(t, ok)
	assert.Empty(t, form.LogoURL)
}

func TestParseAllInputs(t *testing.T) {
	page := `<input name="a" value="1"><input value="x"><input id="b" name="b"><INPUT NAME="c" VALUE="&lt;3">`

	inputs := ParseAllInputs(page)
	require.Len(t, inputs, 3)
	assert.Equal(t, "a", inputs[0].Name)
	assert.Equal(t, "1", inputs[0].Value)
	assert.Equal(t, "b", inputs[1].Name)
	assert.Empty(t, inputs[1].Value)
	assert.Equal(t, "c", inputs[2].Name)
	assert.Equal(t, "<3", inputs[2].Value)
}
