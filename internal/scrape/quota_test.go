package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuota(t *testing.T) {
	page := `<script>rcmail.set_quota({"used":10,"total":100,"percent":10,"free":90,"type":"text","folder":"ROOT","title":"10 KB of 100 KB"});</script>`

	q := ParseQuota(page)
	require.NotNil(t, q)
	assert.Equal(t, int64(10), q.Used)
	assert.Equal(t, int64(100), q.Total)
	assert.Equal(t, int64(90), q.Free)
	assert.InDelta(t, 10.0, q.Percent, 0.001)
	assert.Equal(t, "text", q.Type)
	assert.Equal(t, "ROOT", q.Folder)
	assert.Equal(t, "10 KB of 100 KB", q.Title)
}

func TestParseQuotaExecForm(t *testing.T) {
	q := ParseQuota(`this.set_quota({"used":5,"total":50,"percent":10,"free":45,"type":"image","folder":"INBOX","title":"x"});`)
	require.NotNil(t, q)
	assert.Equal(t, int64(5), q.Used)
}

func TestParseQuotaAbsentOrIncomplete(t *testing.T) {
	assert.Nil(t, ParseQuota(`rcmail.set_env({"task":"mail"});`))
	assert.Nil(t, ParseQuota(`rcmail.set_quota({"used":10,"total":100});`))
	assert.Nil(t, ParseQuota(`rcmail.set_quota({used:10});`))
}
