package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchResult(t *testing.T) {
	exec := `this.ksearch_query_results([` +
		`{"name":"Alice &lt;alice@example.com&gt;","type":"","id":"a1","source":"0","display":"Alice"},` +
		`{"name":"Team [ops]","type":"group","id":12,"source":"0"},` +
		`42,` +
		`{"type":"person","id":"p9"}` +
		`],"ali","1697040000");`

	res := ParseSearchResult(exec, nil)
	require.NotNil(t, res)
	assert.Equal(t, "ali", res.Query)
	assert.Equal(t, "1697040000", res.Timestamp)
	require.Len(t, res.Results, 3)

	assert.Equal(t, "a1", res.Results[0].ID)
	assert.Equal(t, "Alice <alice@example.com>", res.Results[0].Name)
	assert.Equal(t, "Alice", res.Results[0].Label())

	assert.Equal(t, "12", res.Results[1].ID)
	assert.Equal(t, "Team [ops]", res.Results[1].Name)
	assert.Equal(t, "group", res.Results[1].Type)

	assert.Equal(t, "p9", res.Results[2].ID)
	assert.Empty(t, res.Results[2].Name)
	assert.Equal(t, "p9", res.Results[2].Label())
}

func TestParseSearchResultNumericRequestID(t *testing.T) {
	res := ParseSearchResult(`this.ksearch_query_results([{"name":"x"}],"x",7);`, nil)
	require.NotNil(t, res)
	assert.Equal(t, "7", res.Timestamp)
}

func TestParseSearchResultEmptyVersusAbsent(t *testing.T) {
	res := ParseSearchResult(`this.ksearch_query_results([],"nobody","1");`, nil)
	require.NotNil(t, res)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)

	assert.Nil(t, ParseSearchResult(`this.display_message("nothing");`, nil))
	assert.Nil(t, ParseSearchResult(`this.ksearch_query_results([{bad}],"q","1");`, nil))
}
