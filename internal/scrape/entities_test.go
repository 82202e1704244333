package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"caf&eacute;", "café"},
		{"caf&#233;", "café"},
		{"caf&#xE9;", "café"},
		{"&lt;b&gt; &quot;x&quot; &#39;y&#39;", `<b> "x" 'y'`},
		{"&#8364;5", "€5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeEntities(tt.in))
		})
	}
}

func TestEncodeEntities(t *testing.T) {
	assert.Equal(t, "a &amp; b", EncodeEntities("a & b"))
	assert.Equal(t, "&lt;p&gt;", EncodeEntities("<p>"))
	assert.Equal(t, "caf&eacute;", EncodeEntities("café"))
	assert.Equal(t, "&#8364;", EncodeEntities("€"))
	assert.Equal(t, "it&#39;s", EncodeEntities("it's"))
}

func TestEntityRoundTrip(t *testing.T) {
	inputs := []string{
		"Hello, world!",
		`Quotes "double" and 'single' & <tags>`,
		"Ærøskøbing ÿ © ½ ¿Qué?",
		"Grüße aus Köln",
		"",
	}
	for r := rune(0x80); r < 0xA0; r++ {
		inputs = append(inputs, "x"+string(r)+"y")
	}

	for _, in := range inputs {
		assert.Equal(t, in, DecodeEntities(EncodeEntities(in)), "%q", in)
	}
}

func TestEncodeEntitiesKeepsC1ControlsRaw(t *testing.T) {
	assert.Equal(t, "x\u0099y", EncodeEntities("x\u0099y"))
	assert.Equal(t, "&nbsp;&#8364;", EncodeEntities("\u00a0€"))
}
