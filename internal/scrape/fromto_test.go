package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFromTo(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "alice@example.com", "alice@example.com"},
		{
			"title wins",
			`<span class="adr"><span title="alice@example.com" class="rcmcontactaddress">alice</span></span>`,
			"alice@example.com",
		},
		{
			"single quoted title",
			`<span title='bob@example.com'>bob</span>`,
			"bob@example.com",
		},
		{"inner text", `<span class="adr"><span class="name">carol</span></span>`, "carol"},
		{"entity in text", `<span>o&#39;neil</span>`, "o'neil"},
		{"stripped fallback", `<span></span> dave`, "dave"},
		{"empty title skipped", `<span title="">erin</span>`, "erin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFromTo(tt.in))
		})
	}
}
