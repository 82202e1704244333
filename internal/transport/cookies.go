package transport

import (
	"net/http"
	"strings"
)

// MergeCookies applies Set-Cookie header values to a Cookie header value
// and returns the result. Existing pairs keep their position; new ones are
// appended. A cookie that is expired, empty or set to "deleted" (PHP's
// way of unsetting) removes the pair.
func MergeCookies(existing string, setCookies []string) string {
	type pair struct{ name, value string }

	var pairs []pair
	index := map[string]int{}

	for _, part := range strings.Split(existing, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			pairs[i].value = value
			continue
		}
		index[name] = len(pairs)
		pairs = append(pairs, pair{name, value})
	}

	for _, line := range setCookies {
		ck, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}

		removed := ck.Value == "" || ck.Value == "deleted" || ck.MaxAge < 0
		i, ok := index[ck.Name]
		switch {
		case removed && ok:
			pairs[i].name = ""
			delete(index, ck.Name)
		case removed:
		case ok:
			pairs[i].value = ck.Value
		default:
			index[ck.Name] = len(pairs)
			pairs = append(pairs, pair{ck.Name, ck.Value})
		}
	}

	var b strings.Builder
	for _, p := range pairs {
		if p.name == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.name + "=" + p.value)
	}
	return b.String()
}
