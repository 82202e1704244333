// Package scrape recovers typed records from the HTML pages and inlined
// JavaScript that Roundcube emits for its own browser client.
//
// Every extractor targets one fixed markup or script shape. Read paths
// degrade to empty results when a pattern is absent; only fields a
// follow-up request cannot do without are reported as errors.
package scrape

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// balancedAt returns the bracket-delimited literal that opens at s[start]
// ('{' or '['), skipping over brackets inside quoted strings, together
// with the index just past it.
func balancedAt(s string, start int) (string, int, bool) {
	if start >= len(s) || (s[start] != '{' && s[start] != '[') {
		return "", start, false
	}

	depth := 0
	var quote byte
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], i + 1, true
			}
		}
	}

	return "", start, false
}

// nextArg skips whitespace, one comma and more whitespace, returning the
// index of the next argument or false if no comma separates them.
func nextArg(s string, i int) (int, bool) {
	i = skipSpace(s, i)
	if i >= len(s) || s[i] != ',' {
		return i, false
	}
	return skipSpace(s, i+1), true
}

func skipSpace(s string, i int) int {
	for i < len(s) && strings.IndexByte(" \t\r\n", s[i]) >= 0 {
		i++
	}
	return i
}

// unquote decodes a double-quoted JavaScript string literal as emitted
// by PHP's json_encode. Anything else is returned trimmed of its quotes.
func unquote(lit string) string {
	var out string
	if err := json.Unmarshal([]byte(lit), &out); err == nil {
		return out
	}
	return strings.Trim(lit, `"'`)
}

func discardIfNil(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
