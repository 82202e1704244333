package scrape

import (
	"regexp"
	"strings"
)

var (
	titleAttrPattern = regexp.MustCompile(`(?i)(?:^|[\s"'])title\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	textNodePattern  = regexp.MustCompile(`>([^<>]+)<`)
	anyTagPattern    = regexp.MustCompile(`<[^>]*>`)
)

// NormalizeFromTo reduces the HTML of a from/to column to the address or
// name it shows. Callers lower-case the fragment first.
//
// Themes disagree on the markup, so three sources are tried in turn: the
// title attribute (where the full address lives when the display text is
// truncated), the first non-blank text node, and finally the fragment
// with every tag removed.
func NormalizeFromTo(fragment string) string {
	if !strings.ContainsAny(fragment, "<>") {
		return fragment
	}

	if m := titleAttrPattern.FindStringSubmatch(fragment); m != nil {
		title := m[1]
		if title == "" {
			title = m[2]
		}
		if title = strings.TrimSpace(DecodeEntities(title)); title != "" {
			return title
		}
	}

	for _, m := range textNodePattern.FindAllStringSubmatch(fragment, -1) {
		if text := strings.TrimSpace(DecodeEntities(m[1])); text != "" {
			return text
		}
	}

	return strings.TrimSpace(DecodeEntities(anyTagPattern.ReplaceAllString(fragment, "")))
}
