package scrape

import (
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/nhle/roundmail/internal/model"
)

var (
	bodyOpenPattern = regexp.MustCompile(`(?i)<([a-z][a-z0-9]*)\b[^>]*\bid\s*=\s*["']messagebody["'][^>]*>`)
	elementPattern  = regexp.MustCompile(`(?i)<(/?)([a-z][a-z0-9]*)\b[^>]*>`)

	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleBlockPattern  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	lineBreakPattern   = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|li)\s*>`)
	blankRunPattern    = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// ParseMessageBody returns the text inside the element whose id is
// "messagebody". ok is false when the page has no such element; an empty
// element yields ("", true).
func ParseMessageBody(page string) (string, bool) {
	loc := bodyOpenPattern.FindStringSubmatchIndex(page)
	if loc == nil {
		return "", false
	}
	tag := page[loc[2]:loc[3]]

	inner := scriptBlockPattern.ReplaceAllString(page[loc[1]:], "")
	inner = styleBlockPattern.ReplaceAllString(inner, "")
	if end := matchingClose(inner, tag); end >= 0 {
		inner = inner[:end]
	}

	return markupToText(inner), true
}

// matchingClose returns the offset in s of the close tag that balances an
// already consumed open tag named tag, or -1.
func matchingClose(s, tag string) int {
	depth := 1
	for _, m := range elementPattern.FindAllStringSubmatchIndex(s, -1) {
		if !strings.EqualFold(s[m[4]:m[5]], tag) {
			continue
		}
		if m[3] > m[2] {
			depth--
			if depth == 0 {
				return m[0]
			}
			continue
		}
		if !strings.HasSuffix(s[m[0]:m[1]], "/>") {
			depth++
		}
	}
	return -1
}

func markupToText(markup string) string {
	s := lineBreakPattern.ReplaceAllString(markup, "\n")
	s = anyTagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	return DecodeEntities(strings.TrimSpace(s))
}

var (
	attachItemPattern = regexp.MustCompile(`(?is)<li\b([^>]*\bid\s*=\s*["']attach([^"']*)["'][^>]*)>(.*?)</li\s*>`)
	classAttrPattern  = regexp.MustCompile(`(?i)(?:^|[\s"'])class\s*=\s*["']([^"']*)["']`)
	hrefAttrPattern   = regexp.MustCompile(`(?i)(?:^|[\s"'])href\s*=\s*["']([^"']*)["']`)
	anchorPattern     = regexp.MustCompile(`(?is)<a\b([^>]*)>(.*?)</a\s*>`)
	nameSpanPattern   = regexp.MustCompile(`(?is)<span\b[^>]*\bclass\s*=\s*["'][^"']*\battachment-name\b[^"']*["'][^>]*>(.*?)</span\s*>`)
	sizeSpanPattern   = regexp.MustCompile(`(?is)<span\b[^>]*\bclass\s*=\s*["'][^"']*\battachment-size\b[^"']*["'][^>]*>(.*?)</span\s*>`)
	titleSizePattern  = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

var majorTypes = map[string]bool{
	"application": true, "audio": true, "font": true, "image": true,
	"message": true, "model": true, "multipart": true, "text": true,
	"video": true,
}

// ParseAttachments lists the attachments of a preview page. Entries with
// no recoverable name or link are dropped.
func ParseAttachments(page string) []model.AttachmentInfo {
	attachments := []model.AttachmentInfo{}

	for _, m := range attachItemPattern.FindAllStringSubmatch(page, -1) {
		liAttrs, id, body := m[1], m[2], m[3]

		var linkAttrs, linkText string
		if a := anchorPattern.FindStringSubmatch(body); a != nil {
			linkAttrs, linkText = a[1], a[2]
		}

		name := attachmentName(body, linkAttrs, linkText)
		url := attachmentURL(linkAttrs)
		if name == "" || url == "" {
			continue
		}

		var size string
		if s := sizeSpanPattern.FindStringSubmatch(body); s != nil {
			size = strings.Trim(strings.TrimSpace(textOf(s[1])), "()")
			size = strings.TrimSpace(size)
		}

		var class string
		if c := classAttrPattern.FindStringSubmatch(liAttrs); c != nil {
			class = c[1]
		}

		attachments = append(attachments, model.AttachmentInfo{
			ID:   id,
			Name: name,
			Size: size,
			Type: attachmentType(class, name),
			URL:  url,
		})
	}

	return attachments
}

// ParsePreview combines the body and attachment list of a preview page.
func ParsePreview(page string) model.MessagePreview {
	preview := model.MessagePreview{Attachments: ParseAttachments(page)}
	if body, ok := ParseMessageBody(page); ok {
		preview.Content = &body
	}
	return preview
}

func attachmentName(body, linkAttrs, linkText string) string {
	if m := nameSpanPattern.FindStringSubmatch(body); m != nil {
		if name := strings.TrimSpace(textOf(m[1])); name != "" {
			return name
		}
	}

	if m := titleAttrPattern.FindStringSubmatch(linkAttrs); m != nil {
		title := m[1]
		if title == "" {
			title = m[2]
		}
		title = titleSizePattern.ReplaceAllString(DecodeEntities(title), "")
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}

	return strings.TrimSpace(textOf(sizeSpanPattern.ReplaceAllString(linkText, "")))
}

// attachmentURL turns the link href into a server-relative URL.
func attachmentURL(linkAttrs string) string {
	m := hrefAttrPattern.FindStringSubmatch(linkAttrs)
	if m == nil {
		return ""
	}
	href := strings.TrimSpace(DecodeEntities(m[1]))

	switch {
	case href == "", strings.HasPrefix(href, "#"),
		strings.HasPrefix(strings.ToLower(href), "javascript:"):
		return ""
	case strings.HasPrefix(href, "./"):
		return href[1:]
	case strings.HasPrefix(href, "?"):
		return "/" + href
	case strings.HasPrefix(href, "//"), strings.Contains(href, "://"):
		rest := href[strings.Index(href, "//")+2:]
		if i := strings.IndexAny(rest, "/?"); i >= 0 {
			rest = rest[i:]
			if rest[0] == '?' {
				rest = "/" + rest
			}
			return rest
		}
		return "/"
	case strings.HasPrefix(href, "/"):
		return href
	default:
		return "/" + href
	}
}

// attachmentType reads the MIME type from the list item's class tokens
// ("application pdf" or "image/png"), falling back to the file extension.
func attachmentType(class, name string) string {
	tokens := strings.Fields(strings.ToLower(class))
	for _, t := range tokens {
		if strings.Contains(t, "/") {
			return t
		}
	}
	if len(tokens) >= 2 && majorTypes[tokens[0]] {
		return tokens[0] + "/" + tokens[1]
	}

	if ext := path.Ext(name); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			if i := strings.IndexByte(t, ';'); i >= 0 {
				t = t[:i]
			}
			return t
		}
	}
	return "application/octet-stream"
}

func textOf(markup string) string {
	return DecodeEntities(anyTagPattern.ReplaceAllString(markup, ""))
}
