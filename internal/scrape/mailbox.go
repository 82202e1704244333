package scrape

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/nhle/roundmail/internal/model"
)

// jsString matches one double-quoted JavaScript string literal.
const jsString = `"(?:[^"\\]|\\.)*"`

var (
	pageTitlePattern   = regexp.MustCompile(`(?:this|rcmail)\.set_pagetitle\(\s*(` + jsString + `)`)
	unreadCountPattern = regexp.MustCompile(`(?:this|rcmail)\.set_unread_count\(\s*(` + jsString + `)\s*,\s*(\d+)`)
	rowCountPattern    = regexp.MustCompile(`(?:this|rcmail)\.set_rowcount\(\s*(` + jsString + `)`)
	colTypesPattern    = regexp.MustCompile(`(?:this|rcmail)\.set_message_coltypes\(\s*(\[[^\]]*\])`)

	// messageRowPattern stops right before the first object argument;
	// the objects themselves are cut out with balancedAt.
	messageRowPattern = regexp.MustCompile(`(?:this|rcmail)\.add_message_row\(\s*(\d+|` + jsString + `)\s*,\s*`)
)

// Session expiry shows up inside otherwise successful responses.
var sessionExpiredMarkers = []string{
	`this.display_message("Your session is invalid or expired."`,
	`this.session_error(`,
	`rcmail.session_error(`,
}

// SessionExpired reports whether an exec string carries the server's
// "session invalid or expired" signal.
func SessionExpired(exec string) bool {
	for _, marker := range sessionExpiredMarkers {
		if strings.Contains(exec, marker) {
			return true
		}
	}
	return false
}

// ParseMailbox builds a snapshot from the exec string of a list response.
// Statements are matched independently of their order; message rows keep
// the order they appear in, which is the server's sort order. A row whose
// objects fail to decode is logged and skipped. Text with no recognizable
// statement yields an empty snapshot.
func ParseMailbox(exec string, logger *slog.Logger) model.MailboxSnapshot {
	logger = discardIfNil(logger)

	snap := model.MailboxSnapshot{
		ColumnTypes: []string{},
		Messages:    []model.MessageRow{},
	}

	if m := pageTitlePattern.FindStringSubmatch(exec); m != nil {
		snap.PageTitle = DecodeEntities(unquote(m[1]))
	}

	if m := unreadCountPattern.FindStringSubmatch(exec); m != nil {
		snap.Mailbox = unquote(m[1])
		snap.UnreadCount, _ = strconv.Atoi(m[2])
	}

	if m := rowCountPattern.FindStringSubmatch(exec); m != nil {
		snap.RowCount = DecodeEntities(unquote(m[1]))
	}

	if m := colTypesPattern.FindStringSubmatch(exec); m != nil {
		var cols []string
		if err := json.Unmarshal([]byte(m[1]), &cols); err == nil {
			snap.ColumnTypes = cols
		} else {
			logger.Warn("skipping undecodable column types", "error", err)
		}
	}

	snap.Quota = ParseQuota(exec)

	for _, loc := range messageRowPattern.FindAllStringSubmatchIndex(exec, -1) {
		rawUID := exec[loc[2]:loc[3]]
		row, err := parseMessageRow(exec, rawUID, loc[1])
		if err != nil {
			logger.Warn("skipping malformed message row",
				"uid", rawUID, "error", err)
			continue
		}
		snap.Messages = append(snap.Messages, row)
	}

	if snap.Mailbox == "" && len(snap.Messages) > 0 {
		snap.Mailbox = snap.Messages[0].Mbox
	}

	return snap
}

// rowColumns is the first add_message_row argument.
type rowColumns struct {
	Subject string `json:"subject"`
	FromTo  string `json:"fromto"`
	From    string `json:"from"`
	To      string `json:"to"`
	Date    string `json:"date"`
	Size    string `json:"size"`
}

// parseMessageRow decodes the two objects that follow the uid of one
// add_message_row call starting at offset start.
func parseMessageRow(exec, rawUID string, start int) (model.MessageRow, error) {
	uid, err := parseUID(rawUID)
	if err != nil {
		return model.MessageRow{}, err
	}

	colsLit, next, ok := balancedAt(exec, start)
	if !ok {
		return model.MessageRow{}, fmt.Errorf("row %d: columns object not found", uid)
	}
	next, ok = nextArg(exec, next)
	if !ok {
		return model.MessageRow{}, fmt.Errorf("row %d: flags argument missing", uid)
	}
	flagsLit, _, ok := balancedAt(exec, next)
	if !ok {
		return model.MessageRow{}, fmt.Errorf("row %d: flags object not found", uid)
	}

	var cols rowColumns
	if err := json.Unmarshal([]byte(colsLit), &cols); err != nil {
		return model.MessageRow{}, fmt.Errorf("row %d: decoding columns: %w", uid, err)
	}

	var flags map[string]json.RawMessage
	if err := json.Unmarshal([]byte(flagsLit), &flags); err != nil {
		return model.MessageRow{}, fmt.Errorf("row %d: decoding flags: %w", uid, err)
	}

	fromto := firstNonEmpty(cols.FromTo, cols.From, cols.To)

	return model.MessageRow{
		ID:      uid,
		Subject: DecodeEntities(cols.Subject),
		FromTo:  NormalizeFromTo(strings.ToLower(fromto)),
		Date:    DecodeEntities(cols.Date),
		Size:    DecodeEntities(cols.Size),
		Seen:    flagInt(flags["seen"]),
		Flagged: flagInt(flags["flagged"]) != 0,
		CType:   flagString(flags["ctype"]),
		Mbox:    flagString(flags["mbox"]),
	}, nil
}

// parseUID accepts a bare number or a quoted id such as "123-INBOX" as
// used in multi-folder listings.
func parseUID(raw string) (int64, error) {
	s := raw
	if strings.HasPrefix(s, `"`) {
		s = unquote(s)
		end := 0
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		s = s[:end]
	}
	uid, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid uid %s: %w", raw, err)
	}
	return uid, nil
}

// flagInt reads a flag that the server writes as 1, true or "1".
func flagInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n != 0 {
			return 1
		}
		return 0
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil && b {
		return 1
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" && s != "0" {
		return 1
	}
	return 0
}

func flagString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
