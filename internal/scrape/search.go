package scrape

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/nhle/roundmail/internal/model"
)

// searchResultsPattern captures the result array lazily, up to the quoted
// query and the request id that follow it.
var searchResultsPattern = regexp.MustCompile(
	`(?s)ksearch_query_results\(\s*(\[.*?\])\s*,\s*(` + jsString + `)\s*(?:,\s*(` + jsString + `|\d+))?\s*\)`)

// ParseSearchResult decodes the autocomplete call in an exec string. It
// returns nil when the call is absent or its array is not valid JSON;
// elements that are not objects or have no name are skipped.
func ParseSearchResult(exec string, logger *slog.Logger) *model.SearchResult {
	logger = discardIfNil(logger)

	m := searchResultsPattern.FindStringSubmatch(exec)
	if m == nil {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(m[1]), &elems); err != nil {
		logger.Warn("undecodable autocomplete results", "error", err)
		return nil
	}

	result := &model.SearchResult{
		Query:     unquote(m[2]),
		Timestamp: unquote(m[3]),
		Results:   []model.SearchResultItem{},
	}

	for i, raw := range elems {
		item, ok := decodeSearchItem(raw)
		if !ok {
			logger.Warn("skipping autocomplete entry", "index", i)
			continue
		}
		result.Results = append(result.Results, item)
	}

	return result
}

func decodeSearchItem(raw json.RawMessage) (model.SearchResultItem, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return model.SearchResultItem{}, false
	}

	item := model.SearchResultItem{
		ID:      scalarString(obj["id"]),
		Name:    DecodeEntities(scalarString(obj["name"])),
		Type:    scalarString(obj["type"]),
		Source:  scalarString(obj["source"]),
		Display: DecodeEntities(scalarString(obj["display"])),
	}
	return item, true
}

// scalarString reads a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}
