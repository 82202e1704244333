package scrape

import (
	"encoding/json"
	"regexp"

	"github.com/nhle/roundmail/internal/model"
)

// quotaPattern matches the set_quota call both as it appears in full
// pages (rcmail.) and in exec strings (this.).
var quotaPattern = regexp.MustCompile(`(?i)(?:rcmail|this)\.set_quota\s*\(\s*(\{[^}]+\})\s*\)`)

var quotaFields = []string{"used", "total", "percent", "free", "type", "folder", "title"}

// ParseQuota extracts the quota object from a page or exec string. It
// returns nil when the call is absent, undecodable, or missing any of
// its seven fields.
func ParseQuota(text string) *model.QuotaInfo {
	m := quotaPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(m[1]), &raw); err != nil {
		return nil
	}
	for _, f := range quotaFields {
		if _, ok := raw[f]; !ok {
			return nil
		}
	}

	var q struct {
		Used    float64 `json:"used"`
		Total   float64 `json:"total"`
		Percent float64 `json:"percent"`
		Free    float64 `json:"free"`
		Type    string  `json:"type"`
		Folder  string  `json:"folder"`
		Title   string  `json:"title"`
	}
	if err := json.Unmarshal([]byte(m[1]), &q); err != nil {
		return nil
	}

	return &model.QuotaInfo{
		Used:    int64(q.Used),
		Total:   int64(q.Total),
		Percent: q.Percent,
		Free:    int64(q.Free),
		Type:    q.Type,
		Folder:  q.Folder,
		Title:   q.Title,
	}
}
