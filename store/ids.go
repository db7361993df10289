package store

import (
	"regexp"
	"strconv"
	"strings"
)

var idSeparators = regexp.MustCompile(`[,\s\n\r]+`)

// ParseIDList splits a free-form identifier list into numeric IDs and
// malformed tokens. Accepts "123", "123, 456", "#123 #456" and pasted
// newline-separated lists; duplicates are dropped.
func ParseIDList(raw string) (ids []int64, invalid []string) {
	cleaned := idSeparators.ReplaceAllString(strings.TrimSpace(raw), ",")
	seen := make(map[int64]struct{})
	for _, token := range strings.Split(cleaned, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		numeric := strings.TrimPrefix(token, "#")
		id, err := strconv.ParseInt(numeric, 10, 64)
		if err != nil || id <= 0 {
			invalid = append(invalid, token)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, invalid
}
