package news

import (
	"strings"
	"time"
)

// The search API decorates matched terms with <b> tags and escapes quotes.
// The cleanup set is fixed; anything else in a title is kept verbatim.
var titleReplacer = strings.NewReplacer("<b>", "", "</b>", "", "&quot;", "")

// CleanTitle strips the API's markup/entity set from a title.
func CleanTitle(title string) string {
	return titleReplacer.Replace(title)
}

// ContainsExcluded reports whether the cleaned title contains any exclusion
// keyword, case-insensitively.
func ContainsExcluded(title string, excluded []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range excluded {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ParsePubDate parses the API's RFC-1123-with-zone publish timestamp and
// normalizes it to KST.
func ParsePubDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(KST), nil
}

// DedupByTitle keeps the first article per title, preserving order otherwise.
func DedupByTitle(articles []Article) []Article {
	if len(articles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.Title]; ok {
			continue
		}
		seen[a.Title] = struct{}{}
		out = append(out, a)
	}
	return out
}
