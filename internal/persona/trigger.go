package persona

import (
	"regexp"
	"strings"
)

// Extractor scans message text for !persona invocation commands using one
// precompiled pattern built from the enumerated persona set. A command must
// sit at the start of the text or after whitespace and end on a word
// boundary, so "#jackson" never triggers "jack".
type Extractor struct {
	pattern *regexp.Regexp
}

// NewExtractor builds an extractor for the registry's persona set.
func NewExtractor(reg *Registry) *Extractor {
	names := reg.Names()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	// (?:^|\s) anchors the prefix marker; \b anchors the end of the name.
	expr := `(?i)(?:^|\s)!(` + strings.Join(quoted, "|") + `)\b`
	return &Extractor{pattern: regexp.MustCompile(expr)}
}

// Extract returns all persona names invoked in text, lower-cased, in
// left-to-right occurrence order. Duplicates are preserved: a persona invoked
// twice responds twice.
func (e *Extractor) Extract(text string) []string {
	matches := e.pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}
