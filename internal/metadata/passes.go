package metadata

import (
	"regexp"
	"strings"
)

// pass is one best-effort repair step applied to a model response.
// Later passes assume the earlier ones already ran.
type pass struct {
	name string
	fn   func(string) string
}

var passes = []pass{
	{"extract_fenced", extractFenced},
	{"strip_fences", stripFences},
	{"extract_braces", extractBraces},
	{"fix_quotes", fixQuotes},
	{"drop_trailing_commas", dropTrailingCommas},
}

var (
	fencedObjectRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	leadingFenceRe = regexp.MustCompile("(?i)^```(?:json)?")
	trailingFence  = "```"
	bracesRe       = regexp.MustCompile(`(?s)\{.*\}`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
)

// normalize runs every pass in order.
func normalize(raw string) string {
	s := raw
	for _, p := range passes {
		s = p.fn(s)
	}
	return s
}

// extractFenced keeps only the object inside the first fenced code block.
func extractFenced(s string) string {
	if m := fencedObjectRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// stripFences drops a leftover opening or closing fence marker.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(leadingFenceRe.ReplaceAllString(s, ""))
	s = strings.TrimSpace(strings.TrimSuffix(s, trailingFence))
	return s
}

// extractBraces keeps the first "{" through the last "}".
func extractBraces(s string) string {
	if m := bracesRe.FindString(s); m != "" {
		return m
	}
	return s
}

// fixQuotes treats single quotes as the quoting convention when the text
// carries no double quote at all.
func fixQuotes(s string) string {
	if strings.Contains(s, `"`) {
		return s
	}
	return strings.ReplaceAll(s, "'", `"`)
}

func dropTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}
