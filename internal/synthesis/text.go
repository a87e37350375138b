package synthesis

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minSentenceLen = 10

var abbreviations = []string{
	"mr", "mrs", "ms", "dr", "jr", "sr", "inc", "ltd", "co", "vs", "etc",
	"e.g", "i.e", "approx", "dept", "est", "govt",
}

// SplitSentences splits after '.', '!' or '?' followed by whitespace. A segment
// following a known abbreviation ("Dr.", "e.g.") is merged back into its
// predecessor. Sentences shorter than ten characters are dropped.
func SplitSentences(text string) []string {
	var merged []string
	for _, seg := range splitAtTerminators(text) {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		if n := len(merged); n > 0 && endsWithAbbreviation(merged[n-1]) {
			merged[n-1] += " " + trimmed
			continue
		}
		merged = append(merged, trimmed)
	}

	out := merged[:0]
	for _, s := range merged {
		if utf8.RuneCountInString(s) >= minSentenceLen {
			out = append(out, s)
		}
	}
	return out
}

// splitAtTerminators breaks text at whitespace runs that directly follow a terminator.
func splitAtTerminators(text string) []string {
	var (
		segs  []string
		start int
		prev  rune
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?') {
			segs = append(segs, string(runes[start:i]))
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			start = i
			if i < len(runes) {
				prev = runes[i]
			}
			continue
		}
		prev = r
	}
	if start < len(runes) {
		segs = append(segs, string(runes[start:]))
	}
	return segs
}

func endsWithAbbreviation(s string) bool {
	lower := strings.ToLower(s)
	if !strings.HasSuffix(lower, ".") {
		return false
	}
	body := strings.TrimSuffix(lower, ".")
	for _, abbr := range abbreviations {
		if !strings.HasSuffix(body, abbr) {
			continue
		}
		rest := body[:len(body)-len(abbr)]
		if rest == "" {
			return true
		}
		// "Dr." is an abbreviation, "taco." is not.
		last, _ := utf8.DecodeLastRuneInString(rest)
		if !unicode.IsLetter(last) {
			return true
		}
	}
	return false
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

func dedupKey(text string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(text), "")
}

// DeduplicateSpans keeps the first of any spans whose alphanumeric forms are
// equal or contain one another. Order is preserved.
func DeduplicateSpans(spans []string) []string {
	var (
		seen   []string
		result []string
	)
	for _, span := range spans {
		key := dedupKey(span)
		dup := false
		for _, prev := range seen {
			if prev == key || (prev != "" && key != "" && (strings.Contains(prev, key) || strings.Contains(key, prev))) {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, key)
			result = append(result, span)
		}
	}
	return result
}

// TruncateBullet cuts text to maxLen runes, preferring the last word boundary
// in the second half, and appends an ellipsis.
func TruncateBullet(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	cut := string(runes[:maxLen])
	if lastSpace := strings.LastIndex(cut, " "); lastSpace >= 0 && utf8.RuneCountInString(cut[:lastSpace]) > maxLen/2 {
		cut = cut[:lastSpace]
	}
	return cut + "..."
}
