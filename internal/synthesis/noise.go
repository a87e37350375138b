package synthesis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/user/knowledge-service/internal/entity"
)

const (
	minContentLineLen = 5
	// Lines longer than this are content even when they start with a noise prefix.
	maxNoiseLineLen = 80
)

var noiseLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(menu|navigation|skip to|jump to|breadcrumb|sidebar|footer|copyright|©)`),
	regexp.MustCompile(`(?i)^(home|about|contact|login|sign ?up|subscribe|follow us|share this)`),
	regexp.MustCompile(`(?i)^(cookie|privacy|terms of service|all rights reserved)`),
	regexp.MustCompile(`(?i)^(previous|next|back to top|read more|click here|learn more)$`),
	regexp.MustCompile(`^\s*[|•·–—]\s*$`),
	regexp.MustCompile(`^\s*\d+\s*$`),
	regexp.MustCompile(`(?i)^(loading|please wait|javascript)`),
}

var noiseSectionTitles = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(nav|navigation|menu|header|footer|sidebar|cookie|banner)$`),
	regexp.MustCompile(`(?i)^(hero|carousel|slider|featured|testimonial)s?$`),
	regexp.MustCompile(`(?i)^(sign.?up|login|subscribe|newsletter|social)$`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// IsNoiseSection reports whether a section title names page chrome rather than content.
func IsNoiseSection(title string) bool {
	if title == "" {
		return false
	}
	for _, p := range noiseSectionTitles {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}

// FilterNoisyChunks drops chunks from boilerplate sections.
func FilterNoisyChunks(chunks []entity.RankedChunk) []entity.RankedChunk {
	out := make([]entity.RankedChunk, 0, len(chunks))
	for _, c := range chunks {
		if !IsNoiseSection(c.SectionTitle) {
			out = append(out, c)
		}
	}
	return out
}

// IsNoiseLine reports whether a single line is navigation, legal or layout debris.
func IsNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	n := utf8.RuneCountInString(trimmed)
	if n < minContentLineLen {
		return true
	}
	if n > maxNoiseLineLen {
		return false
	}
	if isRepeatedRune(trimmed) {
		return true
	}
	for _, p := range noiseLinePatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// isRepeatedRune matches separator lines such as "=====" or "-----".
func isRepeatedRune(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return utf8.RuneCountInString(s) >= 5
}

// CleanLine collapses whitespace runs.
func CleanLine(line string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
}

// CleanChunkText strips noise lines and joins the rest into a single line.
func CleanChunkText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		cleaned := CleanLine(line)
		if !IsNoiseLine(cleaned) {
			kept = append(kept, cleaned)
		}
	}
	return CleanLine(strings.Join(kept, " "))
}
