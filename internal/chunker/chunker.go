// Package chunker splits extracted text into overlapping token windows.
package chunker

import (
	"strings"
	"unicode"

	"github.com/user/knowledge-service/internal/entity"
)

const (
	DefaultMaxTokens        = 220
	DefaultOverlapTokens    = 40
	DefaultSectionMaxTokens = 350

	maxHeadingLen   = 80
	maxHeadingWords = 10
)

// Piece is one chunk of text ready to be embedded and persisted.
type Piece struct {
	Text         string
	TokenCount   int
	SectionTitle string
}

// TokenCount counts whitespace-separated tokens.
func TokenCount(text string) int {
	return len(strings.Fields(text))
}

// ChunkText slides a window of maxTokens tokens over text, stepping by
// maxTokens-overlap tokens and never by less than one. The last window may be shorter.
func ChunkText(text string, maxTokens, overlap int) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	if maxTokens < 1 {
		maxTokens = 1
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	for i := 0; i < len(tokens); {
		end := min(i+maxTokens, len(tokens))
		chunks = append(chunks, strings.Join(tokens[i:end], " "))
		if end >= len(tokens) {
			break
		}
		i = max(end-overlap, i+1)
	}
	return chunks
}

// SplitSections detects ALL CAPS heading lines and splits text into titled
// sections. Text before the first heading becomes an untitled section.
// Sections with an empty body are dropped.
func SplitSections(text string) []entity.Section {
	var (
		sections []entity.Section
		title    string
		body     []string
	)
	flush := func() {
		joined := strings.TrimSpace(strings.Join(body, "\n"))
		if joined != "" {
			sections = append(sections, entity.Section{Title: title, Text: joined})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			flush()
			title = trimmed
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

func isHeading(line string) bool {
	if len(line) < 3 || len(line) > maxHeadingLen {
		return false
	}
	if len(strings.Fields(line)) > maxHeadingWords {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// ChunkSections chunks each section independently, tagging every piece with its section title.
func ChunkSections(sections []entity.Section, maxTokens, overlap int) []Piece {
	var pieces []Piece
	for _, s := range sections {
		for _, text := range ChunkText(s.Text, maxTokens, overlap) {
			pieces = append(pieces, Piece{
				Text:         text,
				TokenCount:   TokenCount(text),
				SectionTitle: s.Title,
			})
		}
	}
	return pieces
}

// Chunker turns extracted content into pieces.
type Chunker struct {
	maxTokens        int
	overlap          int
	sectionMaxTokens int
}

// Option configures the Chunker.
type Option func(*Chunker)

// WithMaxTokens sets the window size used for text without section headings.
func WithMaxTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithOverlap sets the number of tokens shared by consecutive windows.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// WithSectionMaxTokens sets the window size used inside titled sections.
func WithSectionMaxTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.sectionMaxTokens = n
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxTokens:        DefaultMaxTokens,
		overlap:          DefaultOverlapTokens,
		sectionMaxTokens: DefaultSectionMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Split chunks content. Explicit extractor sections win; otherwise headings are
// detected in the text. Untitled text uses the plain window size. Non-blank text
// always yields at least one piece; blank text yields none.
func (c *Chunker) Split(content entity.ExtractedContent) []Piece {
	sections := content.Sections
	if len(sections) == 0 {
		sections = SplitSections(content.Text)
	}

	text := content.Text
	if strings.TrimSpace(text) == "" {
		text = joinSections(sections)
	}

	var pieces []Piece
	if hasTitled(sections) {
		pieces = ChunkSections(sections, c.sectionMaxTokens, c.overlap)
	} else {
		for _, chunk := range ChunkText(text, c.maxTokens, c.overlap) {
			pieces = append(pieces, Piece{Text: chunk, TokenCount: TokenCount(chunk)})
		}
	}

	if len(pieces) == 0 {
		if whole := strings.TrimSpace(text); whole != "" {
			pieces = append(pieces, Piece{Text: whole, TokenCount: TokenCount(whole)})
		}
	}
	return pieces
}

func hasTitled(sections []entity.Section) bool {
	for _, s := range sections {
		if s.Title != "" {
			return true
		}
	}
	return false
}

// joinSections rebuilds the body of an extraction that only carries sections.
func joinSections(sections []entity.Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if body := strings.TrimSpace(s.Text); body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n\n")
}
