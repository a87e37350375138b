package synthesis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/user/knowledge-service/internal/entity"
)

// CatalogEntry is a canonical offer name and the lowercase aliases that refer to it.
type CatalogEntry struct {
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
}

// Catalog is the whitelist of offers structured answers may name.
type Catalog []CatalogEntry

// DefaultCatalog returns the built-in offer whitelist.
func DefaultCatalog() Catalog {
	return Catalog{
		{Canonical: "The Boardroom", Aliases: []string{"the boardroom", "boardroom"}},
		{Canonical: "8 Week Experience", Aliases: []string{"8 week experience", "8-week experience", "8week experience"}},
		{Canonical: "The Directive", Aliases: []string{"the directive", "directive"}},
		{Canonical: "6 Week Producer Challenge", Aliases: []string{"6 week producer challenge", "6-week producer challenge", "producer challenge"}},
	}
}

// NewCatalog lowercases aliases and gives entries without aliases their own name as one.
func NewCatalog(entries []CatalogEntry) Catalog {
	out := make(Catalog, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Canonical)
		if name == "" {
			continue
		}
		var aliases []string
		for _, a := range e.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				aliases = append(aliases, a)
			}
		}
		if len(aliases) == 0 {
			aliases = []string{strings.ToLower(name)}
		}
		out = append(out, CatalogEntry{Canonical: name, Aliases: aliases})
	}
	return out
}

// ParseCatalog reads a JSON array of entries. Empty input yields the default catalog.
func ParseCatalog(raw string) (Catalog, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultCatalog(), nil
	}
	var entries []CatalogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("invalid offer catalog: %w", err)
	}
	return NewCatalog(entries), nil
}

// Match returns the canonical name of the first entry with an alias contained in text.
func (c Catalog) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, e := range c {
		for _, alias := range e.Aliases {
			if strings.Contains(lower, alias) {
				return e.Canonical, true
			}
		}
	}
	return "", false
}

var (
	priceStart  = regexp.MustCompile(`\$[\d,]+`)
	priceCents  = regexp.MustCompile(`^\.\d{2}`)
	priceSuffix = regexp.MustCompile(`(?i)^\s*(?:/\s*)?(?:month|mo|year|yr|week|wk|per\s+(?:month|year|person|seat|producer|member))`)
)

const (
	minPriceLen = 2
	maxPriceLen = 40
)

// ExtractCleanPrice returns the first standalone "$amount" in text, with an
// optional per-period unit. Amounts directly followed by a digit, a comma or a
// k/M/B magnitude ("$500k") are revenue figures, not prices, and are skipped.
func ExtractCleanPrice(text string) (string, bool) {
	for _, loc := range priceStart.FindAllStringIndex(text, -1) {
		end, ok := priceEnd(text, loc[1])
		if !ok {
			continue
		}
		if m := priceSuffix.FindStringIndex(text[end:]); m != nil && !letterAt(text, end+m[1]) {
			end += m[1]
		}
		raw := strings.TrimRight(strings.TrimSpace(text[loc[0]:end]), ",")
		if n := utf8.RuneCountInString(raw); n < minPriceLen || n > maxPriceLen {
			return "", false
		}
		return raw, true
	}
	return "", false
}

// priceEnd picks the end of the amount starting before digitsEnd: with cents if
// they are cleanly terminated, otherwise the bare digits.
func priceEnd(text string, digitsEnd int) (int, bool) {
	if m := priceCents.FindStringIndex(text[digitsEnd:]); m != nil {
		if cleanAfterAmount(text, digitsEnd+m[1]) {
			return digitsEnd + m[1], true
		}
	}
	if cleanAfterAmount(text, digitsEnd) {
		return digitsEnd, true
	}
	return 0, false
}

func cleanAfterAmount(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	switch c := text[i]; {
	case c >= '0' && c <= '9', c == ',':
		return false
	case strings.ContainsRune("kKmMbB", rune(c)):
		return false
	}
	return true
}

func letterAt(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsLetter(r)
}

var (
	ctaVerb        = regexp.MustCompile(`(?i)\b(join|apply|book|schedule|start|enroll|sign\s*up|get\s+started|buy|purchase|reserve|claim|try|watch|download)\b`)
	clauseBreak    = regexp.MustCompile(`[,;:–—]`)
	trailingPunct  = regexp.MustCompile(`[.!?]+$`)
	bestForPattern = regexp.MustCompile(`(?i)\b(?:for|designed for|ideal for|best for|built for|perfect for|suited for|tailored (?:for|to)|helps?|aimed at|targeting|who:?)\s+(.{10,120}?)(?:\.|$)`)
)

const (
	ctaMinWords   = 2
	ctaMaxWords   = 7
	minBestForLen = 5
)

// ExtractCleanCTA finds a short call to action: a whole 2-7 word sentence with
// an action verb, or failing that a clause of that size.
func ExtractCleanCTA(text string) (string, bool) {
	for _, s := range SplitSentences(text) {
		if !ctaVerb.MatchString(s) {
			continue
		}
		if n := len(strings.Fields(s)); n >= ctaMinWords && n <= ctaMaxWords {
			return strings.TrimSpace(trailingPunct.ReplaceAllString(s, "")), true
		}
		for _, clause := range clauseBreak.Split(s, -1) {
			trimmed := strings.TrimSpace(clause)
			n := len(strings.Fields(trimmed))
			if ctaVerb.MatchString(trimmed) && n >= ctaMinWords && n <= ctaMaxWords {
				return strings.TrimSpace(trailingPunct.ReplaceAllString(trimmed, "")), true
			}
		}
	}
	return "", false
}

// ExtractBestFor returns the audience phrase following "for", "ideal for", "helps" and similar.
func ExtractBestFor(text string) (string, bool) {
	m := bestForPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	raw := strings.TrimSpace(m[1])
	if utf8.RuneCountInString(raw) < minBestForLen {
		return "", false
	}
	return raw, true
}

// SpanKind records which text boundary an offer's fields were read from.
type SpanKind string

const (
	SpanSection  SpanKind = "section"
	SpanSentence SpanKind = "sentence"
)

// OfferSpan is the single bounded text an offer candidate may read fields from.
type OfferSpan struct {
	Kind SpanKind
	Text string
}

// StructuredOffer is a canonical offer with fields established by one span.
type StructuredOffer struct {
	Name    string   `json:"offer_name"`
	BestFor string   `json:"best_for,omitempty"`
	Price   string   `json:"price,omitempty"`
	CTA     string   `json:"cta_text,omitempty"`
	Span    SpanKind `json:"span"`
}

// offerFromSpan reads every field from span.Text and nothing else.
func offerFromSpan(name string, span OfferSpan) StructuredOffer {
	o := StructuredOffer{Name: name, Span: span.Kind}
	o.BestFor, _ = ExtractBestFor(span.Text)
	o.Price, _ = ExtractCleanPrice(span.Text)
	o.CTA, _ = ExtractCleanCTA(span.Text)
	return o
}

const untitledSection = "__untitled__"

// ExtractStructuredOffers groups chunks by section. A section titled with a
// catalog offer yields that offer from the section text alone. Other sections
// are scanned sentence by sentence, each offer reading only its own sentence.
// Every canonical name appears at most once; the first occurrence wins.
func (c Catalog) ExtractStructuredOffers(chunks []entity.RankedChunk) []StructuredOffer {
	var order []string
	texts := make(map[string][]string)
	for _, ch := range chunks {
		key := ch.SectionTitle
		if key == "" {
			key = untitledSection
		}
		if _, ok := texts[key]; !ok {
			order = append(order, key)
		}
		texts[key] = append(texts[key], CleanChunkText(ch.Text))
	}

	var offers []StructuredOffer
	seen := make(map[string]bool)
	for _, title := range order {
		full := strings.Join(texts[title], " ")

		if title != untitledSection {
			if name, ok := c.Match(title); ok && !seen[name] {
				seen[name] = true
				offers = append(offers, offerFromSpan(name, OfferSpan{Kind: SpanSection, Text: full}))
				continue
			}
		}

		for _, sentence := range SplitSentences(full) {
			name, ok := c.Match(sentence)
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			offers = append(offers, offerFromSpan(name, OfferSpan{Kind: SpanSentence, Text: sentence}))
		}
	}
	return offers
}

const minCleanOffers = 2

// PassesQualityGate requires at least two offers with catalog names.
func (c Catalog) PassesQualityGate(offers []StructuredOffer) bool {
	clean := 0
	for _, o := range offers {
		if _, ok := c.Match(o.Name); ok {
			clean++
		}
	}
	return clean >= minCleanOffers
}
