package entity

import "time"

// Section is a titled slice of extracted text. Title is empty for preamble text.
type Section struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// ExtractedContent is the normalized record an extractor returns for one URL.
type ExtractedContent struct {
	Type                 SourceType       `json:"type"`
	Title                string           `json:"title,omitempty"`
	Author               string           `json:"author,omitempty"`
	PublishedAt          *time.Time       `json:"published_at,omitempty"`
	Text                 string           `json:"text"`
	Sections             []Section        `json:"sections,omitempty"`
	Metadata             map[string]any   `json:"metadata,omitempty"`
	ExtractionMethod     ExtractionMethod `json:"extraction_method"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
}

// RelatedURL is a URL discovered during extraction together with how it relates to its parent.
type RelatedURL struct {
	RelationType RelationType `json:"relation_type"`
	URL          string       `json:"url"`
}

// SourceBundle is the full extractor result: the content plus related URLs to crawl.
type SourceBundle struct {
	Source  ExtractedContent `json:"source"`
	Related []RelatedURL     `json:"related,omitempty"`
}
