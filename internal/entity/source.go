package entity

import (
	"strings"
	"time"
)

// DefaultCollection groups sources ingested without an explicit collection.
const DefaultCollection = "default"

type SourceType string

const (
	SourceTypeArticle SourceType = "article"
	SourceTypePDF     SourceType = "pdf"
	SourceTypeYouTube SourceType = "youtube"
	SourceTypeTwitter SourceType = "twitter"
	SourceTypeTikTok  SourceType = "tiktok"
	SourceTypeUnknown SourceType = "unknown"
)

// KnownSourceTypes lists every type a source weight can be configured for.
var KnownSourceTypes = []SourceType{
	SourceTypeArticle,
	SourceTypePDF,
	SourceTypeYouTube,
	SourceTypeTwitter,
	SourceTypeTikTok,
	SourceTypeUnknown,
}

// ParseSourceType maps a free-form string onto a SourceType, defaulting to unknown.
func ParseSourceType(s string) SourceType {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownSourceTypes {
		if t == known {
			return t
		}
	}
	return SourceTypeUnknown
}

func (t SourceType) Known() bool {
	return ParseSourceType(string(t)) == t
}

type ExtractionMethod string

const (
	ExtractionWebFetch     ExtractionMethod = "web_fetch"
	ExtractionBrowserRelay ExtractionMethod = "browser_relay"
	ExtractionAPI          ExtractionMethod = "api"
)

// Source mirrors the `sources` table: one ingested URL.
type Source struct {
	ID                   int64            `json:"id"`
	Type                 SourceType       `json:"type"`
	URL                  string           `json:"url"`
	CanonicalURL         string           `json:"canonical_url"`
	Title                string           `json:"title,omitempty"`
	Author               string           `json:"author,omitempty"`
	PublishedAt          *time.Time       `json:"published_at,omitempty"`
	IngestedAt           time.Time        `json:"ingested_at"`
	Metadata             map[string]any   `json:"metadata,omitempty"`
	SourceWeight         float64          `json:"source_weight"`
	Collection           string           `json:"collection"`
	ExtractionMethod     ExtractionMethod `json:"extraction_method"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
}

type RelationType string

const (
	RelationThreadReply RelationType = "thread_reply"
	RelationQuoteOf     RelationType = "quote_of"
	RelationLinksTo     RelationType = "links_to"
)

func (r RelationType) Valid() bool {
	switch r {
	case RelationThreadReply, RelationQuoteOf, RelationLinksTo:
		return true
	}
	return false
}

// SourceRelation is a directed parent -> child edge, unique per (parent, child, type).
type SourceRelation struct {
	ID             int64        `json:"id"`
	ParentSourceID int64        `json:"parent_source_id"`
	ChildSourceID  int64        `json:"child_source_id"`
	RelationType   RelationType `json:"relation_type"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Chunk mirrors the `chunks` table.
type Chunk struct {
	ID           int64     `json:"id"`
	SourceID     int64     `json:"source_id"`
	Index        int       `json:"chunk_index"`
	Text         string    `json:"text"`
	TokenCount   int       `json:"token_count"`
	Embedding    []float64 `json:"-"`
	SectionTitle string    `json:"section_title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CollectionStats aggregates sources and chunks per collection.
type CollectionStats struct {
	Collection  string `json:"collection"`
	SourceCount int    `json:"source_count"`
	ChunkCount  int    `json:"chunk_count"`
}
