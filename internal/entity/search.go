package entity

import (
	"strings"
	"time"
)

// SearchFilters narrows retrieval. Empty fields are ignored.
type SearchFilters struct {
	Collection string `json:"collection,omitempty"`
	Domain     string `json:"domain,omitempty"`
	SourceType string `json:"source,omitempty"`
	URL        string `json:"url,omitempty"`
}

func (f SearchFilters) IsEmpty() bool {
	return f.Collection == "" && f.Domain == "" && f.SourceType == "" && f.URL == ""
}

// Describe renders the active filters as "collection=x, domain=y", or "none".
func (f SearchFilters) Describe() string {
	var parts []string
	if f.Collection != "" {
		parts = append(parts, "collection="+f.Collection)
	}
	if f.Domain != "" {
		parts = append(parts, "domain="+f.Domain)
	}
	if f.SourceType != "" {
		parts = append(parts, "source="+f.SourceType)
	}
	if f.URL != "" {
		parts = append(parts, "url="+f.URL)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// ChunkCandidate is a chunk joined with its owning source, as returned by a store scan.
type ChunkCandidate struct {
	Chunk  Chunk
	Source Source
}

// RankedChunk is a scored retrieval hit.
type RankedChunk struct {
	ChunkID      int64      `json:"chunk_id"`
	SourceID     int64      `json:"source_id"`
	ChunkIndex   int        `json:"chunk_index"`
	Text         string     `json:"text"`
	SectionTitle string     `json:"section_title,omitempty"`
	Title        string     `json:"title,omitempty"`
	URL          string     `json:"url"`
	SourceType   SourceType `json:"source_type"`
	Collection   string     `json:"collection"`
	IngestedAt   time.Time  `json:"ingested_at"`
	Semantic     float64    `json:"semantic_score"`
	Recency      float64    `json:"recency_score"`
	SourceWeight float64    `json:"source_weight"`
	FinalScore   float64    `json:"final_score"`
}

// SearchResult carries the top hits plus candidate counts taken after all filters.
type SearchResult struct {
	Chunks           []RankedChunk `json:"chunks"`
	CandidateChunks  int           `json:"candidate_chunks"`
	CandidateSources int           `json:"candidate_sources"`
}
