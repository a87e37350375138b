package usecase

import (
	"fmt"
	"strings"

	"github.com/user/knowledge-service/internal/entity"
)

const summaryPreviewRunes = 280

// BuildIngestionSummary renders the short report shown after an ingest.
func BuildIngestionSummary(url string, sourceID int64, content entity.ExtractedContent, chunks int) string {
	lines := []string{
		fmt.Sprintf("Ingested source #%d", sourceID),
		"URL: " + url,
		"Type: " + string(content.Type),
		fmt.Sprintf("Method: %s (confidence %.2f)", content.ExtractionMethod, content.ExtractionConfidence),
		fmt.Sprintf("Chunks: %d", chunks),
	}

	preview := []rune(strings.Join(strings.Fields(content.Text), " "))
	if len(preview) > 0 {
		line := "Preview: " + string(preview[:min(len(preview), summaryPreviewRunes)])
		if len(preview) >= summaryPreviewRunes {
			line += "..."
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
