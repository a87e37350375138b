// Package twitter extracts posts from x.com and twitter.com through the public
// syndication endpoint.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/user/knowledge-service/internal/adapter/web"
	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/utils"
)

const (
	DefaultSyndicationURL = "https://cdn.syndication.twimg.com"

	apiConfidence = 0.95
	titleMaxRunes = 80
)

var statusURLPattern = regexp.MustCompile(`(?i)^https?://(?:www\.|mobile\.)?(?:x|twitter)\.com/[^/]+/status(?:es)?/(\d+)`)

// StatusID returns the post id of an x.com or twitter.com status URL.
func StatusID(rawURL string) (string, bool) {
	m := statusURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StatusURL is the canonical URL used for related posts.
func StatusURL(id string) string {
	return "https://x.com/i/status/" + id
}

type tweet struct {
	IDStr     string `json:"id_str"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	User      struct {
		ScreenName string `json:"screen_name"`
		Name       string `json:"name"`
	} `json:"user"`
	FavoriteCount        int    `json:"favorite_count"`
	ReplyCount           int    `json:"reply_count"`
	RetweetCount         int    `json:"retweet_count"`
	QuoteCount           int    `json:"quote_count"`
	ConversationCount    int    `json:"conversation_count"`
	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	QuotedTweet          *struct {
		IDStr string `json:"id_str"`
	} `json:"quoted_tweet"`
	Entities struct {
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
}

// Extractor implements ExtractorRepository for status URLs.
type Extractor struct {
	fetcher *web.Fetcher
	baseURL string
}

func NewExtractor(fetcher *web.Fetcher, baseURL string) *Extractor {
	if baseURL == "" {
		baseURL = DefaultSyndicationURL
	}
	return &Extractor{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

// Supports reports whether rawURL is a status URL this extractor understands.
func (e *Extractor) Supports(rawURL string) bool {
	_, ok := StatusID(rawURL)
	return ok
}

func (e *Extractor) Extract(ctx context.Context, rawURL string) (*entity.SourceBundle, error) {
	id, ok := StatusID(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: not a status url: %s", repository.ErrUnsupportedContent, rawURL)
	}

	resp, err := e.fetcher.Get(ctx, e.baseURL+"/tweet-result?id="+id, "application/json")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, web.StatusError(resp.StatusCode)
	}

	var t tweet
	if err := json.Unmarshal(resp.Body, &t); err != nil {
		return nil, fmt.Errorf("%w: invalid syndication payload: %v", repository.ErrExtractionFailed, err)
	}
	return bundleFromTweet(id, &t), nil
}

func bundleFromTweet(id string, t *tweet) *entity.SourceBundle {
	handle := t.User.ScreenName
	author := t.User.Name
	if author == "" && handle != "" {
		author = "@" + handle
	}

	content := entity.ExtractedContent{
		Type:   entity.SourceTypeTwitter,
		Title:  postTitle(handle, t.Text),
		Author: author,
		Text:   strings.TrimSpace(t.Text),
		Metadata: map[string]any{
			"tweetId":      id,
			"authorHandle": handle,
			"engagement": map[string]int{
				"likes":   t.FavoriteCount,
				"replies": firstPositive(t.ReplyCount, t.ConversationCount),
				"reposts": t.RetweetCount,
				"quotes":  t.QuoteCount,
			},
		},
		ExtractionMethod:     entity.ExtractionAPI,
		ExtractionConfidence: apiConfidence,
	}
	if ts, ok := parseCreatedAt(t.CreatedAt); ok {
		content.PublishedAt = &ts
	}

	bundle := &entity.SourceBundle{Source: content}
	if t.InReplyToStatusIDStr != "" {
		bundle.Related = append(bundle.Related, entity.RelatedURL{
			RelationType: entity.RelationThreadReply,
			URL:          StatusURL(t.InReplyToStatusIDStr),
		})
	}
	if t.QuotedTweet != nil && t.QuotedTweet.IDStr != "" {
		bundle.Related = append(bundle.Related, entity.RelatedURL{
			RelationType: entity.RelationQuoteOf,
			URL:          StatusURL(t.QuotedTweet.IDStr),
		})
	}
	seen := make(map[string]bool)
	for _, u := range t.Entities.URLs {
		link := utils.Canonicalize(strings.TrimSpace(u.ExpandedURL))
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		bundle.Related = append(bundle.Related, entity.RelatedURL{RelationType: entity.RelationLinksTo, URL: link})
	}
	return bundle
}

func postTitle(handle, text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if r := []rune(title); len(r) > titleMaxRunes {
		title = string(r[:titleMaxRunes]) + "..."
	}
	if handle == "" {
		return title
	}
	return "@" + handle + ": " + title
}

func parseCreatedAt(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.RubyDate} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
