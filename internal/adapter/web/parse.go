package web

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/pkg/utils"
)

// Page is the parsed form of an HTML document.
type Page struct {
	Content       entity.ExtractedContent
	Links         []string
	ReadableChars int
}

const blockSelector = "h1, h2, h3, p, li, pre, blockquote, td"

// ParseHTML extracts title, byline, sections and outbound links from an HTML
// document. Headings h1-h3 open a new section. At most maxLinks links are kept.
func ParseHTML(pageURL string, html []byte, maxLinks int) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")
		key := name
		if property != "" {
			key = property
		}
		if key != "" && content != "" {
			meta[strings.ToLower(key)] = strings.TrimSpace(content)
		}
	})

	title := meta["og:title"]
	if title == "" {
		title = collapse(doc.Find("title").First().Text())
	}

	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	root.Find("nav, footer, aside, form").Remove()

	sections, text := collectSections(root)
	if text == "" {
		text = collapse(root.Text())
	}

	content := entity.ExtractedContent{
		Type:     entity.SourceTypeArticle,
		Title:    title,
		Author:   firstNonEmpty(meta["author"], meta["article:author"]),
		Text:     text,
		Sections: sections,
		Metadata: map[string]any{},
	}
	if v := firstNonEmpty(meta["description"], meta["og:description"]); v != "" {
		content.Metadata["excerpt"] = v
	}
	if v := meta["og:site_name"]; v != "" {
		content.Metadata["siteName"] = v
	}
	if v := firstNonEmpty(meta["article:published_time"], meta["date"]); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			content.PublishedAt = &t
		}
	}

	return &Page{
		Content:       content,
		Links:         collectLinks(pageURL, root, maxLinks),
		ReadableChars: len([]rune(strings.Join(strings.Fields(text), ""))),
	}, nil
}

// collectSections walks block elements in document order. Nested blocks such
// as a p inside an li are read once through the outermost block.
func collectSections(root *goquery.Selection) ([]entity.Section, string) {
	var sections []entity.Section
	var lines []string
	current := entity.Section{}
	var body []string

	flush := func() {
		if len(body) > 0 {
			current.Text = strings.Join(body, "\n")
			sections = append(sections, current)
		}
		body = nil
	}

	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 && !isHeadingNode(s) {
			return
		}
		line := collapse(s.Text())
		if line == "" {
			return
		}
		lines = append(lines, line)
		if isHeadingNode(s) {
			flush()
			current = entity.Section{Title: line}
			return
		}
		body = append(body, line)
	})
	flush()

	if !hasTitledSection(sections) {
		sections = nil
	}
	return sections, strings.Join(lines, "\n")
}

func isHeadingNode(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "h1", "h2", "h3":
		return true
	}
	return false
}

func hasTitledSection(sections []entity.Section) bool {
	for _, s := range sections {
		if s.Title != "" {
			return true
		}
	}
	return false
}

// collectLinks keeps absolute http(s) links to other pages, deduplicated by canonical form.
func collectLinks(pageURL string, root *goquery.Selection, maxLinks int) []string {
	if maxLinks <= 0 {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	self := utils.Canonicalize(pageURL)
	seen := map[string]bool{self: true}

	var links []string
	root.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		abs, err := utils.ToAbsoluteURL(base, strings.TrimSpace(href))
		if err != nil {
			return true
		}
		if !strings.HasPrefix(abs, "http://") && !strings.HasPrefix(abs, "https://") {
			return true
		}
		canonical := utils.Canonicalize(abs)
		if seen[canonical] {
			return true
		}
		seen[canonical] = true
		links = append(links, canonical)
		return len(links) < maxLinks
	})
	return links
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
