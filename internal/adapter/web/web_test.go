package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

const articleHTML = `<!doctype html>
<html><head>
<title>Pricing | Acme</title>
<meta name="author" content="Jane Doe">
<meta property="og:site_name" content="Acme">
<meta name="description" content="Plans and prices">
<meta property="article:published_time" content="2026-01-02T10:00:00Z">
</head>
<body>
<nav><a href="/home">Home</a></nav>
<article>
<p>Intro paragraph about our plans.</p>
<h2>Alpha Plan</h2>
<p>Alpha Plan is for solo founders. <a href="/alpha#buy">Buy</a></p>
<h2>Beta Plan</h2>
<ul><li>Beta Plan costs $200/mo.</li></ul>
<p>See <a href="https://other.test/ref">reference</a> and <a href="mailto:a@b.c">mail</a>.</p>
<script>var x = 1;</script>
</article>
<footer>Copyright</footer>
</body></html>`

func TestParseHTML(t *testing.T) {
	page, err := ParseHTML("https://acme.test/pricing", []byte(articleHTML), 10)
	require.NoError(t, err)

	c := page.Content
	assert.Equal(t, "Pricing | Acme", c.Title)
	assert.Equal(t, "Jane Doe", c.Author)
	assert.Equal(t, "Acme", c.Metadata["siteName"])
	assert.Equal(t, "Plans and prices", c.Metadata["excerpt"])
	require.NotNil(t, c.PublishedAt)
	assert.Equal(t, 2026, c.PublishedAt.Year())

	require.Len(t, c.Sections, 3)
	assert.Equal(t, "", c.Sections[0].Title)
	assert.Equal(t, "Intro paragraph about our plans.", c.Sections[0].Text)
	assert.Equal(t, "Alpha Plan", c.Sections[1].Title)
	assert.Equal(t, "Beta Plan", c.Sections[2].Title)
	assert.Contains(t, c.Sections[2].Text, "$200/mo")

	assert.NotContains(t, c.Text, "var x")
	assert.NotContains(t, c.Text, "Copyright")
	assert.Equal(t, []string{"https://acme.test/alpha", "https://other.test/ref"}, page.Links)
	assert.Greater(t, page.ReadableChars, 0)
}

func TestParseHTML_NoHeadingsHasNoSections(t *testing.T) {
	page, err := ParseHTML("https://a.test", []byte(`<html><body><p>One.</p><p>Two.</p></body></html>`), 0)
	require.NoError(t, err)
	assert.Nil(t, page.Content.Sections)
	assert.Equal(t, "One.\nTwo.", page.Content.Text)
	assert.Nil(t, page.Links)
}

func TestShouldUseBrowserRelay(t *testing.T) {
	tests := []struct {
		name string
		in   RelayDecision
		want bool
	}{
		{"disabled", RelayDecision{Enabled: false, Status: 403}, false},
		{"forbidden", RelayDecision{Enabled: true, Status: 403, ReadableChars: 5000}, true},
		{"payment required", RelayDecision{Enabled: true, Status: 402, ReadableChars: 5000}, true},
		{"rate limited", RelayDecision{Enabled: true, Status: 429, ReadableChars: 5000}, true},
		{"thin page", RelayDecision{Enabled: true, Status: 200, ReadableChars: 120, MinReadableChars: 300}, true},
		{"default minimum", RelayDecision{Enabled: true, Status: 200, ReadableChars: 299}, true},
		{"readable page", RelayDecision{Enabled: true, Status: 200, ReadableChars: 300, MinReadableChars: 300}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldUseBrowserRelay(tt.in))
		})
	}
}

type stubRelay struct {
	calls  int
	bundle *entity.SourceBundle
	err    error
}

func (s *stubRelay) Extract(context.Context, string) (*entity.SourceBundle, error) {
	s.calls++
	return s.bundle, s.err
}

type fixedSwitch bool

func (f fixedSwitch) BrowserRelayEnabled(context.Context) bool { return bool(f) }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(articleHTML))
		case "/locked":
			http.Error(w, "login required", http.StatusForbidden)
		case "/files/q3-report.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(buildPDF("Quarterly retention report", ""))
		case "/download":
			// No pdf content type or extension; only the body identifies it.
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(buildPDF("Board minutes", "Minutes"))
		case "/broken.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractor_WebFetch(t *testing.T) {
	srv := newServer(t)
	e := NewExtractor(NewFetcher(5*time.Second), WithMinReadableChars(20), WithMaxLinks(5))

	bundle, err := e.Extract(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, entity.ExtractionWebFetch, bundle.Source.ExtractionMethod)
	assert.Equal(t, confidenceReadable, bundle.Source.ExtractionConfidence)
	require.NotEmpty(t, bundle.Related)
	for _, r := range bundle.Related {
		assert.Equal(t, entity.RelationLinksTo, r.RelationType)
	}
}

func TestExtractor_StatusErrors(t *testing.T) {
	srv := newServer(t)
	e := NewExtractor(NewFetcher(5 * time.Second))

	_, err := e.Extract(context.Background(), srv.URL+"/locked")
	assert.ErrorIs(t, err, repository.ErrContentRestricted)

	_, err = e.Extract(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, repository.ErrExtractionFailed)

	_, err = e.Extract(context.Background(), srv.URL+"/broken.pdf")
	assert.ErrorIs(t, err, repository.ErrExtractionFailed)

	_, err = e.Extract(context.Background(), "ftp://files.test/x")
	assert.ErrorIs(t, err, repository.ErrExtractionFailed)
}

func TestExtractor_BrowserRelayFallback(t *testing.T) {
	srv := newServer(t)
	relayed := &entity.SourceBundle{Source: entity.ExtractedContent{Text: "relayed", ExtractionMethod: entity.ExtractionBrowserRelay}}

	relay := &stubRelay{bundle: relayed}
	e := NewExtractor(NewFetcher(5*time.Second), WithBrowserRelay(relay, fixedSwitch(true)))
	bundle, err := e.Extract(context.Background(), srv.URL+"/locked")
	require.NoError(t, err)
	assert.Equal(t, "relayed", bundle.Source.Text)
	assert.Equal(t, 1, relay.calls)

	off := &stubRelay{bundle: relayed}
	e = NewExtractor(NewFetcher(5*time.Second), WithBrowserRelay(off, fixedSwitch(false)))
	_, err = e.Extract(context.Background(), srv.URL+"/locked")
	assert.ErrorIs(t, err, repository.ErrContentRestricted)
	assert.Equal(t, 0, off.calls)

	failing := &stubRelay{err: errors.New("chrome missing")}
	e = NewExtractor(NewFetcher(5*time.Second), WithBrowserRelay(failing, fixedSwitch(true)))
	_, err = e.Extract(context.Background(), srv.URL+"/locked")
	assert.ErrorIs(t, err, repository.ErrContentRestricted)
	assert.True(t, strings.Contains(err.Error(), "chrome missing"))

	// A thin page whose relay fails still returns the fetched content.
	thin := &stubRelay{err: errors.New("chrome missing")}
	e = NewExtractor(NewFetcher(5*time.Second), WithBrowserRelay(thin, fixedSwitch(true)), WithMinReadableChars(100000))
	bundle, err = e.Extract(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, confidenceThin, bundle.Source.ExtractionConfidence)
	assert.Equal(t, 1, thin.calls)
}

// buildPDF writes a single page PDF showing text, with an optional Info title.
func buildPDF(text, title string) []byte {
	stream := "BT /F1 12 Tf 72 712 Td (" + text + ") Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Title (" + title + ") >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func TestParsePDF(t *testing.T) {
	content, err := ParsePDF(buildPDF("Quarterly retention report", "Q3 Report"))
	require.NoError(t, err)
	assert.Equal(t, entity.SourceTypePDF, content.Type)
	assert.Equal(t, "Q3 Report", content.Title)
	assert.Contains(t, collapse(content.Text), "Quarterly retention report")
	assert.Equal(t, 1, content.Metadata["pages"])
	assert.Equal(t, entity.ExtractionWebFetch, content.ExtractionMethod)

	_, err = ParsePDF([]byte("not a pdf"))
	assert.ErrorIs(t, err, repository.ErrExtractionFailed)
}

func TestExtractor_PDF(t *testing.T) {
	srv := newServer(t)
	e := NewExtractor(NewFetcher(5 * time.Second))

	bundle, err := e.Extract(context.Background(), srv.URL+"/files/q3-report.pdf")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceTypePDF, bundle.Source.Type)
	assert.Equal(t, "q3-report", bundle.Source.Title)
	assert.Contains(t, collapse(bundle.Source.Text), "Quarterly retention report")
	assert.Empty(t, bundle.Related)

	bundle, err = e.Extract(context.Background(), srv.URL+"/download")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceTypePDF, bundle.Source.Type)
	assert.Equal(t, "Minutes", bundle.Source.Title)
}
