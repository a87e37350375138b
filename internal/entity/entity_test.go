package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSourceType(t *testing.T) {
	assert.Equal(t, SourceTypePDF, ParseSourceType(" PDF "))
	assert.Equal(t, SourceTypeTikTok, ParseSourceType("tiktok"))
	assert.Equal(t, SourceTypeUnknown, ParseSourceType("podcast"))
	assert.Equal(t, SourceTypeUnknown, ParseSourceType(""))

	assert.True(t, SourceTypeYouTube.Known())
	assert.False(t, SourceType("Article").Known())
}

func TestRelationType_Valid(t *testing.T) {
	for _, r := range []RelationType{RelationThreadReply, RelationQuoteOf, RelationLinksTo} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, RelationType("mentions").Valid())
	assert.False(t, RelationType("").Valid())
}

func TestSearchFilters_Describe(t *testing.T) {
	assert.Equal(t, "none", SearchFilters{}.Describe())
	assert.True(t, SearchFilters{}.IsEmpty())

	f := SearchFilters{Collection: "alpha", Domain: "a.test", SourceType: "pdf", URL: "https://a.test/x"}
	assert.False(t, f.IsEmpty())
	assert.Equal(t, "collection=alpha, domain=a.test, source=pdf, url=https://a.test/x", f.Describe())
}

func TestSettings_Apply(t *testing.T) {
	on, off := true, false
	base := Settings{AutoSummaryEnabled: true}

	assert.Equal(t, base, base.Apply(SettingsPatch{}))
	assert.Equal(t,
		Settings{AutoSummaryEnabled: false, BrowserRelayFallbackEnabled: true},
		base.Apply(SettingsPatch{AutoSummaryEnabled: &off, BrowserRelayFallbackEnabled: &on}),
	)
}
