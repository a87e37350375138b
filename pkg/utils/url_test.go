package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips fragment", "https://example.com/post#comments", "https://example.com/post"},
		{"keeps query", "https://example.com/a?b=1#top", "https://example.com/a?b=1"},
		{"no fragment", "https://example.com/a", "https://example.com/a"},
		{"malformed passes through", "not a url", "not a url"},
		{"bad escape passes through", "http://%zz", "http://%zz"},
		{"relative passes through", "/only/path#x", "/only/path#x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	once := Canonicalize("https://example.com/x#frag")
	assert.Equal(t, once, Canonicalize(once))
}

func TestHashURL(t *testing.T) {
	a := HashURL("https://example.com")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashURL("https://example.com"))
	assert.NotEqual(t, a, HashURL("https://example.org"))
}

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://example.com/blog/post")
	require.NoError(t, err)

	abs, err := ToAbsoluteURL(base, "../about")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/about", abs)
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain("https://www.Example.com/path?q=1"))
	assert.Equal(t, "example.com", NormalizeDomain("example.com"))
	assert.Equal(t, "", NormalizeDomain("  "))
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, MatchesDomain("https://www.example.com/a", "example.com"))
	assert.True(t, MatchesDomain("https://example.com:8443/a", "https://www.example.com/"))
	assert.False(t, MatchesDomain("https://blog.example.com/a", "example.com"))
	assert.False(t, MatchesDomain("https://notexample.com/a", "example.com"))
	assert.True(t, MatchesDomain("https://other.org", ""))
}
