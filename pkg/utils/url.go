package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// HashURL creates a SHA256 hash of a URL string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// Canonicalize normalizes a URL into its deduplication key by dropping the
// fragment. Input that does not parse as an absolute URL is returned as-is.
func Canonicalize(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}

// NormalizeDomain reduces a user supplied domain filter ("https://www.Example.com/x")
// to a bare lowercase host ("example.com").
func NormalizeDomain(value string) string {
	d := strings.ToLower(strings.TrimSpace(value))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimPrefix(d, "www.")
}

// HostDomain returns the lowercase host of a URL without a leading "www.".
// Unparseable input is normalized as a bare domain instead.
func HostDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return NormalizeDomain(rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// MatchesDomain reports whether the URL's host equals the normalized domain.
// An empty domain matches everything.
func MatchesDomain(rawURL, domain string) bool {
	want := NormalizeDomain(domain)
	if want == "" {
		return true
	}
	return HostDomain(rawURL) == want
}
