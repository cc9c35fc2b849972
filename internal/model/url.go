package model

import (
	"net/url"
	"strings"
)

// NormalizeURL returns the canonical form of a URL used for deduplication
// and cache keys. The scheme and host are lowercased, the fragment is
// dropped and an empty path becomes "/". Unparseable input is returned as is.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// http://example.com and http://example.com/ are the same page.
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String()
}
