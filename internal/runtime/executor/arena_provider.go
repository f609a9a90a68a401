// Package executor performs the upstream create-evaluation HTTP call and
// feeds the line-tagged event stream through the translator.
package executor

import (
	"net/http"
	"sort"
	"strings"

	"github.com/arena2api/arena2api/internal/profile"
)

const (
	arenaIdentifier      = "arena"
	createEvaluationPath = "/nextjs-api/stream/create-evaluation"
	refererSuffix        = "/?mode=direct"
	browserUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// RecaptchaV3SiteKey is reported to the extension through the status
// endpoint so it mints tokens against the right widget.
const RecaptchaV3SiteKey = "6Led_uYrAAAAAKjxDIF58fgFtX3t8loNAK85bW9I"

// ArenaProvider carries the endpoint and header conventions of the arena.ai
// create-evaluation API.
type ArenaProvider struct {
	BaseURL string
}

// Identifier returns the provider identifier.
func (p *ArenaProvider) Identifier() string {
	return arenaIdentifier
}

// Endpoint returns the create-evaluation URL.
func (p *ArenaProvider) Endpoint() string {
	return p.BaseURL + createEvaluationPath
}

// ApplyHeaders decorates one upstream request with the browser-like header
// set plus the profile's cookie jar and bearer token.
func (p *ArenaProvider) ApplyHeaders(req *http.Request, creds profile.Credentials) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", p.BaseURL)
	req.Header.Set("Referer", p.BaseURL+refererSuffix)
	req.Header.Set("User-Agent", browserUserAgent)
	if cookie := buildCookieHeader(creds.Cookies); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if creds.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.AuthToken)
	}
}

// buildCookieHeader reconstructs a Cookie header from the profile's cookie
// map, sorted by name so identical jars serialize identically.
func buildCookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}
