// internal/services/license_match.go
package services

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// patternCache compiles path patterns once.
type patternCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{compiled: make(map[string]*regexp.Regexp)}
}

// matches reports whether a content pattern covers rawURL. Patterns starting
// with "/" are matched against the URL's path and query, where "*" matches
// anything and a trailing "$" anchors the end. Other patterns are plain
// prefixes of the full URL.
func (c *patternCache) matches(pattern, rawURL string) bool {
	if pattern == "" {
		return false
	}
	if !strings.HasPrefix(pattern, "/") {
		return strings.HasPrefix(rawURL, pattern)
	}
	return c.regexp(pattern).MatchString(pathAndQuery(rawURL))
}

func (c *patternCache) regexp(pattern string) *regexp.Regexp {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re
	}

	re = compilePattern(pattern)
	c.mu.Lock()
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re
}

func compilePattern(pattern string) *regexp.Regexp {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")

	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}

	expr := "^" + strings.Join(parts, ".*")
	if anchored {
		expr += "$"
	}
	return regexp.MustCompile(expr)
}

func pathAndQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}
