package ingest

import (
	"net/url"
	"sort"
	"strings"
)

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
}

// normalizeURL canonicalizes an item URL: lower-cased scheme and host,
// default ports and fragments dropped, tracking parameters removed and the
// remaining query sorted. It returns "" for anything that is not an absolute
// URL.
func normalizeURL(raw string) (canonical string, host string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			parsed.Host = parsed.Host + ":" + port
		}
	}

	parsed.Fragment = ""
	path := strings.TrimSpace(parsed.EscapedPath())
	if path == "" {
		path = "/"
	}
	path = strings.ReplaceAll(path, "//", "/")
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	parsed.Path = path
	parsed.RawPath = ""

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, tracked := trackingQueryKeys[lower]; tracked || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	for key := range q {
		sort.Strings(q[key])
	}
	// Encode sorts by key.
	parsed.RawQuery = q.Encode()

	return parsed.String(), parsed.Hostname()
}
