package urlcache

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// KeyFunc derives the cache key of a request.
type KeyFunc func(req *http.Request) string

// DefaultVaryHeaders are the request headers RequestKey folds into the key.
var DefaultVaryHeaders = []string{"Accept", "Accept-Encoding", "Accept-Language"}

var defaultKeyFunc = NewKeyFunc(DefaultVaryHeaders...)

// RequestKey is the default KeyFunc: method, normalized URL and the
// DefaultVaryHeaders values.
func RequestKey(req *http.Request) string {
	return defaultKeyFunc(req)
}

// NewKeyFunc returns a KeyFunc that distinguishes requests by method,
// normalized URL and the values of the given headers.
//
// The key has the form "GET https://example.com/path?a=1|Accept=text/html".
// Absent headers are left out.
func NewKeyFunc(varyHeaders ...string) KeyFunc {
	headers := make([]string, len(varyHeaders))
	for i, h := range varyHeaders {
		headers[i] = http.CanonicalHeaderKey(h)
	}

	return func(req *http.Request) string {
		method := strings.ToUpper(req.Method)
		if method == "" {
			method = http.MethodGet
		}

		u := url.URL{}
		if req.URL != nil {
			u = *req.URL
		}
		if u.Host == "" {
			u.Host = req.Host
		}

		var b strings.Builder
		b.WriteString(method)
		b.WriteByte(' ')
		b.WriteString(NormalizeURL(&u))

		for _, h := range headers {
			values := req.Header.Values(h)
			if len(values) == 0 {
				continue
			}
			b.WriteByte('|')
			b.WriteString(h)
			b.WriteByte('=')
			for i, v := range values {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strings.TrimSpace(v))
			}
		}
		return b.String()
	}
}

// NormalizeURL returns a canonical form of u: lower-case scheme and host,
// default ports removed, "/" for an empty path, query parameters sorted by
// name, and no user info or fragment.
func NormalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]"
			}
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	if scheme != "" {
		b.WriteString(scheme)
		b.WriteString("://")
	}
	b.WriteString(host)
	b.WriteString(path)
	if u.RawQuery != "" {
		if q := u.Query().Encode(); q != "" {
			b.WriteByte('?')
			b.WriteString(q)
		}
	}
	return b.String()
}
