package urlcache

import (
	"net/http"

	"golang.org/x/sync/singleflight"
)

// Transport is an http.RoundTripper that answers GET and HEAD requests from a
// Cache and stores successful upstream responses in it. Concurrent misses for
// the same key share one upstream request.
type Transport struct {
	cache *Cache
	base  http.RoundTripper
	group singleflight.Group
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(c *Cache, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{cache: c, base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !cacheable(req) {
		return t.base.RoundTrip(req)
	}

	if cached, ok := t.cache.CachedResponseForRequest(req); ok {
		return cached.Response(req), nil
	}

	v, err, _ := t.group.Do(t.cache.Key(req), func() (any, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		cr, err := NewCachedResponse(resp)
		if err != nil {
			return nil, err
		}
		if cr.StatusCode == http.StatusOK {
			t.cache.StoreCachedResponse(cr, req)
		}
		return cr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CachedResponse).Response(req), nil
}

func cacheable(req *http.Request) bool {
	if req.Method != "" && req.Method != http.MethodGet && req.Method != http.MethodHead {
		return false
	}
	return PolicyFor(req.Header) != StorageNotAllowed
}
