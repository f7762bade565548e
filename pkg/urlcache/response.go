package urlcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StoragePolicy controls where a response may be cached.
type StoragePolicy uint8

const (
	StorageAllowed StoragePolicy = iota
	StorageAllowedInMemoryOnly
	StorageNotAllowed
)

func (p StoragePolicy) String() string {
	switch p {
	case StorageAllowed:
		return "allowed"
	case StorageAllowedInMemoryOnly:
		return "memory_only"
	case StorageNotAllowed:
		return "not_allowed"
	default:
		return "unknown"
	}
}

// CachedResponse is a fetched response held by the cache.
type CachedResponse struct {
	StatusCode int               `json:"status_code"`
	Header     http.Header       `json:"header,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	StoredAt   time.Time         `json:"stored_at"`
	Policy     StoragePolicy     `json:"policy"`
	UserInfo   map[string]string `json:"user_info,omitempty"`
}

// NewCachedResponse reads and closes resp.Body. The policy is derived from
// the response's Cache-Control header.
func NewCachedResponse(resp *http.Response) (*CachedResponse, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	return &CachedResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   time.Now(),
		Policy:     PolicyFor(resp.Header),
	}, nil
}

// PolicyFor maps Cache-Control directives to a storage policy:
// no-store forbids caching and private keeps the response in memory.
func PolicyFor(h http.Header) StoragePolicy {
	policy := StorageAllowed
	for _, value := range h.Values("Cache-Control") {
		for directive := range strings.SplitSeq(value, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(directive), "=")
			switch strings.ToLower(name) {
			case "no-store":
				return StorageNotAllowed
			case "private":
				policy = StorageAllowedInMemoryOnly
			}
		}
	}
	return policy
}

// Size is the number of bytes the response is accounted for: the body plus
// every header name and value.
func (r *CachedResponse) Size() int64 {
	n := int64(len(r.Body))
	for name, values := range r.Header {
		for _, v := range values {
			n += int64(len(name) + len(v))
		}
	}
	return n
}

// Response builds an *http.Response for req. Each call gets its own body reader.
func (r *CachedResponse) Response(req *http.Request) *http.Response {
	body := r.Body
	if req != nil && req.Method == http.MethodHead {
		body = nil
	}
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if !r.StoredAt.IsZero() {
		header.Set("Age", strconv.FormatInt(int64(time.Since(r.StoredAt).Seconds()), 10))
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode)),
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

func (r *CachedResponse) encode() ([]byte, error) {
	return json.Marshal(r)
}

func decodeResponse(data []byte) (*CachedResponse, error) {
	var r CachedResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Join(ErrDecodeResponse, err)
	}
	return &r, nil
}
