package urlcache

import "errors"

var (
	ErrUnknownBackend = errors.New("unknown url cache backend")
	ErrNilStore       = errors.New("url cache store is nil")
	ErrDecodeResponse = errors.New("failed to decode cached response")
)
