package cache

import "errors"

var (
	ErrInvalidCapacity = errors.New("cache capacity must not be negative")
	ErrInvalidTier     = errors.New("unknown cache tier")
	ErrInvalidLocation = errors.New("cache location is not a usable directory")

	// Backend errors
	ErrNotFound             = errors.New("cache record not found")
	ErrCorruptRecord        = errors.New("cache record is corrupt")
	ErrFailedToWriteRecord  = errors.New("failed to write cache record")
	ErrFailedToReadRecord   = errors.New("failed to read cache record")
	ErrFailedToDeleteRecord = errors.New("failed to delete cache record")
)
