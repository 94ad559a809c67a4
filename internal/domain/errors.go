package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrMalformedTokenList  = errors.New("malformed token list")
	ErrStaleLoad           = errors.New("stale load")
)
