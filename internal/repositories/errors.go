package repositories

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrTransport marks push-channel and network failures so callers
	// can distinguish them from missing data.
	ErrTransport = errors.New("transport failure")
)
