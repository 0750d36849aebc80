package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrMalformedConfig = errors.New("malformed stored configuration")
	ErrClosed          = errors.New("store closed")
)
