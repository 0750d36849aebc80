package model

import "errors"

// Sentinel kinds for ingestion errors.
var (
	ErrInvalidActivity = errors.New("invalid activity record")
	ErrInvalidEmployee = errors.New("invalid employee")
)
