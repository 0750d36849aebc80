package batch

import "errors"

// Sentinel kinds for batch errors.
var (
	ErrInvalidFile       = errors.New("invalid batch file")
	ErrDuplicateActivity = errors.New("duplicate activity for employee and period")
)
