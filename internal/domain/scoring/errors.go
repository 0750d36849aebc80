package scoring

import "errors"

// ErrInvalidPatch is returned when an edit carries out of range values.
var ErrInvalidPatch = errors.New("invalid score patch")
