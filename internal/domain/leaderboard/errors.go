package leaderboard

import "errors"

// ErrUnknownView is returned by ParseView for an unsupported sort key.
var ErrUnknownView = errors.New("unknown leaderboard view")
