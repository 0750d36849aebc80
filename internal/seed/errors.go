package seed

import "errors"

// Sentinel kinds for seeding errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrNotSettled       = errors.New("submissions not processed in time")
	ErrVerification     = errors.New("leaderboard verification failed")
)
