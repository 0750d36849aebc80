// Package seed generates a synthetic roster and weeks of activity, submits
// them to a running server and checks the resulting leaderboard.
package seed

import "time"

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Employees     int           // Roster size
	Teams         int           // Teams the roster is spread over
	Weeks         int           // Consecutive periods of activity per employee
	StartWeek     string        // First period, e.g. 2025-W01. Empty means Weeks before now.
	ReportingDays int           // Upper bound for generated daily posts
	DuplicateRate float64       // Share of submissions sent twice, in [0,1]
	TopN          int           // Leaderboard entries fetched and verified
	Workers       int           // Concurrent HTTP requests
	Timeout       time.Duration // HTTP request timeout
	Settle        time.Duration // How long to wait for the queue to drain
	Seed          uint64        // Random seed; equal seeds generate equal data
	OutputFile    string        // Optional YAML dump of the generated dataset
}

// Stats holds run statistics.
type Stats struct {
	EmployeesCreated     int           `yaml:"employees_created"`
	ActivitiesGenerated  int           `yaml:"activities_generated"`
	SubmissionsSent      int           `yaml:"submissions_sent"`
	SubmissionsAccepted  int           `yaml:"submissions_accepted"`
	SubmissionsDuplicate int           `yaml:"submissions_duplicate"`
	SubmissionsFailed    int           `yaml:"submissions_failed"`
	LeaderboardEntries   int           `yaml:"leaderboard_entries"`
	RanksVerified        int           `yaml:"ranks_verified"`
	Duration             time.Duration `yaml:"duration"`
}
