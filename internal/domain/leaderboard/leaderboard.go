// Package leaderboard aggregates score histories into a ranked leaderboard.
package leaderboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/wcs/internal/domain/model"
)

// Defaults for the aggregation.
const (
	DefaultWindow          = 12
	DefaultStreakThreshold = 0.8

	averageWeight   = 100
	streakWeight    = 10
	checkMarkWeight = 5
)

// View selects the display order of a built leaderboard.
type View string

// Supported views. Rank always reflects ViewRanking order.
const (
	ViewRanking    View = "ranking"
	ViewAverage    View = "average"
	ViewStreak     View = "streak"
	ViewCheckMarks View = "checkmarks"
)

// ParseView maps a query value to a View. Empty means ViewRanking.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case "", ViewRanking:
		return ViewRanking, nil
	case ViewAverage, ViewStreak, ViewCheckMarks:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

// Entry is one ranked employee.
type Entry struct {
	Rank                int     `json:"rank"`
	EmployeeID          string  `json:"employee_id"`
	Name                string  `json:"name,omitempty"`
	TeamID              string  `json:"team_id,omitempty"`
	RollingAverageScore float64 `json:"rolling_average_score"`
	CurrentStreak       int     `json:"current_streak"`
	CheckMarkCount      int     `json:"check_mark_count"`
	RankingScore        float64 `json:"ranking_score"`
}

type options struct {
	window    int
	threshold float64
}

// Option configures Build.
type Option func(*options)

// WithWindow sets how many recent periods the rolling average covers.
func WithWindow(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.window = n
		}
	}
}

// WithStreakThreshold sets the minimum WCS that extends a streak.
func WithStreakThreshold(t float64) Option {
	return func(o *options) {
		if t > 0 {
			o.threshold = t
		}
	}
}

// Build ranks every employee with at least one score record. Each history
// must be ordered most recent period first. Ties keep input order.
func Build(histories []model.History, opts ...Option) []Entry {
	o := options{window: DefaultWindow, threshold: DefaultStreakThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	entries := make([]Entry, 0, len(histories))
	for _, h := range histories {
		if len(h.Records) == 0 {
			continue
		}
		avg := RollingAverage(h.Records, o.window)
		streak := Streak(h.Records, o.threshold)
		checks := CheckMarks(h.Records)
		team := h.Employee.TeamID
		if team == "" {
			team = h.Records[0].TeamID
		}
		entries = append(entries, Entry{
			EmployeeID:          h.Employee.ID,
			Name:                h.Employee.Name,
			TeamID:              team,
			RollingAverageScore: avg,
			CurrentStreak:       streak,
			CheckMarkCount:      checks,
			RankingScore:        RankingScore(avg, streak, checks),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RankingScore > entries[j].RankingScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RollingAverage is the mean WCS over the first window records, or 0 when
// there are none.
func RollingAverage(records []model.ScoreRecord, window int) float64 {
	n := min(len(records), window)
	if n <= 0 {
		return 0
	}
	var sum float64
	for _, r := range records[:n] {
		sum += r.WCS
	}
	return sum / float64(n)
}

// Streak counts leading records with WCS >= threshold.
func Streak(records []model.ScoreRecord, threshold float64) int {
	streak := 0
	for _, r := range records {
		if r.WCS < threshold {
			break
		}
		streak++
	}
	return streak
}

// CheckMarks counts check marks across the full history.
func CheckMarks(records []model.ScoreRecord) int {
	count := 0
	for _, r := range records {
		if r.CheckMark {
			count++
		}
	}
	return count
}

// RankingScore combines the three signals with average > streak > check marks.
func RankingScore(avg float64, streak, checkMarks int) float64 {
	return avg*averageWeight + float64(streak*streakWeight) + float64(checkMarks*checkMarkWeight)
}

// SortBy returns a copy of entries ordered for view. Rank is untouched and
// ties keep rank order.
func SortBy(entries []Entry, view View) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })

	var less func(a, b Entry) bool
	switch view {
	case ViewAverage:
		less = func(a, b Entry) bool { return a.RollingAverageScore > b.RollingAverageScore }
	case ViewStreak:
		less = func(a, b Entry) bool { return a.CurrentStreak > b.CurrentStreak }
	case ViewCheckMarks:
		less = func(a, b Entry) bool { return a.CheckMarkCount > b.CheckMarkCount }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Top returns at most n entries; n <= 0 returns all.
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}

// Find returns the entry for employeeID.
func Find(entries []Entry, employeeID string) (Entry, bool) {
	for _, e := range entries {
		if e.EmployeeID == employeeID {
			return e, true
		}
	}
	return Entry{}, false
}
