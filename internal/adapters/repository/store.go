// Package repository persists score records, the roster and the admin-owned
// personalization configuration.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/metrics"
)

// Store provides read/write access to scores, roster and configuration.
// Implementations are safe for concurrent use.
type Store interface {
	// SaveScore inserts or replaces the record keyed by (employee, period).
	SaveScore(ctx context.Context, rec model.ScoreRecord) error
	// Score returns one record or ErrNotFound.
	Score(ctx context.Context, employeeID, periodID string) (model.ScoreRecord, error)
	// History returns an employee's records, most recent period first.
	History(ctx context.Context, employeeID string) ([]model.ScoreRecord, error)
	// Snapshot returns a copy of every history ordered by employee id. Roster
	// entries without records are included with an empty history.
	Snapshot(ctx context.Context) ([]model.History, error)
	// Count returns the number of stored score records.
	Count(ctx context.Context) int

	UpsertEmployee(ctx context.Context, e model.Employee) error
	// Employee returns a roster entry or ErrNotFound.
	Employee(ctx context.Context, id string) (model.Employee, error)
	Employees(ctx context.Context) ([]model.Employee, error)

	SetTeamWeights(ctx context.Context, cfg model.TeamWeightConfig) error
	// TeamWeights returns ErrNotFound when nothing is stored and
	// ErrMalformedConfig when the stored value does not decode.
	TeamWeights(ctx context.Context, teamID string) (model.TeamWeightConfig, error)
	SetMultiplier(ctx context.Context, m model.UserMultiplier) error
	// Multiplier returns ErrNotFound when nothing is stored.
	Multiplier(ctx context.Context, employeeID string) (model.UserMultiplier, error)

	Close() error
}

// sortHistory orders records most recent period first. Period ids sort
// chronologically as strings.
func sortHistory(records []model.ScoreRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].PeriodID > records[j].PeriodID
	})
}

func sortHistories(hs []model.History) {
	sort.Slice(hs, func(i, j int) bool {
		return hs[i].Employee.ID < hs[j].Employee.ID
	})
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// startMetricsUpdater publishes record and roster gauges until stop closes.
func startMetricsUpdater(ctx context.Context, s Store, interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				metrics.UpdateRepositoryRecords(s.Count(ctx))
				if roster, err := s.Employees(ctx); err == nil {
					metrics.UpdateTotalEmployees(len(roster))
				}
			}
		}
	}()
}
